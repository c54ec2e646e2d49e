package directory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/booking/internal/platform/auth"
)

func TestCachedDirectory_GetHitsCache(t *testing.T) {
	repo := newMockAccountRepo()
	docID := seed(t, repo, "house", auth.RoleDoctor, "Diagnostics")
	c := NewCachedDirectory(NewDoctors(repo), 16, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		doc, err := c.Get(ctx, docID)
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if doc.Name != "house" {
			t.Errorf("unexpected doctor %+v", doc)
		}
	}
	if repo.gets != 1 {
		t.Errorf("expected 1 repository lookup, got %d", repo.gets)
	}

	ok, err := c.Exists(ctx, docID)
	if err != nil || !ok {
		t.Errorf("Exists() = %v, %v", ok, err)
	}
	if repo.gets != 1 {
		t.Errorf("Exists should be served from cache, got %d lookups", repo.gets)
	}
}

func TestCachedDirectory_MissesAreNotCached(t *testing.T) {
	repo := newMockAccountRepo()
	c := NewCachedDirectory(NewDoctors(repo), 16, time.Minute)
	ctx := context.Background()
	id := uuid.New()

	if ok, err := c.Exists(ctx, id); err != nil || ok {
		t.Fatalf("Exists() = %v, %v", ok, err)
	}
	repo.accounts[id] = &Account{ID: id, Name: "late", Role: auth.RoleDoctor}
	if ok, err := c.Exists(ctx, id); err != nil || !ok {
		t.Errorf("expected newly created doctor to be found, got %v, %v", ok, err)
	}
}

func TestCachedDirectory_ReturnsCopies(t *testing.T) {
	repo := newMockAccountRepo()
	docID := seed(t, repo, "house", auth.RoleDoctor, "")
	c := NewCachedDirectory(NewDoctors(repo), 16, time.Minute)
	ctx := context.Background()

	doc, _ := c.Get(ctx, docID)
	doc.Name = "mutated"
	again, _ := c.Get(ctx, docID)
	if again.Name != "house" {
		t.Errorf("cache entry was mutated through returned pointer: %s", again.Name)
	}
}
