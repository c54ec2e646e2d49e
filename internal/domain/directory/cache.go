package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/carebook/booking/internal/domain/booking"
)

// CachedDirectory memoizes doctor lookups for ttl. Listings always go to the
// underlying directory.
type CachedDirectory struct {
	next  booking.DoctorDirectory
	cache *expirable.LRU[uuid.UUID, booking.Doctor]
}

func NewCachedDirectory(next booking.DoctorDirectory, size int, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		next:  next,
		cache: expirable.NewLRU[uuid.UUID, booking.Doctor](size, nil, ttl),
	}
}

var _ booking.DoctorDirectory = (*CachedDirectory)(nil)

func (c *CachedDirectory) Get(ctx context.Context, id uuid.UUID) (*booking.Doctor, error) {
	if doc, ok := c.cache.Get(id); ok {
		return &doc, nil
	}
	doc, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, *doc)
	cp := *doc
	return &cp, nil
}

func (c *CachedDirectory) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := c.Get(ctx, id)
	if errors.Is(err, booking.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (c *CachedDirectory) List(ctx context.Context, limit, offset int) ([]*booking.Doctor, int, error) {
	return c.next.List(ctx, limit, offset)
}
