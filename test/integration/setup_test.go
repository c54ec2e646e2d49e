package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/booking/internal/domain/directory"
	"github.com/carebook/booking/internal/platform/auth"
	"github.com/carebook/booking/internal/platform/db"
	"github.com/carebook/booking/migrations"
)

// globalPool is the migrated test database, or nil when none is available.
var globalPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	pool, cleanup, err := setupDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "integration database unavailable, skipping: %v\n", err)
	} else {
		globalPool = pool
	}

	code := m.Run()
	if cleanup != nil {
		cleanup()
	}
	os.Exit(code)
}

const (
	postgresImage = "postgres:16-alpine"
	readyTimeout  = 30 * time.Second
)

// setupDatabase connects to TEST_DATABASE_URL, or starts a throwaway
// postgres container when the variable is unset and docker is installed,
// then applies the embedded booking schema.
func setupDatabase(ctx context.Context) (*pgxpool.Pool, func(), error) {
	connStr := os.Getenv("TEST_DATABASE_URL")
	stop := func() {}
	if connStr == "" {
		if _, err := exec.LookPath("docker"); err != nil {
			return nil, nil, fmt.Errorf("TEST_DATABASE_URL is unset and docker is not installed")
		}
		var err error
		connStr, stop, err = runPostgres(ctx)
		if err != nil {
			return nil, nil, err
		}
	}

	pool, err := awaitPool(ctx, connStr)
	if err != nil {
		stop()
		return nil, nil, err
	}
	if _, err := db.NewMigrator(pool, migrations.FS).Up(ctx); err != nil {
		pool.Close()
		stop()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	return pool, func() {
		pool.Close()
		stop()
	}, nil
}

// runPostgres starts a disposable container on a docker-assigned loopback
// port. The container is removed when stop is called.
func runPostgres(ctx context.Context) (string, func(), error) {
	out, err := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER=booking",
		"-e", "POSTGRES_PASSWORD=booking",
		"-e", "POSTGRES_DB=bookingtest",
		postgresImage,
	).CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("docker run %s: %w: %s", postgresImage, err, out)
	}
	id := strings.TrimSpace(string(out))
	stop := func() { _ = exec.Command("docker", "rm", "-f", id).Run() }

	out, err = exec.CommandContext(ctx, "docker", "port", id, "5432/tcp").Output()
	if err != nil {
		stop()
		return "", nil, fmt.Errorf("docker port: %w", err)
	}
	// "127.0.0.1:49153", possibly followed by an IPv6 mapping.
	addr, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return fmt.Sprintf("postgres://booking:booking@%s/bookingtest?sslmode=disable", addr), stop, nil
}

// awaitPool retries until the server answers a ping or readyTimeout passes.
func awaitPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	deadline := time.Now().Add(readyTimeout)
	for {
		attemptCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		pool, err := db.NewPool(attemptCtx, connStr, 20, 2)
		cancel()
		if err == nil {
			return pool, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("postgres not ready after %s: %w", readyTimeout, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func requireDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if globalPool == nil {
		t.Skip("no integration database")
	}
	return globalPool
}

// createAccount registers an account with a unique email.
func createAccount(t *testing.T, ctx context.Context, role auth.Role, name, specialty string) *directory.Account {
	t.Helper()
	a := &directory.Account{
		Name:      name,
		Email:     fmt.Sprintf("%s@example.test", uuid.NewString()),
		Role:      role,
		Specialty: specialty,
	}
	if err := directory.Register(ctx, directory.NewAccountRepoPG(globalPool), a); err != nil {
		t.Fatalf("create %s account: %v", role, err)
	}
	return a
}
