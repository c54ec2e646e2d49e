package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/carebook/booking/internal/platform/db"
)

// PGStore keeps sessions in booking_sessions. Expired rows are invisible to
// Get and are pruned on Put.
type PGStore struct {
	pool   *pgxpool.Pool
	ttl    time.Duration
	logger zerolog.Logger
}

func NewPGStore(pool *pgxpool.Pool, ttl time.Duration, logger zerolog.Logger) *PGStore {
	return &PGStore{pool: pool, ttl: ttl, logger: logger.With().Str("component", "session_store").Logger()}
}

func (s *PGStore) Get(ctx context.Context, id string) ([]byte, bool, error) {
	var payload []byte
	err := db.Conn(ctx, s.pool).QueryRow(ctx,
		`SELECT payload FROM booking_sessions WHERE id = $1 AND expires_at > NOW()`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get session: %w", err)
	}
	return payload, true, nil
}

func (s *PGStore) Put(ctx context.Context, id string, payload []byte) error {
	expiresAt := time.Now().Add(s.ttl)
	return db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, s.pool)
		tag, err := q.Exec(ctx, `DELETE FROM booking_sessions WHERE expires_at <= NOW()`)
		if err != nil {
			return fmt.Errorf("prune sessions: %w", err)
		}
		if n := tag.RowsAffected(); n > 0 {
			s.logger.Debug().Int64("pruned", n).Msg("expired sessions removed")
		}
		_, err = q.Exec(ctx, `
			INSERT INTO booking_sessions (id, payload, expires_at) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at`,
			id, payload, expiresAt)
		if err != nil {
			return fmt.Errorf("put session: %w", err)
		}
		return nil
	})
}

func (s *PGStore) Clear(ctx context.Context, id string) error {
	if _, err := db.Conn(ctx, s.pool).Exec(ctx, `DELETE FROM booking_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
