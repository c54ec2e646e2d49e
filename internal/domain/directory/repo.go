package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/carebook/booking/internal/platform/auth"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already registered")
)

type AccountRepository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	ListByRoles(ctx context.Context, roles []auth.Role, limit, offset int) ([]*Account, int, error)
}
