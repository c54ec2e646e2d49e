package directory

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebook/booking/internal/platform/auth"
)

// Account maps to the accounts table.
type Account struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name" validate:"required,max=255"`
	Email     string    `db:"email" json:"email" validate:"required,email,max=255"`
	Role      auth.Role `db:"role" json:"role" validate:"required"`
	Specialty string    `db:"specialty" json:"specialty,omitempty" validate:"max=255"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
