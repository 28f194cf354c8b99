package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrUserNotFound = errors.New("user not found")

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdatePhone(ctx context.Context, id uuid.UUID, phone string) error
	ListByRole(ctx context.Context, role Role) ([]*User, error)
}
