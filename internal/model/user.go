package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore supplies user profiles to the credential flow. Consumed
// read-only except for Create, which exists for provisioning and tests.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	Create(ctx context.Context, user User) (User, error)
}

// User represents an account profile.
type User struct {
	ID        uuid.UUID
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}
