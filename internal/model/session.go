package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionCache keeps a minimal cached user record and the last biometric
// login timestamp for session continuity. The cache is local and ephemeral;
// losing it only forces a fresh email lookup.
type SessionCache interface {
	Get(ctx context.Context) (Session, error)
	Put(ctx context.Context, session Session) error
	Clear(ctx context.Context) error
}

// Session is the locally cached login state.
type Session struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	LastLoginAt time.Time `json:"last_login_at"`
}
