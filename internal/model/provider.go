package model

import (
	"context"

	"github.com/google/uuid"
)

// CredentialProvider wraps the platform's public-key-credential ceremonies
// behind a capability-checked interface. A factory selects an implementation
// at runtime; when no platform capability is detected the factory yields an
// unavailable variant whose operations report ErrUnsupportedPlatform.
type CredentialProvider interface {
	IsSupported() bool
	IsSecureContext() bool
	RegisterCredential(ctx context.Context, user User, device DeviceInfo) (Registration, error)
	VerifyCredential(ctx context.Context, userID uuid.UUID) error
	RemoveCredential(ctx context.Context, userID uuid.UUID) (bool, error)
	HasRegisteredCredential(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Registration is the outcome of a successful registration ceremony.
type Registration struct {
	CredentialID string
}
