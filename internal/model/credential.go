package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CredentialRecordStore defines persistence operations for encrypted
// credential records. Records are keyed by (user id, credential id).
type CredentialRecordStore interface {
	Upsert(ctx context.Context, credential Credential) (Credential, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]Credential, error)
	GetByUserAndCredentialID(ctx context.Context, userID uuid.UUID, credentialID string) (Credential, error)
	UpdateLastUsed(ctx context.Context, userID uuid.UUID, credentialID string, usedAt time.Time) error
	DeleteByUserAndCredentialID(ctx context.Context, userID uuid.UUID, credentialID string) (int64, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Credential represents a stored biometric credential record. The descriptor
// payload is encrypted before it reaches the store and stays opaque to every
// component except the encryption engine.
type Credential struct {
	UserID       uuid.UUID
	CredentialID string
	Payload      EncryptedPayload
	Device       DeviceInfo
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastUsedAt   *time.Time
}

// EncryptedPayload holds an authenticated ciphertext with its key-derivation
// salt and nonce, each independently base64-encoded.
type EncryptedPayload struct {
	Ciphertext string
	Salt       string
	IV         string
}

// DeviceInfo is best-effort descriptive metadata captured at registration
// time. Informational only, never used for access control.
type DeviceInfo struct {
	UserAgent string
	Platform  string
	Language  string
	Timezone  string
}
