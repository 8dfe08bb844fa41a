package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/pocketledger/biovault/internal/crypto"
	"github.com/pocketledger/biovault/internal/logger"
	"github.com/pocketledger/biovault/internal/model"
)

// Credentials is the credential store component. Descriptors are encrypted
// keyed on the owning user before they cross into the remote record store;
// nothing below this boundary ever sees plaintext.
type Credentials struct {
	records model.CredentialRecordStore
	engine  *crypto.Engine
	archive model.Storage
	logger  *logger.Logger
	now     func() time.Time
}

// NewCredentials creates the credential store component. archive may be nil;
// attestation snapshots are then skipped.
func NewCredentials(
	records model.CredentialRecordStore,
	engine *crypto.Engine,
	archive model.Storage,
	logger *logger.Logger,
) *Credentials {
	return &Credentials{
		records: records,
		engine:  engine,
		archive: archive,
		logger:  logger,
		now:     time.Now,
	}
}

// StoreCredential encrypts descriptor keyed on userID and upserts the record
// under (userID, credentialID). Repeated calls with the same key overwrite
// the prior payload and device metadata. Device metadata is captured at call
// time; missing fields are filled from the runtime best-effort.
func (s *Credentials) StoreCredential(ctx context.Context, userID uuid.UUID, credentialID string, descriptor []byte, device model.DeviceInfo) error {
	if credentialID == "" {
		return fmt.Errorf("credential id is required")
	}

	payload, err := s.engine.Encrypt(descriptor, userID.String())
	if err != nil {
		return fmt.Errorf("failed to encrypt descriptor: %w", err)
	}

	now := s.now()
	credential := model.Credential{
		UserID:       userID,
		CredentialID: credentialID,
		Payload:      payload,
		Device:       fillDeviceDefaults(device),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.records.Upsert(ctx, credential); err != nil {
		s.logger.Error("Credential store: failed to upsert credential record",
			"user_id", userID,
			"credential_id", credentialID,
			"error", err.Error())
		return fmt.Errorf("%w: upsert credential record: %v", model.ErrStoreUnavailable, err)
	}

	// Non-critical write: the snapshot holds public attestation material
	// for audit, losing it never blocks registration.
	s.archiveSnapshot(ctx, userID, credentialID, descriptor)

	return nil
}

// GetCredentialIDs returns all credential identifiers registered for the
// user without decrypting payloads. Empty slice if none.
func (s *Credentials) GetCredentialIDs(ctx context.Context, userID uuid.UUID) ([]string, error) {
	credentials, err := s.records.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list credential records: %v", model.ErrStoreUnavailable, err)
	}

	ids := make([]string, 0, len(credentials))
	for _, credential := range credentials {
		ids = append(ids, credential.CredentialID)
	}
	return ids, nil
}

// GetCredential fetches and decrypts a single descriptor. Absence is
// model.ErrNotFound; a payload that no longer authenticates is
// model.ErrDecryptionFailed, surfaced distinctly.
func (s *Credentials) GetCredential(ctx context.Context, userID uuid.UUID, credentialID string) ([]byte, error) {
	credential, err := s.records.GetByUserAndCredentialID(ctx, userID, credentialID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get credential record: %v", model.ErrStoreUnavailable, err)
	}

	descriptor, err := s.engine.Decrypt(credential.Payload, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt descriptor: %w", err)
	}

	return descriptor, nil
}

// TouchLastUsed records a successful verification. Best-effort bookkeeping:
// failure is logged and ignored so it cannot regress a successful login into
// a reported failure.
func (s *Credentials) TouchLastUsed(ctx context.Context, userID uuid.UUID, credentialID string) {
	if err := s.records.UpdateLastUsed(ctx, userID, credentialID, s.now()); err != nil {
		s.logger.Warn("Credential store: failed to update last-used timestamp",
			"user_id", userID,
			"credential_id", credentialID,
			"error", err.Error())
	}
}

// RemoveCredential deletes a single record and reports whether it existed.
func (s *Credentials) RemoveCredential(ctx context.Context, userID uuid.UUID, credentialID string) (bool, error) {
	n, err := s.records.DeleteByUserAndCredentialID(ctx, userID, credentialID)
	if err != nil {
		return false, fmt.Errorf("%w: delete credential record: %v", model.ErrStoreUnavailable, err)
	}
	if n > 0 {
		s.removeSnapshot(ctx, userID, credentialID)
	}
	return n > 0, nil
}

// RemoveAllCredentials deletes every record for the user and reports whether
// any existed.
func (s *Credentials) RemoveAllCredentials(ctx context.Context, userID uuid.UUID) (bool, error) {
	ids, err := s.GetCredentialIDs(ctx, userID)
	if err != nil {
		s.logger.Warn("Credential store: failed to list snapshots before removal",
			"user_id", userID,
			"error", err.Error())
	}

	n, err := s.records.DeleteByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%w: delete credential records: %v", model.ErrStoreUnavailable, err)
	}

	for _, id := range ids {
		s.removeSnapshot(ctx, userID, id)
	}

	return n > 0, nil
}

func (s *Credentials) archiveSnapshot(ctx context.Context, userID uuid.UUID, credentialID string, descriptor []byte) {
	if s.archive == nil {
		return
	}
	key := attestationKey(userID, credentialID)
	if err := s.archive.Upload(ctx, key, bytes.NewReader(descriptor)); err != nil {
		s.logger.Warn("Credential store: failed to archive attestation snapshot",
			"key", key,
			"error", err.Error())
	}
}

func (s *Credentials) removeSnapshot(ctx context.Context, userID uuid.UUID, credentialID string) {
	if s.archive == nil {
		return
	}
	key := attestationKey(userID, credentialID)
	if err := s.archive.Delete(ctx, key); err != nil {
		s.logger.Warn("Credential store: failed to remove attestation snapshot",
			"key", key,
			"error", err.Error())
	}
}

func attestationKey(userID uuid.UUID, credentialID string) string {
	return fmt.Sprintf("user-%s/credential-%s.json", userID, credentialID)
}

func fillDeviceDefaults(device model.DeviceInfo) model.DeviceInfo {
	if device.Platform == "" {
		device.Platform = runtime.GOOS
	}
	if device.Timezone == "" {
		device.Timezone = time.Now().Location().String()
	}
	return device
}
