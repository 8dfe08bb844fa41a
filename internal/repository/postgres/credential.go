package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pocketledger/biovault/internal/model"
)

var _ model.CredentialRecordStore = (*CredentialRepository)(nil)

type CredentialRepository struct {
	db *Connection
}

func NewCredentialRepository(db *Connection) *CredentialRepository {
	return &CredentialRepository{
		db: db,
	}
}

// Upsert inserts a credential record or, when (user_id, credential_id)
// already exists, replaces its payload and device metadata. Last writer
// wins; created_at and last_used_at survive the overwrite.
func (r *CredentialRepository) Upsert(ctx context.Context, credential model.Credential) (model.Credential, error) {
	query := `
		INSERT INTO biometric_credentials
			(user_id, credential_id, ciphertext, salt, iv, user_agent, platform, language, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, credential_id) DO UPDATE SET
			ciphertext = EXCLUDED.ciphertext,
			salt = EXCLUDED.salt,
			iv = EXCLUDED.iv,
			user_agent = EXCLUDED.user_agent,
			platform = EXCLUDED.platform,
			language = EXCLUDED.language,
			timezone = EXCLUDED.timezone,
			updated_at = EXCLUDED.updated_at
		RETURNING user_id, credential_id, ciphertext, salt, iv, user_agent, platform, language, timezone,
			created_at, updated_at, last_used_at`

	var saved model.Credential
	err := r.db.QueryRow(ctx, query,
		credential.UserID, credential.CredentialID,
		credential.Payload.Ciphertext, credential.Payload.Salt, credential.Payload.IV,
		credential.Device.UserAgent, credential.Device.Platform, credential.Device.Language, credential.Device.Timezone,
		credential.CreatedAt, credential.UpdatedAt,
	).Scan(
		&saved.UserID, &saved.CredentialID,
		&saved.Payload.Ciphertext, &saved.Payload.Salt, &saved.Payload.IV,
		&saved.Device.UserAgent, &saved.Device.Platform, &saved.Device.Language, &saved.Device.Timezone,
		&saved.CreatedAt, &saved.UpdatedAt, &saved.LastUsedAt,
	)
	if err != nil {
		return model.Credential{}, err
	}

	return saved, nil
}

func (r *CredentialRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]model.Credential, error) {
	query := `
		SELECT user_id, credential_id, ciphertext, salt, iv, user_agent, platform, language, timezone,
			created_at, updated_at, last_used_at
		FROM biometric_credentials
		WHERE user_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var credentials []model.Credential
	for rows.Next() {
		var credential model.Credential
		err := rows.Scan(
			&credential.UserID, &credential.CredentialID,
			&credential.Payload.Ciphertext, &credential.Payload.Salt, &credential.Payload.IV,
			&credential.Device.UserAgent, &credential.Device.Platform, &credential.Device.Language, &credential.Device.Timezone,
			&credential.CreatedAt, &credential.UpdatedAt, &credential.LastUsedAt,
		)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return credentials, nil
}

func (r *CredentialRepository) GetByUserAndCredentialID(ctx context.Context, userID uuid.UUID, credentialID string) (model.Credential, error) {
	query := `
		SELECT user_id, credential_id, ciphertext, salt, iv, user_agent, platform, language, timezone,
			created_at, updated_at, last_used_at
		FROM biometric_credentials
		WHERE user_id = $1 AND credential_id = $2`

	var credential model.Credential
	err := r.db.QueryRow(ctx, query, userID, credentialID).Scan(
		&credential.UserID, &credential.CredentialID,
		&credential.Payload.Ciphertext, &credential.Payload.Salt, &credential.Payload.IV,
		&credential.Device.UserAgent, &credential.Device.Platform, &credential.Device.Language, &credential.Device.Timezone,
		&credential.CreatedAt, &credential.UpdatedAt, &credential.LastUsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Credential{}, model.ErrNotFound
		}
		return model.Credential{}, err
	}

	return credential, nil
}

func (r *CredentialRepository) UpdateLastUsed(ctx context.Context, userID uuid.UUID, credentialID string, usedAt time.Time) error {
	const query = `
		UPDATE biometric_credentials
		SET last_used_at = $3, updated_at = $3
		WHERE user_id = $1 AND credential_id = $2`

	cmd, err := r.db.Exec(ctx, query, userID, credentialID, usedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *CredentialRepository) DeleteByUserAndCredentialID(ctx context.Context, userID uuid.UUID, credentialID string) (int64, error) {
	const query = `DELETE FROM biometric_credentials WHERE user_id = $1 AND credential_id = $2`

	cmd, err := r.db.Exec(ctx, query, userID, credentialID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *CredentialRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	const query = `DELETE FROM biometric_credentials WHERE user_id = $1`

	cmd, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
