// Package mocks holds hand-written testify mocks for the model interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/pocketledger/biovault/internal/model"
)

type UserStore struct{ mock.Mock }

func (m *UserStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *UserStore) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *UserStore) Create(ctx context.Context, user model.User) (model.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(model.User), args.Error(1)
}

type CredentialRecordStore struct{ mock.Mock }

func (m *CredentialRecordStore) Upsert(ctx context.Context, credential model.Credential) (model.Credential, error) {
	args := m.Called(ctx, credential)
	return args.Get(0).(model.Credential), args.Error(1)
}

func (m *CredentialRecordStore) GetByUserID(ctx context.Context, userID uuid.UUID) ([]model.Credential, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Credential), args.Error(1)
}

func (m *CredentialRecordStore) GetByUserAndCredentialID(ctx context.Context, userID uuid.UUID, credentialID string) (model.Credential, error) {
	args := m.Called(ctx, userID, credentialID)
	return args.Get(0).(model.Credential), args.Error(1)
}

func (m *CredentialRecordStore) UpdateLastUsed(ctx context.Context, userID uuid.UUID, credentialID string, usedAt time.Time) error {
	args := m.Called(ctx, userID, credentialID, usedAt)
	return args.Error(0)
}

func (m *CredentialRecordStore) DeleteByUserAndCredentialID(ctx context.Context, userID uuid.UUID, credentialID string) (int64, error) {
	args := m.Called(ctx, userID, credentialID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *CredentialRecordStore) DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type SessionCache struct{ mock.Mock }

func (m *SessionCache) Get(ctx context.Context) (model.Session, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.Session), args.Error(1)
}

func (m *SessionCache) Put(ctx context.Context, session model.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *SessionCache) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type TokenManager struct{ mock.Mock }

func (m *TokenManager) GenerateSessionToken(userID uuid.UUID) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func (m *TokenManager) ParseSessionToken(token string) (uuid.UUID, error) {
	args := m.Called(token)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

type CredentialProvider struct{ mock.Mock }

func (m *CredentialProvider) IsSupported() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *CredentialProvider) IsSecureContext() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *CredentialProvider) RegisterCredential(ctx context.Context, user model.User, device model.DeviceInfo) (model.Registration, error) {
	args := m.Called(ctx, user, device)
	return args.Get(0).(model.Registration), args.Error(1)
}

func (m *CredentialProvider) VerifyCredential(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *CredentialProvider) RemoveCredential(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *CredentialProvider) HasRegisteredCredential(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}
