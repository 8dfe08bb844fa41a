package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pocketledger/biovault/internal/crypto"
	"github.com/pocketledger/biovault/internal/mocks"
	"github.com/pocketledger/biovault/internal/model"
	"github.com/pocketledger/biovault/internal/testutil"
)

type fakeArchive struct {
	uploads map[string][]byte
	deletes []string
	err     error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{uploads: make(map[string][]byte)}
}

func (f *fakeArchive) Upload(_ context.Context, key string, reader io.Reader) error {
	if f.err != nil {
		return f.err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.uploads[key] = data
	return nil
}

func (f *fakeArchive) Delete(_ context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	f.deletes = append(f.deletes, key)
	return nil
}

func (f *fakeArchive) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.uploads[key]
	return ok, nil
}

func TestCredentials_StoreCredential(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine := crypto.NewEngine("test-pepper")
	descriptor := []byte(`{"id":"abc","publicKey":"xyz"}`)

	t.Run("encrypts before upsert", func(t *testing.T) {
		records := &mocks.CredentialRecordStore{}
		var stored model.Credential
		records.On("Upsert", mock.Anything, mock.MatchedBy(func(c model.Credential) bool {
			stored = c
			return c.UserID == userID && c.CredentialID == "cred-1"
		})).Return(model.Credential{}, nil)

		s := NewCredentials(records, engine, nil, testutil.MakeNoopLogger())
		err := s.StoreCredential(ctx, userID, "cred-1", descriptor, model.DeviceInfo{UserAgent: "ua"})
		require.NoError(t, err)

		assert.NotEmpty(t, stored.Payload.Ciphertext)
		assert.NotEmpty(t, stored.Payload.Salt)
		assert.NotEmpty(t, stored.Payload.IV)
		assert.NotContains(t, stored.Payload.Ciphertext, "publicKey")

		plaintext, err := engine.Decrypt(stored.Payload, userID.String())
		require.NoError(t, err)
		assert.Equal(t, descriptor, plaintext)

		assert.Equal(t, "ua", stored.Device.UserAgent)
		assert.NotEmpty(t, stored.Device.Platform)
		records.AssertExpectations(t)
	})

	t.Run("empty credential id is rejected", func(t *testing.T) {
		records := &mocks.CredentialRecordStore{}
		s := NewCredentials(records, engine, nil, testutil.MakeNoopLogger())

		err := s.StoreCredential(ctx, userID, "", descriptor, model.DeviceInfo{})
		require.Error(t, err)
		records.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("store failure surfaces as unavailable", func(t *testing.T) {
		records := &mocks.CredentialRecordStore{}
		records.On("Upsert", mock.Anything, mock.Anything).
			Return(model.Credential{}, errors.New("connection refused"))

		s := NewCredentials(records, engine, nil, testutil.MakeNoopLogger())
		err := s.StoreCredential(ctx, userID, "cred-1", descriptor, model.DeviceInfo{})
		assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	})

	t.Run("archives snapshot best effort", func(t *testing.T) {
		records := &mocks.CredentialRecordStore{}
		records.On("Upsert", mock.Anything, mock.Anything).Return(model.Credential{}, nil)
		archive := newFakeArchive()

		s := NewCredentials(records, engine, archive, testutil.MakeNoopLogger())
		require.NoError(t, s.StoreCredential(ctx, userID, "cred-1", descriptor, model.DeviceInfo{}))
		assert.Contains(t, archive.uploads, attestationKey(userID, "cred-1"))
	})

	t.Run("archive failure does not block registration", func(t *testing.T) {
		records := &mocks.CredentialRecordStore{}
		records.On("Upsert", mock.Anything, mock.Anything).Return(model.Credential{}, nil)
		archive := newFakeArchive()
		archive.err = errors.New("bucket gone")

		s := NewCredentials(records, engine, archive, testutil.MakeNoopLogger())
		require.NoError(t, s.StoreCredential(ctx, userID, "cred-1", descriptor, model.DeviceInfo{}))
	})
}

func TestCredentials_GetCredentialIDs(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine := crypto.NewEngine("test-pepper")

	t.Run("returns ids without decryption", func(t *testing.T) {
		records := &mocks.CredentialRecordStore{}
		records.On("GetByUserID", mock.Anything, userID).Return([]model.Credential{
			{CredentialID: "cred-1"},
			{CredentialID: "cred-2"},
		}, nil)

		s := NewCredentials(records, engine, nil, testutil.MakeNoopLogger())
		ids, err := s.GetCredentialIDs(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, []string{"cred-1", "cred-2"}, ids)
	})

	t.Run("empty when none registered", func(t *testing.T) {
		records := &mocks.CredentialRecordStore{}
		records.On("GetByUserID", mock.Anything, userID).Return([]model.Credential{}, nil)

		s := NewCredentials(records, engine, nil, testutil.MakeNoopLogger())
		ids, err := s.GetCredentialIDs(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("store failure surfaces as unavailable", func(t *testing.T) {
		records := &mocks.CredentialRecordStore{}
		records.On("GetByUserID", mock.Anything, userID).Return(nil, errors.New("timeout"))

		s := NewCredentials(records, engine, nil, testutil.MakeNoopLogger())
		_, err := s.GetCredentialIDs(ctx, userID)
		assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	})
}

func TestCredentials_GetCredential(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine := crypto.NewEngine("test-pepper")
	descriptor := []byte(`{"id":"abc"}`)

	encrypt := func(t *testing.T, contextID string) model.EncryptedPayload {
		t.Helper()
		payload, err := engine.Encrypt(descriptor, contextID)
		require.NoError(t, err)
		return payload
	}

	t.Run("decrypts stored payload", func(t *testing.T) {
		records := &mocks.CredentialRecordStore{}
		records.On("GetByUserAndCredentialID", mock.Anything, userID, "cred-1").
			Return(model.Credential{Payload: encrypt(t, userID.String())}, nil)

		s := NewCredentials(records, engine, nil, testutil.MakeNoopLogger())
		got, err := s.GetCredential(ctx, userID, "cred-1")
		require.NoError(t, err)
		assert.Equal(t, descriptor, got)
	})

	t.Run("absence is not found", func(t *testing.T) {
		records := &mocks.CredentialRecordStore{}
		records.On("GetByUserAndCredentialID", mock.Anything, userID, "missing").
			Return(model.Credential{}, model.ErrNotFound)

		s := NewCredentials(records, engine, nil, testutil.MakeNoopLogger())
		_, err := s.GetCredential(ctx, userID, "missing")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("payload bound to another user fails decryption", func(t *testing.T) {
		records := &mocks.CredentialRecordStore{}
		records.On("GetByUserAndCredentialID", mock.Anything, userID, "cred-1").
			Return(model.Credential{Payload: encrypt(t, uuid.NewString())}, nil)

		s := NewCredentials(records, engine, nil, testutil.MakeNoopLogger())
		_, err := s.GetCredential(ctx, userID, "cred-1")
		assert.ErrorIs(t, err, model.ErrDecryptionFailed)
		assert.NotErrorIs(t, err, model.ErrNotFound)
	})
}

func TestCredentials_TouchLastUsed_SwallowsFailure(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	records := &mocks.CredentialRecordStore{}
	records.On("UpdateLastUsed", mock.Anything, userID, "cred-1", mock.Anything).
		Return(errors.New("connection reset"))

	s := NewCredentials(records, crypto.NewEngine("test-pepper"), nil, testutil.MakeNoopLogger())
	s.TouchLastUsed(ctx, userID, "cred-1")
	records.AssertExpectations(t)
}

func TestCredentials_RemoveCredential(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine := crypto.NewEngine("test-pepper")

	t.Run("reports whether record existed", func(t *testing.T) {
		records := &mocks.CredentialRecordStore{}
		records.On("DeleteByUserAndCredentialID", mock.Anything, userID, "cred-1").Return(int64(1), nil)
		records.On("DeleteByUserAndCredentialID", mock.Anything, userID, "missing").Return(int64(0), nil)

		s := NewCredentials(records, engine, nil, testutil.MakeNoopLogger())

		existed, err := s.RemoveCredential(ctx, userID, "cred-1")
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = s.RemoveCredential(ctx, userID, "missing")
		require.NoError(t, err)
		assert.False(t, existed)
	})

	t.Run("store failure surfaces as unavailable", func(t *testing.T) {
		records := &mocks.CredentialRecordStore{}
		records.On("DeleteByUserAndCredentialID", mock.Anything, userID, "cred-1").
			Return(int64(0), errors.New("timeout"))

		s := NewCredentials(records, engine, nil, testutil.MakeNoopLogger())
		_, err := s.RemoveCredential(ctx, userID, "cred-1")
		assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	})
}

func TestCredentials_RemoveAllCredentials(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine := crypto.NewEngine("test-pepper")

	records := &mocks.CredentialRecordStore{}
	records.On("GetByUserID", mock.Anything, userID).Return([]model.Credential{
		{CredentialID: "cred-1"},
		{CredentialID: "cred-2"},
	}, nil)
	records.On("DeleteByUserID", mock.Anything, userID).Return(int64(2), nil)
	archive := newFakeArchive()

	s := NewCredentials(records, engine, archive, testutil.MakeNoopLogger())
	existed, err := s.RemoveAllCredentials(ctx, userID)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.ElementsMatch(t, []string{
		attestationKey(userID, "cred-1"),
		attestationKey(userID, "cred-2"),
	}, archive.deletes)
}
