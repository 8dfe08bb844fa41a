package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pocketledger/biovault/internal/mocks"
	"github.com/pocketledger/biovault/internal/model"
	"github.com/pocketledger/biovault/internal/testutil"
)

type biometricMocks struct {
	provider *mocks.CredentialProvider
	users    *mocks.UserStore
	sessions *mocks.SessionCache
	tokens   *mocks.TokenManager
}

func newBiometric(t *testing.T) (*Biometric, biometricMocks) {
	t.Helper()
	m := biometricMocks{
		provider: &mocks.CredentialProvider{},
		users:    &mocks.UserStore{},
		sessions: &mocks.SessionCache{},
		tokens:   &mocks.TokenManager{},
	}
	s := NewBiometric(m.provider, m.users, m.sessions, m.tokens, testutil.MakeNoopLogger())
	return s, m
}

func TestBiometric_RegisterBiometrics(t *testing.T) {
	ctx := context.Background()
	user := model.User{ID: uuid.New(), Email: "user@example.com"}
	device := model.DeviceInfo{UserAgent: "ua"}

	t.Run("success", func(t *testing.T) {
		s, m := newBiometric(t)
		m.provider.On("IsSupported").Return(true)
		m.provider.On("IsSecureContext").Return(true)
		m.provider.On("RegisterCredential", mock.Anything, user, device).
			Return(model.Registration{CredentialID: "cred-1"}, nil)

		registration, err := s.RegisterBiometrics(ctx, user, device)
		require.NoError(t, err)
		assert.Equal(t, "cred-1", registration.CredentialID)
	})

	t.Run("missing id", func(t *testing.T) {
		s, _ := newBiometric(t)
		_, err := s.RegisterBiometrics(ctx, model.User{Email: "user@example.com"}, device)
		require.Error(t, err)
	})

	t.Run("missing email", func(t *testing.T) {
		s, _ := newBiometric(t)
		_, err := s.RegisterBiometrics(ctx, model.User{ID: uuid.New()}, device)
		require.Error(t, err)
	})

	t.Run("unsupported platform short-circuits", func(t *testing.T) {
		s, m := newBiometric(t)
		m.provider.On("IsSupported").Return(false)

		_, err := s.RegisterBiometrics(ctx, user, device)
		assert.ErrorIs(t, err, model.ErrUnsupportedPlatform)
		m.provider.AssertNotCalled(t, "RegisterCredential", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("insecure context short-circuits", func(t *testing.T) {
		s, m := newBiometric(t)
		m.provider.On("IsSupported").Return(true)
		m.provider.On("IsSecureContext").Return(false)

		_, err := s.RegisterBiometrics(ctx, user, device)
		assert.ErrorIs(t, err, model.ErrInsecureContext)
		m.provider.AssertNotCalled(t, "RegisterCredential", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("provider failure propagates taxonomy", func(t *testing.T) {
		s, m := newBiometric(t)
		m.provider.On("IsSupported").Return(true)
		m.provider.On("IsSecureContext").Return(true)
		m.provider.On("RegisterCredential", mock.Anything, user, device).
			Return(model.Registration{}, model.ErrConsentDenied)

		_, err := s.RegisterBiometrics(ctx, user, device)
		assert.ErrorIs(t, err, model.ErrConsentDenied)
	})
}

func TestBiometric_LoginWithBiometrics(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	email := "user@example.com"

	supported := func(m biometricMocks) {
		m.provider.On("IsSupported").Return(true)
		m.provider.On("IsSecureContext").Return(true)
	}

	t.Run("resolves user from session cache", func(t *testing.T) {
		s, m := newBiometric(t)
		supported(m)
		m.sessions.On("Get", mock.Anything).
			Return(model.Session{UserID: userID, Email: email, LastLoginAt: time.Now()}, nil)
		m.provider.On("VerifyCredential", mock.Anything, userID).Return(nil)
		m.tokens.On("GenerateSessionToken", userID).Return("token-1", nil)
		m.sessions.On("Put", mock.Anything, mock.MatchedBy(func(sess model.Session) bool {
			return sess.UserID == userID && sess.Email == email
		})).Return(nil)

		token, err := s.LoginWithBiometrics(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, "token-1", token)
		m.users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	})

	t.Run("falls back to user store on cache miss", func(t *testing.T) {
		s, m := newBiometric(t)
		supported(m)
		m.sessions.On("Get", mock.Anything).Return(model.Session{}, model.ErrNotFound)
		m.users.On("GetByEmail", mock.Anything, email).Return(model.User{ID: userID, Email: email}, nil)
		m.provider.On("VerifyCredential", mock.Anything, userID).Return(nil)
		m.tokens.On("GenerateSessionToken", userID).Return("token-2", nil)
		m.sessions.On("Put", mock.Anything, mock.Anything).Return(nil)

		token, err := s.LoginWithBiometrics(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, "token-2", token)
	})

	t.Run("unknown email has password fallback semantics", func(t *testing.T) {
		s, m := newBiometric(t)
		supported(m)
		m.sessions.On("Get", mock.Anything).Return(model.Session{}, model.ErrNotFound)
		m.users.On("GetByEmail", mock.Anything, email).Return(model.User{}, model.ErrNotFound)

		_, err := s.LoginWithBiometrics(ctx, email)
		assert.ErrorIs(t, err, model.ErrNoRegisteredCredential)
		m.provider.AssertNotCalled(t, "VerifyCredential", mock.Anything, mock.Anything)
	})

	t.Run("verification failure propagates", func(t *testing.T) {
		s, m := newBiometric(t)
		supported(m)
		m.sessions.On("Get", mock.Anything).
			Return(model.Session{UserID: userID, Email: email}, nil)
		m.provider.On("VerifyCredential", mock.Anything, userID).Return(model.ErrConsentDenied)

		_, err := s.LoginWithBiometrics(ctx, email)
		assert.ErrorIs(t, err, model.ErrConsentDenied)
		m.tokens.AssertNotCalled(t, "GenerateSessionToken", mock.Anything)
	})

	t.Run("session cache write failure does not fail login", func(t *testing.T) {
		s, m := newBiometric(t)
		supported(m)
		m.sessions.On("Get", mock.Anything).
			Return(model.Session{UserID: userID, Email: email}, nil)
		m.provider.On("VerifyCredential", mock.Anything, userID).Return(nil)
		m.tokens.On("GenerateSessionToken", userID).Return("token-3", nil)
		m.sessions.On("Put", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		token, err := s.LoginWithBiometrics(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, "token-3", token)
	})

	t.Run("insecure context blocks before any lookup", func(t *testing.T) {
		s, m := newBiometric(t)
		m.provider.On("IsSupported").Return(true)
		m.provider.On("IsSecureContext").Return(false)

		_, err := s.LoginWithBiometrics(ctx, email)
		assert.ErrorIs(t, err, model.ErrInsecureContext)
		m.sessions.AssertNotCalled(t, "Get", mock.Anything)
	})
}

func TestBiometric_CanUseBiometrics(t *testing.T) {
	ctx := context.Background()
	user := model.User{ID: uuid.New(), Email: "user@example.com"}

	t.Run("all checks pass", func(t *testing.T) {
		s, m := newBiometric(t)
		m.provider.On("IsSupported").Return(true)
		m.provider.On("IsSecureContext").Return(true)
		m.provider.On("HasRegisteredCredential", mock.Anything, user.ID).Return(true, nil)

		assert.True(t, s.CanUseBiometrics(ctx, user))
	})

	t.Run("unsupported short-circuits", func(t *testing.T) {
		s, m := newBiometric(t)
		m.provider.On("IsSupported").Return(false)

		assert.False(t, s.CanUseBiometrics(ctx, user))
		m.provider.AssertNotCalled(t, "IsSecureContext")
		m.provider.AssertNotCalled(t, "HasRegisteredCredential", mock.Anything, mock.Anything)
	})

	t.Run("store failure degrades to false", func(t *testing.T) {
		s, m := newBiometric(t)
		m.provider.On("IsSupported").Return(true)
		m.provider.On("IsSecureContext").Return(true)
		m.provider.On("HasRegisteredCredential", mock.Anything, user.ID).
			Return(false, model.ErrStoreUnavailable)

		assert.False(t, s.CanUseBiometrics(ctx, user))
	})
}

func TestBiometric_DisableBiometrics(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("reports whether credentials existed", func(t *testing.T) {
		s, m := newBiometric(t)
		m.provider.On("IsSupported").Return(true)
		m.provider.On("RemoveCredential", mock.Anything, userID).Return(true, nil)

		existed, err := s.DisableBiometrics(ctx, userID)
		require.NoError(t, err)
		assert.True(t, existed)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		s, m := newBiometric(t)
		m.provider.On("IsSupported").Return(true)
		m.provider.On("RemoveCredential", mock.Anything, userID).
			Return(false, model.ErrStoreUnavailable)

		_, err := s.DisableBiometrics(ctx, userID)
		assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	})
}
