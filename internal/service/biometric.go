package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pocketledger/biovault/internal/logger"
	"github.com/pocketledger/biovault/internal/model"
)

// Biometric coordinates the platform credential provider with the user
// store and session cache. It holds no state of its own; every operation
// composes capability checks, a ceremony, and bookkeeping.
type Biometric struct {
	provider model.CredentialProvider
	users    model.UserStore
	sessions model.SessionCache
	tokens   model.TokenManager
	logger   *logger.Logger
	now      func() time.Time
}

// NewBiometric creates the orchestrator.
func NewBiometric(
	provider model.CredentialProvider,
	users model.UserStore,
	sessions model.SessionCache,
	tokens model.TokenManager,
	logger *logger.Logger,
) *Biometric {
	return &Biometric{
		provider: provider,
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterBiometrics enrolls a platform credential for the user. The user
// must carry an identifier and an email before a ceremony is attempted;
// capability checks run before any I/O.
func (s *Biometric) RegisterBiometrics(ctx context.Context, user model.User, device model.DeviceInfo) (model.Registration, error) {
	if user.ID == uuid.Nil {
		return model.Registration{}, fmt.Errorf("user id is required")
	}
	if user.Email == "" {
		return model.Registration{}, fmt.Errorf("user email is required")
	}

	if !s.provider.IsSupported() {
		return model.Registration{}, model.ErrUnsupportedPlatform
	}
	if !s.provider.IsSecureContext() {
		return model.Registration{}, model.ErrInsecureContext
	}

	registration, err := s.provider.RegisterCredential(ctx, user, device)
	if err != nil {
		s.logger.Error("Biometric: registration failed",
			"user_id", user.ID,
			"error", err.Error())
		return model.Registration{}, err
	}

	s.logger.Info("Biometric: credential registered",
		"user_id", user.ID,
		"credential_id", registration.CredentialID)

	return registration, nil
}

// LoginWithBiometrics resolves the email to a known user, runs a
// verification ceremony and, on success, issues a session token. The cached
// session timestamp update is a non-critical write: failure is logged and
// ignored so it cannot regress a successful login into a reported failure.
func (s *Biometric) LoginWithBiometrics(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", fmt.Errorf("email is required")
	}

	if !s.provider.IsSupported() {
		return "", model.ErrUnsupportedPlatform
	}
	if !s.provider.IsSecureContext() {
		return "", model.ErrInsecureContext
	}

	userID, err := s.resolveUser(ctx, email)
	if err != nil {
		return "", err
	}

	if err := s.provider.VerifyCredential(ctx, userID); err != nil {
		s.logger.Error("Biometric: verification failed",
			"user_id", userID,
			"error", err.Error())
		return "", err
	}

	token, err := s.tokens.GenerateSessionToken(userID)
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	if err := s.sessions.Put(ctx, model.Session{
		UserID:      userID,
		Email:       email,
		LastLoginAt: s.now(),
	}); err != nil {
		s.logger.Warn("Biometric: failed to update session cache",
			"user_id", userID,
			"error", err.Error())
	}

	s.logger.Info("Biometric: login verified", "user_id", userID)

	return token, nil
}

// CanUseBiometrics composes the three eligibility checks with short-circuit
// evaluation, cheapest first. Store failures on this read path degrade to
// false rather than surfacing an error.
func (s *Biometric) CanUseBiometrics(ctx context.Context, user model.User) bool {
	if !s.provider.IsSupported() {
		return false
	}
	if !s.provider.IsSecureContext() {
		return false
	}

	has, err := s.provider.HasRegisteredCredential(ctx, user.ID)
	if err != nil {
		s.logger.Warn("Biometric: failed to check registered credentials",
			"user_id", user.ID,
			"error", err.Error())
		return false
	}
	return has
}

// DisableBiometrics removes every stored credential for the user and
// reports whether any existed.
func (s *Biometric) DisableBiometrics(ctx context.Context, userID uuid.UUID) (bool, error) {
	if !s.provider.IsSupported() {
		return false, model.ErrUnsupportedPlatform
	}

	existed, err := s.provider.RemoveCredential(ctx, userID)
	if err != nil {
		s.logger.Error("Biometric: failed to remove credentials",
			"user_id", userID,
			"error", err.Error())
		return false, err
	}

	s.logger.Info("Biometric: credentials removed",
		"user_id", userID,
		"existed", existed)

	return existed, nil
}

// resolveUser prefers the cached session for the email, falling back to the
// user store. An unknown email reports ErrNoRegisteredCredential so the
// caller offers the password fallback instead of a dead end.
func (s *Biometric) resolveUser(ctx context.Context, email string) (uuid.UUID, error) {
	session, err := s.sessions.Get(ctx)
	if err == nil && session.Email == email {
		return session.UserID, nil
	}
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		s.logger.Warn("Biometric: failed to read session cache", "error", err.Error())
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("%w: unknown user", model.ErrNoRegisteredCredential)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: get user by email: %v", model.ErrStoreUnavailable, err)
	}

	return user.ID, nil
}
