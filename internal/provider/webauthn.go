package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/pocketledger/biovault/internal/logger"
	"github.com/pocketledger/biovault/internal/model"
)

// ceremonyEngine abstracts *webauthn.WebAuthn for tests.
type ceremonyEngine interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
}

type ceremonyParser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type defaultParser struct{}

func (defaultParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBody(bytes.NewReader(data))
}

func (defaultParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBody(bytes.NewReader(data))
}

var _ model.CredentialProvider = (*WebAuthnProvider)(nil)

// WebAuthnProvider runs single-shot, non-resumable registration and
// verification ceremonies. Each ceremony carries a fresh random challenge
// issued by the webauthn engine, so a captured response cannot be replayed
// on a later attempt.
type WebAuthnProvider struct {
	engine        ceremonyEngine
	parser        ceremonyParser
	authenticator Authenticator
	credentials   CredentialSource
	secureContext bool
	timeout       time.Duration
	logger        *logger.Logger
}

// NewWebAuthnProvider builds a provider scoped to the relying-party config.
func NewWebAuthnProvider(cfg Config, authenticator Authenticator, credentials CredentialSource, log *logger.Logger) (*WebAuthnProvider, error) {
	if authenticator == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if credentials == nil {
		return nil, fmt.Errorf("credential source is required")
	}

	timeout := cfg.CeremonyTimeout
	if timeout <= 0 {
		timeout = DefaultCeremonyTimeout
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPDisplayName,
		RPOrigins:     cfg.RPOrigins,
		Timeouts: webauthn.TimeoutsConfig{
			Registration: webauthn.TimeoutConfig{Enforce: true, Timeout: timeout},
			Login:        webauthn.TimeoutConfig{Enforce: true, Timeout: timeout},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure webauthn: %w", err)
	}

	return &WebAuthnProvider{
		engine:        wa,
		parser:        defaultParser{},
		authenticator: authenticator,
		credentials:   credentials,
		secureContext: secureOrigins(cfg.RPOrigins),
		timeout:       timeout,
		logger:        log,
	}, nil
}

// IsSupported is a static capability check; reaching a constructed provider
// means the platform ceremony API was detected.
func (p *WebAuthnProvider) IsSupported() bool { return true }

// IsSecureContext reports whether every relying-party origin meets the
// transport-security precondition. Ceremonies refuse to proceed otherwise.
func (p *WebAuthnProvider) IsSecureContext() bool { return p.secureContext }

// RegisterCredential runs a full registration ceremony and persists the
// resulting credential. The ceremony must complete before any store
// mutation is attempted; a partial ceremony never produces a partial write.
func (p *WebAuthnProvider) RegisterCredential(ctx context.Context, user model.User, device model.DeviceInfo) (model.Registration, error) {
	if !p.secureContext {
		return model.Registration{}, model.ErrInsecureContext
	}

	cu := p.loadCeremonyUser(ctx, user.ID, user.Email)

	var opts []webauthn.RegistrationOption
	if len(cu.credentials) > 0 {
		descriptors := make([]protocol.CredentialDescriptor, len(cu.credentials))
		for i, credential := range cu.credentials {
			descriptors[i] = credential.Descriptor()
		}
		opts = append(opts, webauthn.WithExclusions(descriptors))
	}

	creation, session, err := p.engine.BeginRegistration(cu, opts...)
	if err != nil {
		return model.Registration{}, fmt.Errorf("failed to begin registration: %w", err)
	}

	ceremonyCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	response, err := p.authenticator.Create(ceremonyCtx, creation)
	if err != nil {
		return model.Registration{}, translateCeremonyError(err)
	}

	parsed, err := p.parser.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return model.Registration{}, translateCeremonyError(err)
	}

	credential, err := p.engine.CreateCredential(cu, *session, parsed)
	if err != nil {
		return model.Registration{}, translateCeremonyError(err)
	}

	credentialID := encodeCredentialID(credential.ID)
	descriptor, err := json.Marshal(credential)
	if err != nil {
		return model.Registration{}, fmt.Errorf("failed to encode credential descriptor: %w", err)
	}

	if err := p.credentials.StoreCredential(ctx, user.ID, credentialID, descriptor, device); err != nil {
		return model.Registration{}, err
	}

	return model.Registration{CredentialID: credentialID}, nil
}

// VerifyCredential runs an assertion ceremony restricted to the user's
// registered credential identifiers. Fails closed with
// model.ErrNoRegisteredCredential when the identifier set is empty; the
// platform is never asked to assert against "any" credential.
func (p *WebAuthnProvider) VerifyCredential(ctx context.Context, userID uuid.UUID) error {
	if !p.secureContext {
		return model.ErrInsecureContext
	}

	cu, err := p.strictCeremonyUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(cu.credentials) == 0 {
		return model.ErrNoRegisteredCredential
	}

	assertion, session, err := p.engine.BeginLogin(cu)
	if err != nil {
		return fmt.Errorf("failed to begin verification: %w", err)
	}

	ceremonyCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	response, err := p.authenticator.Get(ceremonyCtx, assertion)
	if err != nil {
		return translateCeremonyError(err)
	}

	parsed, err := p.parser.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return translateCeremonyError(err)
	}

	credential, err := p.engine.ValidateLogin(cu, *session, parsed)
	if err != nil {
		return translateCeremonyError(err)
	}
	if credential.Authenticator.CloneWarning {
		p.logger.Warn("Credential provider: assertion sign count regressed, possible cloned authenticator",
			"user_id", userID)
	}

	p.credentials.TouchLastUsed(ctx, userID, encodeCredentialID(credential.ID))

	return nil
}

// RemoveCredential deletes every stored credential for the user and reports
// whether any existed.
func (p *WebAuthnProvider) RemoveCredential(ctx context.Context, userID uuid.UUID) (bool, error) {
	return p.credentials.RemoveAllCredentials(ctx, userID)
}

// HasRegisteredCredential reports whether at least one credential
// identifier is on record for the user.
func (p *WebAuthnProvider) HasRegisteredCredential(ctx context.Context, userID uuid.UUID) (bool, error) {
	ids, err := p.credentials.GetCredentialIDs(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

type ceremonyUser struct {
	id          []byte
	name        string
	displayName string
	credentials []webauthn.Credential
}

func (u *ceremonyUser) WebAuthnID() []byte                         { return u.id }
func (u *ceremonyUser) WebAuthnName() string                       { return u.name }
func (u *ceremonyUser) WebAuthnDisplayName() string                { return u.displayName }
func (u *ceremonyUser) WebAuthnIcon() string                       { return "" }
func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

// loadCeremonyUser assembles the webauthn user with whatever stored
// credentials can be decoded. Used for registration exclusion lists, where
// a store failure degrades to an empty list instead of blocking enrollment.
func (p *WebAuthnProvider) loadCeremonyUser(ctx context.Context, userID uuid.UUID, username string) *ceremonyUser {
	cu := &ceremonyUser{
		id:          []byte(userID.String()),
		name:        username,
		displayName: username,
	}

	ids, err := p.credentials.GetCredentialIDs(ctx, userID)
	if err != nil {
		p.logger.Warn("Credential provider: failed to list credentials",
			"user_id", userID,
			"error", err.Error())
		return cu
	}

	for _, id := range ids {
		descriptor, err := p.credentials.GetCredential(ctx, userID, id)
		if err != nil {
			p.logger.Warn("Credential provider: failed to load credential",
				"user_id", userID,
				"credential_id", id,
				"error", err.Error())
			continue
		}
		var credential webauthn.Credential
		if err := json.Unmarshal(descriptor, &credential); err != nil {
			p.logger.Warn("Credential provider: failed to decode credential descriptor",
				"user_id", userID,
				"credential_id", id,
				"error", err.Error())
			continue
		}
		cu.credentials = append(cu.credentials, credential)
	}

	return cu
}

// strictCeremonyUser is the verification-path variant: a descriptor that no
// longer decrypts is a data-integrity failure and must surface as such, not
// silently shrink the allow-list.
func (p *WebAuthnProvider) strictCeremonyUser(ctx context.Context, userID uuid.UUID) (*ceremonyUser, error) {
	cu := &ceremonyUser{
		id:          []byte(userID.String()),
		name:        userID.String(),
		displayName: userID.String(),
	}

	ids, err := p.credentials.GetCredentialIDs(ctx, userID)
	if err != nil {
		// Read path degrades to empty; the caller falls back to password.
		p.logger.Warn("Credential provider: failed to list credentials for verification",
			"user_id", userID,
			"error", err.Error())
		return cu, nil
	}

	for _, id := range ids {
		descriptor, err := p.credentials.GetCredential(ctx, userID, id)
		if errors.Is(err, model.ErrDecryptionFailed) {
			return nil, fmt.Errorf("failed to load credential %s: %w", id, err)
		}
		if err != nil {
			p.logger.Warn("Credential provider: failed to load credential for verification",
				"user_id", userID,
				"credential_id", id,
				"error", err.Error())
			continue
		}
		var credential webauthn.Credential
		if err := json.Unmarshal(descriptor, &credential); err != nil {
			return nil, fmt.Errorf("failed to decode credential descriptor %s: %w", id, err)
		}
		cu.credentials = append(cu.credentials, credential)
	}

	return cu, nil
}
