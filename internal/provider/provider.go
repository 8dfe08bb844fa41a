// Package provider wraps the platform's public-key-credential ceremonies
// behind the capability-checked model.CredentialProvider interface. The
// WebAuthn implementation is selected at runtime; environments without a
// platform authenticator get the unavailable variant instead.
package provider

import (
	"context"
	"encoding/base64"
	"net/url"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"

	"github.com/pocketledger/biovault/internal/logger"
	"github.com/pocketledger/biovault/internal/model"
)

// DefaultCeremonyTimeout bounds a single registration or verification
// ceremony, covering the user-consent wait.
const DefaultCeremonyTimeout = 60 * time.Second

// Config holds the relying-party parameters ceremonies are scoped to.
type Config struct {
	RPID            string
	RPDisplayName   string
	RPOrigins       []string
	CeremonyTimeout time.Duration
}

// Authenticator is the platform ceremony endpoint: it relays creation or
// assertion options to the platform authenticator and returns the signed
// response JSON. Implementations report user refusal and platform
// restrictions as *protocol.Error values or the model taxonomy sentinels;
// both are translated before crossing the provider boundary.
type Authenticator interface {
	Create(ctx context.Context, options *protocol.CredentialCreation) ([]byte, error)
	Get(ctx context.Context, options *protocol.CredentialAssertion) ([]byte, error)
}

// CredentialSource is what the provider needs from the credential store.
type CredentialSource interface {
	StoreCredential(ctx context.Context, userID uuid.UUID, credentialID string, descriptor []byte, device model.DeviceInfo) error
	GetCredentialIDs(ctx context.Context, userID uuid.UUID) ([]string, error)
	GetCredential(ctx context.Context, userID uuid.UUID, credentialID string) ([]byte, error)
	TouchLastUsed(ctx context.Context, userID uuid.UUID, credentialID string)
	RemoveAllCredentials(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Detect performs capability detection and returns the matching provider
// variant. A nil authenticator or an invalid relying-party configuration
// yields Unavailable; callers branch on IsSupported, never on concrete type.
func Detect(cfg Config, authenticator Authenticator, credentials CredentialSource, log *logger.Logger) model.CredentialProvider {
	if authenticator == nil {
		log.Info("Credential provider: no platform authenticator detected")
		return Unavailable{}
	}

	p, err := NewWebAuthnProvider(cfg, authenticator, credentials, log)
	if err != nil {
		log.Error("Credential provider: failed to configure webauthn", "error", err.Error())
		return Unavailable{}
	}
	return p
}

var _ model.CredentialProvider = Unavailable{}

// Unavailable is the provider variant for environments without platform
// credential support. Every ceremony operation reports
// model.ErrUnsupportedPlatform.
type Unavailable struct{}

func (Unavailable) IsSupported() bool { return false }

func (Unavailable) IsSecureContext() bool { return false }

func (Unavailable) RegisterCredential(_ context.Context, _ model.User, _ model.DeviceInfo) (model.Registration, error) {
	return model.Registration{}, model.ErrUnsupportedPlatform
}

func (Unavailable) VerifyCredential(_ context.Context, _ uuid.UUID) error {
	return model.ErrUnsupportedPlatform
}

func (Unavailable) RemoveCredential(_ context.Context, _ uuid.UUID) (bool, error) {
	return false, model.ErrUnsupportedPlatform
}

func (Unavailable) HasRegisteredCredential(_ context.Context, _ uuid.UUID) (bool, error) {
	return false, model.ErrUnsupportedPlatform
}

// secureOrigins reports whether every relying-party origin satisfies the
// transport-security precondition: TLS, or loopback for development.
func secureOrigins(origins []string) bool {
	if len(origins) == 0 {
		return false
	}
	for _, origin := range origins {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		switch u.Scheme {
		case "https", "wss":
		case "http":
			if !isLoopbackHost(u.Hostname()) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func isLoopbackHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func encodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}
