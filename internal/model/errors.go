package model

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Failure taxonomy for the biometric credential flow. Low-level platform and
// transport errors are translated into these sentinels at the provider and
// store boundaries; callers branch with errors.Is.
var (
	// ErrUnsupportedPlatform means the capability check failed before any
	// ceremony was attempted.
	ErrUnsupportedPlatform = errors.New("platform credentials are not supported")

	// ErrInsecureContext means the transport-security precondition is unmet.
	ErrInsecureContext = errors.New("execution context is not secure")

	// ErrConsentDenied means the user declined or cancelled the platform prompt.
	ErrConsentDenied = errors.New("user denied the platform prompt")

	// ErrNoRegisteredCredential means verification was attempted with an empty
	// credential set; callers should fall back to password authentication.
	ErrNoRegisteredCredential = errors.New("no registered credential")

	// ErrDecryptionFailed means authenticated decryption did not verify:
	// tampered or corrupted data, or a context mismatch. Distinct from
	// ErrNotFound.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrStoreUnavailable means a remote read or write failed for transport
	// reasons.
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// ErrCeremonyTimeout means the platform ceremony exceeded its bound.
	ErrCeremonyTimeout = errors.New("ceremony timed out")
)
