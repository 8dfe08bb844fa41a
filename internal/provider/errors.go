package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/pocketledger/biovault/internal/model"
)

// translateCeremonyError maps platform ceremony failures onto the model
// sentinels so callers branch with errors.Is instead of inspecting
// webauthn internals. Unrecognized failures pass through wrapped.
func translateCeremonyError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", model.ErrCeremonyTimeout, err)
	case errors.Is(err, model.ErrConsentDenied),
		errors.Is(err, model.ErrCeremonyTimeout),
		errors.Is(err, model.ErrUnsupportedPlatform),
		errors.Is(err, model.ErrInsecureContext):
		return err
	}

	var protocolErr *protocol.Error
	if errors.As(err, &protocolErr) {
		switch protocolErr.Type {
		case "NotAllowedError", "AbortError":
			return fmt.Errorf("%w: %v", model.ErrConsentDenied, err)
		case "NotSupportedError", "ConstraintError", "InvalidStateError":
			return fmt.Errorf("%w: %v", model.ErrUnsupportedPlatform, err)
		case "SecurityError":
			return fmt.Errorf("%w: %v", model.ErrInsecureContext, err)
		}
	}

	return fmt.Errorf("ceremony failed: %w", err)
}
