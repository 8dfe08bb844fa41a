package model

import (
	"context"
	"io"
)

// Storage archives registration-time attestation snapshots in object
// storage. Writes are best-effort audit artifacts, not access-control state.
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
