// Package session implements the local ephemeral session cache: a single
// JSON document holding the last cached user record and biometric login
// timestamp. It exists for session continuity only; the credential flow
// reads the cached email to drive biometric login.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pocketledger/biovault/internal/model"
)

var _ model.SessionCache = (*FileCache)(nil)

// FileCache persists the session record to a file on local disk. Writes go
// through a temp file and rename so readers never observe a torn document.
type FileCache struct {
	path string
	mu   sync.Mutex
}

// NewFileCache creates a cache backed by the given path.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

// Get reads the cached session. Returns model.ErrNotFound if no session has
// been cached yet.
func (c *FileCache) Get(_ context.Context) (model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.Session{}, model.ErrNotFound
		}
		return model.Session{}, fmt.Errorf("failed to read session cache: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return model.Session{}, fmt.Errorf("failed to decode session cache: %w", err)
	}

	return session, nil
}

// Put replaces the cached session.
func (c *FileCache) Put(_ context.Context, session model.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to set session file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace session cache: %w", err)
	}

	return nil
}

// Clear removes the cached session. Clearing an empty cache is not an error.
func (c *FileCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session cache: %w", err)
	}
	return nil
}
