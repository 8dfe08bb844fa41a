// Package crypto implements the encryption engine for credential
// descriptors: PBKDF2-SHA256 key derivation bound to a context id, and
// AES-256-GCM authenticated encryption with a fresh salt and nonce per call.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/pocketledger/biovault/internal/model"
)

const (
	keyLen     = 32
	saltLen    = 16
	nonceLen   = 12
	minSaltLen = 16

	// kdfIterations is the PBKDF2 work factor. Changing it invalidates
	// every stored payload, so treat it as part of the storage format.
	kdfIterations = 100_000
)

// Engine derives symmetric keys and performs authenticated encryption of
// opaque byte payloads. The pepper is application-level secret material;
// the per-call context id (the owning user's identifier) is mixed into the
// derivation secret so ciphertext from one user's context cannot be
// decrypted under another's.
type Engine struct {
	pepper     string
	iterations int
}

// NewEngine creates an engine around the application pepper.
func NewEngine(pepper string) *Engine {
	return &Engine{pepper: pepper, iterations: kdfIterations}
}

// DeriveKey derives a 256-bit key from the secret and salt. Deterministic
// for identical inputs. The salt must be at least 16 bytes.
func (e *Engine) DeriveKey(secret string, salt []byte) ([]byte, error) {
	if len(salt) < minSaltLen {
		return nil, fmt.Errorf("salt must be at least %d bytes, got %d", minSaltLen, len(salt))
	}
	return pbkdf2.Key([]byte(secret), salt, e.iterations, keyLen, sha256.New), nil
}

// Encrypt seals plaintext under a key derived for contextID. A fresh random
// salt and nonce are generated on every call; nonces are never reused.
func (e *Engine) Encrypt(plaintext []byte, contextID string) (model.EncryptedPayload, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return model.EncryptedPayload{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return model.EncryptedPayload{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	key, err := e.DeriveKey(e.secretFor(contextID), salt)
	if err != nil {
		return model.EncryptedPayload{}, fmt.Errorf("failed to derive key: %w", err)
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return model.EncryptedPayload{}, err
	}
	ciphertext := aesgcm.Seal(nil, nonce, plaintext, nil)

	return model.EncryptedPayload{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		IV:         base64.StdEncoding.EncodeToString(nonce),
	}, nil
}

// Decrypt re-derives the key for contextID and opens the payload. Any
// integrity failure, including a context mismatch, is reported as
// model.ErrDecryptionFailed so callers can distinguish tampering from a
// missing record.
func (e *Engine) Decrypt(payload model.EncryptedPayload, contextID string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed ciphertext: %v", model.ErrDecryptionFailed, err)
	}
	salt, err := base64.StdEncoding.DecodeString(payload.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed salt: %v", model.ErrDecryptionFailed, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(payload.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed nonce: %v", model.ErrDecryptionFailed, err)
	}
	if len(nonce) != nonceLen {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d", model.ErrDecryptionFailed, nonceLen, len(nonce))
	}

	key, err := e.DeriveKey(e.secretFor(contextID), salt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDecryptionFailed, err)
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDecryptionFailed, err)
	}

	return plaintext, nil
}

func (e *Engine) secretFor(contextID string) string {
	return e.pepper + ":" + contextID
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return aesgcm, nil
}
