// Package security seals stored loop secrets, such as the server token, with
// an application key.
package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-loop-client/core"
)

type Option func(*AppKeySecretProvider)

type appKey struct {
	key     []byte
	keyID   string
	version int
}

// AppKeySecretProvider encrypts with AES-GCM under the current key and can
// decrypt values sealed by previous keys registered with WithPreviousKey.
type AppKeySecretProvider struct {
	current  appKey
	previous []appKey
}

func WithKeyID(id string) Option {
	return func(provider *AppKeySecretProvider) {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			provider.current.keyID = trimmed
		}
	}
}

func WithVersion(version int) Option {
	return func(provider *AppKeySecretProvider) {
		if version > 0 {
			provider.current.version = version
		}
	}
}

// WithPreviousKey accepts values sealed by a retired key. New values are
// always sealed with the current key.
func WithPreviousKey(keyMaterial []byte, keyID string, version int) Option {
	return func(provider *AppKeySecretProvider) {
		material := bytes.TrimSpace(keyMaterial)
		if len(material) == 0 {
			return
		}
		provider.previous = append(provider.previous, appKey{
			key:     normalizeKey(material),
			keyID:   strings.TrimSpace(keyID),
			version: version,
		})
	}
}

func NewAppKeySecretProvider(keyMaterial []byte, opts ...Option) (*AppKeySecretProvider, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, core.MissingParameterError("secret_provider", "key material")
	}
	provider := &AppKeySecretProvider{
		current: appKey{key: normalizeKey(key), keyID: "loop-app-key", version: 1},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	return provider, nil
}

func NewAppKeySecretProviderFromString(key string, opts ...Option) (*AppKeySecretProvider, error) {
	return NewAppKeySecretProvider([]byte(key), opts...)
}

func (p *AppKeySecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	gcm, err := newGCM(p.current.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}
	return encodeEnvelope(envelope{
		KeyID:      p.current.keyID,
		Version:    p.current.version,
		Algorithm:  algorithmAESGCM,
		Nonce:      encodePayload(nonce),
		Ciphertext: encodePayload(gcm.Seal(nil, nonce, plaintext, nil)),
	})
}

func (p *AppKeySecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("security: ciphertext is required")
	}
	env, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	key, err := p.keyFor(env.KeyID, env.Version)
	if err != nil {
		return nil, err
	}
	nonce, err := decodePayload("nonce", env.Nonce)
	if err != nil {
		return nil, err
	}
	sealed, err := decodePayload("ciphertext", env.Ciphertext)
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(key.key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("security: decrypt payload: %w", err)
	}
	return plaintext, nil
}

// Metadata returns the current key id and version.
func (p *AppKeySecretProvider) Metadata() (string, int) {
	if p == nil {
		return "", 0
	}
	return p.current.keyID, p.current.version
}

func (p *AppKeySecretProvider) keyFor(keyID string, version int) (appKey, error) {
	for _, candidate := range append([]appKey{p.current}, p.previous...) {
		if keyID != "" && candidate.keyID != keyID {
			continue
		}
		if version > 0 && candidate.version != version {
			continue
		}
		return candidate, nil
	}
	return appKey{}, fmt.Errorf("security: no key for kid %q version %d", keyID, version)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return gcm, nil
}

// normalizeKey uses 16, 24 or 32 byte material as is and hashes anything
// else to a 32 byte key.
func normalizeKey(value []byte) []byte {
	if len(value) == 16 || len(value) == 24 || len(value) == 32 {
		key := make([]byte, len(value))
		copy(key, value)
		return key
	}
	sum := sha256.Sum256(value)
	return sum[:]
}

var _ core.SecretProvider = (*AppKeySecretProvider)(nil)
