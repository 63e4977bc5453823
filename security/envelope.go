package security

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const envelopePrefix = "loop.secret.v1:"

const algorithmAESGCM = "aes-256-gcm"

type envelope struct {
	KeyID      string `json:"kid"`
	Version    int    `json:"ver"`
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// EnvelopeMetadata identifies the key that sealed a value.
type EnvelopeMetadata struct {
	KeyID     string
	Version   int
	Algorithm string
}

// ParseEnvelopeMetadata reads the key id and version of a sealed value
// without decrypting it.
func ParseEnvelopeMetadata(ciphertext []byte) (EnvelopeMetadata, error) {
	env, err := decodeEnvelope(ciphertext)
	if err != nil {
		return EnvelopeMetadata{}, err
	}
	return EnvelopeMetadata{KeyID: env.KeyID, Version: env.Version, Algorithm: env.Algorithm}, nil
}

func encodeEnvelope(env envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("security: encode envelope: %w", err)
	}
	return append([]byte(envelopePrefix), data...), nil
}

func decodeEnvelope(ciphertext []byte) (envelope, error) {
	payload := strings.TrimSpace(string(ciphertext))
	if !strings.HasPrefix(payload, envelopePrefix) {
		return envelope{}, fmt.Errorf("security: missing %q envelope prefix", envelopePrefix)
	}
	var env envelope
	if err := json.Unmarshal([]byte(strings.TrimPrefix(payload, envelopePrefix)), &env); err != nil {
		return envelope{}, fmt.Errorf("security: decode envelope: %w", err)
	}
	if env.Algorithm != "" && env.Algorithm != algorithmAESGCM {
		return envelope{}, fmt.Errorf("security: unsupported algorithm %q", env.Algorithm)
	}
	return env, nil
}

func encodePayload(value []byte) string {
	return base64.StdEncoding.EncodeToString(value)
}

func decodePayload(field string, value string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("security: decode %s: %w", field, err)
	}
	return decoded, nil
}
