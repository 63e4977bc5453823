package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// AuthProvider is the optional registration and token collaborator of the
// client. A provider implements any subset of RegistrationChecker,
// ServerTokenSource and CallURLExpiryNotifier; a nil provider means anonymous
// mode.
type AuthProvider any

type RegistrationChecker interface {
	EnsureRegistered(ctx context.Context) error
}

type ServerTokenSource interface {
	// ServerToken returns "" when no token is stored.
	ServerToken(ctx context.Context) (string, error)
}

type CallURLExpiryNotifier interface {
	NoteCallURLExpiry(ctx context.Context, seconds int64) error
}

// Callback is the error-first continuation of the asynchronous client API.
// It is invoked exactly once per accepted request.
type Callback[T any] func(err error, result T)

type PreferenceStore interface {
	GetCharPref(ctx context.Context, key string) (string, bool, error)
	SetCharPref(ctx context.Context, key string, value string) error
	ClearPref(ctx context.Context, key string) error
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type TransportRequest struct {
	Method   string
	URL      string
	Headers  map[string]string
	Query    map[string]string
	Body     []byte
	Metadata map[string]any
	Timeout  time.Duration
	// MaxResponseBodyBytes overrides the adapter limit when > 0.
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}
