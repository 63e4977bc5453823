// Package loopclient is the entry point of the loop call-setup client. It
// re-exports the core types and builds clients and their command facade.
package loopclient

import (
	"github.com/goliatone/go-loop-client/client"
	"github.com/goliatone/go-loop-client/core"
)

type Config = core.Config

type Option = core.Option

type Client = client.Client

type AuthProvider = core.AuthProvider
type TransportAdapter = core.TransportAdapter
type PreferenceStore = core.PreferenceStore
type SecretProvider = core.SecretProvider

type CallURL = core.CallURL
type CallSummary = core.CallSummary
type CallSession = core.CallSession
type CallURLRequest = core.CallURLRequest
type CallsInfoRequest = core.CallsInfoRequest
type CallInfoRequest = core.CallInfoRequest

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithAuthProvider    = core.WithAuthProvider
	WithTransport       = core.WithTransport
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func New(cfg Config, opts ...Option) (*Client, error) {
	return client.New(cfg, opts...)
}
