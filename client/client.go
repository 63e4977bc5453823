// Package client wraps the loop call-setup REST endpoints.
//
// Every operation is available in two shapes: a blocking method returning
// (result, error), and a Request* method following the error-first callback
// contract. Required parameters are validated before any request is built;
// a violation is returned synchronously and the callback is never invoked.
package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-loop-client/core"
	"github.com/goliatone/go-loop-client/transport"
)

const (
	pathCallURL = "/call-url/"
	pathCalls   = "/calls"
)

const (
	opCallURL   = "call_url"
	opCallsInfo = "calls_info"
	opCallInfo  = "call_info"
)

type Client struct {
	config    core.Config
	baseURL   string
	auth      core.AuthProvider
	transport core.TransportAdapter
	runtime   core.Runtime
}

// New builds a client for cfg. It fails with a configuration error when no
// base server url is configured.
func New(cfg core.Config, opts ...core.Option) (*Client, error) {
	if err := cfg.RequireBaseServerURL(); err != nil {
		return nil, err
	}
	runtime, err := core.NewRuntime(core.DefaultServiceName, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := runtime.Config.RequireBaseServerURL(); err != nil {
		return nil, err
	}

	adapter := runtime.Transport
	if adapter == nil {
		rest := transport.NewRESTAdapter(nil)
		if runtime.Config.MaxResponseBodyBytes > 0 {
			rest.MaxResponseBodyBytes = runtime.Config.MaxResponseBodyBytes
		}
		adapter = rest
	}

	return &Client{
		config:    runtime.Config,
		baseURL:   runtime.Config.ServerURL(),
		auth:      runtime.AuthProvider,
		transport: adapter,
		runtime:   runtime,
	}, nil
}

func (c *Client) Config() core.Config {
	if c == nil {
		return core.Config{}
	}
	return c.config
}

// CallURL creates a shareable call URL for callerID.
func (c *Client) CallURL(ctx context.Context, req core.CallURLRequest) (out core.CallURL, err error) {
	if c == nil {
		return core.CallURL{}, errNilClient()
	}
	ctx = ensureContext(ctx)
	startedAt := time.Now()
	defer func() {
		c.runtime.Observer.Observe(ctx, startedAt, opCallURL, err, map[string]any{
			"caller_id": req.CallerID,
			"method":    http.MethodPost,
		})
	}()

	if checker, ok := c.auth.(core.RegistrationChecker); ok {
		// registration failures reach the caller untouched
		if regErr := checker.EnsureRegistered(ctx); regErr != nil {
			return core.CallURL{}, regErr
		}
	}

	res, err := c.send(ctx, outgoing{
		method: http.MethodPost,
		path:   pathCallURL,
		form:   map[string]string{"callerId": req.CallerID},
	})
	if err != nil {
		return core.CallURL{}, err
	}
	if err := decodeResponse(res, &out, "call_url", "expiresAt"); err != nil {
		return core.CallURL{}, err
	}

	if notifier, ok := c.auth.(core.CallURLExpiryNotifier); ok {
		if noteErr := notifier.NoteCallURLExpiry(ctx, out.ExpirySeconds()); noteErr != nil {
			c.runtime.Observer.Warn(ctx, "call url expiry notification failed", map[string]any{
				"error":      noteErr.Error(),
				"expires_at": out.ExpiresAt,
			})
		}
	}
	return out, nil
}

// CallsInfo lists the calls known to the server for the given version.
func (c *Client) CallsInfo(ctx context.Context, req core.CallsInfoRequest) (out []core.CallSummary, err error) {
	if c == nil {
		return nil, errNilClient()
	}
	if req.Version == nil {
		return nil, core.MissingParameterError(opCallsInfo, "version")
	}
	ctx = ensureContext(ctx)
	startedAt := time.Now()
	defer func() {
		c.runtime.Observer.Observe(ctx, startedAt, opCallsInfo, err, map[string]any{
			"version": *req.Version,
			"method":  http.MethodGet,
			"calls":   len(out),
		})
	}()

	res, err := c.send(ctx, outgoing{
		method: http.MethodGet,
		path:   pathCalls,
		query:  map[string]string{"version": strconv.Itoa(*req.Version)},
	})
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Calls []core.CallSummary `json:"calls"`
	}
	if err := decodeResponse(res, &envelope, "calls"); err != nil {
		return nil, err
	}
	if envelope.Calls == nil {
		envelope.Calls = []core.CallSummary{}
	}
	return envelope.Calls, nil
}

// CallInfo fetches the media session credentials for a call token.
func (c *Client) CallInfo(ctx context.Context, req core.CallInfoRequest) (out core.CallSession, err error) {
	if c == nil {
		return core.CallSession{}, errNilClient()
	}
	if isBlank(req.Token) {
		return core.CallSession{}, core.MissingParameterError(opCallInfo, "token")
	}
	token := strings.TrimSpace(req.Token)
	ctx = ensureContext(ctx)
	startedAt := time.Now()
	defer func() {
		c.runtime.Observer.Observe(ctx, startedAt, opCallInfo, err, map[string]any{
			"method": http.MethodPost,
		})
	}()

	res, err := c.send(ctx, outgoing{
		method: http.MethodPost,
		path:   pathCalls + "/" + url.PathEscape(token),
	})
	if err != nil {
		return core.CallSession{}, err
	}
	if err := decodeResponse(res, &out, "sessionId", "sessionToken", "apiKey"); err != nil {
		return core.CallSession{}, err
	}
	return out, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func isBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}
