package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-loop-client/core"
	"github.com/goliatone/go-loop-client/transport"
)

const pathRegistration = "/registration"

// HTTPRegistrar registers a push endpoint with the loop server. The server
// token comes back in the Loop-Server-Token response header.
type HTTPRegistrar struct {
	BaseURL   string
	PushURL   string
	Timeout   time.Duration
	Transport core.TransportAdapter
}

func NewHTTPRegistrar(cfg core.Config, adapter core.TransportAdapter) (*HTTPRegistrar, error) {
	if err := cfg.RequireBaseServerURL(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Registration.PushURL) == "" {
		return nil, core.MissingParameterError("registration", "push url")
	}
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	return &HTTPRegistrar{
		BaseURL:   cfg.ServerURL(),
		PushURL:   strings.TrimSpace(cfg.Registration.PushURL),
		Timeout:   cfg.RequestTimeout,
		Transport: adapter,
	}, nil
}

func (r *HTTPRegistrar) Register(ctx context.Context) (core.Registration, error) {
	if r == nil || r.Transport == nil {
		return core.Registration{}, goerrors.New("auth: registrar requires a transport", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.ErrorInternal)
	}
	res, err := r.Transport.Do(ctx, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     r.BaseURL + pathRegistration,
		Headers: map[string]string{"Content-Type": transport.ContentTypeForm},
		Body:    transport.FormBody(map[string]string{"simplePushURL": r.PushURL}),
		Timeout: r.Timeout,
	})
	if err != nil {
		return core.Registration{}, err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return core.Registration{}, goerrors.New(
			fmt.Sprintf("registration failed: %d %s", res.StatusCode, http.StatusText(res.StatusCode)),
			goerrors.CategoryExternal,
		).
			WithCode(res.StatusCode).
			WithTextCode(core.ErrorRegistration).
			WithMetadata(map[string]any{"status": res.StatusCode})
	}
	return core.Registration{
		PushURL:     r.PushURL,
		ServerToken: strings.TrimSpace(transport.HeaderValue(res.Headers, core.HeaderServerToken)),
	}, nil
}

var _ Registrar = (*HTTPRegistrar)(nil)
