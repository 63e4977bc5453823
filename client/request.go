package client

import (
	"context"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-loop-client/core"
	"github.com/goliatone/go-loop-client/transport"
)

type outgoing struct {
	method string
	path   string
	query  map[string]string
	form   map[string]string
}

func (c *Client) send(ctx context.Context, req outgoing) (core.TransportResponse, error) {
	headers := map[string]string{}
	var body []byte
	if req.form != nil {
		headers["Content-Type"] = transport.ContentTypeForm
		body = transport.FormBody(req.form)
	}
	c.attachServerToken(ctx, headers)

	res, err := c.transport.Do(ctx, core.TransportRequest{
		Method:  req.method,
		URL:     c.baseURL + req.path,
		Headers: headers,
		Query:   req.query,
		Body:    body,
		Timeout: c.config.RequestTimeout,
	})
	if err != nil {
		return core.TransportResponse{}, c.runtime.MapError(err)
	}
	return res, nil
}

// attachServerToken sets the Loop-Server-Token header when the auth provider
// has a stored token. A missing provider, a provider without token lookup or
// a failed lookup all leave the headers untouched.
func (c *Client) attachServerToken(ctx context.Context, headers map[string]string) {
	source, ok := c.auth.(core.ServerTokenSource)
	if !ok {
		return
	}
	token, err := source.ServerToken(ctx)
	if err != nil {
		c.runtime.Observer.Warn(ctx, "server token lookup failed", map[string]any{
			"error": err.Error(),
		})
		return
	}
	if token = strings.TrimSpace(token); token != "" {
		headers[core.HeaderServerToken] = token
	}
}

func errNilClient() error {
	return goerrors.New("client: client is nil", goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal)
}
