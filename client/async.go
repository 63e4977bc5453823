package client

import (
	"context"

	"github.com/goliatone/go-loop-client/core"
)

// RequestCallURL runs CallURL in the background and hands the outcome to cb.
// A registration failure is delivered to cb as returned by the provider.
func (c *Client) RequestCallURL(ctx context.Context, callerID string, cb core.Callback[core.CallURL]) error {
	if cb == nil {
		return core.MissingParameterError(opCallURL, "callback")
	}
	if c == nil {
		return errNilClient()
	}
	req := core.CallURLRequest{CallerID: callerID}
	dispatch(ctx, cb, func(ctx context.Context) (core.CallURL, error) {
		return c.CallURL(ctx, req)
	})
	return nil
}

// RequestCallsInfo returns a missing parameter error, without calling cb,
// when version is nil.
func (c *Client) RequestCallsInfo(ctx context.Context, version *int, cb core.Callback[[]core.CallSummary]) error {
	if version == nil {
		return core.MissingParameterError(opCallsInfo, "version")
	}
	if cb == nil {
		return core.MissingParameterError(opCallsInfo, "callback")
	}
	if c == nil {
		return errNilClient()
	}
	v := *version
	req := core.CallsInfoRequest{Version: &v}
	dispatch(ctx, cb, func(ctx context.Context) ([]core.CallSummary, error) {
		return c.CallsInfo(ctx, req)
	})
	return nil
}

// RequestCallInfo returns a missing parameter error, without calling cb,
// when token is empty.
func (c *Client) RequestCallInfo(ctx context.Context, token string, cb core.Callback[core.CallSession]) error {
	req := core.CallInfoRequest{Token: token}
	if isBlank(req.Token) {
		return core.MissingParameterError(opCallInfo, "token")
	}
	if cb == nil {
		return core.MissingParameterError(opCallInfo, "callback")
	}
	if c == nil {
		return errNilClient()
	}
	dispatch(ctx, cb, func(ctx context.Context) (core.CallSession, error) {
		return c.CallInfo(ctx, req)
	})
	return nil
}

func dispatch[T any](ctx context.Context, cb core.Callback[T], run func(context.Context) (T, error)) {
	ctx = ensureContext(ctx)
	go func() {
		result, err := run(ctx)
		if err != nil {
			var zero T
			cb(err, zero)
			return
		}
		cb(nil, result)
	}()
}
