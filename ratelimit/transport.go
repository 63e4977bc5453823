package ratelimit

import (
	"context"
	"errors"
	"net/url"

	"github.com/goliatone/go-loop-client/core"
)

// Transport wraps a TransportAdapter and consults the policy around every
// request. A throttled key fails fast with a rate limited error and no
// request is sent.
type Transport struct {
	next   core.TransportAdapter
	policy *AdaptivePolicy
}

func NewTransport(next core.TransportAdapter, policy *AdaptivePolicy) *Transport {
	if policy == nil {
		policy = NewAdaptivePolicy(NewMemoryStateStore())
	}
	return &Transport{next: next, policy: policy}
}

func (t *Transport) Kind() string {
	if t == nil || t.next == nil {
		return "ratelimit"
	}
	return t.next.Kind()
}

func (t *Transport) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if t == nil || t.next == nil {
		return core.TransportResponse{}, core.MissingParameterError("ratelimit", "transport")
	}
	key := keyFor(req.URL)
	if err := t.policy.BeforeCall(ctx, key); err != nil {
		var throttled ThrottledError
		if errors.As(err, &throttled) {
			return core.TransportResponse{}, throttled.ToError()
		}
		return core.TransportResponse{}, err
	}

	res, err := t.next.Do(ctx, req)
	if err != nil {
		return res, err
	}
	if recordErr := t.policy.AfterCall(ctx, key, res); recordErr != nil {
		return res, recordErr
	}
	return res, nil
}

func keyFor(rawURL string) Key {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return Key{Host: rawURL}
	}
	return Key{Host: parsed.Host}
}

var _ core.TransportAdapter = (*Transport)(nil)
