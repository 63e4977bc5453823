package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-loop-client/client"
	"github.com/goliatone/go-loop-client/core"
	"github.com/goliatone/go-loop-client/transport"
)

func TestTransport_FailsFastWhileThrottled(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"status":"error","code":429,"errno":201,"error":"too many requests"}`))
	}))
	defer server.Close()

	cfg := core.DefaultConfig()
	cfg.BaseServerURL = server.URL
	loop, err := client.New(cfg, core.WithTransport(NewTransport(transport.NewRESTAdapter(nil), nil)))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	version := 1
	if _, err := loop.CallsInfo(context.Background(), core.CallsInfoRequest{Version: &version}); err == nil {
		t.Fatalf("expected remote 429 error")
	}
	_, err = loop.CallsInfo(context.Background(), core.CallsInfoRequest{Version: &version})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ErrorRateLimited {
		t.Fatalf("expected %q, got %q", core.ErrorRateLimited, rich.TextCode)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected the throttled request not to reach the server, got %d hits", got)
	}
}

func TestTransport_RequiresNext(t *testing.T) {
	if _, err := NewTransport(nil, nil).Do(context.Background(), core.TransportRequest{URL: "http://loop.example"}); !core.IsMissingParameter(err) {
		t.Fatalf("expected missing transport error, got %v", err)
	}
}
