package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-loop-client/core"
)

func TestHTTPRegistrar_PostsPushURL(t *testing.T) {
	var method, path, body, contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := io.ReadAll(r.Body)
		method, path, body = r.Method, r.URL.Path, string(payload)
		contentType = r.Header.Get("Content-Type")
		w.Header().Set(core.HeaderServerToken, "fakeTokenText")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := core.DefaultConfig()
	cfg.BaseServerURL = server.URL + "/"
	cfg.Registration.PushURL = "https://push.example/a b"
	registrar, err := NewHTTPRegistrar(cfg, nil)
	if err != nil {
		t.Fatalf("new registrar: %v", err)
	}

	reg, err := registrar.Register(context.Background())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if method != http.MethodPost || path != "/registration" {
		t.Fatalf("unexpected request %s %s", method, path)
	}
	if body != "simplePushURL=https%3A%2F%2Fpush.example%2Fa+b" {
		t.Fatalf("unexpected body %q", body)
	}
	if contentType != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected content type %q", contentType)
	}
	if reg.ServerToken != "fakeTokenText" || reg.PushURL != "https://push.example/a b" {
		t.Fatalf("unexpected registration %#v", reg)
	}
}

func TestHTTPRegistrar_RejectedRegistration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := core.DefaultConfig()
	cfg.BaseServerURL = server.URL
	cfg.Registration.PushURL = "https://push.example/endpoint"
	registrar, err := NewHTTPRegistrar(cfg, nil)
	if err != nil {
		t.Fatalf("new registrar: %v", err)
	}

	_, err = registrar.Register(context.Background())
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %v", err)
	}
	if rich.TextCode != core.ErrorRegistration || rich.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected envelope %#v", rich)
	}
}

func TestNewHTTPRegistrar_RequiresConfiguration(t *testing.T) {
	if _, err := NewHTTPRegistrar(core.DefaultConfig(), nil); !core.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	cfg := core.DefaultConfig()
	cfg.BaseServerURL = "http://fake.api"
	if _, err := NewHTTPRegistrar(cfg, nil); !core.IsMissingParameter(err) {
		t.Fatalf("expected missing push url error, got %v", err)
	}
}
