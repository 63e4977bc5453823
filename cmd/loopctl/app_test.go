package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-loop-client/core"
	_ "github.com/mattn/go-sqlite3"
)

func newLoopServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/registration":
			w.Header().Set(core.HeaderServerToken, "fakeTokenText")
		case r.Method == http.MethodPost && r.URL.Path == "/call-url/":
			_, _ = w.Write([]byte(`{"call_url":"http://loop.example/call/fake","expiresAt":60}`))
		case r.Method == http.MethodGet && r.URL.Path == "/calls":
			_, _ = w.Write([]byte(`{"calls":[{"apiKey":"fake"}]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/calls/fake":
			_, _ = w.Write([]byte(`{"sessionId":"sessionId","sessionToken":"sessionToken","apiKey":"apiKey"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/":
			_, _ = w.Write([]byte(`{"i18n":{"lang":"fr-FR","defaultLang":"en-US"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testEnv(serverURL string) EnvConfig {
	return EnvConfig{
		ServerURL:        serverURL,
		DefaultLang:      "en-US",
		PushURL:          "https://push.example/endpoint",
		RequestTimeout:   5 * time.Second,
		DBDriver:         "sqlite3",
		DBDSN:            fmt.Sprintf("file:loopctl-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano()),
		SecretKey:        "loopctl-test-key",
		SecretKeyID:      "loop-v1",
		SecretKeyVersion: 1,
	}
}

func TestRun_CallURLRegistersAndPrintsResult(t *testing.T) {
	server := newLoopServer(t)
	var stdout, stderr bytes.Buffer

	if err := run(context.Background(), []string{"call-url", "-caller", "foo"}, testEnv(server.URL), &stdout, &stderr); err != nil {
		t.Fatalf("run call-url: %v\n%s", err, stderr.String())
	}
	var out core.CallURL
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("decode output %q: %v", stdout.String(), err)
	}
	if out.CallURL != "http://loop.example/call/fake" || out.ExpiresAt != 60 {
		t.Fatalf("unexpected output %#v", out)
	}
	if !strings.Contains(stderr.String(), "call url expiry recorded") {
		t.Fatalf("expected queued expiry to be handled, log was:\n%s", stderr.String())
	}
}

func TestRun_CallsRequiresVersion(t *testing.T) {
	server := newLoopServer(t)
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"calls"}, testEnv(server.URL), &stdout, &stderr)
	if !core.IsMissingParameter(err) {
		t.Fatalf("expected missing version error, got %v", err)
	}
}

func TestRun_CallsAndCallInfo(t *testing.T) {
	server := newLoopServer(t)
	env := testEnv(server.URL)

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"calls", "-version", "42"}, env, &stdout, &stderr); err != nil {
		t.Fatalf("run calls: %v", err)
	}
	var calls []core.CallSummary
	if err := json.Unmarshal(stdout.Bytes(), &calls); err != nil || len(calls) != 1 || calls[0].APIKey != "fake" {
		t.Fatalf("unexpected calls output %q (%v)", stdout.String(), err)
	}

	stdout.Reset()
	if err := run(context.Background(), []string{"call-info", "-token", "fake"}, env, &stdout, &stderr); err != nil {
		t.Fatalf("run call-info: %v", err)
	}
	var session core.CallSession
	if err := json.Unmarshal(stdout.Bytes(), &session); err != nil || session.SessionID != "sessionId" {
		t.Fatalf("unexpected session output %q (%v)", stdout.String(), err)
	}
}

func TestRun_PushFetchesCallsForVersion(t *testing.T) {
	server := newLoopServer(t)
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"push", "-body", "version=7"}, testEnv(server.URL), &stdout, &stderr); err != nil {
		t.Fatalf("run push: %v\n%s", err, stderr.String())
	}
	var out struct {
		Version int                `json:"version"`
		Calls   []core.CallSummary `json:"calls"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("decode output %q: %v", stdout.String(), err)
	}
	if out.Version != 7 || len(out.Calls) != 1 || out.Calls[0].APIKey != "fake" {
		t.Fatalf("unexpected push output %#v", out)
	}

	stdout.Reset()
	err := run(context.Background(), []string{"push", "-body", "nothing=1"}, testEnv(server.URL), &stdout, &stderr)
	if !core.IsMissingParameter(err) {
		t.Fatalf("expected missing version error, got %v", err)
	}
}

func TestRun_PrefsRedactsStoredToken(t *testing.T) {
	server := newLoopServer(t)
	env := testEnv(server.URL)
	env.DBDSN = "file:" + filepath.Join(t.TempDir(), "loop.db") + "?_foreign_keys=on"

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"call-url"}, env, &stdout, &stderr); err != nil {
		t.Fatalf("run call-url: %v", err)
	}

	stdout.Reset()
	if err := run(context.Background(), []string{"prefs"}, env, &stdout, &stderr); err != nil {
		t.Fatalf("run prefs: %v", err)
	}
	if strings.Contains(stdout.String(), "fakeTokenText") {
		t.Fatalf("expected token to be redacted, got %s", stdout.String())
	}
	if !strings.Contains(stdout.String(), core.PrefServerToken) || !strings.Contains(stdout.String(), "216000") {
		t.Fatalf("expected token and expiry preferences, got %s", stdout.String())
	}

	stdout.Reset()
	if err := run(context.Background(), []string{"prefs", "-clear", core.PrefServerToken}, env, &stdout, &stderr); err != nil {
		t.Fatalf("clear pref: %v", err)
	}
	if err := run(context.Background(), []string{"prefs"}, env, &stdout, &stderr); err != nil {
		t.Fatalf("run prefs: %v", err)
	}
	if strings.Contains(stdout.String(), core.PrefServerToken) {
		t.Fatalf("expected token preference to be cleared, got %s", stdout.String())
	}
}

func TestRun_LegalPrintsPreferredDocument(t *testing.T) {
	server := newLoopServer(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "fr_FR.html"), []byte("<p>Conditions</p>"), 0o600); err != nil {
		t.Fatalf("write document: %v", err)
	}
	env := testEnv(server.URL)
	env.DocumentsDir = dir

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"legal", "-title", "Loop"}, env, &stdout, &stderr); err != nil {
		t.Fatalf("run legal: %v", err)
	}
	if !strings.Contains(stdout.String(), "<p>Conditions</p>") || !strings.Contains(stdout.String(), "<title>Loop</title>") {
		t.Fatalf("unexpected page %s", stdout.String())
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"dance"}, EnvConfig{}, &stdout, &stderr); err == nil {
		t.Fatalf("expected unknown command error")
	}
	if err := run(context.Background(), nil, EnvConfig{}, &stdout, &stderr); err == nil {
		t.Fatalf("expected missing command error")
	}
	if !strings.Contains(stderr.String(), "usage: loopctl") {
		t.Fatalf("expected usage on stderr")
	}
}

func TestEnvConfig_RawConfigSkipsEmptyValues(t *testing.T) {
	raw := EnvConfig{ServerURL: " http://loop.example ", DefaultLang: "en-US"}.rawConfig()
	if raw["base_server_url"] != "http://loop.example" {
		t.Fatalf("unexpected base url %#v", raw["base_server_url"])
	}
	if _, ok := raw["registration"]; ok {
		t.Fatalf("expected no registration block without a push url")
	}
	i18n, ok := raw["i18n"].(map[string]any)
	if !ok || i18n["default_lang"] != "en-US" || i18n["config_url"] != nil {
		t.Fatalf("unexpected i18n block %#v", raw["i18n"])
	}
}
