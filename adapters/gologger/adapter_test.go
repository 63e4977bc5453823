package gologger

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
)

func TestResolveDeterministicFallback(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	_, resolved := Resolve("client", provider, loggerOnly)
	if got := resolved.(*capturingLogger); got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}
	if provider.lastName != "loop.client" {
		t.Fatalf("expected component name loop.client, got %q", provider.lastName)
	}

	resolvedProvider, resolved := Resolve("client", nil, loggerOnly)
	if got := resolved.(*capturingLogger); got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}
	if resolvedProvider == nil {
		t.Fatalf("expected provider wrapper from logger")
	}

	if _, resolved = Resolve("", nil, nil); resolved == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestComponentName(t *testing.T) {
	tests := map[string]string{
		"":            "loop",
		"loop":        "loop",
		" client ":    "loop.client",
		"loop.legal":  "loop.legal",
		".registrar.": "loop.registrar",
	}
	for in, want := range tests {
		if got := ComponentName(in); got != want {
			t.Fatalf("ComponentName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestComponentRoutesThroughProvider(t *testing.T) {
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	Component(provider, "legal").Info("hello", "k", "v")
	if provider.lastName != "loop.legal" {
		t.Fatalf("expected loop.legal, got %q", provider.lastName)
	}
	captured := providerLogger.lastInfo
	if captured.msg != "hello" || len(captured.args) != 2 || captured.args[0] != "k" {
		t.Fatalf("unexpected captured call %#v", captured)
	}

	if Component(nil, "legal") == nil {
		t.Fatalf("expected nop logger without provider")
	}
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger   *capturingLogger
	lastName string
}

func (p *capturingProvider) GetLogger(name string) glog.Logger {
	p.lastName = name
	if p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type infoCall struct {
	msg  string
	args []any
}

type capturingLogger struct {
	id       string
	lastInfo infoCall
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Error(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) Info(msg string, args ...any) {
	l.lastInfo = infoCall{
		msg:  msg,
		args: append([]any(nil), args...),
	}
}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
