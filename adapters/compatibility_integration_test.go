package adapters_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-command"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-loop-client/adapters/gocommand"
	"github.com/goliatone/go-loop-client/adapters/gojob"
	"github.com/goliatone/go-loop-client/adapters/gologger"
	"github.com/goliatone/go-loop-client/auth"
	"github.com/goliatone/go-loop-client/client"
	"github.com/goliatone/go-loop-client/core"
)

func TestRuntimeCompatibility_DispatchRegistersAndQueuesExpiry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/registration":
			w.Header().Set(core.HeaderServerToken, "fakeTokenText")
		case r.URL.Path == "/call-url/":
			if r.Header.Get(core.HeaderServerToken) != "fakeTokenText" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"status":"error","code":401,"errno":105,"errors":[{"location":"header","name":"Loop-Server-Token","description":"invalid token"}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"call_url":"http://loop.example/call/fake","expiresAt":60}`))
		case r.URL.Path == "/calls" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"calls":[{"apiKey":"fake"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}

	cfg := core.DefaultConfig()
	cfg.BaseServerURL = server.URL
	cfg.Registration.PushURL = "https://push.example/endpoint"

	registrar, err := auth.NewHTTPRegistrar(cfg, nil)
	if err != nil {
		t.Fatalf("new registrar: %v", err)
	}
	expiries := gojob.NewMemoryQueue(4)
	prefs, err := auth.NewPrefsProvider(auth.NewMemoryPreferenceStore(), registrar,
		auth.WithLogger(gologger.Component(provider, "auth")),
		auth.WithExpiryNotifier(gojob.NewExpiryNotifier(expiries)),
	)
	if err != nil {
		t.Fatalf("new prefs provider: %v", err)
	}
	loop, err := client.New(cfg, core.WithAuthProvider(prefs), core.WithLoggerProvider(provider))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	bindings, err := gocommand.RegisterLoop(adapter, loop)
	if err != nil {
		t.Fatalf("register loop: %v", err)
	}
	defer bindings.Close()

	ctx := context.Background()
	callURL, err := gocommand.RequestCallURL(ctx, "foo")
	if err != nil {
		t.Fatalf("dispatch call url: %v", err)
	}
	if callURL.CallURL != "http://loop.example/call/fake" {
		t.Fatalf("unexpected call url %#v", callURL)
	}
	calls, err := gocommand.ListCalls(ctx, 42)
	if err != nil || len(calls) != 1 {
		t.Fatalf("expected one call, got %#v (%v)", calls, err)
	}

	var handled atomic.Int64
	consumer, err := gojob.NewExpiryConsumer(expiries, func(_ context.Context, seconds int64) error {
		handled.Store(seconds)
		return nil
	},
		gojob.WithRetryPolicy(worker.DefaultRetryPolicy{MaxAttempts: 3}),
		gojob.WithHooks(gojob.NewLoggingHook(gologger.Component(provider, "jobs"))),
	)
	if err != nil {
		t.Fatalf("new expiry consumer: %v", err)
	}
	drainCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := consumer.Drain(drainCtx, expiries); err != nil {
		t.Fatalf("drain expiries: %v", err)
	}
	if handled.Load() != 60*60*60 {
		t.Fatalf("expected queued expiry of %d seconds, got %d", 60*60*60, handled.Load())
	}
	if !logger.saw("job succeeded") {
		t.Fatalf("expected worker hook to log through the loop logger, got %#v", logger.messages)
	}
}

var (
	_ glog.Logger         = (*compatLogger)(nil)
	_ glog.LoggerProvider = (*compatProvider)(nil)
)

type compatProvider struct {
	logger *compatLogger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	return p.logger
}

type compatLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *compatLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *compatLogger) saw(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, candidate := range l.messages {
		if candidate == msg {
			return true
		}
	}
	return false
}

func (l *compatLogger) Trace(msg string, _ ...any) { l.record(msg) }
func (l *compatLogger) Debug(msg string, _ ...any) { l.record(msg) }
func (l *compatLogger) Info(msg string, _ ...any)  { l.record(msg) }
func (l *compatLogger) Warn(msg string, _ ...any)  { l.record(msg) }
func (l *compatLogger) Error(msg string, _ ...any) { l.record(msg) }
func (l *compatLogger) Fatal(msg string, _ ...any) { l.record(msg) }

func (l *compatLogger) WithContext(context.Context) glog.Logger {
	return l
}
