// Package push receives SimplePush notifications for the loop push URL and
// turns each new calls version into a /calls lookup.
package push

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-loop-client/core"
	glog "github.com/goliatone/go-logger/glog"
)

const opPush = "push_notification"

// Notification is a single SimplePush delivery. The body carries the calls
// version as "version=N".
type Notification struct {
	Version    int
	ReceivedAt time.Time
}

// ParseNotification decodes a SimplePush body.
func ParseNotification(body []byte) (Notification, error) {
	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return Notification{}, core.InvalidDataError(http.StatusBadRequest, map[string]any{
			"reason": "unreadable push body",
		})
	}
	raw := strings.TrimSpace(values.Get("version"))
	if raw == "" {
		return Notification{}, core.MissingParameterError(opPush, "version")
	}
	version, err := strconv.Atoi(raw)
	if err != nil || version < 0 {
		return Notification{}, core.InvalidDataError(http.StatusBadRequest, map[string]any{
			"reason":  "invalid version",
			"version": raw,
		})
	}
	return Notification{Version: version}, nil
}

// CallsReader looks up the calls for a version.
type CallsReader interface {
	CallsInfo(ctx context.Context, req core.CallsInfoRequest) ([]core.CallSummary, error)
}

type CallsReaderFunc func(ctx context.Context, req core.CallsInfoRequest) ([]core.CallSummary, error)

func (f CallsReaderFunc) CallsInfo(ctx context.Context, req core.CallsInfoRequest) ([]core.CallSummary, error) {
	return f(ctx, req)
}

// CallsHandler receives the calls fetched for a notification.
type CallsHandler func(ctx context.Context, version int, calls []core.CallSummary) error

type Outcome struct {
	Version   int            `json:"version"`
	Processed bool           `json:"processed"`
	Calls     int            `json:"calls"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type ProcessorOption func(*Processor)

func WithBurstController(burst *BurstController) ProcessorOption {
	return func(p *Processor) {
		p.burst = burst
	}
}

func WithLogger(logger glog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = glog.Ensure(logger)
	}
}

func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// Processor fetches calls for every version newer than the last one it
// handled. Versions at or below the last handled one are stale and dropped.
// A failed lookup leaves the last version untouched so a redelivery retries.
type Processor struct {
	reader  CallsReader
	handler CallsHandler
	burst   *BurstController
	logger  glog.Logger
	now     func() time.Time

	mu      sync.Mutex
	last    int
	handled bool
}

func NewProcessor(reader CallsReader, handler CallsHandler, opts ...ProcessorOption) (*Processor, error) {
	if reader == nil {
		return nil, core.MissingParameterError(opPush, "calls reader")
	}
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  glog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// LastVersion returns the last handled version and whether one was handled.
func (p *Processor) LastVersion() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.handled
}

func (p *Processor) Process(ctx context.Context, n Notification) (Outcome, error) {
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = p.now()
	}
	outcome := Outcome{Version: n.Version}

	p.mu.Lock()
	stale := p.handled && n.Version <= p.last
	p.mu.Unlock()
	if stale {
		outcome.Metadata = map[string]any{"stale": true, "version": n.Version}
		p.logger.Debug("push version already handled", "version", n.Version)
		return outcome, nil
	}
	if ok, metadata := p.burst.Allow(n); !ok {
		outcome.Metadata = metadata
		p.logger.Debug("push notification dropped", "version", n.Version)
		return outcome, nil
	}

	version := n.Version
	calls, err := p.reader.CallsInfo(ctx, core.CallsInfoRequest{Version: &version})
	if err != nil {
		p.burst.Forget(n.Version)
		p.logger.Warn("calls lookup for push failed", "version", n.Version, "error", err)
		return outcome, lookupError(err, n.Version)
	}
	if p.handler != nil {
		if err := p.handler(ctx, n.Version, calls); err != nil {
			p.burst.Forget(n.Version)
			return outcome, err
		}
	}

	p.mu.Lock()
	if !p.handled || n.Version > p.last {
		p.last = n.Version
		p.handled = true
	}
	p.mu.Unlock()

	outcome.Processed = true
	outcome.Calls = len(calls)
	p.logger.Info("push notification processed", "version", n.Version, "calls", len(calls))
	return outcome, nil
}

func lookupError(err error, version int) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryExternal, "push: calls lookup failed").
		WithCode(http.StatusBadGateway).
		WithTextCode(core.ErrorExternalFailure).
		WithMetadata(map[string]any{"version": version})
}
