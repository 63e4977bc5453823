// Package auth implements the registration and server token collaborator
// consumed by the loop client.
package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-loop-client/core"
	glog "github.com/goliatone/go-logger/glog"
)

// Registrar registers this client with the loop server and returns the
// server token it was issued, if any.
type Registrar interface {
	Register(ctx context.Context) (core.Registration, error)
}

type ProviderOption func(*PrefsProvider)

func WithLogger(logger core.Logger) ProviderOption {
	return func(p *PrefsProvider) {
		p.logger = glog.Ensure(logger)
	}
}

func WithClock(now func() time.Time) ProviderOption {
	return func(p *PrefsProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithExpiryNotifier forwards every newly stored call URL expiry to notifier,
// after it has been persisted.
func WithExpiryNotifier(notifier core.CallURLExpiryNotifier) ProviderOption {
	return func(p *PrefsProvider) {
		if notifier != nil {
			p.notifiers = append(p.notifiers, notifier)
		}
	}
}

// PrefsProvider keeps the server token and call URL expiry in a preference
// store and registers at most once per process. A failed registration is
// returned to the caller and attempted again on the next call.
type PrefsProvider struct {
	prefs     core.PreferenceStore
	registrar Registrar
	logger    core.Logger
	now       func() time.Time
	notifiers []core.CallURLExpiryNotifier

	mu           sync.Mutex
	registration *core.Registration
}

func NewPrefsProvider(prefs core.PreferenceStore, registrar Registrar, opts ...ProviderOption) (*PrefsProvider, error) {
	if prefs == nil {
		return nil, core.MissingParameterError("auth", "preference store")
	}
	p := &PrefsProvider{
		prefs:     prefs,
		registrar: registrar,
		logger:    glog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// EnsureRegistered runs the registrar unless a previous call succeeded.
// Without a registrar it always succeeds.
func (p *PrefsProvider) EnsureRegistered(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registration != nil {
		return nil
	}
	if p.registrar == nil {
		p.registration = &core.Registration{RegisteredAt: p.now()}
		return nil
	}

	reg, err := p.registrar.Register(ctx)
	if err != nil {
		p.logger.Warn("loop registration failed", "error", err)
		return err
	}
	if token := strings.TrimSpace(reg.ServerToken); token != "" {
		if err := p.prefs.SetCharPref(ctx, core.PrefServerToken, token); err != nil {
			return storeError(err, core.PrefServerToken)
		}
	}
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = p.now()
	}
	p.registration = &reg
	p.logger.Debug("loop registration complete", "push_url", reg.PushURL)
	return nil
}

// Registered reports the last successful registration.
func (p *PrefsProvider) Registered() (core.Registration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registration == nil {
		return core.Registration{}, false
	}
	return *p.registration, true
}

func (p *PrefsProvider) ServerToken(ctx context.Context) (string, error) {
	token, ok, err := p.prefs.GetCharPref(ctx, core.PrefServerToken)
	if err != nil {
		return "", storeError(err, core.PrefServerToken)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// NoteCallURLExpiry records seconds when it is later than the stored expiry.
func (p *PrefsProvider) NoteCallURLExpiry(ctx context.Context, seconds int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, err := p.callURLExpiry(ctx)
	if err != nil {
		return err
	}
	if seconds <= current {
		return nil
	}
	if err := p.prefs.SetCharPref(ctx, core.PrefURLExpiryTimeSeconds, strconv.FormatInt(seconds, 10)); err != nil {
		return storeError(err, core.PrefURLExpiryTimeSeconds)
	}
	for _, notifier := range p.notifiers {
		if err := notifier.NoteCallURLExpiry(ctx, seconds); err != nil {
			p.logger.Warn("call url expiry forward failed", "error", err)
		}
	}
	return nil
}

// CallURLExpiry returns the stored expiry in seconds, 0 when none is stored.
func (p *PrefsProvider) CallURLExpiry(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callURLExpiry(ctx)
}

func (p *PrefsProvider) callURLExpiry(ctx context.Context) (int64, error) {
	raw, ok, err := p.prefs.GetCharPref(ctx, core.PrefURLExpiryTimeSeconds)
	if err != nil {
		return 0, storeError(err, core.PrefURLExpiryTimeSeconds)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		// an unreadable value is treated as unset so a new expiry replaces it
		return 0, nil
	}
	return value, nil
}

// Forget clears the stored token and the registration, so the next
// EnsureRegistered registers again. Used after the server rejects the token.
func (p *PrefsProvider) Forget(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registration = nil
	if err := p.prefs.ClearPref(ctx, core.PrefServerToken); err != nil {
		return storeError(err, core.PrefServerToken)
	}
	return nil
}

func storeError(err error, key string) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "auth: preference store failed").
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal).
		WithMetadata(map[string]any{"pref": key})
}

var (
	_ core.RegistrationChecker   = (*PrefsProvider)(nil)
	_ core.ServerTokenSource     = (*PrefsProvider)(nil)
	_ core.CallURLExpiryNotifier = (*PrefsProvider)(nil)
)
