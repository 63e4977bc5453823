// Package legal loads the localized legal copy shown by the standalone loop
// pages. The preferred language comes from the i18n settings endpoint, the
// matching document is fetched from a DocumentSource and, when that fails,
// the default language document is fetched once. Whatever loads is handed to
// a Display.
package legal

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-loop-client/core"
	"github.com/goliatone/go-loop-client/transport"
	"golang.org/x/text/language"
)

const opLoad = "legal_load"

// DocumentSource returns the raw content of a named document, e.g. "fr_FR.html".
type DocumentSource interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// Display receives the loaded document.
type Display interface {
	SetBody(ctx context.Context, body []byte) error
}

type Result struct {
	Lang     string
	Document string
	Rendered bool
	Fallback bool
}

type Loader struct {
	config      core.Config
	settingsURL string
	transport   core.TransportAdapter
	source      DocumentSource
	display     Display
	runtime     core.Runtime
}

func NewLoader(cfg core.Config, source DocumentSource, display Display, opts ...core.Option) (*Loader, error) {
	if source == nil {
		return nil, core.MissingParameterError(opLoad, "source")
	}
	if display == nil {
		return nil, core.MissingParameterError(opLoad, "display")
	}
	runtime, err := core.NewRuntime(core.DefaultServiceName, cfg, opts...)
	if err != nil {
		return nil, err
	}
	adapter := runtime.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	return &Loader{
		config:      runtime.Config,
		settingsURL: runtime.Config.I18nConfigURL(),
		transport:   adapter,
		source:      source,
		display:     display,
		runtime:     runtime,
	}, nil
}

// Load runs the preferred-then-default sequence. It never returns an error:
// when both documents fail the display is left untouched and the failure is
// only logged.
func (l *Loader) Load(ctx context.Context) Result {
	if l == nil {
		return Result{}
	}
	return l.LoadInto(ctx, l.display)
}

// LoadInto is Load with the document handed to display instead of the
// loader's own display.
func (l *Loader) LoadInto(ctx context.Context, display Display) (result Result) {
	if l == nil || display == nil {
		return Result{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()
	var loadErr error
	defer func() {
		l.runtime.Observer.Observe(ctx, startedAt, opLoad, loadErr, map[string]any{
			"lang":     result.Lang,
			"document": result.Document,
			"fallback": result.Fallback,
		})
	}()

	lang, defaultLang := l.languages(ctx)

	result = Result{Lang: lang, Document: DocumentName(lang)}
	body, err := l.source.Fetch(ctx, result.Document)
	if err != nil {
		l.runtime.Observer.Warn(ctx, "legal document fetch failed, trying default language", map[string]any{
			"lang":     lang,
			"document": result.Document,
			"error":    err.Error(),
		})
		result = Result{Lang: defaultLang, Document: DocumentName(defaultLang), Fallback: true}
		body, err = l.source.Fetch(ctx, result.Document)
		if err != nil {
			loadErr = err
			return result
		}
	}

	if err := display.SetBody(ctx, body); err != nil {
		loadErr = err
		return result
	}
	result.Rendered = true
	return result
}

// languages returns the preferred and default language. Any failure of the
// settings endpoint means the configured default for both.
func (l *Loader) languages(ctx context.Context) (lang string, defaultLang string) {
	defaultLang = l.config.DefaultLanguage()
	settings, err := l.fetchSettings(ctx)
	if err != nil {
		l.runtime.Observer.Debug(ctx, "i18n settings unavailable, using default language", map[string]any{
			"lang":  defaultLang,
			"error": err.Error(),
		})
		return defaultLang, defaultLang
	}
	if value := strings.TrimSpace(settings.DefaultLang); value != "" {
		defaultLang = value
	}
	lang = strings.TrimSpace(settings.Lang)
	if lang == "" {
		lang = defaultLang
	}
	return lang, defaultLang
}

func (l *Loader) fetchSettings(ctx context.Context) (core.I18nSettings, error) {
	if strings.TrimSpace(l.settingsURL) == "" {
		return core.I18nSettings{}, core.MissingParameterError(opLoad, "i18n config url")
	}
	res, err := l.transport.Do(ctx, core.TransportRequest{
		Method:  http.MethodGet,
		URL:     l.settingsURL,
		Timeout: l.config.RequestTimeout,
	})
	if err != nil {
		return core.I18nSettings{}, l.runtime.MapError(err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return core.I18nSettings{}, core.RemoteError(res.StatusCode, http.StatusText(res.StatusCode), nil)
	}

	var envelope struct {
		I18n *core.I18nSettings `json:"i18n"`
	}
	if err := json.Unmarshal(res.Body, &envelope); err != nil || envelope.I18n == nil {
		return core.I18nSettings{}, core.InvalidDataError(res.StatusCode, map[string]any{
			"reason": "missing i18n settings",
		})
	}
	return *envelope.I18n, nil
}

// DocumentName maps a language tag to its document, replacing the first
// subtag separator with an underscore: "en-us" -> "en_US.html".
func DocumentName(lang string) string {
	return strings.Replace(CanonicalTag(lang), "-", "_", 1) + ".html"
}

// CanonicalTag fixes the case of lang's subtags ("en-us" -> "en-US") without
// replacing deprecated codes, so "iw" stays "iw". Input that does not parse is
// returned trimmed.
func CanonicalTag(lang string) string {
	lang = strings.TrimSpace(lang)
	tag, err := language.Raw.Parse(lang)
	if err != nil {
		return lang
	}
	return tag.String()
}
