package legal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-loop-client/core"
	"github.com/goliatone/go-loop-client/transport"
)

// HTTPSource fetches documents relative to BaseURL.
type HTTPSource struct {
	BaseURL   string
	Transport core.TransportAdapter
}

func NewHTTPSource(baseURL string, adapter core.TransportAdapter) *HTTPSource {
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	return &HTTPSource{BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"), Transport: adapter}
}

func (s *HTTPSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if s == nil || s.Transport == nil {
		return nil, goerrors.New("legal: http source requires a transport", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.ErrorInternal)
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	res, err := s.Transport.Do(ctx, core.TransportRequest{
		Method:  http.MethodGet,
		URL:     s.BaseURL + "/" + url.PathEscape(name),
		Headers: map[string]string{"Accept": "text/html"},
	})
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return nil, core.RemoteError(res.StatusCode,
			fmt.Sprintf("%d %s", res.StatusCode, http.StatusText(res.StatusCode)),
			map[string]any{"document": name},
		)
	}
	return res.Body, nil
}

// FSSource reads documents from a file system, typically os.DirFS over the
// l10n content directory or an embed.FS.
type FSSource struct {
	FS fs.FS
}

func NewFSSource(fsys fs.FS) *FSSource {
	return &FSSource{FS: fsys}
}

func (s *FSSource) Fetch(_ context.Context, name string) ([]byte, error) {
	if s == nil || s.FS == nil {
		return nil, goerrors.New("legal: fs source requires a file system", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.ErrorInternal)
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	body, err := fs.ReadFile(s.FS, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerrors.Wrap(err, goerrors.CategoryNotFound, "legal: document not found").
				WithCode(http.StatusNotFound).
				WithTextCode(core.ErrorNotFound).
				WithMetadata(map[string]any{"document": name})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "legal: read document").
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.ErrorInternal).
			WithMetadata(map[string]any{"document": name})
	}
	return body, nil
}

// Languages lists the language tags that have a document, sorted.
func (s *FSSource) Languages() ([]string, error) {
	if s == nil || s.FS == nil {
		return nil, nil
	}
	matches, err := fs.Glob(s.FS, "*.html")
	if err != nil {
		return nil, err
	}
	langs := make([]string, 0, len(matches))
	for _, match := range matches {
		name := strings.TrimSuffix(path.Base(match), ".html")
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		langs = append(langs, strings.ReplaceAll(name, "_", "-"))
	}
	sort.Strings(langs)
	return langs, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" || !fs.ValidPath(name) || strings.Contains(name, "/") {
		return goerrors.New("legal: invalid document name", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput).
			WithMetadata(map[string]any{"document": name})
	}
	return nil
}
