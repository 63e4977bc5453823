package legal

import (
	"bytes"
	"net/http"

	"github.com/gorilla/mux"
)

// NewHandler serves GET /legal. Each request runs the loader into its own
// view of page, so concurrent requests never mix one request's document with
// another's language. A successful load also updates page.
func NewHandler(loader *Loader, page *Page) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/legal", func(w http.ResponseWriter, req *http.Request) {
		view := page.view()
		result := loader.LoadInto(req.Context(), view)
		if result.Rendered {
			body, _ := view.Body()
			_ = page.SetBody(req.Context(), body)
		}
		var buf bytes.Buffer
		if err := view.Render(&buf); err != nil {
			http.Error(w, "could not render legal page", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if result.Rendered && result.Lang != "" {
			w.Header().Set("Content-Language", CanonicalTag(result.Lang))
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}).Methods(http.MethodGet)
	return r
}
