package legal

import (
	"context"
	"html/template"
	"io"
	"sync"
)

// Region holds the last body handed to it. It is safe for concurrent use.
type Region struct {
	mu   sync.RWMutex
	body []byte
	set  bool
}

func (r *Region) SetBody(_ context.Context, body []byte) error {
	copied := append([]byte(nil), body...)
	r.mu.Lock()
	r.body = copied
	r.set = true
	r.mu.Unlock()
	return nil
}

// Body returns a copy of the current body and whether one was ever set.
func (r *Region) Body() ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]byte(nil), r.body...), r.set
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<div id="legal-copy">{{.Body}}</div>
</body>
</html>
`

// Page renders a standalone legal page whose legal-copy region is filled by
// the loader. Documents are served by the loop content host and inserted as
// trusted HTML.
type Page struct {
	Region
	Title string
	tmpl  *template.Template
}

func NewPage(title string) *Page {
	return &Page{
		Title: title,
		tmpl:  template.Must(template.New("legal").Parse(pageTemplate)),
	}
}

// view returns a page with the same title and template holding a copy of the
// current body.
func (p *Page) view() *Page {
	out := &Page{Title: p.Title, tmpl: p.tmpl}
	if body, ok := p.Body(); ok {
		out.body = body
		out.set = true
	}
	return out
}

func (p *Page) Render(w io.Writer) error {
	body, _ := p.Body()
	return p.tmpl.Execute(w, struct {
		Title string
		Body  template.HTML
	}{
		Title: p.Title,
		Body:  template.HTML(body),
	})
}
