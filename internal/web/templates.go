package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/matzehuels/dbdev/pkg/profile"
)

//go:embed templates/*.html
var templateFS embed.FS

// siteTitle is the suffix of every page title.
const siteTitle = "The Database Package Manager"

// installCommand is the example shown, and copied, on the landing page.
const installCommand = `dbdev add -c "postgresql://postgres:[YOUR-PASSWORD]@[YOUR-HOST]:5432/postgres" -o ./migrations -s extensions -v 0.2.1 package -n "olirice@index_advisor"`

var pageNames = []string{"landing", "publisher", "package", "edit", "signin", "error"}

var templateFuncs = template.FuncMap{
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	},
	"avatarTypes":    func() string { return "image/jpeg, image/png" },
	"maxDisplayName": func() int { return profile.MaxDisplayName },
	"maxBio":         func() int { return profile.MaxBio },
	// safeURL lets data: previews through html/template's URL filter.
	"safeURL": func(s string) template.URL { return template.URL(s) },
}

type templates struct {
	pages map[string]*template.Template
}

func parseTemplates() (*templates, error) {
	t := &templates{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New("layout.html").Funcs(templateFuncs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		t.pages[name] = tmpl
	}
	return t, nil
}

// page is the data every template receives.
type page struct {
	Title   string
	Session any
	Notice  string
	Data    any
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	tmpl, ok := s.pages.pages[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	if sess := SessionFromContext(r.Context()); sess != nil {
		p.Session = sess
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		s.logger.Error("render failed", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.render(w, r, status, "error", page{
		Title: fmt.Sprintf("%d | %s", status, siteTitle),
		Data:  map[string]any{"Status": status, "Message": msg},
	})
}
