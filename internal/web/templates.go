// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/classgate/classgate/internal/auth"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names.
const (
	pageHome      = "home"
	pageSignup    = "signup"
	pageLogin     = "login"
	pageVerify    = "verify"
	pageDashboard = "dashboard"
)

var pageNames = []string{pageHome, pageSignup, pageLogin, pageVerify, pageDashboard}

// pageData is the model every page template receives.
type pageData struct {
	Title   string
	Kind    string
	Error   string
	Form    map[string]string
	Pending bool
	Account *auth.Account
}

var funcs = template.FuncMap{
	"join": strings.Join,
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).
			Option("missingkey=zero").
			Funcs(funcs).
			ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, oops.Code("WEB_TEMPLATE_INVALID").With("page", name).Wrap(err)
		}
		pages[name] = t
	}
	return pages, nil
}

// render executes a page into a buffer first so a template failure can
// still produce a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := s.pages[name].ExecuteTemplate(&buf, "base", data); err != nil {
		s.logger.ErrorContext(r.Context(), "template execution failed", "page", name, "error", err)
		writeText(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	buf.WriteTo(w)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	w.Write([]byte(msg + "\n"))
}
