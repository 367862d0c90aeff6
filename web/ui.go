// Package web embeds the local UI pages the daemon serves next to its JSON
// API: the popup, the dashboard, and the page blocked navigations land on.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFS embed.FS

// pages maps clean paths to embedded documents.
var pages = map[string]string{
	"/":          "static/dashboard.html",
	"/dashboard": "static/dashboard.html",
	"/popup":     "static/popup.html",
	"/blocked":   "static/blocked.html",
}

// Handler serves the embedded UI. Unknown paths fall through to the static
// file tree so stylesheets and scripts resolve.
func Handler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	files := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if page, ok := pages[r.URL.Path]; ok {
			data, err := staticFS.ReadFile(page)
			if err != nil {
				http.Error(w, "page unavailable", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(data)
			return
		}
		files.ServeHTTP(w, r)
	})
}
