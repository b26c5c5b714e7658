// Package resources serves the files a markup document links to.
package resources

import (
	"net/http"
	"strings"
)

// DefaultScriptURL is the datastar client loaded by served pages.
const DefaultScriptURL = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

// Handler serves the files next to the markup document. Pages are
// re-read on every request while watching, so assets are not cached.
func Handler(dir string, watch bool) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hidden(r.URL.Path) {
			http.NotFound(w, r)
			return
		}
		if watch {
			w.Header().Set("Cache-Control", "no-cache")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		}
		fileServer.ServeHTTP(w, r)
	})
}

// hidden reports whether a path names a dotfile or a file inside a
// dot-directory, such as the state database.
func hidden(path string) bool {
	for _, part := range strings.Split(path, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
