// Package health exposes liveness and readiness HTTP handlers.
package health

import "net/http"

// Liveness reports the process is up. It never depends on downstream state;
// Readiness is the handler for that.
func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	}
}
