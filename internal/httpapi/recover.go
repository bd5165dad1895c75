package httpapi

import (
	"net/http"
	"runtime/debug"
)

// withRecover converts handler panics into 500 responses. If the
// panic hit mid-stream the error write is a no-op on the committed
// response, which is the best that can be done at that point.
func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.Logger.Error("handler panic",
					"panic", v, "path", r.URL.Path, "stack", string(debug.Stack()))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
