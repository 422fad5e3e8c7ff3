package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/groundwatch/groundwatch/internal/api/models"
)

// Recovery converts a handler panic into a 500 problem response and logs
// the stack. http.ErrAbortHandler is re-panicked for net/http to handle.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				id := GetRequestID(r.Context())
				log.Error().
					Str("request_id", id).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("panic", fmt.Sprint(rec)).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")

				p := models.NewInternalError(id, "an unexpected error occurred")
				p.Instance = r.URL.Path
				p.Write(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
