package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// PanicHandler writes a response after a panic has been recovered
type PanicHandler func(w http.ResponseWriter, r *http.Request, recovered any)

// Recovery creates middleware that recovers from panics in downstream
// handlers, logs the panic with a stack trace, and delegates the response to
// the given handler
func Recovery(logger *slog.Logger, onPanic PanicHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					logger.Error("panic in handler",
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.Any("panic", recovered),
						slog.String("stack", string(debug.Stack())),
					)
					onPanic(w, r, recovered)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
