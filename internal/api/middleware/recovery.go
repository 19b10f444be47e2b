package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kiranshivaraju/propchat/internal/api/response"
	"github.com/kiranshivaraju/propchat/internal/metrics"
)

// Recovery turns a handler panic into a 500 envelope. Chat clients also get a
// displayable text so the widget never renders an empty bubble.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}
			metrics.PanicsTotal.Inc()
			slog.Error("panic recovered",
				"error", err,
				"stack", string(debug.Stack()),
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", chimw.GetReqID(r.Context()),
			)
			response.ErrorText(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "An unexpected error occurred", panicText, nil)
		}()
		next.ServeHTTP(w, r)
	})
}

const panicText = "Maaf, terjadi kesalahan. Silakan coba lagi. / Sorry, something went wrong. Please try again."
