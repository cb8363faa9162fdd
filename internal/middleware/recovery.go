package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"bytepad-backend/pkg/api"
)

// Recovery converts a handler panic into a 500 envelope.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return RecoveryWithHandler(logger, DefaultPanicHandler)
}

// RecoveryWithHandler allows custom handling of panics.
func RecoveryWithHandler(logger *zap.Logger, handler func(w http.ResponseWriter, r *http.Request, err any)) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("Panic in HTTP handler",
						zap.String("request_id", GetRequestIDFromRequest(r)),
						zap.String("path", r.URL.Path),
						zap.Any("panic", err),
						zap.String("stack", string(debug.Stack())),
					)
					handler(w, r, err)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// DefaultPanicHandler writes a 500 envelope unless a response was started.
func DefaultPanicHandler(w http.ResponseWriter, r *http.Request, err any) {
	if w.Header().Get("Content-Type") == "" {
		api.Error(w, http.StatusInternalServerError,
			fmt.Sprintf("Internal server error - Request ID: %s", GetRequestIDFromRequest(r)))
	}
}
