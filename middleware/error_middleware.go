package middleware

import (
	"encoding/json"
	"net/http"

	"attraction-map/utils/errors"

	"go.uber.org/zap"
)

// RecoveryMiddleware turns a panic in a handler into a 500 JSON response.
func RecoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Stack("stack"))
					WriteError(w, errors.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// errorLogger is used by WriteError for 5xx responses.
var errorLogger = zap.NewNop()

// SetErrorLogger sets the logger WriteError reports server errors to.
func SetErrorLogger(logger *zap.Logger) {
	if logger != nil {
		errorLogger = logger
	}
}

// WriteError writes err as a JSON APIError. Errors that are not APIErrors become 500s.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := errors.Wrap(err, "UNKNOWN_ERROR", "Unexpected error", errors.ErrInternal.Status)
	if apiErr.Status >= 500 {
		errorLogger.Error("server error", zap.String("error", apiErr.Error()), zap.String("details", apiErr.Details))
	}

	WriteJSON(w, apiErr.Status, apiErr)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
