package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "medkiosk/pkg/domain"
	"medkiosk/pkg/requestcontext"
)

// DeviceTokenValidator validates kiosk device tokens.
type DeviceTokenValidator interface {
	ValidateToken(tokenString string) (id.DeviceID, error)
}

// RequireDevice rejects requests that do not carry a valid device bearer
// token. The authenticated device ID is placed in the request context.
func RequireDevice(validator DeviceTokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				unauthorized(w)
				return
			}

			deviceID, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized device - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				unauthorized(w)
				return
			}

			ctx := requestcontext.WithDeviceID(r.Context(), deviceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired device token"}`))
}
