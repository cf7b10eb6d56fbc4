package testutil

import (
	"net/http"
	"time"

	id "medkiosk/pkg/domain"
	"medkiosk/pkg/requestcontext"
)

// WithDeviceID adds an authenticated device ID to the request context,
// simulating what the device token middleware does for enrolled kiosks.
func WithDeviceID(req *http.Request, deviceID id.DeviceID) *http.Request {
	return req.WithContext(requestcontext.WithDeviceID(req.Context(), deviceID))
}

// WithRequestID adds a correlation ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithRequestTime pins the request's observed time, so flows asserted in
// tests see a deterministic clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
