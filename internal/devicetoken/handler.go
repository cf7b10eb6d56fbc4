package devicetoken

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	id "medkiosk/pkg/domain"
	dErrors "medkiosk/pkg/domain-errors"
	"medkiosk/pkg/platform/httputil"
	"medkiosk/pkg/requestcontext"
)

const defaultTokenTTL = 30 * 24 * time.Hour

// EnrollRequest is the HTTP request body for POST /devices/enroll.
type EnrollRequest struct {
	Clinic string `json:"clinic" validate:"required"`
	Secret string `json:"secret" validate:"required"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *EnrollRequest) Validate() error {
	r.Clinic = strings.TrimSpace(r.Clinic)
	if r.Clinic == "" {
		return dErrors.New(dErrors.CodeValidation, "clinic is required")
	}
	if r.Secret == "" {
		return dErrors.New(dErrors.CodeValidation, "secret is required")
	}
	return nil
}

// EnrollResponse is the HTTP response body for POST /devices/enroll.
type EnrollResponse struct {
	DeviceID  id.DeviceID `json:"device_id"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Handler exchanges the shared enrollment secret for a device token.
type Handler struct {
	service    *Service
	secretHash string
	tokenTTL   time.Duration
	logger     *slog.Logger
}

func NewHandler(service *Service, secretHash string, logger *slog.Logger) *Handler {
	return &Handler{
		service:    service,
		secretHash: secretHash,
		tokenTTL:   defaultTokenTTL,
		logger:     logger,
	}
}

// Register mounts the enrollment endpoint. It must stay outside the
// device-authenticated route group: enrollment is how a device first gets a
// token.
func (h *Handler) Register(r chi.Router) {
	r.Post("/devices/enroll", h.HandleEnroll)
}

// HandleEnroll handles POST /devices/enroll requests.
func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if h.secretHash == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "device enrollment is not configured"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[EnrollRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := VerifyEnrollmentSecret(req.Secret, h.secretHash); err != nil {
		h.logger.WarnContext(ctx, "device enrollment rejected",
			"request_id", requestID,
			"clinic", req.Clinic,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid enrollment secret"))
		return
	}

	deviceID := id.NewDeviceID()
	token, err := h.service.GenerateDeviceToken(deviceID, req.Clinic, h.tokenTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue device token",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue device token"))
		return
	}

	h.logger.InfoContext(ctx, "device enrolled",
		"request_id", requestID,
		"device_id", deviceID,
		"clinic", req.Clinic,
	)
	httputil.WriteJSON(w, http.StatusCreated, EnrollResponse{
		DeviceID:  deviceID,
		Token:     token,
		ExpiresAt: requestcontext.Now(ctx).Add(h.tokenTTL),
	})
}
