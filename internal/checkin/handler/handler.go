// Package handler exposes the kiosk HTTP API for check-in operations.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"medkiosk/internal/checkin/models"
	offlinemodels "medkiosk/internal/offline/models"
	queuemodels "medkiosk/internal/queue/models"
	id "medkiosk/pkg/domain"
	dErrors "medkiosk/pkg/domain-errors"
	"medkiosk/pkg/platform/httputil"
	"medkiosk/pkg/requestcontext"
)

// Engine defines the check-in operations the kiosk surface needs.
type Engine interface {
	ProcessCheckIn(ctx context.Context, req *models.CheckInRequest) (*models.CheckInResult, error)
	GetQueueStatus(ctx context.Context) *queuemodels.Snapshot
	ProcessNextPatient(ctx context.Context) *models.CheckInRecord
	CancelCheckIn(ctx context.Context, patientID id.PatientID) bool
}

// Syncer triggers an offline reconciliation cycle on demand.
type Syncer interface {
	Sync(ctx context.Context) (*offlinemodels.SyncReport, error)
}

// Handler wires kiosk endpoints to the check-in engine.
type Handler struct {
	engine Engine
	syncer Syncer
	logger *slog.Logger
}

// New constructs a check-in handler with its dependencies.
func New(engine Engine, syncer Syncer, logger *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		syncer: syncer,
		logger: logger,
	}
}

// Register mounts kiosk endpoints on the router. The router is expected to
// already carry device authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/checkin", h.HandleCheckIn)
	r.Delete("/checkin/{patientID}", h.HandleCancel)
	r.Get("/queue", h.HandleQueueStatus)
	r.Post("/queue/next", h.HandleNextPatient)
	r.Post("/sync", h.HandleForceSync)
}

// HandleCheckIn handles POST /checkin requests.
func (h *Handler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	deviceID := requestcontext.DeviceID(ctx)
	if deviceID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "device authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CheckInRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.engine.ProcessCheckIn(ctx, req.ToDomain(deviceID))
	if err != nil {
		h.logger.ErrorContext(ctx, "check-in failed",
			"request_id", requestID,
			"device_id", deviceID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "check-in processed",
		"request_id", requestID,
		"device_id", deviceID,
		"success", result.Success,
		"offline", result.Offline,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// HandleCancel handles DELETE /checkin/{patientID} requests.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patientID, err := id.ParsePatientID(chi.URLParam(r, "patientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cancelled := h.engine.CancelCheckIn(ctx, patientID)
	if cancelled {
		h.logger.InfoContext(ctx, "check-in cancelled",
			"request_id", requestcontext.RequestID(ctx),
			"patient_id", patientID,
		)
	}
	httputil.WriteJSON(w, http.StatusOK, CancelResponse{Cancelled: cancelled})
}

// HandleQueueStatus handles GET /queue requests.
func (h *Handler) HandleQueueStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := h.engine.GetQueueStatus(r.Context())
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

// HandleNextPatient handles POST /queue/next requests. An empty queue
// returns 204.
func (h *Handler) HandleNextPatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	record := h.engine.ProcessNextPatient(ctx)
	if record == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.logger.InfoContext(ctx, "patient called for service",
		"request_id", requestcontext.RequestID(ctx),
		"patient_id", record.PatientID,
		"check_in_id", record.ID,
	)
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleForceSync handles POST /sync requests. Sync while offline maps to
// 503 through the shared error envelope.
func (h *Handler) HandleForceSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.syncer.Sync(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "forced sync finished",
		"request_id", requestcontext.RequestID(ctx),
		"synced", report.Synced,
		"failed", report.Failed,
		"dropped", report.Dropped,
	)
	httputil.WriteJSON(w, http.StatusOK, FromSyncReport(report))
}
