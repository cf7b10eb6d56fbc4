package handler

import (
	"medkiosk/internal/checkin/models"
	offlinemodels "medkiosk/internal/offline/models"
)

// CheckInResponse is the HTTP response body for POST /checkin. Terminal
// failures travel in the body so the kiosk can render remediation guidance;
// transport-level errors use the shared error envelope instead.
type CheckInResponse struct {
	*models.CheckInResult
}

func FromResult(result *models.CheckInResult) CheckInResponse {
	return CheckInResponse{CheckInResult: result}
}

// CancelResponse is the HTTP response body for DELETE /checkin/{patientID}.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// SyncResponse is the HTTP response body for POST /sync.
type SyncResponse struct {
	Synced     int   `json:"synced"`
	Failed     int   `json:"failed"`
	Dropped    int   `json:"dropped"`
	DurationMs int64 `json:"duration_ms"`
}

func FromSyncReport(report *offlinemodels.SyncReport) SyncResponse {
	return SyncResponse{
		Synced:     report.Synced,
		Failed:     report.Failed,
		Dropped:    report.Dropped,
		DurationMs: report.Duration.Milliseconds(),
	}
}
