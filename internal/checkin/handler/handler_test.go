package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"medkiosk/internal/checkin/models"
	offlinemodels "medkiosk/internal/offline/models"
	queuemodels "medkiosk/internal/queue/models"
	id "medkiosk/pkg/domain"
	dErrors "medkiosk/pkg/domain-errors"
	"medkiosk/pkg/platform/sentinel"
	"medkiosk/pkg/testutil"
)

// stubEngine scripts engine outcomes; handler tests cover HTTP concerns
// only, the flow itself is covered by the engine suite.
type stubEngine struct {
	result    *models.CheckInResult
	err       error
	lastReq   *models.CheckInRequest
	snapshot  *queuemodels.Snapshot
	next      *models.CheckInRecord
	cancelled bool
}

func (s *stubEngine) ProcessCheckIn(_ context.Context, req *models.CheckInRequest) (*models.CheckInResult, error) {
	s.lastReq = req
	return s.result, s.err
}

func (s *stubEngine) GetQueueStatus(context.Context) *queuemodels.Snapshot {
	return s.snapshot
}

func (s *stubEngine) ProcessNextPatient(context.Context) *models.CheckInRecord {
	return s.next
}

func (s *stubEngine) CancelCheckIn(context.Context, id.PatientID) bool {
	return s.cancelled
}

type stubSyncer struct {
	report *offlinemodels.SyncReport
	err    error
}

func (s *stubSyncer) Sync(context.Context) (*offlinemodels.SyncReport, error) {
	return s.report, s.err
}

type HandlerSuite struct {
	suite.Suite
	engine   *stubEngine
	syncer   *stubSyncer
	router   http.Handler
	deviceID id.DeviceID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.engine = &stubEngine{snapshot: &queuemodels.Snapshot{}}
	s.syncer = &stubSyncer{report: &offlinemodels.SyncReport{Synced: 2, Duration: 120 * time.Millisecond}}
	s.deviceID = id.NewDeviceID()

	handler := New(s.engine, s.syncer, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	handler.Register(r)
	s.router = r
}

// do issues a request carrying device authentication, as the token
// middleware would for an enrolled kiosk.
func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	req = testutil.WithDeviceID(req, s.deviceID)
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) TestCheckIn_MissingDeviceAuth() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/checkin", map[string]any{
		"selected_patient_id": id.NewPatientID().String(),
	})
	rec := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestCheckIn_InvalidJSON() {
	req := testutil.WithDeviceID(
		testutil.NewRequestWithBody(s.T(), http.MethodPost, "/checkin", "not valid json"),
		s.deviceID,
	)
	rec := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestCheckIn_NoIdentificationInput() {
	rec := s.do(http.MethodPost, "/checkin", map[string]any{
		"questionnaire": map[string]any{"vaccinated": true},
	})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestCheckIn_DeviceIDFromToken() {
	patientID := id.NewPatientID()
	s.engine.result = &models.CheckInResult{Success: true, Record: &models.CheckInRecord{PatientID: patientID}}

	rec := s.do(http.MethodPost, "/checkin", map[string]any{
		"selected_patient_id": patientID.String(),
	})
	s.Equal(http.StatusOK, rec.Code)

	s.Require().NotNil(s.engine.lastReq)
	s.Equal(s.deviceID, s.engine.lastReq.DeviceID)
	s.Require().NotNil(s.engine.lastReq.SelectedPatientID)
	s.Equal(patientID, *s.engine.lastReq.SelectedPatientID)

	var resp CheckInResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.True(resp.Success)
}

func (s *HandlerSuite) TestCheckIn_FailureTravelsInBody() {
	s.engine.result = &models.CheckInResult{
		Failure: &models.Failure{Reason: models.ReasonNoValidAppointment, Detail: "appointment is tomorrow"},
	}

	rec := s.do(http.MethodPost, "/checkin", map[string]any{
		"search_criteria": map[string]any{"name": "Maria Silva"},
	})
	s.Equal(http.StatusOK, rec.Code)

	var resp CheckInResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.False(resp.Success)
	s.Equal(models.ReasonNoValidAppointment, resp.Failure.Reason)
}

func (s *HandlerSuite) TestCheckIn_ConflictMapsTo409() {
	s.engine.err = dErrors.New(dErrors.CodeConflict, "patient already has an active queue entry")

	rec := s.do(http.MethodPost, "/checkin", map[string]any{
		"selected_patient_id": id.NewPatientID().String(),
	})
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *HandlerSuite) TestCancel_BadPatientID() {
	rec := s.do(http.MethodDelete, "/checkin/not-a-uuid", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestCancel_ReportsOutcome() {
	s.engine.cancelled = true
	rec := s.do(http.MethodDelete, "/checkin/"+id.NewPatientID().String(), nil)
	s.Equal(http.StatusOK, rec.Code)

	var resp CancelResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.True(resp.Cancelled)
}

func (s *HandlerSuite) TestNextPatient_EmptyQueue() {
	rec := s.do(http.MethodPost, "/queue/next", nil)
	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *HandlerSuite) TestNextPatient_ReturnsRecord() {
	s.engine.next = &models.CheckInRecord{ID: id.NewCheckInID(), PatientID: id.NewPatientID()}
	rec := s.do(http.MethodPost, "/queue/next", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestQueueStatus() {
	s.engine.snapshot = &queuemodels.Snapshot{Depth: 3}
	rec := s.do(http.MethodGet, "/queue", nil)
	s.Equal(http.StatusOK, rec.Code)

	var snapshot queuemodels.Snapshot
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &snapshot))
	s.Equal(3, snapshot.Depth)
}

func (s *HandlerSuite) TestForceSync_OfflineMapsTo503() {
	s.syncer.err = dErrors.Wrap(sentinel.ErrUnavailable, dErrors.CodeUnavailable, "cannot sync while offline")
	rec := s.do(http.MethodPost, "/sync", nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *HandlerSuite) TestForceSync_ReturnsReport() {
	rec := s.do(http.MethodPost, "/sync", nil)
	s.Equal(http.StatusOK, rec.Code)

	var resp SyncResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(2, resp.Synced)
	s.Equal(int64(120), resp.DurationMs)
}
