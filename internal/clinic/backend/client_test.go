package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medkiosk/internal/clinic"
	identifymodels "medkiosk/internal/identify/models"
	id "medkiosk/pkg/domain"
	dErrors "medkiosk/pkg/domain-errors"
)

func TestClient_GetPatient(t *testing.T) {
	patientID := id.NewPatientID()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/patients/"+patientID.String(), r.URL.Path)
		_ = json.NewEncoder(w).Encode(clinic.Patient{ID: patientID, FullName: "Joana Pereira"})
	}))
	defer srv.Close()

	client, err := New(srv.URL)
	require.NoError(t, err)

	patient, err := client.Get(context.Background(), patientID)
	require.NoError(t, err)
	assert.Equal(t, "Joana Pereira", patient.FullName)
}

func TestClient_GetPatient_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := New(srv.URL)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), id.NewPatientID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestClient_SearchSendsCriteria(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/patients/search", r.URL.Path)
		assert.Equal(t, "Maria Silva", r.URL.Query().Get("name"))
		assert.Equal(t, "1990-04-02", r.URL.Query().Get("date_of_birth"))
		_ = json.NewEncoder(w).Encode([]identifymodels.PatientMatch{
			{PatientID: id.NewPatientID(), FullName: "Maria Silva", Confidence: 0.9},
		})
	}))
	defer srv.Close()

	client, err := New(srv.URL)
	require.NoError(t, err)

	matches, err := client.Search(context.Background(), identifymodels.SearchCriteria{
		Name:        "Maria Silva",
		DateOfBirth: "1990-04-02",
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Maria Silva", matches[0].FullName)
}

func TestClient_ValidateAppointment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/appointments/validate", r.URL.Path)
		var body validateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2026-03-03", body.Date)
		_ = json.NewEncoder(w).Encode(clinic.Validation{Valid: true})
	}))
	defer srv.Close()

	client, err := New(srv.URL)
	require.NoError(t, err)

	validation, err := client.Validate(context.Background(), id.NewPatientID(),
		time.Date(2026, 3, 3, 13, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, validation.Valid)
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	// A closed server makes every request fail at the transport level.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client, err := New(srv.URL)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := client.Get(context.Background(), id.NewPatientID())
		require.Error(t, err)
	}

	assert.True(t, client.breaker.IsOpen())
	assert.False(t, client.Online(context.Background()))
}

func TestClient_OnlineRecoversWhenBackendReturns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	client, err := New(srv.URL)
	require.NoError(t, err)

	// Force the breaker open, then let a fresh health ping close it.
	client.breaker.RecordFailure()
	client.breaker.RecordFailure()
	client.breaker.RecordFailure()
	require.True(t, client.breaker.IsOpen())

	assert.True(t, client.Online(context.Background()))
	assert.False(t, client.breaker.IsOpen())
}
