// Package backend is the HTTP adapter for the clinic's central system. It
// implements the clinic ports plus the identify directory and the offline
// snapshot source against the backend's REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	checkinmodels "medkiosk/internal/checkin/models"
	"medkiosk/internal/clinic"
	identifymodels "medkiosk/internal/identify/models"
	offlineports "medkiosk/internal/offline/ports"
	id "medkiosk/pkg/domain"
	dErrors "medkiosk/pkg/domain-errors"
	"medkiosk/pkg/platform/circuit"
	"medkiosk/pkg/platform/sentinel"
)

const (
	defaultTimeout = 10 * time.Second

	// probeTTL bounds how often Online hits the backend health endpoint.
	// Flows in between reuse the cached verdict.
	probeTTL = 5 * time.Second
)

// Client talks to the clinic backend. The zero value is not usable; use New.
// A circuit breaker tracks request outcomes: after a run of consecutive
// failures the probe reports offline immediately, without waiting for
// another request to time out.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	breaker *circuit.Breaker

	probeMu      sync.Mutex
	probeOnline  bool
	probeChecked time.Time
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.http = httpClient }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("clinic backend base URL is required")
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  slog.Default(),
		breaker: circuit.New("clinic-backend", circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(1)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get implements clinic.PatientService.
func (c *Client) Get(ctx context.Context, patientID id.PatientID) (*clinic.Patient, error) {
	var patient clinic.Patient
	err := c.getJSON(ctx, "/api/v1/patients/"+patientID.String(), nil, &patient)
	if err != nil {
		return nil, err
	}
	return &patient, nil
}

// Search implements the identify module's PatientDirectory port.
func (c *Client) Search(ctx context.Context, criteria identifymodels.SearchCriteria) ([]identifymodels.PatientMatch, error) {
	query := url.Values{}
	if criteria.Name != "" {
		query.Set("name", criteria.Name)
	}
	if criteria.Phone != "" {
		query.Set("phone", criteria.Phone)
	}
	if criteria.DateOfBirth != "" {
		query.Set("date_of_birth", criteria.DateOfBirth)
	}

	var matches []identifymodels.PatientMatch
	if err := c.getJSON(ctx, "/api/v1/patients/search", query, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

type validateRequest struct {
	PatientID id.PatientID `json:"patient_id"`
	Date      string       `json:"date"`
}

// Validate implements clinic.AppointmentService.
func (c *Client) Validate(ctx context.Context, patientID id.PatientID, date time.Time) (*clinic.Validation, error) {
	body := validateRequest{PatientID: patientID, Date: date.Format("2006-01-02")}

	var validation clinic.Validation
	if err := c.postJSON(ctx, "/api/v1/appointments/validate", body, &validation); err != nil {
		return nil, err
	}
	return &validation, nil
}

// DaySchedule implements the offline module's SnapshotSource port. It
// returns every patient with an appointment on the given date, with their
// appointments, so the snapshot cache can be primed while online.
func (c *Client) DaySchedule(ctx context.Context, date time.Time) ([]offlineports.ScheduleEntry, error) {
	query := url.Values{}
	query.Set("date", date.Format("2006-01-02"))

	var entries []offlineports.ScheduleEntry
	if err := c.getJSON(ctx, "/api/v1/schedule", query, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// NotifyStaff implements half of clinic.NotificationService.
func (c *Client) NotifyStaff(ctx context.Context, record *checkinmodels.CheckInRecord) error {
	return c.postJSON(ctx, "/api/v1/notifications/staff", record, nil)
}

type patientNotification struct {
	PatientID id.PatientID `json:"patient_id"`
	Message   string       `json:"message"`
}

// NotifyPatient implements the other half of clinic.NotificationService.
func (c *Client) NotifyPatient(ctx context.Context, patientID id.PatientID, message string) error {
	return c.postJSON(ctx, "/api/v1/notifications/patient", patientNotification{
		PatientID: patientID,
		Message:   message,
	}, nil)
}

// Online implements clinic.ConnectivityProbe. The verdict comes from the
// health endpoint, cached for probeTTL so a burst of check-ins does not
// hammer it. An open breaker overrides a cached online verdict; a fresh
// successful ping closes it again.
func (c *Client) Online(ctx context.Context) bool {
	c.probeMu.Lock()
	defer c.probeMu.Unlock()

	if time.Since(c.probeChecked) < probeTTL {
		return c.probeOnline && !c.breaker.IsOpen()
	}

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	online := err == nil && resp.StatusCode < http.StatusInternalServerError
	if resp != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	if online {
		c.breaker.RecordSuccess()
	} else {
		c.breaker.RecordFailure()
	}

	c.probeOnline = online
	c.probeChecked = time.Now()
	return online
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.Warn("clinic backend circuit opened", "path", req.URL.Path, "error", err)
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "clinic backend unreachable")
	}
	defer resp.Body.Close()

	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("clinic backend circuit closed")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "not found in clinic backend")
	case resp.StatusCode >= http.StatusBadRequest:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("clinic backend error response",
			"status", resp.StatusCode,
			"path", req.URL.Path,
			"body", string(payload),
		)
		return dErrors.Newf(dErrors.CodeUnavailable, "clinic backend returned status %d", resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
