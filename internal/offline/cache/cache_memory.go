package cache

import (
	"context"
	"sync"
	"time"

	"medkiosk/internal/clinic"
	identifymodels "medkiosk/internal/identify/models"
	id "medkiosk/pkg/domain"
	"medkiosk/pkg/platform/sentinel"
)

type patientEntry struct {
	patient   clinic.Patient
	expiresAt time.Time
}

type appointmentEntry struct {
	appointments []clinic.Appointment
	expiresAt    time.Time
}

// MemorySnapshotCache is the in-process SnapshotCache used in unit tests and
// when no local Redis is configured. Same TTL semantics, no durability.
type MemorySnapshotCache struct {
	mu           sync.RWMutex
	ttl          time.Duration
	patients     map[id.PatientID]patientEntry
	appointments map[id.PatientID]appointmentEntry
	now          func() time.Time
}

func NewMemory(ttl time.Duration) *MemorySnapshotCache {
	return &MemorySnapshotCache{
		ttl:          ttl,
		patients:     make(map[id.PatientID]patientEntry),
		appointments: make(map[id.PatientID]appointmentEntry),
		now:          time.Now,
	}
}

func (c *MemorySnapshotCache) PutPatient(_ context.Context, patient *clinic.Patient) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patients[patient.ID] = patientEntry{patient: *patient, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *MemorySnapshotCache) GetPatient(_ context.Context, patientID id.PatientID) (*clinic.Patient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, exists := c.patients[patientID]
	if !exists || c.now().After(entry.expiresAt) {
		return nil, sentinel.ErrNotFound
	}
	patient := entry.patient
	return &patient, nil
}

func (c *MemorySnapshotCache) FindPatients(_ context.Context, criteria identifymodels.SearchCriteria) ([]*clinic.Patient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var matches []*clinic.Patient
	for _, entry := range c.patients {
		if c.now().After(entry.expiresAt) {
			continue
		}
		patient := entry.patient
		if Matches(&patient, criteria) {
			matches = append(matches, &patient)
		}
	}
	return matches, nil
}

func (c *MemorySnapshotCache) PutAppointments(_ context.Context, patientID id.PatientID, appointments []clinic.Appointment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appointments[patientID] = appointmentEntry{
		appointments: append([]clinic.Appointment(nil), appointments...),
		expiresAt:    c.now().Add(c.ttl),
	}
	return nil
}

func (c *MemorySnapshotCache) GetAppointments(_ context.Context, patientID id.PatientID) ([]clinic.Appointment, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, exists := c.appointments[patientID]
	if !exists || c.now().After(entry.expiresAt) {
		return nil, sentinel.ErrNotFound
	}
	return append([]clinic.Appointment(nil), entry.appointments...), nil
}
