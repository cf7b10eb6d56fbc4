// Package cache implements the patient/appointment snapshot cache that
// offline check-in validates against. Entries are written by the background
// refresher while the device is online and expire on TTL so the kiosk never
// trusts arbitrarily stale clinic data.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"medkiosk/internal/clinic"
	identifymodels "medkiosk/internal/identify/models"
	id "medkiosk/pkg/domain"
	"medkiosk/pkg/platform/sentinel"
)

const (
	patientKeyPrefix     = "snapshot:patient:"
	appointmentKeyPrefix = "snapshot:appointments:"
)

// RedisSnapshotCache stores snapshots in the device-local Redis so they
// survive kiosk restarts during an outage.
type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client, ttl: ttl}
}

func (c *RedisSnapshotCache) PutPatient(ctx context.Context, patient *clinic.Patient) error {
	body, err := json.Marshal(patient)
	if err != nil {
		return fmt.Errorf("encode patient snapshot: %w", err)
	}
	return c.client.Set(ctx, patientKeyPrefix+patient.ID.String(), body, c.ttl).Err()
}

func (c *RedisSnapshotCache) GetPatient(ctx context.Context, patientID id.PatientID) (*clinic.Patient, error) {
	body, err := c.client.Get(ctx, patientKeyPrefix+patientID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var patient clinic.Patient
	if err := json.Unmarshal([]byte(body), &patient); err != nil {
		return nil, fmt.Errorf("decode patient snapshot: %w", err)
	}
	return &patient, nil
}

// FindPatients scans cached patients for attribute matches. The snapshot set
// is small (one clinic's active patients), so a SCAN is acceptable here.
func (c *RedisSnapshotCache) FindPatients(ctx context.Context, criteria identifymodels.SearchCriteria) ([]*clinic.Patient, error) {
	var matches []*clinic.Patient
	iter := c.client.Scan(ctx, 0, patientKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		body, err := c.client.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var patient clinic.Patient
		if err := json.Unmarshal([]byte(body), &patient); err != nil {
			continue
		}
		if Matches(&patient, criteria) {
			matches = append(matches, &patient)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (c *RedisSnapshotCache) PutAppointments(ctx context.Context, patientID id.PatientID, appointments []clinic.Appointment) error {
	body, err := json.Marshal(appointments)
	if err != nil {
		return fmt.Errorf("encode appointment snapshot: %w", err)
	}
	return c.client.Set(ctx, appointmentKeyPrefix+patientID.String(), body, c.ttl).Err()
}

func (c *RedisSnapshotCache) GetAppointments(ctx context.Context, patientID id.PatientID) ([]clinic.Appointment, error) {
	body, err := c.client.Get(ctx, appointmentKeyPrefix+patientID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var appointments []clinic.Appointment
	if err := json.Unmarshal([]byte(body), &appointments); err != nil {
		return nil, fmt.Errorf("decode appointment snapshot: %w", err)
	}
	return appointments, nil
}

// Matches reports whether a patient satisfies every non-empty criteria
// field. Name matching is case-insensitive.
func Matches(patient *clinic.Patient, criteria identifymodels.SearchCriteria) bool {
	matched := false
	if criteria.Name != "" {
		if !strings.EqualFold(patient.FullName, criteria.Name) {
			return false
		}
		matched = true
	}
	if criteria.Phone != "" {
		if patient.Phone != criteria.Phone {
			return false
		}
		matched = true
	}
	if criteria.DateOfBirth != "" {
		if patient.BirthDate.Format("2006-01-02") != criteria.DateOfBirth {
			return false
		}
		matched = true
	}
	return matched
}
