package service

import (
	"context"
	"log/slog"
	"time"

	"medkiosk/internal/clinic"
	"medkiosk/internal/offline/ports"
)

// Refresher keeps the snapshot cache primed while the device is online so
// offline check-in has current patients and appointments to validate
// against.
type Refresher struct {
	source   ports.SnapshotSource
	cache    ports.SnapshotCache
	probe    clinic.ConnectivityProbe
	interval time.Duration
	logger   *slog.Logger
}

func NewRefresher(source ports.SnapshotSource, cache ports.SnapshotCache, probe clinic.ConnectivityProbe, interval time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		source:   source,
		cache:    cache,
		probe:    probe,
		interval: interval,
		logger:   logger,
	}
}

// Run refreshes the cache once immediately, then on every tick, until ctx is
// cancelled. Offline ticks are skipped; the cache keeps serving whatever was
// last primed until its TTL runs out.
func (r *Refresher) Run(ctx context.Context) {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	if !r.probe.Online(ctx) {
		return
	}

	entries, err := r.source.DaySchedule(ctx, time.Now())
	if err != nil {
		r.logger.WarnContext(ctx, "snapshot refresh failed", "error", err)
		return
	}

	var patients, appointments int
	for _, entry := range entries {
		if entry.Patient == nil {
			continue
		}
		if err := r.cache.PutPatient(ctx, entry.Patient); err != nil {
			r.logger.WarnContext(ctx, "failed to cache patient snapshot",
				"patient_id", entry.Patient.ID,
				"error", err,
			)
			continue
		}
		patients++
		if len(entry.Appointments) > 0 {
			if err := r.cache.PutAppointments(ctx, entry.Patient.ID, entry.Appointments); err != nil {
				r.logger.WarnContext(ctx, "failed to cache appointment snapshot",
					"patient_id", entry.Patient.ID,
					"error", err,
				)
				continue
			}
			appointments += len(entry.Appointments)
		}
	}

	r.logger.DebugContext(ctx, "snapshot cache refreshed",
		"patients", patients,
		"appointments", appointments,
	)
}
