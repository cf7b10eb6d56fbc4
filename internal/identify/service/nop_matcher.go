package service

import (
	"context"

	"medkiosk/internal/identify/models"
	"medkiosk/pkg/platform/sentinel"
)

// NopMatcher is the strategy installed when no biometric capability is
// deployed at the kiosk. Every match reports the capability as unavailable,
// which routes the attempt through the attribute-search fallback.
type NopMatcher struct{}

func (NopMatcher) Match(ctx context.Context, sample models.BiometricSample) ([]models.PatientMatch, error) {
	return nil, sentinel.ErrUnavailable
}
