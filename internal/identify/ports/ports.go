// Package ports defines the interfaces the identification service consumes.
// Interfaces are placed here when consumed by multiple services to avoid duplication.
package ports

import (
	"context"

	"medkiosk/internal/identify/models"
)

// Matcher is the abstract biometric-matching capability. Implementations
// return candidates ranked by descending confidence; the service decides
// acceptance against its configured threshold. The matching algorithm itself
// is a vendor concern and is never implemented here.
type Matcher interface {
	Match(ctx context.Context, sample models.BiometricSample) ([]models.PatientMatch, error)
}

// PatientDirectory searches the clinic's patient registry by attributes.
type PatientDirectory interface {
	Search(ctx context.Context, criteria models.SearchCriteria) ([]models.PatientMatch, error)
}
