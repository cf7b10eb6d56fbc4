// Package service resolves a walk-in to a known patient. Identification is a
// pure lookup: no side effects, and failures of the matching capability
// degrade to the attribute-search fallback rather than crashing the flow.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"medkiosk/internal/identify/config"
	"medkiosk/internal/identify/facecache"
	"medkiosk/internal/identify/models"
	"medkiosk/internal/identify/ports"
	dErrors "medkiosk/pkg/domain-errors"
	"medkiosk/pkg/requestcontext"
)

// Service implements the identification contract. The biometric strategy is
// fixed at construction: pass a vendor Matcher where the capability is
// deployed, or NopMatcher where it is not.
type Service struct {
	matcher   ports.Matcher
	directory ports.PatientDirectory
	cache     *facecache.Cache
	cfg       config.Config
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(matcher ports.Matcher, directory ports.PatientDirectory, cfg config.Config, opts ...Option) (*Service, error) {
	if matcher == nil {
		return nil, fmt.Errorf("matcher is required (use NopMatcher when no capability is deployed)")
	}
	if directory == nil {
		return nil, fmt.Errorf("patient directory is required")
	}
	svc := &Service{
		matcher:   matcher,
		directory: directory,
		cache:     facecache.New(cfg.CacheSize, cfg.CacheTTL),
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Identify resolves a patient from a biometric sample and/or search criteria.
//
// Resolution order: biometric match first when a sample is supplied; a top
// match at or above the confidence threshold is accepted as unique. Anything
// else falls back to attribute search. More than one search candidate is
// ambiguous and must be resolved by explicit operator selection - the service
// never guesses.
func (s *Service) Identify(ctx context.Context, sample *models.BiometricSample, criteria *models.SearchCriteria) (*models.Outcome, error) {
	if sample == nil && criteria == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "a biometric sample or search criteria is required")
	}

	if sample != nil {
		if outcome := s.identifyBiometric(ctx, *sample); outcome != nil {
			return outcome, nil
		}
	}

	if criteria == nil {
		return models.NotFound(), nil
	}
	return s.identifyBySearch(ctx, *criteria)
}

// identifyBiometric returns a non-nil outcome only when the biometric path
// produced a confident unique match; nil routes the caller to the fallback.
func (s *Service) identifyBiometric(ctx context.Context, sample models.BiometricSample) *models.Outcome {
	now := requestcontext.Now(ctx)
	key := facecache.Key(sample)

	matches, cached := s.cache.Get(key, now)
	if !cached {
		var err error
		matches, err = s.matcher.Match(ctx, sample)
		if err != nil {
			// Capability failures surface as a logged degradation, never a crash.
			s.logger.ErrorContext(ctx, "biometric match failed, falling back to attribute search",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			return nil
		}
		s.cache.Put(key, matches, now)
	}

	if len(matches) == 0 {
		return nil
	}

	top := matches[0]
	if top.Confidence < s.cfg.ConfidenceThreshold {
		s.logger.DebugContext(ctx, "biometric match below confidence threshold",
			"confidence", top.Confidence,
			"threshold", s.cfg.ConfidenceThreshold,
		)
		return nil
	}
	return models.Unique(top)
}

func (s *Service) identifyBySearch(ctx context.Context, criteria models.SearchCriteria) (*models.Outcome, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	candidates, err := s.directory.Search(ctx, criteria)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "patient search failed")
	}

	switch len(candidates) {
	case 0:
		return models.NotFound(), nil
	case 1:
		return models.Unique(candidates[0]), nil
	default:
		return models.Ambiguous(candidates), nil
	}
}
