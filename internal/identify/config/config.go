package config

import "time"

// Config parameterizes patient identification.
type Config struct {
	// ConfidenceThreshold is the minimum similarity score required to accept
	// a biometric match as unique.
	ConfidenceThreshold float64

	// CacheSize bounds the biometric result cache.
	CacheSize int
	// CacheTTL bounds how long a cached biometric result stays valid.
	CacheTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.80,
		CacheSize:           256,
		CacheTTL:            2 * time.Minute,
	}
}
