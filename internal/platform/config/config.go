package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. Module tunables (priority
// weights, screening thresholds, retry budgets) live in the owning module's
// config struct; only infrastructure wiring belongs here.
type Server struct {
	Addr string

	// JWTSigningKey signs kiosk device tokens.
	JWTSigningKey string
	// EnrollmentSecretHash is the bcrypt hash devices must match to enroll.
	// Empty disables the enrollment endpoint.
	EnrollmentSecretHash string

	Clinic   ClinicConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
}

// ClinicConfig points the kiosk at the clinic backend.
type ClinicConfig struct {
	BaseURL string
	// SnapshotRefreshInterval controls how often the offline snapshot cache
	// is primed from the backend while online.
	SnapshotRefreshInterval time.Duration
}

// RedisConfig configures the device-local Redis used for offline durability.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the clinic-side records database.
type PostgresConfig struct {
	DSN string
}

// KafkaConfig configures the analytics event stream. Empty brokers disable
// publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("MEDKIOSK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	clinicBaseURL := os.Getenv("CLINIC_BASE_URL")
	if clinicBaseURL == "" {
		// An unreachable backend is a supported state: the probe reports
		// offline and the kiosk serves check-ins from the snapshot cache.
		clinicBaseURL = "http://localhost:9090"
	}

	topic := os.Getenv("KAFKA_ANALYTICS_TOPIC")
	if topic == "" {
		topic = "medkiosk.checkin.events"
	}

	return Server{
		Addr:                 addr,
		JWTSigningKey:        jwtSigningKey,
		EnrollmentSecretHash: os.Getenv("DEVICE_ENROLLMENT_SECRET_HASH"),
		Clinic: ClinicConfig{
			BaseURL:                 clinicBaseURL,
			SnapshotRefreshInterval: envDuration("SNAPSHOT_REFRESH_INTERVAL", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("POSTGRES_DSN"),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   topic,
		},
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
	}
	return fallback
}

func splitNonEmpty(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
