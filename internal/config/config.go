// Package config provides configuration loading for the notification service.
// All settings are read from notify_-prefixed environment variables once at
// process start; the resulting Settings value is immutable and passed to
// components explicitly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ShortenerProvider selects the URL shortening backend.
type ShortenerProvider string

const (
	ShortenerTinyURL ShortenerProvider = "tinyurl"
	ShortenerClckRu  ShortenerProvider = "clckru"
)

// Settings holds all service configuration.
type Settings struct {
	ProjectName                string
	DefaultNotificationSubject string

	// Postgres
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string

	// Redis
	RedisHost       string
	RedisPort       int
	RedisDB         int
	RedisMessageTTL time.Duration

	// RabbitMQ
	RabbitMQHost     string
	RabbitMQPort     int
	RabbitMQUser     string
	RabbitMQPassword string

	// JWT
	JWTAlgorithm     string
	JWTPublicKeyPath string

	// Background job settings
	JobTimeout    time.Duration
	JobKeepResult time.Duration
	MaxJobs       int

	// Worker cron schedules (5-field cron expressions)
	PeriodicSchedule  string
	ScheduledSchedule string
	RepeaterSchedule  string

	// Batch sizes
	ScheduledBatchSize int
	RepeaterBatchSize  int

	// SMTP
	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string

	// URL shortener
	ShortenerService ShortenerProvider
	ShortenerAPIKey  string
	ShortenerLogin   string

	// Sentry
	SentryDSN string

	// Auth collaborator
	MockAuthService bool
	AuthServiceURL  string

	// HTTP server
	APIPort string
}

// Load reads settings from the environment. Missing variables fall back to
// development defaults; a separate Validate catches unusable combinations.
func Load() (*Settings, error) {
	s := &Settings{
		ProjectName:                getEnv("NOTIFY_PROJECT_NAME", "Notification API"),
		DefaultNotificationSubject: getEnv("NOTIFY_DEFAULT_NOTIFICATION_SUBJECT", "Movie Notification"),

		PostgresUser:     getEnv("NOTIFY_POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("NOTIFY_POSTGRES_PASSWORD", "pass"),
		PostgresHost:     getEnv("NOTIFY_POSTGRES_HOST", "db"),
		PostgresPort:     getEnvInt("NOTIFY_POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("NOTIFY_POSTGRES_DB", "notification_db"),

		RedisHost:       getEnv("NOTIFY_REDIS_HOST", "redis"),
		RedisPort:       getEnvInt("NOTIFY_REDIS_PORT", 6379),
		RedisDB:         getEnvInt("NOTIFY_REDIS_DB", 1),
		RedisMessageTTL: time.Duration(getEnvInt("NOTIFY_REDIS_MESSAGE_TTL", 120)) * time.Second,

		RabbitMQHost:     getEnv("NOTIFY_RABBITMQ_HOST", "rabbitmq"),
		RabbitMQPort:     getEnvInt("NOTIFY_RABBITMQ_PORT", 5672),
		RabbitMQUser:     getEnv("NOTIFY_RABBITMQ_USER", "guest"),
		RabbitMQPassword: getEnv("NOTIFY_RABBITMQ_PASSWORD", "password"),

		JWTAlgorithm:     getEnv("NOTIFY_JWT_ALGORITHM", "RS256"),
		JWTPublicKeyPath: getEnv("NOTIFY_JWT_PUBLIC_KEY_PATH", "/app/keys/example_public_key.pem"),

		JobTimeout:    time.Duration(getEnvInt("NOTIFY_ARQ_JOB_TIMEOUT", 300)) * time.Second,
		JobKeepResult: time.Duration(getEnvInt("NOTIFY_ARQ_JOB_KEEP_RESULT", 3600)) * time.Second,
		MaxJobs:       getEnvInt("NOTIFY_ARQ_MAX_JOBS", 10),

		PeriodicSchedule:  getEnv("NOTIFY_PERIODIC_SCHEDULE", "* * * * *"),
		ScheduledSchedule: getEnv("NOTIFY_SCHEDULED_SCHEDULE", "* * * * *"),
		RepeaterSchedule:  getEnv("NOTIFY_REPEATER_SCHEDULE", "* * * * *"),

		ScheduledBatchSize: getEnvInt("NOTIFY_SCHEDULED_BATCH_SIZE", 100),
		RepeaterBatchSize:  getEnvInt("NOTIFY_REPEATER_BATCH_SIZE", 100),

		SMTPServer:   getEnv("NOTIFY_SMTP_SERVER", "mailhog"),
		SMTPPort:     getEnvInt("NOTIFY_SMTP_PORT", 1025),
		SMTPUser:     getEnv("NOTIFY_SMTP_USER", "test"),
		SMTPPassword: getEnv("NOTIFY_SMTP_PASSWORD", "password"),
		EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "movies_notification@example.com"),

		ShortenerService: ShortenerProvider(getEnv("NOTIFY_SHORTENER_SERVICE", string(ShortenerTinyURL))),
		ShortenerAPIKey:  getEnv("NOTIFY_SHORTENER_API_KEY", ""),
		ShortenerLogin:   getEnv("NOTIFY_SHORTENER_LOGIN", ""),

		SentryDSN: getEnv("NOTIFY_SENTRY_DSN", ""),

		MockAuthService: getEnvBool("NOTIFY_MOCK_AUTH_SERVICE", true),
		AuthServiceURL:  getEnv("NOTIFY_AUTH_SERVICE_URL", "http://auth:8000"),

		APIPort: getEnv("NOTIFY_API_PORT", "8000"),
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Settings) validate() error {
	if s.MaxJobs <= 0 {
		return fmt.Errorf("NOTIFY_ARQ_MAX_JOBS must be positive")
	}
	if s.ScheduledBatchSize <= 0 || s.RepeaterBatchSize <= 0 {
		return fmt.Errorf("batch sizes must be positive")
	}
	switch s.ShortenerService {
	case ShortenerTinyURL, ShortenerClckRu:
	default:
		return fmt.Errorf("unknown shortener service %q", s.ShortenerService)
	}
	return nil
}

// DatabaseDSN returns the Postgres connection string for lib/pq.
func (s *Settings) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		s.PostgresHost, s.PostgresPort, s.PostgresUser, s.PostgresPassword, s.PostgresDB)
}

// RedisAddr returns the host:port pair for the Redis client.
func (s *Settings) RedisAddr() string {
	return fmt.Sprintf("%s:%d", s.RedisHost, s.RedisPort)
}

// RedisURL returns the redis:// URL used by the job scheduler.
func (s *Settings) RedisURL() string {
	return fmt.Sprintf("redis://%s:%d/%d", s.RedisHost, s.RedisPort, s.RedisDB)
}

// RabbitMQURL returns the AMQP connection URL.
func (s *Settings) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		s.RabbitMQUser, s.RabbitMQPassword, s.RabbitMQHost, s.RabbitMQPort)
}

// JWTPublicKey reads the PEM-encoded public key from disk.
func (s *Settings) JWTPublicKey() ([]byte, error) {
	key, err := os.ReadFile(s.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWT public key %s: %w", s.JWTPublicKeyPath, err)
	}
	return key, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
