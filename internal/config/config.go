package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Auth           AuthConfig
	RateLimit      RateLimitConfig
	CORS           CORSConfig
	Logging        LoggingConfig
	Tracing        TracingConfig
	Email          EmailConfig
	Messaging      MessagingConfig
	Pagination     PaginationConfig
	AdminBootstrap AdminBootstrapConfig
	Environment    string
}

type ServerConfig struct {
	Host    string
	Port    int
	BaseURL string
	// FrontendURL is where links in outgoing emails point.
	FrontendURL string
}

type DatabaseConfig struct {
	URI          string
	Name         string
	Timeout      time.Duration
	MaxPoolSize  uint64
	Transactions bool
}

type AuthConfig struct {
	JWTSecret string
	JWTExpiry time.Duration
	JWTIssuer string
}

type RateLimitConfig struct {
	PublicPerMinute        int
	AuthenticatedPerMinute int
	AdminPerMinute         int
	LoginPer15Minutes      int
	TrustedProxyCIDRs      []string
}

type CORSConfig struct {
	AllowAllOrigins bool
	AllowedOrigins  []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type TracingConfig struct {
	Enabled      bool
	ServiceName  string
	Exporter     string
	OTLPEndpoint string
	SampleRate   float64
}

type EmailConfig struct {
	Enabled      bool
	From         string
	ResendAPIKey string
}

type MessagingConfig struct {
	AMQPURL  string
	Exchange string
}

type PaginationConfig struct {
	DefaultPerPage int64
	MaxPerPage     int64
}

type AdminBootstrapConfig struct {
	Name     string
	Email    string
	Password string
}

// IsProduction reports whether the process runs with production safeguards.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads configuration from the environment. Variables from a .env file
// in the working directory are applied first without overriding the real
// environment.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an optional YAML file whose keys are environment
// variable names. Precedence is defaults, then the file, then the environment.
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	src := source{}
	if path != "" {
		file, err := readYAML(path)
		if err != nil {
			return Config{}, err
		}
		src.file = file
	}

	environment := src.getEnv("ENVIRONMENT", "development")
	corsOrigins := splitList(src.getEnv("CORS_ALLOWED_ORIGINS", ""))

	cfg := Config{
		Server: ServerConfig{
			Host:        src.getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        src.getEnvInt("SERVER_PORT", 8080),
			BaseURL:     src.getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			FrontendURL: src.getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URI:          src.getEnv("MONGODB_URI", ""),
			Name:         src.getEnv("MONGODB_DATABASE", "jobhouse"),
			Timeout:      time.Duration(src.getEnvInt("MONGODB_TIMEOUT_SECONDS", 10)) * time.Second,
			MaxPoolSize:  uint64(src.getEnvInt("MONGODB_MAX_POOL_SIZE", 50)),
			Transactions: src.getEnvBool("MONGODB_TRANSACTIONS", true),
		},
		Auth: AuthConfig{
			JWTSecret: src.getEnv("JWT_SECRET", ""),
			JWTExpiry: time.Duration(src.getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
			JWTIssuer: src.getEnv("JWT_ISSUER", "jobhouse"),
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute:        src.getEnvInt("RATE_LIMIT_PUBLIC", 60),
			AuthenticatedPerMinute: src.getEnvInt("RATE_LIMIT_AUTHENTICATED", 300),
			AdminPerMinute:         src.getEnvInt("RATE_LIMIT_ADMIN", 0),
			LoginPer15Minutes:      src.getEnvInt("RATE_LIMIT_LOGIN", 5),
			TrustedProxyCIDRs:      splitList(src.getEnv("TRUSTED_PROXY_CIDRS", "")),
		},
		CORS: CORSConfig{
			AllowAllOrigins: !strings.EqualFold(environment, "production") && len(corsOrigins) == 0,
			AllowedOrigins:  corsOrigins,
		},
		Logging: LoggingConfig{
			Level:  src.getEnv("LOG_LEVEL", "info"),
			Format: src.getEnv("LOG_FORMAT", "json"),
		},
		Tracing: TracingConfig{
			Enabled:      src.getEnvBool("TRACING_ENABLED", false),
			ServiceName:  src.getEnv("TRACING_SERVICE_NAME", "jobhouse-server"),
			Exporter:     src.getEnv("TRACING_EXPORTER", "stdout"),
			OTLPEndpoint: src.getEnv("TRACING_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   src.getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		Email: EmailConfig{
			Enabled:      src.getEnvBool("EMAIL_ENABLED", false),
			From:         src.getEnv("EMAIL_FROM", "Job House <no-reply@jobhouse.local>"),
			ResendAPIKey: src.getEnv("RESEND_API_KEY", ""),
		},
		Messaging: MessagingConfig{
			AMQPURL:  src.getEnv("AMQP_URL", ""),
			Exchange: src.getEnv("AMQP_EXCHANGE", "jobhouse.notices"),
		},
		Pagination: PaginationConfig{
			DefaultPerPage: int64(src.getEnvInt("PAGINATION_DEFAULT_PER_PAGE", 8)),
			MaxPerPage:     int64(src.getEnvInt("PAGINATION_MAX_PER_PAGE", 100)),
		},
		AdminBootstrap: AdminBootstrapConfig{
			Name:     src.getEnv("ADMIN_NAME", "Administrator"),
			Email:    src.getEnv("ADMIN_EMAIL", ""),
			Password: src.getEnv("ADMIN_PASSWORD", ""),
		},
		Environment: environment,
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Database.URI == "" {
		return fmt.Errorf("MONGODB_URI is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() {
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if len(c.CORS.AllowedOrigins) == 0 {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS is required in production")
		}
	}
	if c.Email.Enabled && c.Email.ResendAPIKey == "" {
		return fmt.Errorf("RESEND_API_KEY is required when EMAIL_ENABLED is true")
	}
	if c.Pagination.DefaultPerPage < 1 || c.Pagination.MaxPerPage < c.Pagination.DefaultPerPage {
		return fmt.Errorf("PAGINATION_MAX_PER_PAGE must be at least PAGINATION_DEFAULT_PER_PAGE (>= 1)")
	}
	return nil
}

func readYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			out[strings.ToUpper(key)] = strings.Join(parts, ",")
		default:
			out[strings.ToUpper(key)] = fmt.Sprint(v)
		}
	}
	return out, nil
}

// source resolves a key from the environment, then the config file.
type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return s.file[key]
}

func (s source) getEnv(key, fallback string) string {
	if value := s.lookup(key); value != "" {
		return value
	}
	return fallback
}

func (s source) getEnvInt(key string, fallback int) int {
	value := s.lookup(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) getEnvBool(key string, fallback bool) bool {
	value := s.lookup(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) getEnvFloat(key string, fallback float64) float64 {
	value := s.lookup(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
