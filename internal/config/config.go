package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig
	Storage  StorageConfig
	SSO      SSOConfig
	Campus   CampusConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Secure      bool   // Use HTTPS-only cookies
	Environment string // "development", "production", "test"
	Debug       bool
	SessionTTL  time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type EmailConfig struct {
	Provider     string // "resend", "console"
	FromAddress  string
	FromName     string
	BaseURL      string // Application base URL for links
	ResendAPIKey string
}

type StorageConfig struct {
	Bucket         string
	Region         string
	Endpoint       string // S3-compatible endpoint (MinIO, R2); empty for AWS
	PublicBaseURL  string
	AccessKeyID    string // optional; the default AWS credential chain is used when empty
	SecretKey      string
	MaxUploadBytes int64
}

// Enabled reports whether uploads can be stored.
func (s StorageConfig) Enabled() bool {
	return strings.TrimSpace(s.Bucket) != ""
}

type SSOConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURL  string
	IssuerURL    string
	Scopes       []string
}

type CampusConfig struct {
	CheckinTimezone string
	EmailDomain     string // when set, SSO sign-ups must use this domain
}

// Location resolves the check-in timezone, falling back to UTC.
func (c CampusConfig) Location() *time.Location {
	if c.CheckinTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.CheckinTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

var loadDotEnv = godotenv.Load

func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := loadDotEnv(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvInt("SERVER_PORT", 8080),
			Secure:      getEnvBool("SERVER_SECURE", false),
			Environment: getEnv("APP_ENV", "development"),
			Debug:       getEnvBool("DEBUG", false),
			SessionTTL:  getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "campuslink"),
			Password: getEnv("DB_PASSWORD", "campuslink"),
			DBName:   getEnv("DB_NAME", "campuslink"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			Provider:     getEnv("EMAIL_PROVIDER", "console"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "noreply@campuslink.local"),
			FromName:     getEnv("EMAIL_FROM_NAME", "CampusLink"),
			BaseURL:      getEnv("APP_BASE_URL", "http://localhost:8080"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		},
		Storage: StorageConfig{
			Bucket:         getEnv("STORAGE_BUCKET", ""),
			Region:         getEnvNonEmpty("STORAGE_REGION", "us-east-1"),
			Endpoint:       getEnv("STORAGE_ENDPOINT", ""),
			PublicBaseURL:  getEnv("STORAGE_PUBLIC_BASE_URL", ""),
			AccessKeyID:    getEnv("STORAGE_ACCESS_KEY_ID", ""),
			SecretKey:      getEnv("STORAGE_SECRET_ACCESS_KEY", ""),
			MaxUploadBytes: int64(getEnvInt("STORAGE_MAX_UPLOAD_BYTES", 25<<20)),
		},
		SSO: SSOConfig{
			Enabled:      getEnvBool("SSO_ENABLED", false),
			ClientID:     getEnv("SSO_CLIENT_ID", ""),
			ClientSecret: getEnv("SSO_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("SSO_REDIRECT_URL", ""),
			IssuerURL:    getEnvNonEmpty("SSO_ISSUER_URL", "https://accounts.google.com"),
			Scopes:       getEnvList("SSO_SCOPES", []string{"openid", "email", "profile"}),
		},
		Campus: CampusConfig{
			CheckinTimezone: getEnv("CHECKIN_TIMEZONE", "UTC"),
			EmailDomain:     strings.ToLower(strings.TrimSpace(getEnv("CAMPUS_EMAIL_DOMAIN", ""))),
		},
	}

	if cfg.Campus.CheckinTimezone != "" {
		if _, err := time.LoadLocation(cfg.Campus.CheckinTimezone); err != nil {
			return nil, fmt.Errorf("invalid CHECKIN_TIMEZONE %q: %w", cfg.Campus.CheckinTimezone, err)
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvNonEmpty(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		if strings.TrimSpace(value) != "" {
			return value
		}
		return defaultValue
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValues []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return defaultValues
		}
		parts := strings.Split(trimmed, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			item := strings.TrimSpace(part)
			if item != "" {
				out = append(out, item)
			}
		}
		return out
	}
	return defaultValues
}
