package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrAdminSecretMissing is returned when no admin credential is configured.
// The server refuses to serve authenticated routes without one.
var ErrAdminSecretMissing = errors.New("ADMIN_PASSWORD or ADMIN_PASSWORD_BCRYPT must be set")

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Auth    AuthConfig
	Catalog CatalogConfig
	Backup  BackupConfig
	Media   MediaConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
	// Production toggles the Secure attribute on session cookies.
	Production bool
	// AllowedOrigins are the CORS origins permitted to call the API.
	AllowedOrigins []string
}

// AuthConfig holds admin authentication and session configuration
type AuthConfig struct {
	// AdminPassword is the plaintext admin secret. Mutually exclusive with
	// AdminPasswordBcrypt; the bcrypt form wins when both are set.
	AdminPassword string
	// AdminPasswordBcrypt is a bcrypt hash of the admin secret.
	AdminPasswordBcrypt string
	SessionDuration     time.Duration
	RefreshThreshold    time.Duration
	MaxLoginAttempts    int
	LockoutDuration     time.Duration
}

// CatalogConfig holds flat-file catalog store configuration
type CatalogConfig struct {
	// FilePath is the JSON document holding the full catalog.
	FilePath string
}

// BackupConfig holds backup snapshot configuration
type BackupConfig struct {
	// Dir is the directory holding timestamped snapshots.
	Dir string
	// Retention is the number of most recent snapshots to keep.
	Retention int
	// S3 mirroring is optional; empty bucket disables it.
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// MediaConfig holds third-party image host configuration.
// All fields are optional: a missing cloud name degrades uploads to a
// "not configured" error and deletes to a no-op.
type MediaConfig struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string
	// Timeout bounds outbound calls to the host.
	Timeout time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "8080"),
			Production:     getBoolEnv("PRODUCTION", false),
			AllowedOrigins: getSliceEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Auth: AuthConfig{
			AdminPassword:       os.Getenv("ADMIN_PASSWORD"),
			AdminPasswordBcrypt: os.Getenv("ADMIN_PASSWORD_BCRYPT"),
			SessionDuration:     getDurationEnv("SESSION_DURATION", 2*time.Hour),
			RefreshThreshold:    getDurationEnv("SESSION_REFRESH_THRESHOLD", 30*time.Minute),
			MaxLoginAttempts:    getIntEnv("MAX_LOGIN_ATTEMPTS", 5),
			LockoutDuration:     getDurationEnv("LOCKOUT_DURATION", 15*time.Minute),
		},
		Catalog: CatalogConfig{
			FilePath: getEnv("CATALOG_FILE", "data/marbles.json"),
		},
		Backup: BackupConfig{
			Dir:         getEnv("BACKUP_DIR", "data/backups"),
			Retention:   getIntEnv("BACKUP_RETENTION", 10),
			S3Bucket:    os.Getenv("BACKUP_S3_BUCKET"),
			S3Region:    getEnv("BACKUP_S3_REGION", "us-east-1"),
			S3Endpoint:  os.Getenv("BACKUP_S3_ENDPOINT"),
			S3AccessKey: os.Getenv("BACKUP_S3_ACCESS_KEY"),
			S3SecretKey: os.Getenv("BACKUP_S3_SECRET_KEY"),
		},
		Media: MediaConfig{
			CloudName:    os.Getenv("MEDIA_CLOUD_NAME"),
			APIKey:       os.Getenv("MEDIA_API_KEY"),
			APISecret:    os.Getenv("MEDIA_API_SECRET"),
			UploadPreset: os.Getenv("MEDIA_UPLOAD_PRESET"),
			Timeout:      getDurationEnv("MEDIA_TIMEOUT", 30*time.Second),
		},
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.AdminPassword == "" && c.Auth.AdminPasswordBcrypt == "" {
		return ErrAdminSecretMissing
	}
	return nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv returns a duration from an environment variable or default.
// Accepts Go duration syntax ("30m") or a bare number of minutes.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}
	return defaultValue
}

// getIntEnv returns an int from an environment variable or default
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getSliceEnv returns a comma-separated list from an environment variable
// or default
func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getBoolEnv returns a bool from an environment variable or default
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
