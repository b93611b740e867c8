package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Import   ImportConfig
	Postal   PostalConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// ImportConfig holds property-import job configuration. LockFile is the
// sentinel that rejects concurrent runs; AuditDir receives the per-run
// conflict-resolution audit logs.
type ImportConfig struct {
	LockFile string
	AuditDir string
}

// PostalConfig holds the external postal-lookup collaborator settings.
// City and State scope every lookup to the municipality.
type PostalConfig struct {
	BaseURL string
	City    string
	State   string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "fiscal")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("IMPORT_LOCK_FILE", "/tmp/fiscal-property-import.lock")
	v.SetDefault("IMPORT_AUDIT_DIR", "/tmp/fiscal-import-audit")
	v.SetDefault("POSTAL_BASE_URL", "https://buscacepinter.correios.com.br/app/localidade_logradouro/carrega-localidade-logradouro.php")
	v.SetDefault("POSTAL_CITY", "Itajai")
	v.SetDefault("POSTAL_STATE", "SC")

	// Bind environment variables
	v.AutomaticEnv()

	// Build configuration
	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Import: ImportConfig{
			LockFile: v.GetString("IMPORT_LOCK_FILE"),
			AuditDir: v.GetString("IMPORT_AUDIT_DIR"),
		},
		Postal: PostalConfig{
			BaseURL: v.GetString("POSTAL_BASE_URL"),
			City:    v.GetString("POSTAL_CITY"),
			State:   v.GetString("POSTAL_STATE"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	// Validate CORS config
	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	// Validate import config
	if c.Import.LockFile == "" {
		return fmt.Errorf("IMPORT_LOCK_FILE is required")
	}
	if c.Import.AuditDir == "" {
		return fmt.Errorf("IMPORT_AUDIT_DIR is required")
	}

	// Validate postal config
	if c.Postal.BaseURL == "" {
		return fmt.Errorf("POSTAL_BASE_URL is required")
	}
	if c.Postal.City == "" {
		return fmt.Errorf("POSTAL_CITY is required")
	}
	if c.Postal.State == "" {
		return fmt.Errorf("POSTAL_STATE is required")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
