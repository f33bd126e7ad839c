package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all configuration for the application
type Config struct {
	AppMode   string
	Port      string
	Database  DatabaseConfig
	JWT       JWTConfig
	Log       LogConfig
	Documents DocumentConfig
	Session   SessionConfig
	Redis     RedisConfig
	Bootstrap BootstrapConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Timeout  time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret          string
	AccessTokenMins int
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

// DocumentConfig holds document issuance configuration
type DocumentConfig struct {
	StorageDir         string
	MaxIssueAttempts   int
	IntegritySweepCron string
	IntegrityWorkers   int
}

// SessionConfig holds login session configuration
type SessionConfig struct {
	TTL time.Duration
}

// RedisConfig is optional; an empty Addr keeps resident locks in-process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BootstrapConfig holds the first-run administrator credentials
type BootstrapConfig struct {
	AdminUsername string
	AdminPassword string
}

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		logrus.Warn(".env file not found, using environment variables")
	}

	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	database, err := loadDatabaseConfig(appMode)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppMode:   appMode,
		Port:      getEnv("PORT", "3000"),
		Database:  database,
		JWT:       loadJWTConfig(appMode),
		Log:       loadLogConfig(appMode),
		Documents: loadDocumentConfig(),
		Session: SessionConfig{
			TTL: time.Duration(getEnvInt("SESSION_TTL_MINUTES", 480)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: getEnv("BOOTSTRAP_ADMIN_USERNAME", "admin"),
			AdminPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
	}

	if cfg.IsProd() && cfg.JWT.Secret == "default_secret" {
		return nil, fmt.Errorf("PROD_JWT_SECRET must be set in prod mode")
	}

	return cfg, nil
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) (DatabaseConfig, error) {
	prefix := modePrefix(mode)

	driver := strings.ToLower(getEnv("DB_DRIVER", "mysql"))
	defaultPort := "3306"
	switch driver {
	case "mysql":
	case "postgres":
		defaultPort = "5432"
	default:
		return DatabaseConfig{}, fmt.Errorf("invalid DB_DRIVER: '%s' (must be 'mysql' or 'postgres')", driver)
	}

	timeout, err := time.ParseDuration(getEnv("STORE_TIMEOUT", "5s"))
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid STORE_TIMEOUT: %w", err)
	}

	return DatabaseConfig{
		Driver:   driver,
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", defaultPort),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "village_registry"),
		Timeout:  timeout,
	}, nil
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	return JWTConfig{
		Secret:          getEnv(modePrefix(mode)+"JWT_SECRET", "default_secret"),
		AccessTokenMins: getEnvInt("ACCESS_TOKEN_MINUTES", 60),
	}
}

func loadLogConfig(mode string) LogConfig {
	defaultFormat := "text"
	if mode == "prod" {
		defaultFormat = "json"
	}
	return LogConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", defaultFormat),
	}
}

func loadDocumentConfig() DocumentConfig {
	return DocumentConfig{
		StorageDir:         getEnv("DOCUMENT_STORAGE_DIR", ""),
		MaxIssueAttempts:   getEnvInt("DOCUMENT_ISSUE_MAX_ATTEMPTS", 3),
		IntegritySweepCron: getEnv("INTEGRITY_SWEEP_SCHEDULE", "30 2 * * *"),
		IntegrityWorkers:   getEnvInt("INTEGRITY_SWEEP_WORKERS", 4),
	}
}

func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://registry.village.local"
	}
	return origins
}
