// Package config - lexvault runtime configuration
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/alwitt/lexvault/blobstore"
	"github.com/alwitt/lexvault/db"
	"github.com/alwitt/lexvault/encryption"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DatabaseConfig persistence settings
type DatabaseConfig struct {
	// Driver which SQL backend to use
	Driver string `yaml:"driver" validate:"required,oneof=sqlite postgres"`
	// SqliteFile DB file when using sqlite
	SqliteFile string `yaml:"sqliteFile" validate:"required_if=Driver sqlite"`
	// PostgresDSN connection DSN when using postgres
	PostgresDSN string `yaml:"postgresDSN" validate:"required_if=Driver postgres"`
	// LogLevel SQL log level
	LogLevel string `yaml:"logLevel" validate:"oneof=silent error warn info"`
}

// Dialector the GORM dialector for the configured backend
func (c DatabaseConfig) Dialector() gorm.Dialector {
	if c.Driver == "postgres" {
		return db.GetPostgresDialector(c.PostgresDSN)
	}
	return db.GetSqliteDialector(c.SqliteFile)
}

// GormLogLevel the GORM log level
func (c DatabaseConfig) GormLogLevel() logger.LogLevel {
	switch c.LogLevel {
	case "silent":
		return logger.Silent
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Error
	}
}

// CryptoConfig cryptography engine settings
type CryptoConfig struct {
	// PrimaryRSACertFile file path to the primary RSA certificate PEM
	PrimaryRSACertFile string `yaml:"primaryRSACertFile" validate:"required"`
	// PrimaryRSAKeyFile file path to the primary RSA private key PEM
	PrimaryRSAKeyFile string `yaml:"primaryRSAKeyFile" validate:"required"`
	// Argon2 custom key stretching parameters
	Argon2 encryption.Argon2Params `yaml:"argon2"`
	// MaxPayloadBytes payload size limit
	MaxPayloadBytes int64 `yaml:"maxPayloadBytes" validate:"gte=1"`
}

// BlobStoreConfig FILE document ciphertext storage settings
type BlobStoreConfig struct {
	// Backend which storage to use
	Backend string `yaml:"backend" validate:"required,oneof=memory s3"`
	// S3 S3 settings, required when Backend is s3
	S3 blobstore.S3Params `yaml:"s3" validate:"-"`
}

// AuthConfig caller identity token settings
type AuthConfig struct {
	// JWTSecret HS256 signing secret
	JWTSecret string `yaml:"jwtSecret" validate:"required,min=32"`
	// Issuer token issuer
	Issuer string `yaml:"issuer" validate:"required"`
	// TokenTTL lifetime of issued tokens
	TokenTTL time.Duration `yaml:"tokenTTL" validate:"gt=0"`
}

// HTTPConfig key share endpoint server settings
type HTTPConfig struct {
	// ListenAddress server bind address
	ListenAddress string `yaml:"listenAddress" validate:"required,hostname_port"`
	// ReadTimeout request read timeout
	ReadTimeout time.Duration `yaml:"readTimeout" validate:"gt=0"`
	// WriteTimeout response write timeout
	WriteTimeout time.Duration `yaml:"writeTimeout" validate:"gt=0"`
	// ShutdownTimeout graceful shutdown limit
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" validate:"gt=0"`
	// RequestIDHeader header carrying a caller supplied request ID; echoed in the response
	RequestIDHeader string `yaml:"requestIDHeader"`
	// LogLevel request log level
	LogLevel string `yaml:"logLevel" validate:"omitempty,oneof=debug info warn"`
}

// AuditConfig audit event sink settings
type AuditConfig struct {
	// Database record audit events in the database
	Database bool `yaml:"database"`
	// Log write audit events to the application log
	Log bool `yaml:"log"`
	// LogLevel level of the audit log entries
	LogLevel string `yaml:"logLevel" validate:"omitempty,oneof=debug info warn"`
}

// Config lexvault configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Crypto    CryptoConfig    `yaml:"crypto"`
	BlobStore BlobStoreConfig `yaml:"blobStore"`
	Auth      AuthConfig      `yaml:"auth"`
	HTTP      HTTPConfig      `yaml:"http"`
	Audit     AuditConfig     `yaml:"audit"`
}

/*
DefaultConfig the default configuration

No JWT secret nor RSA key pair is defaulted; those must always be supplied.

	@returns default config
*/
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:     "sqlite",
			SqliteFile: "lexvault.db",
			LogLevel:   "error",
		},
		Crypto: CryptoConfig{
			Argon2:          encryption.DefaultArgon2Params(),
			MaxPayloadBytes: encryption.DefaultMaxPayloadBytes,
		},
		BlobStore: BlobStoreConfig{Backend: "memory"},
		Auth: AuthConfig{
			Issuer:   "lexvault",
			TokenTTL: time.Hour,
		},
		HTTP: HTTPConfig{
			ListenAddress:   "127.0.0.1:8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestIDHeader: "X-Request-ID",
			LogLevel:        "info",
		},
		Audit: AuditConfig{Database: true, Log: true, LogLevel: "info"},
	}
}

/*
Validate verify the configuration is complete

	@returns nil if valid
*/
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config [%w]", err)
	}
	if c.BlobStore.Backend == "s3" {
		if err := validate.Struct(&c.BlobStore.S3); err != nil {
			return fmt.Errorf("invalid S3 blob store config [%w]", err)
		}
	}
	return nil
}

// AuditLogLevel the apex/log level for the audit log sink
func (c AuditConfig) AuditLogLevel() log.Level {
	switch c.LogLevel {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	default:
		return log.InfoLevel
	}
}

/*
ParseConfig parse YAML configuration on top of the defaults

	@param content []byte - YAML document
	@returns the config
*/
func ParseConfig(content []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config [%w]", err)
	}
	if secret := os.Getenv(JWTSecretEnvVar); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// JWTSecretEnvVar environment variable overriding the configured JWT secret
const JWTSecretEnvVar = "LEXVAULT_JWT_SECRET"

/*
LoadConfig read a YAML configuration file

	@param configFile string - config file path
	@returns the config
*/
func LoadConfig(configFile string) (Config, error) {
	content, err := os.ReadFile(configFile)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config file %s [%w]", configFile, err)
	}
	return ParseConfig(content)
}
