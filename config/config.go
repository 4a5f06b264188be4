// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	configPath        = pflag.String("config", ".", "Directory containing config.toml")
	validLogLevels    = []string{"debug", "info", "warn", "error", "fatal"}
	validStorageTypes = []string{"s3", "minio", "memory"}
	validDBDrivers    = []string{"sqlite", "postgres"}
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Host     HostConfig     `mapstructure:"host"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	Auth     AuthConfig     `mapstructure:"auth"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Security SecurityConfig `mapstructure:"security"`

	// Warnings collects non fatal findings of Setup and Validate. They are
	// logged by main once the logger exists.
	Warnings []string `mapstructure:"-"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type HostConfig struct {
	Port       int      `mapstructure:"port"`
	CORS       []string `mapstructure:"cors"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type SessionConfig struct {
	Secret     string        `mapstructure:"secret"`
	TTL        time.Duration `mapstructure:"ttl"`
	CookieName string        `mapstructure:"cookie_name"`
}

type AuthConfig struct {
	// Domain is the institution's email domain, e.g. bits-pilani.ac.in
	Domain     string   `mapstructure:"domain"`
	LoginURL   string   `mapstructure:"login_url"`
	Moderators []string `mapstructure:"moderators"`
}

type OAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	S3    S3Config    `mapstructure:"s3"`
	MinIO MinIOConfig `mapstructure:"minio"`
}

type S3Config struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	// Endpoint overrides the AWS endpoint, used for R2 and other S3 compatible stores
	Endpoint string `mapstructure:"endpoint"`
}

type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
}

// UpstreamConfig tells the download proxy where stored files are read from.
//
// With BaseURL set, files are fetched from BaseURL/<path> with Token as a
// bearer token. That is a Hugging Face dataset resolve url or a CDN in front
// of the bucket the relay writes to. Without it the proxy asks the s3 or
// minio backend for a presigned url valid for PresignTTL.
type UpstreamConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Token      string        `mapstructure:"token"`
	UserAgent  string        `mapstructure:"user_agent"`
	Timeout    time.Duration `mapstructure:"timeout"`
	PresignTTL time.Duration `mapstructure:"presign_ttl"`
}

type RelayConfig struct {
	Secret string `mapstructure:"secret"`
}

type UploadConfig struct {
	// MaxSize is read in MiB and converted to bytes by Setup
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type SecurityConfig struct {
	RateLimit       int    `mapstructure:"rate_limit"`
	CacheTTL        int    `mapstructure:"cache_ttl"`
	TurnstileOn     bool   `mapstructure:"turnstile_enabled"`
	TurnstileSecret string `mapstructure:"turnstile_secret"`
}

// IsModerator reports whether email is listed in auth.moderators
func (c *Config) IsModerator(email string) bool {
	return slices.ContainsFunc(c.Auth.Moderators, func(m string) bool {
		return strings.EqualFold(m, email)
	})
}

func setDefaults() {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.cors", []string{"http://localhost:3000"})
	v.SetDefault("host.ssl_enabled", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "database.db")

	v.SetDefault("session.ttl", 30*24*time.Hour)
	v.SetDefault("session.cookie_name", "auth_token")

	v.SetDefault("auth.domain", "bits-pilani.ac.in")
	v.SetDefault("auth.login_url", "/login")

	v.SetDefault("storage.type", "s3")
	v.SetDefault("storage.s3.region", "auto")
	v.SetDefault("storage.minio.region", "us-east-1")

	v.SetDefault("upstream.user_agent", "Course-Archiver-Bot")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("upstream.presign_ttl", 5*time.Minute)

	v.SetDefault("upload.max_size", 500)
	v.SetDefault("upload.allowed_types", []string{
		"application/pdf",
		"application/zip",
		"application/x-rar-compressed",
		"application/x-7z-compressed",
		"application/x-ole-storage",
		"application/msword",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	})

	v.SetDefault("security.rate_limit", 20)
	v.SetDefault("security.cache_ttl", 15)
	v.SetDefault("security.turnstile_enabled", false)
}

func bindEnvs() {
	v.BindEnv("app.env", "APP_ENV")
	v.BindEnv("app.log_level", "APP_LOG_LEVEL")

	v.BindEnv("host.port", "HOST_PORT")
	v.BindEnv("host.cors", "HOST_CORS")
	v.BindEnv("host.ssl_enabled", "HOST_SSL_ENABLED")

	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.dsn", "DATABASE_DSN")

	v.BindEnv("session.secret", "SESSION_SECRET")
	v.BindEnv("session.ttl", "SESSION_TTL")

	v.BindEnv("auth.domain", "AUTH_DOMAIN")
	v.BindEnv("auth.login_url", "AUTH_LOGIN_URL")
	v.BindEnv("auth.moderators", "AUTH_MODERATORS")

	v.BindEnv("oauth.client_id", "OAUTH_CLIENT_ID")
	v.BindEnv("oauth.client_secret", "OAUTH_CLIENT_SECRET")
	v.BindEnv("oauth.redirect_url", "OAUTH_REDIRECT_URL")

	v.BindEnv("storage.type", "STORAGE_TYPE")

	v.BindEnv("storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("storage.s3.bucket", "S3_BUCKET")
	v.BindEnv("storage.s3.region", "S3_REGION")
	v.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")

	v.BindEnv("storage.minio.endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio.access_key_id", "MINIO_ACCESS_KEY_ID")
	v.BindEnv("storage.minio.secret_access_key", "MINIO_SECRET_ACCESS_KEY")
	v.BindEnv("storage.minio.bucket", "MINIO_BUCKET")
	v.BindEnv("storage.minio.use_ssl", "MINIO_USE_SSL")
	v.BindEnv("storage.minio.region", "MINIO_REGION")

	v.BindEnv("upstream.base_url", "UPSTREAM_BASE_URL")
	v.BindEnv("upstream.token", "UPSTREAM_TOKEN")
	v.BindEnv("upstream.user_agent", "UPSTREAM_USER_AGENT")

	v.BindEnv("relay.secret", "RELAY_SECRET")

	v.BindEnv("upload.max_size", "UPLOAD_MAX_SIZE")
	v.BindEnv("upload.allowed_types", "UPLOAD_ALLOWED_TYPES")

	v.BindEnv("security.rate_limit", "SECURITY_RATE_LIMIT")
	v.BindEnv("security.turnstile_enabled", "TURNSTILE_ENABLED")
	v.BindEnv("security.turnstile_secret", "TURNSTILE_SECRET_TOKEN")
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() (*Config, error) {
	// A missing .env is fine, real deployments use the environment directly
	_ = godotenv.Load()

	if !pflag.Parsed() {
		pflag.Parse()
	}
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(*configPath)

	v.AutomaticEnv()

	bindEnvs()
	setDefaults()

	noFile := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file, %w", err)
		}

		noFile = true
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config, %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if noFile {
		cfg.warn("No config.toml found, using defaults and environment only")
	}

	cfg.Upload.MaxSize <<= 20
	return &cfg, nil
}

func (c *Config) warn(msg string) {
	c.Warnings = append(c.Warnings, msg)
}

// Validate checks the values that the app can't start without. Settings that
// only degrade the app end up in Warnings.
func (c *Config) Validate() error {
	c.Warnings = nil

	if !slices.Contains(validLogLevels, c.App.LogLevel) {
		return errors.New("invalid log level provided")
	}

	if c.Host.Port <= 0 {
		return errors.New("invalid port provided")
	}

	if !slices.Contains(validDBDrivers, c.Database.Driver) {
		return errors.New("invalid database driver provided")
	}

	if c.Database.DSN == "" {
		return errors.New("database dsn can't be empty")
	}

	if c.Session.Secret == "" {
		return errors.New("session secret can't be empty")
	}

	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be bigger than 0")
	}

	if c.Auth.Domain == "" {
		return errors.New("auth domain can't be empty")
	}

	if c.Relay.Secret == "" {
		return errors.New("relay secret can't be empty")
	}

	if c.Upload.MaxSize <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}

	if len(c.Upload.AllowedTypes) == 0 {
		c.warn("No upload.allowed_types specified, any file type will be accepted")
	}

	if !slices.Contains(validStorageTypes, c.Storage.Type) {
		return errors.New("invalid storage type provided")
	}

	if c.Upstream.BaseURL != "" {
		u, err := url.Parse(c.Upstream.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("upstream base url must be an absolute url")
		}

		if c.Upstream.Token == "" {
			c.warn("No upstream token set, the proxy will call the upstream anonymously")
		}
	} else {
		// Downloads are then served through presigned urls of the storage backend
		if c.Storage.Type == "memory" {
			return errors.New("memory storage can't serve downloads, set upstream.base_url")
		}

		if c.Upstream.PresignTTL <= 0 {
			return errors.New("upstream presign ttl must be bigger than 0")
		}
	}

	switch c.Storage.Type {
	case "s3":
		if c.Storage.S3.AccessKeyID == "" {
			return errors.New("s3 access key id can't be empty")
		}
		if c.Storage.S3.SecretAccessKey == "" {
			return errors.New("s3 secret access key can't be empty")
		}
		if c.Storage.S3.Bucket == "" {
			return errors.New("s3 bucket can't be empty")
		}
	case "minio":
		if c.Storage.MinIO.Endpoint == "" {
			return errors.New("minio endpoint can't be empty")
		}
		if c.Storage.MinIO.Bucket == "" {
			return errors.New("minio bucket can't be empty")
		}
	case "memory":
		c.warn("Using in-memory storage, uploaded files won't survive a restart")
	}

	if c.OAuth.ClientID == "" {
		c.warn("No oauth.client_id set, login will not work")
	}

	if c.Security.TurnstileOn && c.Security.TurnstileSecret == "" {
		return errors.New("turnstile secret token is missing")
	}

	return nil
}
