// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	PowerBI  PowerBIConfig
	Upload   UploadConfig
	Publish  PublishConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	History  HistoryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout covers the whole publish round trip (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 90s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"90s"`
}

// PowerBIConfig identifies the service principal and the target workspace.
// The identifiers are opaque and only checked for presence.
type PowerBIConfig struct {
	TenantID     string `env:"POWERBI_TENANT_ID" required:"true"`
	ClientID     string `env:"POWERBI_CLIENT_ID" required:"true"`
	ClientSecret string `env:"POWERBI_CLIENT_SECRET" required:"true"`
	WorkspaceID  string `env:"POWERBI_WORKSPACE_ID" envAlt:"POWERBI_GROUP_ID" required:"true"`
	DatasetName  string `env:"POWERBI_DATASET_NAME" required:"true"`

	// TableName is the single table created inside the dataset (default: Table1)
	TableName string `env:"POWERBI_TABLE_NAME" default:"Table1"`

	// AuthorityHost is the identity provider base URL
	AuthorityHost string `env:"POWERBI_AUTHORITY_HOST" default:"https://login.microsoftonline.com"`

	// APIBaseURL is the dataset API base URL
	APIBaseURL string `env:"POWERBI_API_BASE_URL" default:"https://api.powerbi.com"`

	// Scope requested with the client-credentials grant
	Scope string `env:"POWERBI_SCOPE" default:"https://analysis.windows.net/powerbi/api/.default"`

	// HTTPTimeout bounds each token and dataset request (default: 60s)
	HTTPTimeout time.Duration `env:"POWERBI_HTTP_TIMEOUT" default:"60s"`
}

// UploadConfig holds JSON upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	// PreviewRows is how many rows the preview shows (default: 10)
	PreviewRows int `env:"UPLOAD_PREVIEW_ROWS" default:"10"`

	// SessionTTL is how long a converted table waits for publish (default: 30m)
	SessionTTL time.Duration `env:"UPLOAD_SESSION_TTL" default:"30m"`

	// MaxSessions caps converted tables held in memory (default: 100)
	MaxSessions int `env:"UPLOAD_MAX_SESSIONS" default:"100"`
}

// PublishConfig holds outbound publish settings.
type PublishConfig struct {
	// MaxConcurrent is the maximum number of publishes in flight (default: 2)
	MaxConcurrent int `env:"PUBLISH_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long to wait for a publish slot (default: 30s)
	MaxWaitTime time.Duration `env:"PUBLISH_MAX_WAIT_TIME" default:"30s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// PublishLimit is requests per minute for publish endpoints (default: 10)
	PublishLimit int `env:"RATE_LIMIT_PUBLISH" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects /api routes with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// AllowedOrigins is a comma-separated CORS allow list for /api routes
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// HistoryConfig holds publish history settings.
type HistoryConfig struct {
	// DatabaseURL enables the PostgreSQL history store when set.
	// Without it, history is kept in memory and lost on restart.
	DatabaseURL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MemoryLimit is how many entries the in-memory store keeps (default: 200)
	MemoryLimit int `env:"HISTORY_MEMORY_LIMIT" default:"200"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
