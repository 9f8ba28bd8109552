// Package powerbi publishes tables to a Power BI workspace as push datasets.
//
// Publishing is two calls: an OAuth2 client-credentials token request to the
// Microsoft identity platform, then one POST to the dataset-creation
// endpoint. Neither call is retried and the token is never cached, so every
// publish authenticates afresh and a failed POST is never repeated.
package powerbi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultAuthorityHost = "https://login.microsoftonline.com"
	DefaultAPIBaseURL    = "https://api.powerbi.com"
	DefaultScope         = "https://analysis.windows.net/powerbi/api/.default"
	DefaultTableName     = "Table1"
	DefaultHTTPTimeout   = 60 * time.Second

	// maxResponseBody caps how much of a provider response is kept for
	// error display. Longer bodies end with truncatedMarker.
	maxResponseBody = 64 << 10
	truncatedMarker = " ... (truncated)"
)

// capBody returns b as text, cut to maxResponseBody bytes on a rune
// boundary and marked when anything was dropped.
func capBody(b []byte) string {
	if len(b) <= maxResponseBody {
		return string(b)
	}
	n := maxResponseBody
	for n > maxResponseBody-utf8.UTFMax && !utf8.RuneStart(b[n]) {
		n--
	}
	return string(b[:n]) + truncatedMarker
}

// Config holds the static values a publish needs. The identifiers are opaque
// and only checked for presence.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	WorkspaceID  string
	DatasetName  string

	AuthorityHost string // token endpoint host, default DefaultAuthorityHost
	APIBaseURL    string // dataset API host, default DefaultAPIBaseURL
	Scope         string // default DefaultScope
	TableName     string // default DefaultTableName
}

// Credentials identifies the application to the identity provider.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Scope        string
}

// Credentials returns the client-credentials part of the config.
func (c Config) Credentials() Credentials {
	return Credentials{
		TenantID:     c.TenantID,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Scope:        c.Scope,
	}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the client used for both the token and dataset calls.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each outbound request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d, Transport: c.httpClient.Transport}
		}
	}
}

// WithLogger sets the logger used for publish events.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the identity provider and the dataset API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient returns a Client for cfg, filling unset endpoints with defaults.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	if cfg.AuthorityHost == "" {
		cfg.AuthorityHost = DefaultAuthorityHost
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}
	if cfg.TableName == "" {
		cfg.TableName = DefaultTableName
	}
	cfg.AuthorityHost = strings.TrimRight(cfg.AuthorityHost, "/")
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration, defaults applied.
func (c *Client) Config() Config {
	return c.cfg
}
