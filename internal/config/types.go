package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int             `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration   `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration   `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration   `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	RateLimit    RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RateLimitConfig contains per-client API rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	Burst          int  `yaml:"burst" mapstructure:"burst"`
}

// StoreConfig contains expense record storage configuration
type StoreConfig struct {
	// Path is the backing data file (.csv, .json or .parquet).
	Path string `yaml:"path" mapstructure:"path"`
	// DatabaseURL selects the Postgres backend when non-empty.
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// WatchFile reloads the table when the backing file changes on disk.
	WatchFile       bool          `yaml:"watch_file" mapstructure:"watch_file"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// AuditConfig contains detection engine configuration. Column names are
// configuration, not assumptions; a column absent from the data behaves
// as an empty value per record.
//
// A buffer larger than the limit is accepted and simply extends the
// near-limit band below zero. That is usually a configuration smell, but
// it is honored as given rather than clamped.
type AuditConfig struct {
	Detectors       []string `yaml:"detectors" mapstructure:"detectors"`
	Limit           float64  `yaml:"limit" mapstructure:"limit"`
	Buffer          float64  `yaml:"buffer" mapstructure:"buffer"`
	MerchantColumn  string   `yaml:"merchant_column" mapstructure:"merchant_column"`
	InvoiceColumn   string   `yaml:"invoice_column" mapstructure:"invoice_column"`
	AmountColumn    string   `yaml:"amount_column" mapstructure:"amount_column"`
	PaidColumn      string   `yaml:"paid_column" mapstructure:"paid_column"`
	DateColumn      string   `yaml:"date_column" mapstructure:"date_column"`
	IncludeMerchant bool     `yaml:"include_merchant" mapstructure:"include_merchant"`
	KeywordColumns  []string `yaml:"keyword_columns" mapstructure:"keyword_columns"`
	DateFormats     []string `yaml:"date_formats" mapstructure:"date_formats"`
}

// CacheConfig contains the optional Redis result cache configuration
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains WebSocket hub configuration
type WebSocketConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	Path           string   `yaml:"path" mapstructure:"path"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Events         struct {
		BroadcastAudits      bool `yaml:"broadcast_audits" mapstructure:"broadcast_audits"`
		BroadcastRecords     bool `yaml:"broadcast_records" mapstructure:"broadcast_records"`
		BroadcastSystem      bool `yaml:"broadcast_system" mapstructure:"broadcast_system"`
		BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// KnownDetectors lists every detector name the engine accepts. The config
// value "all" enables all of them.
var KnownDetectors = []string{
	"duplicates", "weekends", "threshold", "keywords", "discrepancies", "benford",
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:        true,
				RequestsPerMin: 300,
				Burst:          50,
			},
		},
		Store: StoreConfig{
			Path:            "expenses.csv",
			WatchFile:       true,
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
		},
		Audit: AuditConfig{
			Detectors:       []string{"all"},
			Limit:           5000.0,
			Buffer:          200.0,
			MerchantColumn:  "merchant",
			InvoiceColumn:   "invoice_no",
			AmountColumn:    "amount_usd",
			PaidColumn:      "paid_amount_usd",
			DateColumn:      "expense_date",
			IncludeMerchant: true,
			KeywordColumns:  []string{"merchant", "category", "employee"},
		},
		Cache: CacheConfig{
			Enabled:        false,
			RedisURL:       "redis://localhost:6379/0",
			MaxConnections: 10,
			MinIdleConns:   2,
			DefaultTTL:     5 * time.Minute,
			KeyPrefix:      "audit",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			Path:           "/ws",
			AllowedOrigins: []string{"*"},
		},
	}
	cfg.Logging.File.Path = "logs/auditd.log"
	cfg.WebSocket.Events.BroadcastAudits = true
	cfg.WebSocket.Events.BroadcastRecords = true
	cfg.WebSocket.Events.BroadcastSystem = true
	cfg.WebSocket.Events.BroadcastConnections = true
	return cfg
}
