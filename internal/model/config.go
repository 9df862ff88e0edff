package model

import "time"

// Config is the complete mcpolice configuration.
// Field tags serve both viper (mapstructure) and `config show` (yaml).
type Config struct {
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Store        StoreConfig        `mapstructure:"store" yaml:"store"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting" yaml:"rate_limiting"`
	Statutes     StatutesConfig     `mapstructure:"statutes" yaml:"statutes"`
	Protocol     ProtocolConfig     `mapstructure:"protocol" yaml:"protocol"`
	LLM          LLMConfig          `mapstructure:"llm" yaml:"llm"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	MaxConnections  int           `mapstructure:"max_connections" yaml:"max_connections"` // 0 = unlimited
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// StoreConfig selects and configures the key/value backend
type StoreConfig struct {
	Backend          string `mapstructure:"backend" yaml:"backend"` // memory, disk, layered, nats, redis, postgres
	Dir              string `mapstructure:"dir" yaml:"dir"`         // disk and layered backends
	NATSURL          string `mapstructure:"nats_url" yaml:"nats_url"`
	NATSBucket       string `mapstructure:"nats_bucket" yaml:"nats_bucket"`
	RedisAddr        string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword    string `mapstructure:"redis_password" yaml:"redis_password,omitempty"`
	RedisDB          int    `mapstructure:"redis_db" yaml:"redis_db"`
	PostgresDSN      string `mapstructure:"postgres_dsn" yaml:"postgres_dsn,omitempty"`
	PostgresTable    string `mapstructure:"postgres_table" yaml:"postgres_table"`
	FetchConcurrency int    `mapstructure:"fetch_concurrency" yaml:"fetch_concurrency"` // Parallel record reads per query
}

// RateLimitingConfig limits write requests per client
type RateLimitingConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"` // 0 disables
	BurstSize         int     `mapstructure:"burst_size" yaml:"burst_size"`
}

// StatutesConfig optionally replaces the built-in statute table
type StatutesConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// ProtocolConfig describes the tool-call endpoint to clients
type ProtocolConfig struct {
	Version    string `mapstructure:"version" yaml:"version"`
	ServerName string `mapstructure:"server_name" yaml:"server_name"`
}

// LLMConfig configures the optional statistics digest
type LLMConfig struct {
	Provider  string `mapstructure:"provider" yaml:"provider"` // "" disables, "openai", "ollama"
	Model     string `mapstructure:"model" yaml:"model"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Timeout   int    `mapstructure:"timeout" yaml:"timeout"` // seconds
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`

	HTTPProxy  string `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy string `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8787",
			MaxConnections:  256,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Backend:          "memory",
			Dir:              "./mcpolice-data",
			NATSURL:          "nats://127.0.0.1:4222",
			NATSBucket:       "MCPOLICE_VIOLATIONS",
			RedisAddr:        "127.0.0.1:6379",
			PostgresTable:    "mcpolice_kv",
			FetchConcurrency: 1,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 5,
			BurstSize:         10,
		},
		Protocol: ProtocolConfig{
			Version:    "2024-11-05",
			ServerName: "mcpolice",
		},
		LLM: LLMConfig{
			Model:     "gpt-4o-mini",
			Timeout:   30,
			MaxTokens: 600,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
