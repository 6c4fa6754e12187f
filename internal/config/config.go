package config

import (
	"time"
)

type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Queue     QueueConfig     `mapstructure:"queue" yaml:"queue"`
	Worker    WorkerConfig    `mapstructure:"worker" yaml:"worker"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox" yaml:"sandbox"`
	AI        AIConfig        `mapstructure:"ai" yaml:"ai"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Security  SecurityConfig  `mapstructure:"security" yaml:"security"`
}

type LoggerConfig struct {
	Level       string   `mapstructure:"level" yaml:"level"`
	Format      string   `mapstructure:"format" yaml:"format"`
	OutputPaths []string `mapstructure:"output_paths" yaml:"output_paths,omitempty"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"`
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxConnections  int           `mapstructure:"max_connections" yaml:"max_connections"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// QueueConfig selects the backend carrying linguistic-phase jobs.
// "memory" keeps jobs in-process (the default: a lost job surfaces as a
// stale processing status, which pollers tolerate); "redis" survives
// restarts at the cost of an external dependency.
type QueueConfig struct {
	Backend string      `mapstructure:"backend" yaml:"backend"`
	Redis   RedisConfig `mapstructure:"redis" yaml:"redis"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	Password     string        `mapstructure:"password" yaml:"password,omitempty"`
	DB           int           `mapstructure:"db" yaml:"db"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

type WorkerConfig struct {
	Count             int           `mapstructure:"count" yaml:"count"`
	QueuePollInterval time.Duration `mapstructure:"queue_poll_interval" yaml:"queue_poll_interval"`
}

// SandboxBackend selects the isolation level for dynamic analysis.
type SandboxBackend string

const (
	SandboxContainer  SandboxBackend = "container"
	SandboxSubprocess SandboxBackend = "subprocess"
	SandboxDisabled   SandboxBackend = "disabled"
)

type SandboxConfig struct {
	Backend     SandboxBackend `mapstructure:"backend" yaml:"backend"`
	Image       string         `mapstructure:"image" yaml:"image"`
	PythonPath  string         `mapstructure:"python_path" yaml:"python_path"`
	WallTimeout time.Duration  `mapstructure:"wall_timeout" yaml:"wall_timeout"`
	MemoryBytes int64          `mapstructure:"memory_bytes" yaml:"memory_bytes"`
	CPUQuota    int64          `mapstructure:"cpu_quota" yaml:"cpu_quota"`
}

// AIConfig holds the two tier-3 providers, tried in order.
type AIConfig struct {
	Primary  ProviderConfig `mapstructure:"primary" yaml:"primary"`
	Fallback ProviderConfig `mapstructure:"fallback" yaml:"fallback"`
	Timeout  time.Duration  `mapstructure:"timeout" yaml:"timeout"`
	Retries  int            `mapstructure:"retries" yaml:"retries"`
}

type ProviderConfig struct {
	// Kind: "openai" (any OpenAI-compatible endpoint, e.g. OpenRouter)
	// or "gemini".
	Kind    string `mapstructure:"kind" yaml:"kind"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Model   string `mapstructure:"model" yaml:"model"`
}

func (p ProviderConfig) Configured() bool {
	return p.APIKey != ""
}

type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	EnableCORS   bool          `mapstructure:"enable_cors" yaml:"enable_cors"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int `mapstructure:"burst_size" yaml:"burst_size"`
}

func Default() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stdout"},
		},
		Database: DatabaseConfig{
			Driver:          "sqlite3",
			DSN:             "codeguard.db",
			MaxConnections:  25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 1 * time.Hour,
		},
		Queue: QueueConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr:         "localhost:6379",
				DB:           0,
				MaxRetries:   3,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
		},
		Worker: WorkerConfig{
			Count:             2,
			QueuePollInterval: 500 * time.Millisecond,
		},
		Sandbox: SandboxConfig{
			Backend:     SandboxContainer,
			Image:       "python:3.11-slim",
			PythonPath:  "python3",
			WallTimeout: 10 * time.Second,
			MemoryBytes: 128 * 1024 * 1024,
			CPUQuota:    50000,
		},
		AI: AIConfig{
			Primary: ProviderConfig{
				Kind:  "openai",
				Model: "gpt-4o-mini",
			},
			Fallback: ProviderConfig{
				Kind:  "gemini",
				Model: "gemini-2.0-flash",
			},
			Timeout: 30 * time.Second,
			Retries: 2,
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "codeguard",
			Endpoint:    "localhost:4318",
			SampleRate:  1.0,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			EnableCORS:   true,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 10,
				BurstSize:         20,
			},
		},
	}
}
