package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the given file (or the default search
// path when empty), applies CODEGUARD_* environment overrides, and
// unmarshals on top of the built-in defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".codeguard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix("CODEGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// An explicit --config file must load. Without one, any failure
		// to find or read a file on the search path leaves the defaults
		// and the environment in effect.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// API keys are accepted from the environment even without the
	// viper key being present in a file.
	if cfg.AI.Primary.APIKey == "" {
		cfg.AI.Primary.APIKey = os.Getenv("CODEGUARD_AI_PRIMARY_API_KEY")
	}
	if cfg.AI.Fallback.APIKey == "" {
		cfg.AI.Fallback.APIKey = os.Getenv("CODEGUARD_AI_FALLBACK_API_KEY")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("logger.level", def.Logger.Level)
	v.SetDefault("logger.format", def.Logger.Format)
	v.SetDefault("database.driver", def.Database.Driver)
	v.SetDefault("database.dsn", def.Database.DSN)
	v.SetDefault("database.max_connections", def.Database.MaxConnections)
	v.SetDefault("database.max_idle_conns", def.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", def.Database.ConnMaxLifetime)
	v.SetDefault("queue.backend", def.Queue.Backend)
	v.SetDefault("queue.redis.addr", def.Queue.Redis.Addr)
	v.SetDefault("worker.count", def.Worker.Count)
	v.SetDefault("worker.queue_poll_interval", def.Worker.QueuePollInterval)
	v.SetDefault("sandbox.backend", string(def.Sandbox.Backend))
	v.SetDefault("sandbox.image", def.Sandbox.Image)
	v.SetDefault("sandbox.python_path", def.Sandbox.PythonPath)
	v.SetDefault("sandbox.wall_timeout", def.Sandbox.WallTimeout)
	v.SetDefault("sandbox.memory_bytes", def.Sandbox.MemoryBytes)
	v.SetDefault("sandbox.cpu_quota", def.Sandbox.CPUQuota)
	v.SetDefault("ai.primary.kind", def.AI.Primary.Kind)
	v.SetDefault("ai.primary.model", def.AI.Primary.Model)
	v.SetDefault("ai.fallback.kind", def.AI.Fallback.Kind)
	v.SetDefault("ai.fallback.model", def.AI.Fallback.Model)
	v.SetDefault("ai.timeout", def.AI.Timeout)
	v.SetDefault("ai.retries", def.AI.Retries)
	v.SetDefault("telemetry.enabled", def.Telemetry.Enabled)
	v.SetDefault("telemetry.service_name", def.Telemetry.ServiceName)
	v.SetDefault("telemetry.endpoint", def.Telemetry.Endpoint)
	v.SetDefault("telemetry.sample_rate", def.Telemetry.SampleRate)
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.enable_cors", def.Server.EnableCORS)
	v.SetDefault("server.read_timeout", def.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", def.Server.WriteTimeout)
	v.SetDefault("security.rate_limit.requests_per_second", def.Security.RateLimit.RequestsPerSecond)
	v.SetDefault("security.rate_limit.burst_size", def.Security.RateLimit.BurstSize)
}

// WriteDefault renders the default configuration as YAML to path,
// refusing to clobber an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	header := "# codeguard configuration\n# Values may be overridden with CODEGUARD_* environment variables.\n"
	return os.WriteFile(path, append([]byte(header), data...), 0o644)
}
