package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Logs       LogsConfig       `yaml:"logs"`
	Security   SecurityConfig   `yaml:"security"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig selects the token store backend. Driver is "sqlite3"
// (Path) or "postgres" (DSN).
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type AuthConfig struct {
	// APIToken is the root credential. API_TOKEN overrides it.
	APIToken       string `yaml:"api_token"`
	BcryptCost     int    `yaml:"bcrypt_cost"`
	RootTOTPSecret string `yaml:"root_totp_secret"`
}

// SupervisorConfig selects which process manager the orchestrator drives.
type SupervisorConfig struct {
	Backend    string `yaml:"backend"` // pm2, docker, memory
	PM2Binary  string `yaml:"pm2_binary"`
	PM2Home    string `yaml:"pm2_home"`
	DockerHost string `yaml:"docker_host"`
	MemoryDir  string `yaml:"memory_dir"`
}

type LogsConfig struct {
	DefaultLines      int    `yaml:"default_lines"`
	MaxLines          int    `yaml:"max_lines"`
	PollInterval      string `yaml:"poll_interval"`
	HeartbeatInterval string `yaml:"heartbeat_interval"`
}

type SecurityConfig struct {
	RateLimit       int    `yaml:"rate_limit"`
	RateLimitWindow string `yaml:"rate_limit_window"`
	MaxBodyBytes    int64  `yaml:"max_body_bytes"`
}

func (c *LogsConfig) GetPollInterval() time.Duration {
	return parseDuration(c.PollInterval, 250*time.Millisecond)
}

func (c *LogsConfig) GetHeartbeatInterval() time.Duration {
	return parseDuration(c.HeartbeatInterval, 5*time.Second)
}

func (c *SecurityConfig) GetRateLimitWindow() time.Duration {
	return parseDuration(c.RateLimitWindow, time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Load reads the YAML file at path. An empty path yields the defaults.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	setDefaults(&cfg)
	applyEnv(&cfg)

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite3"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/namespace_tokens.db"
	}
	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = 12
	}
	if cfg.Supervisor.Backend == "" {
		cfg.Supervisor.Backend = "pm2"
	}
	if cfg.Supervisor.PM2Binary == "" {
		cfg.Supervisor.PM2Binary = "pm2"
	}
	if cfg.Supervisor.MemoryDir == "" {
		cfg.Supervisor.MemoryDir = "./data/logs"
	}
	if cfg.Logs.DefaultLines == 0 {
		cfg.Logs.DefaultLines = 100
	}
	if cfg.Logs.MaxLines == 0 {
		cfg.Logs.MaxLines = 10000
	}
	if cfg.Logs.PollInterval == "" {
		cfg.Logs.PollInterval = "250ms"
	}
	if cfg.Logs.HeartbeatInterval == "" {
		cfg.Logs.HeartbeatInterval = "5s"
	}
	if cfg.Security.RateLimit == 0 {
		cfg.Security.RateLimit = 300
	}
	if cfg.Security.RateLimitWindow == "" {
		cfg.Security.RateLimitWindow = "1m"
	}
	if cfg.Security.MaxBodyBytes == 0 {
		cfg.Security.MaxBodyBytes = 1 << 20
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("API_TOKEN"); v != "" {
		cfg.Auth.APIToken = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.Driver = "postgres"
		cfg.Database.DSN = v
	}
}
