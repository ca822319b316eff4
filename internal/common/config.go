package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Connection  ConnectionConfig  `toml:"connection"`
	Browser     BrowserConfig     `toml:"browser"`
	Captcha     CaptchaConfig     `toml:"captcha"`
	Storage     StorageConfig     `toml:"storage"`
	Logging     LoggingConfig     `toml:"logging"`
	Status      StatusConfig      `toml:"status"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

// ConnectionConfig controls the control connection to the coordinating server
type ConnectionConfig struct {
	Address           string   `toml:"address" validate:"required,url"` // ws:// or wss:// endpoint
	Secret            string   `toml:"secret"`                          // Sent in the authorization header during the handshake
	HeartbeatInterval Duration `toml:"heartbeat_interval" validate:"gt=0"`
	HeartbeatGrace    Duration `toml:"heartbeat_grace" validate:"gte=0"`
	ReconnectDelay    Duration `toml:"reconnect_delay" validate:"gt=0"`
	HandshakeTimeout  Duration `toml:"handshake_timeout" validate:"gt=0"`
}

// BrowserConfig controls the headless browser sessions
type BrowserConfig struct {
	UserAgent            string   `toml:"user_agent" validate:"required"`
	ViewportWidth        int      `toml:"viewport_width" validate:"gt=0"`
	ViewportHeight       int      `toml:"viewport_height" validate:"gt=0"`
	Headless             bool     `toml:"headless"`
	NoSandbox            bool     `toml:"no_sandbox"`
	NavigationTimeout    Duration `toml:"navigation_timeout" validate:"gt=0"`
	BlockedResourceTypes []string `toml:"blocked_resource_types"` // CDP resource types aborted during interception
	MaxSessions          int      `toml:"max_sessions" validate:"gte=0"` // 0 = unbounded
	LaunchRate           Duration `toml:"launch_rate" validate:"gte=0"`  // Minimum spacing between session launches, 0 = unlimited
}

// CaptchaConfig controls the operator captcha relay
type CaptchaConfig struct {
	AnswerTimeout Duration `toml:"answer_timeout" validate:"gte=0"` // 0 = wait forever
}

type StorageConfig struct {
	Badger      BadgerConfig      `toml:"badger"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
	LegacyDir      string `toml:"legacy_dir"`               // Directory scanned for cookies<domain>.json files to import
}

// DiagnosticsConfig controls where invalid extractions are dumped
type DiagnosticsConfig struct {
	Dir string `toml:"dir" validate:"required"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output []string `toml:"output"` // "stdout", "file"
}

// StatusConfig controls the local status/metrics HTTP listener
type StatusConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port" validate:"gte=0,lte=65535"`
}

// MaintenanceConfig controls periodic housekeeping
type MaintenanceConfig struct {
	Schedule string `toml:"schedule"` // Cron schedule, empty disables
}

// Duration wraps time.Duration so TOML files can use strings like "15s"
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Connection: ConnectionConfig{
			Address:           "ws://localhost:8080",
			HeartbeatInterval: Duration(15 * time.Second), // Server pings every 15s
			HeartbeatGrace:    Duration(2 * time.Second),
			ReconnectDelay:    Duration(5 * time.Second),
			HandshakeTimeout:  Duration(10 * time.Second),
		},
		Browser: BrowserConfig{
			UserAgent:            "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/78.0.3904.108 Safari/537.36 NodeAmazonTracker/1.0.0",
			ViewportWidth:        1280,
			ViewportHeight:       720,
			Headless:             true,
			NoSandbox:            false,
			NavigationTimeout:    Duration(60 * time.Second),
			BlockedResourceTypes: []string{"Stylesheet", "Font", "Image"},
			MaxSessions:          0,
		},
		Captcha: CaptchaConfig{
			AnswerTimeout: Duration(10 * time.Minute),
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:      "./data",
				LegacyDir: ".",
			},
			Diagnostics: DiagnosticsConfig{
				Dir: "./products",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Status: StatusConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9090,
		},
		Maintenance: MaintenanceConfig{
			Schedule: "*/30 * * * *",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("AMAZON_CLIENT_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Connection: the unprefixed names are what existing deployments export
	if address := os.Getenv("WEB_SOCKET_ADDRESS"); address != "" {
		config.Connection.Address = address
	}
	if secret := os.Getenv("WEB_SOCKET_SECRET"); secret != "" {
		config.Connection.Secret = secret
	}
	if address := os.Getenv("AMAZON_CLIENT_CONNECTION_ADDRESS"); address != "" {
		config.Connection.Address = address
	}
	if secret := os.Getenv("AMAZON_CLIENT_CONNECTION_SECRET"); secret != "" {
		config.Connection.Secret = secret
	}

	if level := os.Getenv("AMAZON_CLIENT_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
	if path := os.Getenv("AMAZON_CLIENT_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if dir := os.Getenv("AMAZON_CLIENT_DIAGNOSTICS_DIR"); dir != "" {
		config.Storage.Diagnostics.Dir = dir
	}
	if maxSessions := os.Getenv("AMAZON_CLIENT_MAX_SESSIONS"); maxSessions != "" {
		if n, err := strconv.Atoi(maxSessions); err == nil {
			config.Browser.MaxSessions = n
		}
	}
	if noSandbox := os.Getenv("AMAZON_CLIENT_NO_SANDBOX"); noSandbox != "" {
		if b, err := strconv.ParseBool(noSandbox); err == nil {
			config.Browser.NoSandbox = b
		}
	}
	if timeout := os.Getenv("AMAZON_CLIENT_CAPTCHA_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Captcha.AnswerTimeout = Duration(d)
		}
	}
	if port := os.Getenv("AMAZON_CLIENT_STATUS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Status.Port = p
			config.Status.Enabled = true
		}
	}
}

// Validate checks field constraints and the maintenance schedule
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Maintenance.Schedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(c.Maintenance.Schedule); err != nil {
			return fmt.Errorf("invalid maintenance schedule: %w", err)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
