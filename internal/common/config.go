package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const appDirName = "reviews-extractor"

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Pleper     PleperConfig     `toml:"pleper"`
	Storage    StorageConfig    `toml:"storage"`
	Bindings   BindingsConfig   `toml:"bindings"`
	Logging    LoggingConfig    `toml:"logging"`
	Client     ClientConfig     `toml:"client"`
	Supervisor SupervisorConfig `toml:"supervisor"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Addr     string `toml:"addr"`
	GRPCAddr string `toml:"grpc_addr"`
	UIDir    string `toml:"ui_dir"`
}

// PleperConfig holds the scraping service connection settings.
type PleperConfig struct {
	BaseURL string `toml:"base_url"`
	// Timeout bounds every upstream call (transport level).
	Timeout Duration `toml:"timeout"`
	// FallbackAPIKey is the last layer of credential resolution.
	FallbackAPIKey string `toml:"fallback_api_key"`
}

// StorageConfig holds the two persisted locations.
type StorageConfig struct {
	CredentialPath string `toml:"credential_path"`
	UploadsDir     string `toml:"uploads_dir"`
}

// BindingsConfig bounds the batch -> location table.
type BindingsConfig struct {
	Capacity int      `toml:"capacity"`
	TTL      Duration `toml:"ttl"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ClientConfig is used by the CLI when it talks to a running service.
type ClientConfig struct {
	APIURL       string   `toml:"api_url"`
	InitialDelay Duration `toml:"initial_delay"`
	PollInterval Duration `toml:"poll_interval"`
}

// SupervisorConfig describes how the worker process is launched.
type SupervisorConfig struct {
	WorkerCommand string   `toml:"worker_command"`
	ReadyTimeout  Duration `toml:"ready_timeout"`
	StopTimeout   Duration `toml:"stop_timeout"`
}

// Duration is a time.Duration written as "30s" / "24h" in the TOML file.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DefaultFallbackAPIKey is the built-in credential layer. Override at build time with
// -ldflags "-X github.com/joseph-ayodele/reviews-extractor/internal/common.DefaultFallbackAPIKey=...".
var DefaultFallbackAPIKey = "pleper-demo-key"

// DefaultConfig returns the configuration used when neither file nor env say otherwise.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:     ":5000",
			GRPCAddr: "127.0.0.1:5001",
		},
		Pleper: PleperConfig{
			BaseURL:        "https://scrape.pleper.com",
			Timeout:        Duration(30 * time.Second),
			FallbackAPIKey: DefaultFallbackAPIKey,
		},
		Storage: StorageConfig{
			CredentialPath: filepath.Join(userDir(os.UserConfigDir), "config.json"),
			UploadsDir:     filepath.Join(userDir(os.UserCacheDir), "uploads"),
		},
		Bindings: BindingsConfig{
			Capacity: 10000,
			TTL:      Duration(24 * time.Hour),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Client: ClientConfig{
			APIURL:       "http://127.0.0.1:5000",
			InitialDelay: Duration(15 * time.Second),
			PollInterval: Duration(5 * time.Second),
		},
		Supervisor: SupervisorConfig{
			WorkerCommand: "reviewsd",
			ReadyTimeout:  Duration(20 * time.Second),
			StopTimeout:   Duration(5 * time.Second),
		},
	}
}

func userDir(resolve func() (string, error)) string {
	dir, err := resolve()
	if err != nil || dir == "" {
		return filepath.Join(".", appDirName)
	}
	return filepath.Join(dir, appDirName)
}

// LoadConfig layers defaults, an optional TOML file and the environment (highest).
// An empty path falls back to REVIEWS_CONFIG; a missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv("REVIEWS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = normalizeAddr(getEnv("ADDR", getEnv("PORT", c.Server.Addr)))
	c.Server.GRPCAddr = getEnvAllowEmpty("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.UIDir = getEnv("UI_DIR", c.Server.UIDir)

	c.Pleper.BaseURL = getEnv("PLEPER_BASE_URL", c.Pleper.BaseURL)
	c.Pleper.Timeout = getEnvAsDuration("PLEPER_TIMEOUT", c.Pleper.Timeout)
	c.Pleper.FallbackAPIKey = getEnv("REVIEWS_FALLBACK_API_KEY", c.Pleper.FallbackAPIKey)

	c.Storage.CredentialPath = getEnv("CONFIG_FILE_PATH", c.Storage.CredentialPath)
	c.Storage.UploadsDir = getEnv("UPLOADS_DIR", c.Storage.UploadsDir)

	c.Bindings.Capacity = getEnvAsInt("BINDING_CAPACITY", c.Bindings.Capacity)
	c.Bindings.TTL = getEnvAsDuration("BINDING_TTL", c.Bindings.TTL)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)

	c.Client.APIURL = getEnv("API_URL", c.Client.APIURL)
	c.Client.InitialDelay = getEnvAsDuration("INITIAL_DELAY", c.Client.InitialDelay)
	c.Client.PollInterval = getEnvAsDuration("POLL_INTERVAL", c.Client.PollInterval)

	c.Supervisor.WorkerCommand = getEnv("WORKER_COMMAND", c.Supervisor.WorkerCommand)
}

// normalizeAddr accepts a bare port ("5000") as the original PORT variable did.
func normalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return addr
	}
	if _, err := strconv.Atoi(addr); err == nil {
		return ":" + addr
	}
	return addr
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty lets an explicitly empty variable disable a feature.
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue Duration) Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return Duration(duration)
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return InvalidInput("ADDR is required")
	}
	if strings.TrimSpace(c.Pleper.BaseURL) == "" {
		return InvalidInput("PLEPER_BASE_URL is required")
	}
	if strings.TrimSpace(c.Pleper.FallbackAPIKey) == "" {
		return InvalidInput("REVIEWS_FALLBACK_API_KEY must not be empty")
	}
	if strings.TrimSpace(c.Storage.CredentialPath) == "" {
		return InvalidInput("CONFIG_FILE_PATH is required")
	}
	if strings.TrimSpace(c.Storage.UploadsDir) == "" {
		return InvalidInput("UPLOADS_DIR is required")
	}
	if c.Pleper.Timeout <= 0 {
		return InvalidInputf("PLEPER_TIMEOUT must be positive, got %s", c.Pleper.Timeout.Std())
	}
	if c.Bindings.Capacity <= 0 {
		return InvalidInputf("BINDING_CAPACITY must be positive, got %d", c.Bindings.Capacity)
	}
	return nil
}
