package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Exam    ExamConfig    `toml:"exam"`
	Store   StoreConfig   `toml:"store"`
	Admin   AdminConfig   `toml:"admin"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string `toml:"port"`
	Host string `toml:"host"`
	Env  string `toml:"env"` // "development" or "production"
	// AllowedOrigins may make credentialed cross-origin requests and open
	// exam websockets. Same-origin requests never need listing.
	AllowedOrigins []string `toml:"allowed_origins"`
}

// ExamConfig holds exam session configuration
type ExamConfig struct {
	DurationSeconds         int           `toml:"duration_seconds"`
	FacePollInterval        time.Duration `toml:"face_poll_interval"`
	FullscreenReentryDelay  time.Duration `toml:"fullscreen_reentry_delay"`
	FullscreenExitThreshold int           `toml:"fullscreen_exit_threshold"`
	QuestionsFile           string        `toml:"questions_file"` // empty uses the built-in bank
	SessionRetention        time.Duration `toml:"session_retention"`
}

// StoreConfig holds submission store configuration
type StoreConfig struct {
	Driver string `toml:"driver"` // "sqlite" or "json"
	Path   string `toml:"path"`
}

// AdminConfig holds the admin account and session settings
type AdminConfig struct {
	Username     string        `toml:"username"`
	Password     string        `toml:"password"`
	PasswordHash string        `toml:"password_hash"` // bcrypt; overrides Password when set
	SessionTTL   time.Duration `toml:"session_ttl"`
	CookieName   string        `toml:"cookie_name"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "text"
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
			Env:  "development",
		},
		Exam: ExamConfig{
			DurationSeconds:         1800,
			FacePollInterval:        2 * time.Second,
			FullscreenReentryDelay:  time.Second,
			FullscreenExitThreshold: 3,
			SessionRetention:        2 * time.Hour,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "data/exams.db",
		},
		Admin: AdminConfig{
			Username:   "admin",
			Password:   "admin123",
			SessionTTL: 24 * time.Hour,
			CookieName: "admin_session",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadFile decodes a TOML file over the defaults, then applies environment
// overrides. An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.Env = getEnv("ENV", c.Server.Env)
	c.Server.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Exam.DurationSeconds = getEnvInt("EXAM_DURATION_SECONDS", c.Exam.DurationSeconds)
	c.Exam.FacePollInterval = getEnvDuration("FACE_POLL_INTERVAL", c.Exam.FacePollInterval)
	c.Exam.FullscreenReentryDelay = getEnvDuration("FULLSCREEN_REENTRY_DELAY", c.Exam.FullscreenReentryDelay)
	c.Exam.FullscreenExitThreshold = getEnvInt("FULLSCREEN_EXIT_THRESHOLD", c.Exam.FullscreenExitThreshold)
	c.Exam.QuestionsFile = getEnv("QUESTIONS_FILE", c.Exam.QuestionsFile)
	c.Exam.SessionRetention = getEnvDuration("SESSION_RETENTION", c.Exam.SessionRetention)

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.Path = getEnv("STORE_PATH", c.Store.Path)

	c.Admin.Username = getEnv("ADMIN_USERNAME", c.Admin.Username)
	c.Admin.Password = getEnv("ADMIN_PASSWORD", c.Admin.Password)
	c.Admin.PasswordHash = getEnv("ADMIN_PASSWORD_HASH", c.Admin.PasswordHash)
	c.Admin.SessionTTL = getEnvDuration("ADMIN_SESSION_TTL", c.Admin.SessionTTL)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	for _, origin := range c.Server.AllowedOrigins {
		if err := checkOrigin(origin); err != nil {
			errs = append(errs, fmt.Errorf("server.allowed_origins: %w", err))
		}
	}
	if c.Exam.DurationSeconds <= 0 {
		errs = append(errs, errors.New("exam.duration_seconds must be positive"))
	}
	if c.Exam.FacePollInterval <= 0 {
		errs = append(errs, errors.New("exam.face_poll_interval must be positive"))
	}
	if c.Exam.FullscreenReentryDelay <= 0 {
		errs = append(errs, errors.New("exam.fullscreen_reentry_delay must be positive"))
	}
	if c.Exam.FullscreenExitThreshold <= 0 {
		errs = append(errs, errors.New("exam.fullscreen_exit_threshold must be positive"))
	}
	if c.Exam.SessionRetention <= 0 {
		errs = append(errs, errors.New("exam.session_retention must be positive"))
	}
	switch c.Store.Driver {
	case "sqlite", "json":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of sqlite, json", c.Store.Driver))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if c.Admin.Username == "" {
		errs = append(errs, errors.New("admin.username is required"))
	}
	if c.Admin.Password == "" && c.Admin.PasswordHash == "" {
		errs = append(errs, errors.New("admin.password or admin.password_hash is required"))
	}
	if c.Admin.SessionTTL <= 0 {
		errs = append(errs, errors.New("admin.session_ttl must be positive"))
	}
	if c.Admin.CookieName == "" {
		errs = append(errs, errors.New("admin.cookie_name is required"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not one of json, text", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// ExamDuration returns the exam length as a duration
func (c *Config) ExamDuration() time.Duration {
	return time.Duration(c.Exam.DurationSeconds) * time.Second
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// OriginAllowed reports whether origin is on the configured allow-list
func (c *ServerConfig) OriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	origin = normalizeOrigin(origin)
	for _, allowed := range c.AllowedOrigins {
		if normalizeOrigin(allowed) == origin {
			return true
		}
	}
	return false
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(origin), "/"))
}

// checkOrigin accepts only scheme://host[:port]
func checkOrigin(origin string) error {
	u, err := url.Parse(normalizeOrigin(origin))
	if err != nil {
		return fmt.Errorf("%q: %w", origin, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || u.Path != "" || u.RawQuery != "" {
		return fmt.Errorf("%q is not an http(s) origin", origin)
	}
	return nil
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// getEnv returns an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// getEnvInt returns an environment variable as an integer or a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts a Go duration ("2s") or a bare number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
