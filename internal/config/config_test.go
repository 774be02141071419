package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 1800, cfg.Exam.DurationSeconds)
	assert.Equal(t, 30*time.Minute, cfg.ExamDuration())
	assert.Equal(t, 2*time.Second, cfg.Exam.FacePollInterval)
	assert.Equal(t, time.Second, cfg.Exam.FullscreenReentryDelay)
	assert.Equal(t, 3, cfg.Exam.FullscreenExitThreshold)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "admin", cfg.Admin.Username)
	assert.Equal(t, "admin123", cfg.Admin.Password)
	assert.Equal(t, 24*time.Hour, cfg.Admin.SessionTTL)
	assert.Equal(t, "admin_session", cfg.Admin.CookieName)
	assert.True(t, cfg.IsDevelopment())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("EXAM_DURATION_SECONDS", "600")
	t.Setenv("FACE_POLL_INTERVAL", "500ms")
	t.Setenv("SESSION_RETENTION", "60")
	t.Setenv("STORE_DRIVER", "json")
	t.Setenv("ADMIN_USERNAME", "proctor")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 600, cfg.Exam.DurationSeconds)
	assert.Equal(t, 500*time.Millisecond, cfg.Exam.FacePollInterval)
	assert.Equal(t, time.Minute, cfg.Exam.SessionRetention)
	assert.Equal(t, "json", cfg.Store.Driver)
	assert.Equal(t, "proctor", cfg.Admin.Username)
	assert.Equal(t, "0.0.0.0:9090", cfg.GetAddr())
}

func TestLoad_InvalidEnvKeepsDefault(t *testing.T) {
	t.Setenv("EXAM_DURATION_SECONDS", "thirty")
	t.Setenv("FACE_POLL_INTERVAL", "soon")

	cfg := Load()

	assert.Equal(t, 1800, cfg.Exam.DurationSeconds)
	assert.Equal(t, 2*time.Second, cfg.Exam.FacePollInterval)
}

func TestLoadFile_DecodesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "examguard.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = "7000"
allowed_origins = ["https://exam.example.edu"]

[exam]
duration_seconds = 900
face_poll_interval = "3s"
fullscreen_exit_threshold = 5
questions_file = "questions.yaml"

[store]
driver = "json"
path = "data/exams.json"

[admin]
username = "proctor"
password = "hunter2"
session_ttl = "12h"
`), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"https://exam.example.edu"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 900, cfg.Exam.DurationSeconds)
	assert.Equal(t, 3*time.Second, cfg.Exam.FacePollInterval)
	assert.Equal(t, time.Second, cfg.Exam.FullscreenReentryDelay)
	assert.Equal(t, 5, cfg.Exam.FullscreenExitThreshold)
	assert.Equal(t, "questions.yaml", cfg.Exam.QuestionsFile)
	assert.Equal(t, "json", cfg.Store.Driver)
	assert.Equal(t, "proctor", cfg.Admin.Username)
	assert.Equal(t, 12*time.Hour, cfg.Admin.SessionTTL)
	assert.Equal(t, "admin_session", cfg.Admin.CookieName)
}

func TestLoadFile_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "examguard.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = \"7000\"\n"), 0644))
	t.Setenv("PORT", "7100")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "7100", cfg.Server.Port)
}

func TestLoadFile_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Default().Exam, cfg.Exam)
}

func TestLoadFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte("[server\nport ="), 0644))
		_, err := LoadFile(path)
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "invalid.toml")
		require.NoError(t, os.WriteFile(path, []byte("[store]\ndriver = \"postgres\"\n"), 0644))
		_, err := LoadFile(path)
		assert.ErrorContains(t, err, "store.driver")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero duration", func(c *Config) { c.Exam.DurationSeconds = 0 }, "exam.duration_seconds"},
		{"negative poll", func(c *Config) { c.Exam.FacePollInterval = -time.Second }, "exam.face_poll_interval"},
		{"zero threshold", func(c *Config) { c.Exam.FullscreenExitThreshold = 0 }, "exam.fullscreen_exit_threshold"},
		{"no store path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"no password", func(c *Config) { c.Admin.Password = "" }, "admin.password"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"wildcard origin", func(c *Config) { c.Server.AllowedOrigins = []string{"*"} }, "server.allowed_origins"},
		{"origin with path", func(c *Config) { c.Server.AllowedOrigins = []string{"https://exam.example.edu/admin"} }, "server.allowed_origins"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	t.Run("hash alone is enough", func(t *testing.T) {
		cfg := Default()
		cfg.Admin.Password = ""
		cfg.Admin.PasswordHash = "$2a$10$abcdefghijklmnopqrstuu"
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoad_AllowedOriginsFromEnv(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " https://exam.example.edu, ,http://localhost:3000 ")

	cfg := Load()
	assert.Equal(t, []string{"https://exam.example.edu", "http://localhost:3000"}, cfg.Server.AllowedOrigins)
}

func TestServerConfig_OriginAllowed(t *testing.T) {
	server := ServerConfig{AllowedOrigins: []string{"https://Exam.example.edu/"}}

	assert.True(t, server.OriginAllowed("https://exam.example.edu"))
	assert.False(t, server.OriginAllowed("https://evil.example"))
	assert.False(t, server.OriginAllowed("http://exam.example.edu"), "scheme matters")
	assert.False(t, server.OriginAllowed(""))
	assert.False(t, Default().Server.OriginAllowed("http://localhost:3000"), "nothing is allowed by default")
}
