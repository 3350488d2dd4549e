package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DB", "LOG_LEVEL", "LOG_FORMAT", "SHOUTRRR_URLS", "DISPATCH_TIMEOUT"} {
		name := Prefix + "_" + key
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sentinel.db", cfg.DB)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.ShoutrrrURLs)
	assert.Equal(t, 10*time.Second, cfg.DispatchTimeout)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("SENTINEL_DB", "/tmp/field.db")
	t.Setenv("SENTINEL_LOG_LEVEL", "debug")
	t.Setenv("SENTINEL_LOG_FORMAT", "json")
	t.Setenv("SENTINEL_SHOUTRRR_URLS", "logger://,generic://example.com/hook")
	t.Setenv("SENTINEL_DISPATCH_TIMEOUT", "3s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/field.db", cfg.DB)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, []string{"logger://", "generic://example.com/hook"}, cfg.ShoutrrrURLs)
	assert.Equal(t, 3*time.Second, cfg.DispatchTimeout)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := writeEnvFile(t, "SENTINEL_DB=from-file.db\nSENTINEL_LOG_LEVEL=warn\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file.db", cfg.DB)
	assert.Equal(t, slog.LevelWarn, cfg.Level())

	// godotenv set them in the process environment.
	t.Cleanup(func() {
		os.Unsetenv("SENTINEL_DB")
		os.Unsetenv("SENTINEL_LOG_LEVEL")
	})
}

func TestLoad_EnvironmentWinsOverFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("SENTINEL_DB", "from-env.db")
	path := writeEnvFile(t, "SENTINEL_DB=from-file.db\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DB)
}

func TestLoad_MissingNamedFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.Error(t, err)
	assert.True(t, IsConfigError(err, ErrEnvFile))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want ErrorType
	}{
		{"bad duration", "SENTINEL_DISPATCH_TIMEOUT", "soon", ErrParsing},
		{"negative duration", "SENTINEL_DISPATCH_TIMEOUT", "-1s", ErrValidation},
		{"unknown level", "SENTINEL_LOG_LEVEL", "loud", ErrValidation},
		{"unknown format", "SENTINEL_LOG_FORMAT", "xml", ErrValidation},
		{"url without scheme", "SENTINEL_SHOUTRRR_URLS", "example.com", ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := Load("")
			require.Error(t, err)
			assert.True(t, IsConfigError(err, tt.want), "got %v", err)
		})
	}
}

func TestHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "info", LogFormat: "json"}

	slog.New(cfg.Handler(&buf)).Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	cfg.LogFormat = "text"
	logger := slog.New(cfg.Handler(&buf))
	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestConfigError_Message(t *testing.T) {
	err := &ConfigError{Type: ErrValidation, Message: "bad"}
	assert.Equal(t, "[VALIDATION_FAILED] bad", err.Error())
	assert.Nil(t, err.Unwrap())
}
