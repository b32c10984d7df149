package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benaclejames/OSC-HSL/osc"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir from Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Setenv("PWD", dir)
	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			t.Fatalf("restoring working directory: %v", err)
		}
	})
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 25565, cfg.DataPort)
	assert.Equal(t, 9000, cfg.HandshakePort)
	assert.Equal(t, osc.DefaultBufferSize, cfg.BufferSize)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFile(t, dir, "oschsl.yaml", `
app:
  id: vrcft
  friendly_name: VRCFaceTracking
  version: 5.1.0
apps:
  - id: eyes
    friendly_name: Eye Tracking
    version: "1.0"
additional_data: extra
bind: 0.0.0.0
data_port: 9001
handshake_port: 9002
reply_rate: 5
reply_burst: 2
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, osc.AppInfo{ID: "vrcft", FriendlyName: "VRCFaceTracking", Version: "5.1.0"}, cfg.App)
	assert.Equal(t, []osc.AppInfo{{ID: "eyes", FriendlyName: "Eye Tracking", Version: "1.0"}}, cfg.Roster())
	assert.Equal(t, "extra", cfg.AdditionalData)
	assert.Equal(t, "0.0.0.0", cfg.Bind)
	assert.Equal(t, 9001, cfg.DataPort)
	assert.Equal(t, 9002, cfg.HandshakePort)
	assert.Equal(t, 5.0, cfg.ReplyRate)
	assert.Equal(t, 2, cfg.ReplyBurst)
	assert.Equal(t, "json", cfg.Log.Format)
	// Unset keys keep their defaults.
	assert.Equal(t, osc.DefaultBufferSize, cfg.BufferSize)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFile(t, dir, "oschsl.yaml", "data_port: [1, 2]\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("OSCHSL_APP_ID", "fromenv")
	t.Setenv("OSCHSL_DATA_PORT", "7000")
	t.Setenv("OSCHSL_HANDSHAKE_PORT", "7001")
	t.Setenv("OSCHSL_REPLY_RATE", "2.5")
	t.Setenv("OSCHSL_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.App.ID)
	assert.Equal(t, 7000, cfg.DataPort)
	assert.Equal(t, 7001, cfg.HandshakePort)
	assert.Equal(t, 2.5, cfg.ReplyRate)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestEnvOverridesInvalid(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("OSCHSL_DATA_PORT", "ninety")

	_, err := Load("")
	assert.ErrorContains(t, err, "OSCHSL_DATA_PORT")
}

func TestDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, dir, ".env", "OSCHSL_BIND=10.0.0.5\n")
	t.Cleanup(func() { os.Unsetenv("OSCHSL_BIND") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.Bind)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty_app_id", func(c *Config) { c.App.ID = "" }},
		{"negative_port", func(c *Config) { c.DataPort = -1 }},
		{"port_too_large", func(c *Config) { c.HandshakePort = 70000 }},
		{"same_ports", func(c *Config) { c.DataPort = c.HandshakePort }},
		{"tiny_buffer", func(c *Config) { c.BufferSize = 8 }},
		{"huge_buffer", func(c *Config) { c.BufferSize = 1 << 20 }},
		{"negative_rate", func(c *Config) { c.ReplyRate = -1 }},
		{"rate_without_burst", func(c *Config) { c.ReplyRate = 1; c.ReplyBurst = 0 }},
		{"bad_level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad_format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "out.yaml")

	cfg := DefaultConfig()
	cfg.Apps = []osc.AppInfo{{ID: "a", FriendlyName: "A", Version: "1"}}
	cfg.MetricsAddr = ":9100"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestNewLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "port", 9000)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"port":9000`)
}
