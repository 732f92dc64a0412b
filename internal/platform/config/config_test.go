package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("EXPECTED_DOMAIN", DefaultExpectedDomain)
	cfg := FromEnv()

	assert.Equal(t, DefaultExpectedDomain, cfg.Resolver.ExpectedDomain)
	assert.Equal(t, 100*time.Millisecond, cfg.Scan.FrameInterval)
	assert.Equal(t, "rehla.advisories", cfg.Kafka.Topic)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CMS_URL", "https://cms.example.org/")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("EXPECTED_DOMAIN", "")

	cfg := FromEnv()

	assert.Equal(t, "https://cms.example.org", cfg.CMS.BaseURL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Empty(t, cfg.Resolver.ExpectedDomain, "explicit empty domain disables the check")
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("EXPECTED_DOMAIN", "override.example")
	path := filepath.Join(t.TempDir(), "treescan.yaml")
	content := "cms:\n  base_url: http://cms.local\nscan:\n  frames_dir: /tmp/frames\nresolver:\n  expected_domain: yaml.example\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://cms.local", cfg.CMS.BaseURL)
	assert.Equal(t, "/tmp/frames", cfg.Scan.FramesDir)
	assert.Equal(t, "override.example", cfg.Resolver.ExpectedDomain, "env wins over file")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
