package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "warren.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultInstance, cfg.Instance)
	assert.Equal(t, DefaultRedisURL, cfg.RedisURL)
	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Empty(t, cfg.Xrefs)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
instance: production
redis_url: redis://redis.internal:6379/2
listen: ":9000"
xrefs:
  mwdb: "https://mwdb.example.com/analysis/{root_id}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Instance)
	assert.Equal(t, "redis://redis.internal:6379/2", cfg.RedisURL)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "https://mwdb.example.com/analysis/{root_id}", cfg.Xrefs["mwdb"])
}

func TestLoadEnvFallbacks(t *testing.T) {
	t.Setenv("WARREN_INSTANCE", "staging")
	t.Setenv("WARREN_REDIS_URL", "redis://elsewhere:6379")

	// The file wins where it speaks; env fills the gaps.
	path := writeConfig(t, `listen: ":7000"`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Instance)
	assert.Equal(t, "redis://elsewhere:6379", cfg.RedisURL)
	assert.Equal(t, ":7000", cfg.Listen)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "instance: [not, a, string")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestXrefLinks(t *testing.T) {
	cfg := &Config{Xrefs: map[string]string{
		"zeta":  "https://z.example.com/{root_id}",
		"alpha": "https://a.example.com/view?id={root_id}",
	}}

	links := cfg.XrefLinks("root-1")
	require.Len(t, links, 2)
	assert.Equal(t, "alpha", links[0].Label)
	assert.Equal(t, "https://a.example.com/view?id=root-1", links[0].URL)
	assert.Equal(t, "zeta", links[1].Label)
	assert.Equal(t, "https://z.example.com/root-1", links[1].URL)
}
