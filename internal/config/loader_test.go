package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
server:
  addr: ":9090"
logging:
  level: debug
claims:
  inlineThresholdKB: 8
  accessURLBase: "https://auth.example.com"
platform:
  rootGroup: root
  fullSuperControl: true
  tenantCacheTTL: "30s"
cache:
  enabled: true
  type: memory
  maxEntries: 100
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Claims.InlineThresholdKB)
	assert.Equal(t, "https://auth.example.com", cfg.Claims.AccessURLBase)
	assert.Equal(t, "root", cfg.Platform.RootGroup)
	assert.True(t, cfg.Platform.FullSuperControl)
	assert.Equal(t, 30*time.Second, cfg.Platform.TenantCacheTTL.Duration())
	assert.Equal(t, 100, cfg.Cache.MaxEntries)
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader("platform:\n  rootGroup: root\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultInlineThresholdKB, cfg.Claims.InlineThresholdKB)
	assert.Equal(t, "plugins", cfg.Platform.PluginNamespace)
	assert.Equal(t, CacheTypeMemory, cfg.Cache.Type)
	assert.Equal(t, 5*time.Minute, cfg.Platform.TenantCacheTTL.Duration())
}

func TestLoadFromReader_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing root group",
			yaml: "server:\n  addr: \":8080\"\n",
			want: "rootGroup",
		},
		{
			name: "bad cache type",
			yaml: "platform:\n  rootGroup: root\ncache:\n  type: memcached\n",
			want: "cache.type",
		},
		{
			name: "redis without url",
			yaml: "platform:\n  rootGroup: root\ncache:\n  type: redis\n",
			want: "cache.redis.url",
		},
		{
			name: "zero threshold",
			yaml: "platform:\n  rootGroup: root\nclaims:\n  inlineThresholdKB: -1\n",
			want: "inlineThresholdKB",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadFromReader(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEnvSubstitution(t *testing.T) {
	t.Setenv("AUTHCORE_TEST_ROOT", "root-from-env")

	cfg, err := LoadFromReader(strings.NewReader(
		"platform:\n  rootGroup: ${AUTHCORE_TEST_ROOT}\nserver:\n  addr: \"${AUTHCORE_TEST_ADDR:-:8081}\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "root-from-env", cfg.Platform.RootGroup)
	assert.Equal(t, ":8081", cfg.Server.Addr)
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "authcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestDurationMarshaling(t *testing.T) {
	t.Parallel()

	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"90s"`)))
	assert.Equal(t, 90*time.Second, d.Duration())

	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(out))

	require.NoError(t, d.UnmarshalJSON([]byte(`null`)))
	assert.Zero(t, d.Duration())

	require.Error(t, d.UnmarshalJSON([]byte(`"eleventy"`)))
}
