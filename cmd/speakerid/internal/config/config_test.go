package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "speakerid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, ""))
		require.NoError(t, err)
		assert.Equal(t, ":5000", cfg.Listen)
		assert.Equal(t, 4, cfg.RequiredClips)
		assert.InDelta(t, 0.75, cfg.Threshold, 1e-6)
		assert.Equal(t, int64(10<<20), cfg.MaxAudioBytes)
		assert.Equal(t, "memory", cfg.Store.Backend)
	})

	t.Run("yaml overrides", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
listen: ":8080"
required_clips: 5
threshold: 0.8
store:
  backend: badger
  dir: /var/lib/speakerid
snapshot:
  backend: minio
  bucket: voiceprints
  endpoint: localhost:9000
  codec: msgpack
  compression: zstd
`))
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Listen)
		assert.Equal(t, 5, cfg.RequiredClips)
		assert.InDelta(t, 0.8, cfg.Threshold, 1e-6)
		assert.Equal(t, "badger", cfg.Store.Backend)
		assert.Equal(t, "/var/lib/speakerid", cfg.Store.Dir)
		assert.Equal(t, "minio", cfg.Snapshot.Backend)
		assert.Equal(t, "msgpack", cfg.Snapshot.Codec)
		assert.Equal(t, "zstd", cfg.Snapshot.Compression)
	})

	t.Run("env overrides yaml", func(t *testing.T) {
		t.Setenv("SPEAKERID_LISTEN", ":9090")
		t.Setenv("SPEAKERID_THRESHOLD", "0.6")

		cfg, err := Load(writeConfig(t, `listen: ":8080"`))
		require.NoError(t, err)
		assert.Equal(t, ":9090", cfg.Listen)
		assert.InDelta(t, 0.6, cfg.Threshold, 1e-6)
	})

	t.Run("badger requires dir", func(t *testing.T) {
		_, err := Load(writeConfig(t, "store:\n  backend: badger\n"))
		require.Error(t, err)
	})

	t.Run("s3 requires bucket", func(t *testing.T) {
		_, err := Load(writeConfig(t, "snapshot:\n  backend: s3\n"))
		require.Error(t, err)
	})

	t.Run("invalid threshold", func(t *testing.T) {
		_, err := Load(writeConfig(t, "threshold: 2.0\n"))
		require.Error(t, err)
	})

	t.Run("unknown store backend", func(t *testing.T) {
		_, err := Load(writeConfig(t, "store:\n  backend: redis\n"))
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}
