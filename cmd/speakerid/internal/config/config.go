// Package config loads CLI configuration from a YAML file with .env and
// SPEAKERID_* environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full CLI configuration.
type Config struct {
	// Listen is the HTTP listen address for serve.
	Listen string `yaml:"listen"`

	// ExtractorURL points at the remote embedding encoder. Empty selects
	// the deterministic offline extractor, which is only useful for
	// demos and tests.
	ExtractorURL string `yaml:"extractor_url"`

	// Dimension is the embedding dimension. Zero takes the extractor's
	// default.
	Dimension int `yaml:"dimension"`

	// RequiredClips is the number of enrollment clips per user.
	RequiredClips int `yaml:"required_clips"`

	// Threshold is the minimum cosine similarity for a match.
	Threshold float32 `yaml:"threshold"`

	// MaxAudioBytes caps uploaded clip size. Defaults to 10 MiB.
	MaxAudioBytes int64 `yaml:"max_audio_bytes"`

	Store    StoreConfig    `yaml:"store"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Log      LogConfig      `yaml:"log"`
}

// StoreConfig selects the voiceprint store backend.
type StoreConfig struct {
	// Backend is "memory" or "badger".
	Backend string `yaml:"backend"`

	// Dir is the badger data directory.
	Dir string `yaml:"dir"`
}

// SnapshotConfig selects the snapshot blob backend and format.
type SnapshotConfig struct {
	// Backend is "local", "s3" or "minio". Empty disables snapshots.
	Backend string `yaml:"backend"`

	// Name is the snapshot blob key.
	Name string `yaml:"name"`

	// Dir is the local backend directory.
	Dir string `yaml:"dir"`

	// Bucket is the s3/minio bucket.
	Bucket string `yaml:"bucket"`

	// Prefix is prepended to blob keys in the bucket.
	Prefix string `yaml:"prefix"`

	// Endpoint is the minio endpoint host:port.
	Endpoint string `yaml:"endpoint"`

	// Region is the s3 region. Empty defers to the AWS SDK defaults.
	Region string `yaml:"region"`

	// AccessKey and SecretKey are minio credentials. For s3 the AWS SDK
	// credential chain applies instead.
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`

	// UseSSL enables TLS for minio.
	UseSSL bool `yaml:"use_ssl"`

	// Codec is "json" or "msgpack".
	Codec string `yaml:"codec"`

	// Compression is "none", "zstd" or "lz4".
	Compression string `yaml:"compression"`

	// RestoreOnStart loads the snapshot into a memory store when serve
	// starts. SaveOnShutdown writes it back on clean shutdown.
	RestoreOnStart bool `yaml:"restore_on_start"`
	SaveOnShutdown bool `yaml:"save_on_shutdown"`
}

// LogConfig controls serve logging.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:        ":5000",
		RequiredClips: 4,
		Threshold:     0.75,
		MaxAudioBytes: 10 << 20,
		Store: StoreConfig{
			Backend: "memory",
		},
		Snapshot: SnapshotConfig{
			Name:        "voiceprints.snap",
			Codec:       "json",
			Compression: "none",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration: defaults, then the YAML file at path
// (skipped when path is empty and the default file is absent), then
// .env, then SPEAKERID_* environment variables.
func Load(path string) (*Config, error) {
	// A missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if data, err := os.ReadFile("speakerid.yaml"); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config speakerid.yaml: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config speakerid.yaml: %w", err)
	}

	applyEnv(cfg)

	return cfg, cfg.validate()
}

func applyEnv(cfg *Config) {
	setString(&cfg.Listen, "SPEAKERID_LISTEN")
	setString(&cfg.ExtractorURL, "SPEAKERID_EXTRACTOR_URL")
	setInt(&cfg.Dimension, "SPEAKERID_DIMENSION")
	setInt(&cfg.RequiredClips, "SPEAKERID_REQUIRED_CLIPS")
	setFloat32(&cfg.Threshold, "SPEAKERID_THRESHOLD")
	setInt64(&cfg.MaxAudioBytes, "SPEAKERID_MAX_AUDIO_BYTES")

	setString(&cfg.Store.Backend, "SPEAKERID_STORE_BACKEND")
	setString(&cfg.Store.Dir, "SPEAKERID_STORE_DIR")

	setString(&cfg.Snapshot.Backend, "SPEAKERID_SNAPSHOT_BACKEND")
	setString(&cfg.Snapshot.Name, "SPEAKERID_SNAPSHOT_NAME")
	setString(&cfg.Snapshot.Dir, "SPEAKERID_SNAPSHOT_DIR")
	setString(&cfg.Snapshot.Bucket, "SPEAKERID_SNAPSHOT_BUCKET")
	setString(&cfg.Snapshot.Prefix, "SPEAKERID_SNAPSHOT_PREFIX")
	setString(&cfg.Snapshot.Endpoint, "SPEAKERID_SNAPSHOT_ENDPOINT")
	setString(&cfg.Snapshot.Region, "SPEAKERID_SNAPSHOT_REGION")
	setString(&cfg.Snapshot.AccessKey, "SPEAKERID_SNAPSHOT_ACCESS_KEY")
	setString(&cfg.Snapshot.SecretKey, "SPEAKERID_SNAPSHOT_SECRET_KEY")
	setString(&cfg.Snapshot.Codec, "SPEAKERID_SNAPSHOT_CODEC")
	setString(&cfg.Snapshot.Compression, "SPEAKERID_SNAPSHOT_COMPRESSION")

	setString(&cfg.Log.Level, "SPEAKERID_LOG_LEVEL")
	setString(&cfg.Log.Format, "SPEAKERID_LOG_FORMAT")
}

func (c *Config) validate() error {
	if c.RequiredClips <= 0 {
		return fmt.Errorf("required_clips must be positive, got %d", c.RequiredClips)
	}
	if c.Threshold < -1 || c.Threshold > 1 {
		return fmt.Errorf("threshold %v outside [-1, 1]", c.Threshold)
	}
	if c.MaxAudioBytes <= 0 {
		return fmt.Errorf("max_audio_bytes must be positive, got %d", c.MaxAudioBytes)
	}

	switch c.Store.Backend {
	case "memory":
	case "badger":
		if c.Store.Dir == "" {
			return errors.New("store.dir is required for the badger backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q (memory, badger)", c.Store.Backend)
	}

	switch c.Snapshot.Backend {
	case "", "local":
	case "s3", "minio":
		if c.Snapshot.Bucket == "" {
			return fmt.Errorf("snapshot.bucket is required for the %s backend", c.Snapshot.Backend)
		}
	default:
		return fmt.Errorf("unknown snapshot backend %q (local, s3, minio)", c.Snapshot.Backend)
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat32(dst *float32, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			*dst = float32(f)
		}
	}
}
