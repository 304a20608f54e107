// Package commands implements the speakerid command tree.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	"github.com/hupe1980/speakerid"
	"github.com/hupe1980/speakerid/blobstore"
	miniostore "github.com/hupe1980/speakerid/blobstore/minio"
	s3store "github.com/hupe1980/speakerid/blobstore/s3"
	"github.com/hupe1980/speakerid/cmd/speakerid/internal/config"
	"github.com/hupe1980/speakerid/codec"
	"github.com/hupe1980/speakerid/extractor"
	"github.com/hupe1980/speakerid/store"
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "speakerid",
	Short: "Speaker identification by voiceprint",
	Long: `speakerid - enrollment and identification of speakers by voice.

Users enroll by submitting a fixed number of audio clips; the clip
embeddings are averaged into a voiceprint. Identification scores a probe
clip against every voiceprint by cosine similarity and accepts the best
match above a threshold.

Configuration is read from a YAML file (--config, default
./speakerid.yaml), a .env file and SPEAKERID_* environment variables.

Examples:
  speakerid serve --listen :5000
  speakerid enroll anoushka 1 clip1.wav
  speakerid identify probe.wav
  speakerid users
  speakerid delete anoushka
  speakerid snapshot save`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output")
}

func loadConfig() (*config.Config, error) {
	return config.Load(flagConfig)
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if flagVerbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

func newExtractor(cfg *config.Config) extractor.Extractor {
	if cfg.ExtractorURL != "" {
		return extractor.NewHTTPExtractor(cfg.ExtractorURL, func(o *extractor.HTTPOptions) {
			if cfg.Dimension > 0 {
				o.Dimension = cfg.Dimension
			}
		})
	}

	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = extractor.DefaultDimension
	}
	return extractor.NewFake(dimension)
}

// newStore opens the configured voiceprint store. The returned close
// function is a no-op for the memory backend.
func newStore(cfg *config.Config) (store.Store, func() error, error) {
	switch cfg.Store.Backend {
	case "badger":
		bst, err := store.NewBadgerStore(store.BadgerOptions{
			Dir:   cfg.Store.Dir,
			Codec: snapshotCodec(cfg),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open badger store: %w", err)
		}
		return bst, bst.Close, nil
	default:
		return store.NewMemoryStore(), func() error { return nil }, nil
	}
}

func newBlobStore(cmd *cobra.Command, cfg *config.Config) (blobstore.BlobStore, error) {
	snap := cfg.Snapshot
	switch snap.Backend {
	case "", "local":
		dir := snap.Dir
		if dir == "" {
			dir = "."
		}
		return blobstore.NewLocalStore(dir)
	case "s3":
		var loadOpts []func(*awsconfig.LoadOptions) error
		if snap.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(snap.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(cmd.Context(), loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
			if snap.Endpoint != "" {
				o.BaseEndpoint = aws.String(snap.Endpoint)
			}
		})
		return s3store.NewStore(client, snap.Bucket, snap.Prefix), nil
	case "minio":
		client, err := minio.New(snap.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(snap.AccessKey, snap.SecretKey, ""),
			Secure: snap.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("connect minio: %w", err)
		}
		return miniostore.NewStore(client, snap.Bucket, snap.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", snap.Backend)
	}
}

func snapshotCodec(cfg *config.Config) codec.Codec {
	c, ok := codec.ByName(cfg.Snapshot.Codec)
	if !ok {
		return codec.Default
	}
	return c
}

func newEngine(cfg *config.Config, logger *slog.Logger) (*speakerid.Engine, func() error, error) {
	st, closeStore, err := newStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	compression, ok := store.CompressionByName(cfg.Snapshot.Compression)
	if !ok {
		_ = closeStore()
		return nil, nil, fmt.Errorf("unknown snapshot compression %q", cfg.Snapshot.Compression)
	}

	opts := []speakerid.Option{
		speakerid.WithRequiredClips(cfg.RequiredClips),
		speakerid.WithThreshold(cfg.Threshold),
		speakerid.WithLogger(speakerid.NewLogger(logger.Handler())),
		speakerid.WithCodec(snapshotCodec(cfg)),
		speakerid.WithCompression(compression),
	}
	if cfg.Dimension > 0 {
		opts = append(opts, speakerid.WithDimension(cfg.Dimension))
	}

	engine, err := speakerid.New(newExtractor(cfg), st, opts...)
	if err != nil {
		_ = closeStore()
		return nil, nil, err
	}
	return engine, closeStore, nil
}
