package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/speakerid"
	"github.com/hupe1980/speakerid/cmd/speakerid/internal/server"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP speaker identification server",
	Long: `Run the HTTP speaker identification server.

Endpoints:
  GET    /                       health summary
  POST   /enroll                 multipart: username, clip_number, audio
  POST   /predict                multipart: audio
  GET    /enrolled-users         enrolled user listing
  DELETE /delete-user/{username} remove a user

With a memory store and a configured snapshot backend, the voiceprint
set is restored on startup and saved on clean shutdown.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "listen address (overrides config)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagListen != "" {
		cfg.Listen = flagListen
	}

	logger := newLogger(cfg)

	engine, closeStore, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("close store", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapshots := cfg.Snapshot.Backend != "" && cfg.Store.Backend == "memory"
	if snapshots && cfg.Snapshot.RestoreOnStart {
		bs, err := newBlobStore(cmd, cfg)
		if err != nil {
			return err
		}
		switch err := engine.LoadSnapshot(ctx, bs, cfg.Snapshot.Name); {
		case err == nil:
			logger.Info("snapshot restored", "name", cfg.Snapshot.Name)
		default:
			// A missing snapshot on first boot is expected; anything else
			// should stop the server before it serves an empty store.
			if code := speakerid.ErrorCode(err); code != "not_found" {
				return fmt.Errorf("restore snapshot: %w", err)
			}
			logger.Info("no snapshot found, starting empty", "name", cfg.Snapshot.Name)
		}
	}

	srv := server.New(engine, server.Options{
		Addr:          cfg.Listen,
		Logger:        logger,
		MaxAudioBytes: cfg.MaxAudioBytes,
	})

	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}

	if snapshots && cfg.Snapshot.SaveOnShutdown {
		bs, err := newBlobStore(cmd, cfg)
		if err != nil {
			return err
		}
		if err := engine.SaveSnapshot(cmd.Context(), bs, cfg.Snapshot.Name); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		logger.Info("snapshot saved", "name", cfg.Snapshot.Name)
	}

	return nil
}
