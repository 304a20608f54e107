package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save or restore a voiceprint snapshot",
	Long: `Save or restore the full voiceprint set as a single snapshot blob.

The blob backend, key, codec and compression come from the snapshot
section of the configuration. Restore requires the memory store backend;
the badger backend is durable on its own.

Examples:
  speakerid snapshot save
  speakerid snapshot load --name voiceprints-2026-08-29.snap`,
}

var flagSnapshotName string

var snapshotSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the current voiceprint set to the snapshot backend",
	RunE:  runSnapshotSave,
}

var snapshotLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Replace the voiceprint set from a snapshot",
	RunE:  runSnapshotLoad,
}

func init() {
	snapshotCmd.PersistentFlags().StringVar(&flagSnapshotName, "name", "", "snapshot blob name (overrides config)")

	snapshotCmd.AddCommand(snapshotSaveCmd)
	snapshotCmd.AddCommand(snapshotLoadCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshotSave(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagSnapshotName != "" {
		cfg.Snapshot.Name = flagSnapshotName
	}
	logger := newLogger(cfg)

	engine, closeStore, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore() //nolint:errcheck

	bs, err := newBlobStore(cmd, cfg)
	if err != nil {
		return err
	}

	if err := engine.SaveSnapshot(cmd.Context(), bs, cfg.Snapshot.Name); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Snapshot saved: %s\n", cfg.Snapshot.Name)
	return nil
}

func runSnapshotLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagSnapshotName != "" {
		cfg.Snapshot.Name = flagSnapshotName
	}
	logger := newLogger(cfg)

	engine, closeStore, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore() //nolint:errcheck

	bs, err := newBlobStore(cmd, cfg)
	if err != nil {
		return err
	}

	if err := engine.LoadSnapshot(cmd.Context(), bs, cfg.Snapshot.Name); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Snapshot loaded: %s\n", cfg.Snapshot.Name)
	return nil
}
