package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete an enrolled user",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	engine, closeStore, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore() //nolint:errcheck

	if err := engine.Remove(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "User %s deleted\n", args[0])
	return nil
}
