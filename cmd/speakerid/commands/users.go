package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List enrolled users",
	RunE:  runUsers,
}

func init() {
	rootCmd.AddCommand(usersCmd)
}

func runUsers(cmd *cobra.Command, args []string) error {
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

	users, err := engine.Users(cmd.Context())
	if err != nil {
		return err
	}

	if len(users) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No enrolled users")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tENROLLED\tCLIPS")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%d\n", u.Username, u.EnrolledAt.Format(time.RFC3339), u.ClipCount)
	}
	return w.Flush()
}
