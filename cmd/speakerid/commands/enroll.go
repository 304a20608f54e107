package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <username> <clip-number> <audio-file>",
	Short: "Submit an enrollment clip for a user",
	Long: `Submit one enrollment clip for a user.

Clips are numbered 1..required_clips; when the last missing clip
arrives, the averaged voiceprint is committed.

With the badger store backend, enrollment state committed by one
invocation is visible to the next, so a user can be enrolled clip by
clip only within a single process (serve) or by submitting all clips to
the same command via repeated --also flags.

Examples:
  speakerid enroll anoushka 1 clip1.wav
  speakerid enroll anoushka 1 clip1.wav --also 2=clip2.wav --also 3=clip3.wav --also 4=clip4.wav`,
	Args: cobra.ExactArgs(3),
	RunE: runEnroll,
}

var flagAlso []string

func init() {
	enrollCmd.Flags().StringArrayVar(&flagAlso, "also", nil, "additional clips as <clip-number>=<audio-file>")

	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	username := args[0]
	clipNumber, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("clip-number must be an integer: %w", err)
	}

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

	clips := map[int]string{clipNumber: args[2]}
	for _, spec := range flagAlso {
		n, path, err := parseClipSpec(spec)
		if err != nil {
			return err
		}
		clips[n] = path
	}

	for n, path := range clips {
		audio, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read audio %s: %w", path, err)
		}

		resp, err := engine.Enroll(cmd.Context(), username, n, audio)
		if err != nil {
			return err
		}

		if resp.Complete {
			fmt.Fprintf(cmd.OutOrStdout(), "Enrollment complete for %s (%d clips)\n", username, resp.ClipsRequired)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Clip %d recorded (%d/%d)\n", n, resp.ClipsReceived, resp.ClipsRequired)
		}
	}

	return nil
}

func parseClipSpec(spec string) (int, string, error) {
	numStr, path, ok := strings.Cut(spec, "=")
	if ok && path != "" {
		if n, err := strconv.Atoi(numStr); err == nil {
			return n, path, nil
		}
	}
	return 0, "", fmt.Errorf("invalid clip spec %q, want <clip-number>=<audio-file>", spec)
}
