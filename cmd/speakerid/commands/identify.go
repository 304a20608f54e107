package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/speakerid"
)

var flagJSON bool

var identifyCmd = &cobra.Command{
	Use:   "identify <audio-file>",
	Short: "Identify the speaker in an audio clip",
	Long: `Identify the speaker in an audio clip.

The probe embedding is scored against every enrolled voiceprint; the
best match is reported when it clears the similarity threshold,
otherwise the speaker is Unknown.

Examples:
  speakerid identify probe.wav
  speakerid identify probe.wav --json`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	identifyCmd.Flags().BoolVar(&flagJSON, "json", false, "emit the full result as JSON")

	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	audio, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read audio %s: %w", args[0], err)
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

	resp, err := engine.Identify(cmd.Context(), audio)
	if errors.Is(err, speakerid.ErrNoEnrolledUsers) {
		return errors.New("no enrolled users, run 'speakerid enroll' first")
	}
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if resp.Matched {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (confidence %.3f, threshold %.2f)\n",
			resp.Prediction, resp.Confidence, resp.Threshold)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (best %.3f below threshold %.2f)\n",
			speakerid.UnknownSpeaker, resp.Confidence, resp.Threshold)
	}
	return nil
}
