package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mcp-food-score/internal/classify"
	"mcp-food-score/internal/config"
	"mcp-food-score/internal/models"
	"mcp-food-score/internal/scoring"
)

func newScoreCmd(opts *rootOptions) *cobra.Command {
	var legacy bool
	cmd := &cobra.Command{
		Use:   "score <file|->",
		Short: "Score one food described as JSON {input, nutrients}",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			var sc models.ScoreContext
			if err := readJSON(cmd, args[0], &sc); err != nil {
				return err
			}

			flags := config.EnvFlags{Base: cfg.Flags}.Flags()
			if cmd.Flags().Changed("legacy") {
				flags.HealthScoreV2 = !legacy
			}

			scorer := scoring.NewScorer(logger, scoring.WithGenericOverrideSources(cfg.Scoring.Sources()...))
			return writeJSON(cmd, scorer.Evaluate(sc, flags))
		},
	}
	cmd.Flags().BoolVar(&legacy, "legacy", false, "Use the legacy scorer regardless of flags")
	return cmd
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file|->",
		Short: "Classify one food identification record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in models.FoodClassificationInput
			if err := readJSON(cmd, args[0], &in); err != nil {
				return err
			}
			return writeJSON(cmd, map[string]models.FoodKind{"kind": classify.Classify(in)})
		},
	}
}

// readJSON decodes path, or stdin when path is "-".
func readJSON(cmd *cobra.Command, path string, v interface{}) error {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
