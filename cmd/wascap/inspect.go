package main

import (
	"fmt"
	"os"
	"time"

	"github.com/capiscio/wascap/pkg/report"
	"github.com/capiscio/wascap/pkg/wasm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	inspectJSON bool
	inspectYAML bool
	inspectRaw  bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Extract and verify the claims in a module",
	Long: `Extract the claims token from a module, verify its signature and module
hash, and show the claims. Exits with status 1 unless the claims are valid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if inspectJSON && inspectYAML {
			return fmt.Errorf("--json and --yaml are mutually exclusive")
		}
		format := report.FormatText
		switch {
		case inspectJSON:
			format = report.FormatJSON
		case inspectYAML:
			format = report.FormatYAML
		}

		module, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read module: %w", err)
		}

		now := time.Now()
		embedder := wasm.NewEmbedder(wasm.Options{Logger: logger})
		v, verifyErr := embedder.Verify(module, now)
		logger.Debug("inspected module", zap.String("file", args[0]), zap.Stringer("outcome", v.Outcome), zap.Error(verifyErr))

		result := report.New(args[0], module, v, verifyErr, now, inspectRaw)
		if err := report.Write(cmd.OutOrStdout(), result, format); err != nil {
			return err
		}
		if !result.Success {
			return errNotValid
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Output results as JSON")
	inspectCmd.Flags().BoolVar(&inspectYAML, "yaml", false, "Output results as YAML")
	inspectCmd.Flags().BoolVar(&inspectRaw, "raw", false, "Include the raw token")
}
