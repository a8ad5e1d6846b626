// Package main is the entry point for the wascap CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/capiscio/wascap/internal/config"
	"github.com/capiscio/wascap/internal/logging"
	"github.com/capiscio/wascap/pkg/keystore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagConfig   string
	flagLogLevel string
	flagKeysDir  string
)

// Loaded by the root command before any subcommand runs.
var (
	cfg    *config.Config
	logger = zap.NewNop()
)

// errNotValid makes the process exit 1 after a report was printed.
var errNotValid = errors.New("module claims are not valid")

var rootCmd = &cobra.Command{
	Use:   "wascap",
	Short: "WebAssembly capability claims",
	Long: `Sign WebAssembly modules with capability claims and verify them.

Claims are a signed token stored in a "jwt" custom section. The token is
bound to a hash of the module, so any change to the module after signing
is detected.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if flagLogLevel != "" {
			loaded.Log.Level = flagLogLevel
		}
		if flagKeysDir != "" {
			loaded.Keys.Dir = flagKeysDir
		}
		cfg = loaded
		logger = logging.New(cfg.Log)
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default $HOME/.wascap/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagKeysDir, "keys-dir", "", "Key directory (default $HOME/.wascap/keys)")
}

func openStore() (*keystore.FileStore, error) {
	return keystore.NewFileStore(cfg.Keys.Dir)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
