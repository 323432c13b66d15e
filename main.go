package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"promocopy/config"
)

var (
	verbose  bool
	settings config.Settings
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "promocopy",
	Short: "Promotional copy generation service",
	Long: `promocopy turns product requirements (and optional reference images) into
platform-specific promotional copy, optional image prompts and generated images.

Configuration is read from the environment; a .env file in the working
directory is loaded first when present.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		settings = config.Load()
		var err error
		logger, err = newLogger(settings.LogLevel, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(launchCmd)
	launchCmd.AddCommand(launchVLLMCmd)
	rootCmd.AddCommand(deployCmd)
	deployCmd.AddCommand(deployShowCmd)
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.AddCommand(mcpToolsCmd)
}

// exitCodeError carries a child process exit code back to main, which
// flushes the logger before exiting.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// exitCode maps an Execute error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec exitCodeError
	if errors.As(err, &ec) {
		return ec.code
	}
	return 1
}

func main() {
	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	var ec exitCodeError
	if err != nil && !errors.As(err, &ec) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}
