// Package root contains the root command for the application
package root

import (
	"fmt"
	"os"

	"fjacquet/statement-ledger/internal/config"
	"fjacquet/statement-ledger/internal/container"
	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/validation"

	"github.com/spf13/cobra"
)

// CommonFlags represents the flags that are common to multiple commands
type CommonFlags struct {
	Input       string
	Output      string
	Format      string
	MIME        string
	TemplateDir string
	LogLevel    string
}

var (
	// Log is the shared logger instance for commands. It is replaced by the
	// container logger once the configuration is loaded.
	Log = logging.Nop()

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "statement-ledger",
		Short: "A CLI tool to turn bank statements into validated ledgers.",
		Long: `statement-ledger reads bank statements (PDF, CSV, plain text or camt.053 XML),
detects their layout from a template registry, extracts every transaction and
reconciles the result against the running and declared balances.`,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to statement-ledger!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appContainer == nil {
				return
			}
			if err := appContainer.Close(); err != nil {
				Log.WithError(err).Warn("Failed to release resources")
			}
		},
		SilenceUsage: true,
	}

	// SharedFlags holds the values of the persistent flags
	SharedFlags = CommonFlags{}

	appContainer *container.Container
	appConfig    *config.Config
)

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Input, "input", "i", "", "Input file (a directory for batch)")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Output, "output", "o", "", "Output file (a directory for batch); stdout when empty")
	Cmd.PersistentFlags().StringVar(&SharedFlags.Format, "format", "csv", "Ledger output format: csv or json")
	Cmd.PersistentFlags().StringVar(&SharedFlags.MIME, "mime", "", "Declared MIME type of the input; derived from the extension when empty")
	Cmd.PersistentFlags().StringVar(&SharedFlags.TemplateDir, "template-dir", "", "Additional directory of layout templates")
	Cmd.PersistentFlags().StringVar(&SharedFlags.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
}

// setup loads .env and the configuration, applies flag overrides and builds
// the container.
func setup(cmd *cobra.Command, _ []string) error {
	envFile := config.LoadEnv()

	cfg, err := config.InitializeConfig()
	if err != nil {
		return err
	}
	if SharedFlags.LogLevel != "" {
		cfg.Log.Level = SharedFlags.LogLevel
	}
	if SharedFlags.TemplateDir != "" {
		cfg.Templates.Dirs = append(cfg.Templates.Dirs, SharedFlags.TemplateDir)
	}

	c, err := container.NewContainer(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	appContainer, appConfig = c, cfg
	Log = c.GetLogger()

	if envFile != "" {
		if info, err := os.Stat(envFile); err == nil {
			if err := validation.IsValidFilePermissions(info.Mode().Perm()); err != nil {
				Log.Warn("Environment file may expose the API key",
					logging.F(logging.FieldFile, envFile),
					logging.F(logging.FieldReason, err.Error()))
			}
		}
	}
	return nil
}

// GetContainer returns the container built for the running command, or nil
// before the command started.
func GetContainer() *container.Container {
	return appContainer
}

// GetConfig returns the loaded configuration, or nil before the command started.
func GetConfig() *config.Config {
	return appConfig
}

// SetContainer replaces the container. Tests use it to run subcommands
// without reading the environment.
func SetContainer(c *container.Container) {
	appContainer = c
	if c != nil {
		appConfig = c.GetConfig()
		Log = c.GetLogger()
	}
}
