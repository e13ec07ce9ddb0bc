package main

import (
	"fmt"
	"os"

	"mood/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

const programName = "mood"

var (
	globalFlags = struct {
		debug   bool
		envFile string
	}{}
	cfg config.Config
)

// newLogger builds the process logger, human readable in dev.
func newLogger(dev bool) (*zap.SugaredLogger, error) {
	var (
		base *zap.Logger
		err  error
	)
	if dev || globalFlags.debug {
		base, err = zap.NewDevelopment()
	} else {
		base, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return base.Sugar().With("component", programName), nil
}

func commonRun() (*zap.SugaredLogger, error) {
	logger, err := newLogger(cfg.IsDevEnvironment())
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if _, err := maxprocs.Set(maxprocs.Logger(logger.Infof)); err != nil {
		return nil, fmt.Errorf("failed to set GOMAXPROCS: %w", err)
	}
	return logger, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Team mood polling service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(globalFlags.envFile)
			if err != nil {
				return err
			}
			if globalFlags.debug {
				loaded.DB.Debug = true
			}
			cfg = loaded
			return nil
		},
	}

	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.envFile, "env-file", ".env", "path to an optional .env file")

	serve := serveCommand()
	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(migrateCommand())
	// Running the binary without a subcommand starts the server
	rootCmd.RunE = serve.RunE

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
