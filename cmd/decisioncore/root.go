package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aptmgmt/decisioncore/pkg/config"
	"github.com/aptmgmt/decisioncore/pkg/logging"
)

type rootFlags struct {
	configPath string
	debugMode  bool
	logFile    string
	logCloser  io.Closer
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	var logger *slog.Logger

	cmd := &cobra.Command{
		Use:   "decisioncore",
		Short: "decisioncore runs the resident decision pipeline",
		Long:  "decisioncore classifies resident messages, retrieves policy context, and simulates and scores candidate resolutions.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if flags.debugMode {
				level = slog.LevelDebug
			}
			l, rotating, err := logging.Setup(logging.Options{FilePath: flags.logFile, Level: level})
			if err != nil {
				return err
			}
			logger = l
			flags.logCloser = rotating
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if flags.logCloser != nil {
				return flags.logCloser.Close()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "decisioncore.yaml", "path to the configuration file")
	cmd.PersistentFlags().BoolVarP(&flags.debugMode, "debug", "d", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "path to a rotating JSON log file (stderr logging always happens)")

	loadConfig := func() (config.Config, error) {
		return config.Load(flags.configPath)
	}
	getLogger := func() *slog.Logger { return logger }

	cmd.AddCommand(newIngestCmd(loadConfig, getLogger))
	cmd.AddCommand(newRebuildCmd(loadConfig, getLogger))
	cmd.AddCommand(newAskCmd(loadConfig, getLogger))
	cmd.AddCommand(newSubmitCmd(loadConfig, getLogger))

	return cmd
}
