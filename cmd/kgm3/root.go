package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgPath string
	cfg     *Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:          "kgm3",
	Short:        "Multilingual embedding pipeline over knowledge-graph trained models",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := LoadConfig(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = newLogger(cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "kgm3.yaml", "path to the configuration file")
	rootCmd.AddCommand(embedCmd, topkCmd, indexCmd, searchCmd)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
