package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"audio-analyzer/pkg/config"
	"audio-analyzer/pkg/features"
	"audio-analyzer/pkg/logging"
)

var (
	configFile string
	logLevel   string
	logFormat  string

	appConfig *config.Config
	appLogger *logrus.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "audio-analyzer",
	Short: "Per-segment audio feature extraction",
	Long: `Splits an audio clip into ten equal segments and reports RMS energy,
zero crossing rate, spectral centroid and spectral bandwidth for each one,
together with placeholder speaker and sentiment labels.

Run "serve" for the browser interface or "analyze" for a single file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is ./audio-analyzer.yaml, ./configs or $HOME/.config/audio-analyzer)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format (text, json)")
}

// initializeConfig loads configuration after flags are parsed. Explicit flags
// win over environment and file values.
func initializeConfig(cmd *cobra.Command) error {
	v, err := config.NewViper(configFile)
	if err != nil {
		return err
	}
	if err := bindFlags(cmd, v); err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	if used := v.ConfigFileUsed(); used != "" {
		logger.WithField("file", used).Debug("Using config file")
	}

	appConfig, appLogger = cfg, logger
	return nil
}

// flagKeys maps command line flags to their configuration keys.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
}

// bindFlags binds each changed flag with a configuration key to viper.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			lastErr = err
		}
	})
	return lastErr
}

func extractorConfig(cfg *config.Config) features.Config {
	return features.Config{
		FrameLength: cfg.Analysis.FrameLength,
		HopLength:   cfg.Analysis.HopLength,
	}
}
