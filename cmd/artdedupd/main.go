package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"artdedup/internal/config"
	"artdedup/internal/daemonrun"
)

func main() {
	cmd := newRootCommand(nil)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "artdedupd: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCommand(onReady func(addr string)) *cobra.Command {
	var (
		configPath string
		logLevel   string
		quiet      bool
		dev        bool
	)

	cmd := &cobra.Command{
		Use:           "artdedupd",
		Short:         "Serve the artdedup catalog API and run duplicate scans",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(strings.TrimSpace(configPath))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: dev,
				Quiet:       quiet,
				OnReady:     onReady,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "Configuration file path")
	flags.StringVar(&logLevel, "log-level", "", "Override logging.level")
	flags.BoolVar(&quiet, "quiet", false, "Only write logs to the log file")
	flags.BoolVar(&dev, "dev", false, "Use development logging")
	return cmd
}
