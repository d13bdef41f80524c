package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"stringstack/internal/config"
	"stringstack/internal/logger"
)

// app carries what every command needs: the loaded config and the console
// streams.
type app struct {
	cfg *config.Config
	in  io.Reader
	out io.Writer
}

func newRootCommand(a *app) *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:           "stringstack",
		Short:         "Fill a fixed-capacity string stack from the console, then pop it",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := logger.SetLevel(cfg.LogLevel); err != nil {
				logger.Warnw("ignoring log level", "level", cfg.LogLevel, "error", err)
			}
			a.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.play(cmd, &opts)
		},
	}
	addPlayFlags(cmd, &opts)
	cmd.SetIn(a.in)
	cmd.SetOut(a.out)

	cmd.AddCommand(
		newPlayCommand(a),
		newServeCommand(a),
	)
	return cmd
}

func main() {
	a := &app{in: os.Stdin, out: os.Stdout}
	if err := newRootCommand(a).Execute(); err != nil {
		logger.Errorw("stringstack failed", "error", err)
		logger.Logger.Sync()
		os.Exit(1)
	}
}
