package main

import (
	"os"

	"github.com/spf13/cobra"

	"stringstack/internal/console"
	"stringstack/internal/logger"
	"stringstack/internal/session"
)

type playOptions struct {
	capacity    int
	sentinel    string
	drain       string
	historyFile string
}

func addPlayFlags(cmd *cobra.Command, opts *playOptions) {
	flags := cmd.Flags()
	flags.IntVarP(&opts.capacity, "capacity", "c", -1, "stack capacity; prompt for it when negative")
	flags.StringVarP(&opts.sentinel, "sentinel", "s", "", "token that stops reading (default from config)")
	flags.StringVar(&opts.drain, "drain", "", `drain policy, "capacity" or "length" (default from config)`)
	flags.StringVar(&opts.historyFile, "history", "", "readline history file for terminal input")
}

func newPlayCommand(a *app) *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Run an interactive stack session on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.play(cmd, &opts)
		},
	}
	addPlayFlags(cmd, &opts)
	return cmd
}

// sessionOptions merges the config with the flags that were set.
func (a *app) sessionOptions(cmd *cobra.Command, opts *playOptions) (session.Options, error) {
	sessOpts := a.cfg.SessionOptions()
	if cmd.Flags().Changed("sentinel") && opts.sentinel != "" {
		sessOpts.Sentinel = opts.sentinel
	}
	if cmd.Flags().Changed("drain") {
		if err := sessOpts.Drain.UnmarshalText([]byte(opts.drain)); err != nil {
			return sessOpts, err
		}
	}
	return sessOpts, nil
}

func (a *app) tokenSource(opts *playOptions) (session.TokenSource, func(), error) {
	if a.in == os.Stdin && console.IsTerminal() {
		historyFile := opts.historyFile
		if historyFile == "" {
			historyFile = a.cfg.HistoryFile
		}
		rl, err := console.NewReadline(historyFile)
		if err == nil {
			return rl, func() { rl.Close() }, nil
		}
		logger.Warnw("readline unavailable, falling back to plain input", "error", err)
	}
	return console.NewScanner(a.in, a.out), func() {}, nil
}

func (a *app) play(cmd *cobra.Command, opts *playOptions) error {
	sessOpts, err := a.sessionOptions(cmd, opts)
	if err != nil {
		return err
	}

	src, closeSrc, err := a.tokenSource(opts)
	if err != nil {
		return err
	}
	defer closeSrc()

	s := session.NewInteractive(src, a.out, sessOpts)
	var sum session.Summary
	if opts.capacity >= 0 {
		sum, err = s.RunWithCapacity(opts.capacity)
	} else {
		sum, err = s.Run()
	}
	if err != nil {
		return err
	}

	logger.Debugw("session finished",
		"capacity", sum.Capacity,
		"pushed", sum.Pushed,
		"overflows", sum.Overflows,
		"popped", len(sum.Values),
		"underflow", sum.Underflow,
	)
	return nil
}
