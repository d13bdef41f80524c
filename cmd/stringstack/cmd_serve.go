package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stringstack/internal/logger"
	"stringstack/internal/realtime"
	"stringstack/internal/session"
	"stringstack/internal/watcher"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		port       int
		scriptsDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stack sessions over REST and WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Port = port
			}
			if cmd.Flags().Changed("scripts") {
				a.cfg.ScriptsDir = scriptsDir
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.serve()
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	cmd.Flags().StringVar(&scriptsDir, "scripts", "", "directory of .stack scripts to watch")
	return cmd
}

func (a *app) serve() error {
	cfg := a.cfg
	log := logger.Named("serve")

	sessMgr := session.NewManager(cfg.MaxSessions, cfg.HistorySize, cfg.SessionOptions())
	rtServer := realtime.New(sessMgr)

	var scripts *watcher.Watcher
	if cfg.ScriptsDir != "" {
		scripts = watcher.New(cfg.ScriptsDir, cfg.SessionOptions(), rtServer.OnScriptResult)
		if err := scripts.Start(); err != nil {
			return err
		}
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: rtServer.Handler(),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		log.Infow("shutting down")
		if scripts != nil {
			scripts.Shutdown()
		}
		sessMgr.Shutdown()
		httpServer.Close()
	}()

	log.Infow("server listening", "port", cfg.Port, "scripts", cfg.ScriptsDir)
	fmt.Fprintf(a.out, "stringstack server running on http://localhost:%d\n", cfg.Port)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
