package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tcgbot/am"
	"github.com/teranos/tcgbot/errors"
	"github.com/teranos/tcgbot/logger"
	"github.com/teranos/tcgbot/manifest"
	"github.com/teranos/tcgbot/server"
	"github.com/teranos/tcgbot/version"
)

// ServerCmd runs the bot API until interrupted
var ServerCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "Start the bot API, websocket stream and MCP endpoint",
	Long: `Start the HTTP API the dashboard talks to. Jobs run in the background
and are paced by the global posting gate. The first Ctrl+C shuts down
gracefully, letting in-flight posts finish; a second one exits immediately.`,
	RunE: runServer,
}

var (
	serverPort     int
	serverSeed     string
	serverSimulate bool
)

func init() {
	ServerCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Port to listen on (overrides server.port)")
	ServerCmd.Flags().StringVar(&serverSeed, "seed", "", "Job manifest (TOML) to create jobs from at startup")
	ServerCmd.Flags().BoolVar(&serverSimulate, "simulate", false, "Simulate posting even when credentials are configured")
}

func runServer(cmd *cobra.Command, args []string) error {
	verbosity, _ := cmd.Flags().GetCount("verbose")

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if serverPort != 0 {
		cfg.Server.Port = &serverPort
	}
	if serverSimulate {
		cfg.Bot.Simulate = true
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := buildApp(ctx, cfg)
	defer a.Close()

	if serverSeed != "" {
		m, err := manifest.Load(serverSeed)
		if err != nil {
			return err
		}
		if err := m.Check(version.Get().Version); err != nil {
			return err
		}
		if _, err := m.Apply(a.manager); err != nil {
			return errors.Wrapf(err, "failed to seed jobs from %s", serverSeed)
		}
	}

	srv := server.New(server.Deps{
		Config:    cfg,
		Manager:   a.manager,
		Generator: a.generator,
		Feed:      a.feed,
		Usage:     a.usage,
	})

	if path := am.ActiveConfigPath(); path != "" {
		watcher, err := am.NewConfigWatcher(path)
		if err != nil {
			logger.Warnw("Config hot reload disabled", "path", path, logger.FieldError, err)
		} else {
			watcher.OnReload(srv.Reload)
			watcher.Start()
			defer watcher.Stop()
		}
	}

	addr := fmt.Sprintf(":%d", cfg.GetServerPort())
	printStartupBanner(verbosity, cfg, a, addr)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run(ctx, addr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return errors.Wrap(err, "server stopped")
	case <-sigChan:
		pterm.Info.Println("Shutting down gracefully (press Ctrl+C again to force)...")
		cancel()

		select {
		case err := <-errChan:
			if err != nil {
				return errors.Wrap(err, "shutdown error")
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("Force shutdown - exiting immediately")
			os.Exit(1)
			return nil
		}
	}
}
