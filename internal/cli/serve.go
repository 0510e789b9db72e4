package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/depreview/reviewbot/pkg/config"
	"github.com/depreview/reviewbot/pkg/console"
	"github.com/depreview/reviewbot/pkg/elmreview"
	"github.com/depreview/reviewbot/pkg/engine"
	"github.com/depreview/reviewbot/pkg/hostapi"
	"github.com/depreview/reviewbot/pkg/registry"
)

// registryCacheTTL bounds how long entries in the registry client's file
// cache are trusted before it refetches them. Only manifest and docs
// fetches go through that cache; polls and archive downloads do not.
const registryCacheTTL = 24 * time.Hour

// shutdownTimeout bounds how long serve waits for the HTTP server to drain
// in-flight connections after ctx is cancelled.
const shutdownTimeout = 5 * time.Second

func (c *CLI) serveCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine loop and operator console HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a TOML config file")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	registryClient, err := registry.NewClient(cfg.CacheDir, registryCacheTTL)
	if err != nil {
		return err
	}
	hostingClient := hostapi.NewClient(cfg.HostingToken)
	ruleEngine := elmreview.NewEngine(nil, c.Logger)

	consoleServer := console.NewServer(nil, cfg.OperatorSecret, cfg.IgnoreList, cfg.RedisAddr, c.Logger)

	eng := engine.New(registryClient, hostingClient, ruleEngine, consoleServer, engine.Config{
		CursorBaseline: cfg.PackageCountBase,
		IgnoreList:     cfg.IgnoreList,
		EnforcePRGuard: cfg.EnforcePRGuard,
	})
	consoleServer.SetEngine(eng)
	defer consoleServer.Close()

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: consoleServer.Router()}

	errs := make(chan error, 2)
	go func() {
		errs <- eng.Run(ctx)
	}()
	go func() {
		c.Logger.Info("console listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
			return
		}
		errs <- nil
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		c.Logger.Warn("console shutdown", "err", err)
	}

	if err := <-errs; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}
