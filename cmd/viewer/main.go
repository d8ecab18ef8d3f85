// cmd/viewer/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mapping-viewer/internal/backend"
	"mapping-viewer/internal/campaign"
	"mapping-viewer/internal/common/config"
	"mapping-viewer/internal/common/database"
	"mapping-viewer/internal/common/logger"
	"mapping-viewer/internal/common/observability"
	"mapping-viewer/internal/engine/headless"
	"mapping-viewer/internal/eventloop"
	"mapping-viewer/internal/mapcmd"
	"mapping-viewer/internal/session"
	"mapping-viewer/internal/style"
	"mapping-viewer/pkg/registry"
)

var (
	cfgFile      string
	registryFile string
	logLevel     string
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "viewer",
		Short:         "Mobile mapping viewer driven by an agent backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runViewer,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (defaults to ./configs/config.yaml)")
	root.PersistentFlags().StringVar(&registryFile, "registry", "", "Path to a command registry JSON file (defaults to the embedded one)")
	root.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")

	root.AddCommand(newCommandsCmd())
	return root
}

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the map commands the viewer accepts",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "registry %s (updated %s)\n", reg.Version, reg.LastUpdated)
			for _, tag := range reg.Tags() {
				c, _ := reg.Lookup(tag)
				fmt.Fprintf(out, "  %-20s %-11s %s\n", c.Tag, c.Status, c.Description)
			}
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	return config.Load()
}

func loadRegistry() (*registry.CommandRegistry, error) {
	if registryFile == "" {
		return registry.Default(), nil
	}
	return registry.LoadRegistry(registryFile)
}

func runViewer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	zapLog := logger.NewRotating(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	decoder, err := mapcmd.NewDecoder(reg)
	if err != nil {
		return fmt.Errorf("command registry invalid: %w", err)
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := eventloop.New(log)
	go loop.Run(ctx)

	client := backend.NewClient(cfg.Backend, log)
	cache, closeCache := newCampaignCache(ctx, cfg, zapLog)
	defer closeCache()

	sess := session.New(session.Options{
		Map:          headless.NewMap(loop),
		Panorama:     headless.NewPanorama(),
		Backend:      client,
		Cache:        cache,
		Scheduler:    loop,
		Decoder:      decoder,
		Styles:       styleConfig(cfg),
		DefaultStyle: cfg.Map.DefaultStyle,
		FitPadding:   cfg.Map.FitPadding,
		NearbyRadius: cfg.Panorama.NearbyRadius,
		Obs:          obs,
		Logger:       log,
	})

	out := cmd.OutOrStdout()
	con := newConsole(ctx, sess, out)

	var ready atomic.Bool
	if err := loop.Do(ctx, func() {
		sess.Start(ctx, func(err error) {
			if err != nil {
				fmt.Fprintf(out, "campaign could not be loaded: %v\n", err)
				return
			}
			ready.Store(true)
			d := sess.Dataset()
			fmt.Fprintf(out, "campaign %s loaded: %d features, %d images\n", d.Name, len(d.Features()), len(d.Images()))
		})
	}); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		srv := newOpsServer(cfg.Metrics.Address, client, &ready, log)
		go func() {
			zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zapLog.Error("Health/Metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	fmt.Fprintln(out, "type a question, or /help")
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			zapLog.Info("Shutdown signal received, stopping viewer...")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit := false
			if err := loop.Do(ctx, func() { quit = con.handle(line) }); err != nil {
				return nil
			}
			if quit {
				zapLog.Info("Viewer stopped")
				return nil
			}
		}
	}
}

func styleConfig(cfg *config.Config) style.Config {
	return style.Config{
		Styles:         cfg.Map.Styles,
		ReadyTimeout:   config.GetDuration(cfg.Transition.ReadyTimeout),
		SettleDelay:    config.GetDuration(cfg.Transition.SettleDelay),
		HighlightDelay: config.GetDuration(cfg.Transition.HighlightDelay),
		TrailingGuard:  config.GetDuration(cfg.Transition.TrailingGuard),
	}
}

// newCampaignCache prefers Redis and falls back to an in-process cache when it is
// disabled or unreachable.
func newCampaignCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (campaign.Cache, func()) {
	ttl := time.Duration(cfg.Cache.CampaignTTL) * time.Second
	noop := func() {}
	if !cfg.Cache.Redis.Enabled {
		return campaign.NewMemoryCache(ttl), noop
	}

	redis, err := database.NewRedis(cfg.Cache.Redis)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = redis.Ping(pingCtx)
		cancel()
		if err != nil {
			_ = redis.Close()
		}
	}
	if err != nil {
		log.Warn("redis unavailable, caching campaign in memory", zap.Error(err))
		return campaign.NewMemoryCache(ttl), noop
	}
	log.Info("Redis connected successfully")
	return campaign.NewRedisCache(redis, ttl), func() { _ = redis.Close() }
}
