package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/tickship/tickship"
	"github.com/tickship/tickship/internal/cliconfig"
	logpkg "github.com/tickship/tickship/pkg/log"
)

const helpDescription = `
Stream Home Assistant state changes and logbook entries into a kdb+
tickerplant over the native q IPC protocol.

Highlights:
  - Reconnects to the tickerplant on a fixed interval; events arriving while
    the endpoint is down are dropped, never queued.
  - Filters by entity id or domain; configure via file, env, or flags.
  - Requires a Home Assistant long-lived access token.
`

var longHelp = strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  tickship --hass-token <token>
  tickship --host kdb.local --port 5010 --include sensor,climate
  tickship --config $HOME/.tickship/config.toml
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "tickship",
		Short:   "Stream Home Assistant events into a kdb+ tickerplant",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Determine config path
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment variables (TICKSHIP_*) override file config but
			// are overridden by flags (checked via changed map).
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			if cfg.Debug {
				log = log.Level(zerolog.DebugLevel)
			} else {
				log = log.Level(zerolog.InfoLevel)
			}

			// Log configuration, masking secrets.
			logCfg := cfg
			if len(logCfg.HassToken) > 0 {
				logCfg.HassToken = "*****"
			}
			if len(logCfg.Password) > 0 {
				logCfg.Password = "*****"
			}
			log.Info().Interface("config", logCfg).Msg("configuration")

			zerologAdapter := logpkg.NewZerologAdapterWithLogger(log)

			b, err := tickship.New(cfg, tickship.WithLogger(zerologAdapter))
			if err != nil {
				return fmt.Errorf("create tickship: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			if cfg.MetricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.Error().Err(err).Msg("metrics listener failed")
					}
				}()
				defer func() {
					shutCtx, shutCancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer shutCancel()
					_ = srv.Shutdown(shutCtx)
				}()
			}

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				watcher := cliconfig.NewWatcher(cfgFile, zerologAdapter, func() {
					log.Info().Str("path", cfgFile).Msg("config file changed; restart required to apply")
				})
				go watcher.Run(ctx)
			}

			if err := b.Start(ctx); err != nil {
				return fmt.Errorf("start tickship: %w", err)
			}

			// Detect crash (e.g. fatal auth failure against Home Assistant).
			doneCh := make(chan struct{})
			go func() {
				ticker := time.NewTicker(100 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						status := b.Status()
						if status == tickship.StateStopped || status == tickship.StateCrashed {
							close(doneCh)
							return
						}
					}
				}
			}()

			select {
			case <-sigCh:
				log.Info().Msg("received signal, stopping...")
			case <-doneCh:
				if b.Status() == tickship.StateCrashed {
					log.Error().Msg("tickship crashed")
				}
			}

			// A crashed bridge has nothing left to stop.
			if err := b.Stop(); err != nil && !errors.Is(err, tickship.ErrNotRunning) {
				return fmt.Errorf("stop tickship: %w", err)
			}
			return nil
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.tickship/config.toml)")

	root.Flags().StringVar(&cfg.Host, "host", cfg.Host, "tickerplant host")
	root.Flags().IntVar(&cfg.Port, "port", cfg.Port, "tickerplant port")
	root.Flags().StringVar(&cfg.User, "user", cfg.User, "tickerplant username")
	root.Flags().StringVar(&cfg.Password, "password", cfg.Password, "tickerplant password")
	root.Flags().StringVar(&cfg.Table, "table", cfg.Table, "host tag stamped on every published event")
	root.Flags().StringVar(&cfg.UpdateFunc, "update-func", cfg.UpdateFunc, "remote function invoked per event")

	root.Flags().StringSliceVar(&cfg.Include, "include", cfg.Include, "entity ids or domains to include (empty includes all)")
	root.Flags().StringSliceVar(&cfg.Exclude, "exclude", cfg.Exclude, "entity ids to exclude (wins over include)")

	root.Flags().StringVar(&cfg.HassURL, "hass-url", cfg.HassURL, "Home Assistant websocket URL")
	root.Flags().StringVar(&cfg.HassToken, "hass-token", cfg.HassToken, "Home Assistant long-lived access token")

	root.Flags().DurationVar(&cfg.RetryInterval, "retry-interval", cfg.RetryInterval, "pause between tickerplant reconnect attempts")
	root.Flags().DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "tickerplant TCP connect timeout")
	root.Flags().IntVar(&cfg.MaxFrameBytes, "max-frame-bytes", cfg.MaxFrameBytes, "maximum inbound IPC frame size")
	root.Flags().BoolVar(&cfg.Compress, "compress", cfg.Compress, "compress large outbound IPC messages")

	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (empty disables)")
	root.Flags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("tickship")
		os.Exit(1)
	}
}
