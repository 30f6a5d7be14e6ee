package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	metricsadapter "github.com/bnema/afkguard/internal/adapters/metrics/prometheus"
	"github.com/bnema/afkguard/internal/adapters/ndjson"
	"github.com/bnema/afkguard/internal/application"
	"github.com/bnema/afkguard/internal/config"
	"github.com/bnema/afkguard/internal/scheduler"
	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newRunCmd(load appLoader) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the AFK engine, reading session events from stdin",
		Long:  "run reads newline-delimited JSON session events (join, quit, activity, toggle, force, return, grant, revoke) from stdin and writes host actions (remove, relocate, message, return_result) to stdout.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			if metricsAddr != "" {
				app.cfg.Metrics.Addr = metricsAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, app, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")

	return cmd
}

func serve(ctx context.Context, app *app, in io.Reader, out io.Writer) error {
	sched := scheduler.New(app.log.WithName("scheduler"), app.cfg.Scheduler.Workers)
	defer sched.Stop()

	sink := ndjson.NewSink(out)
	engine := application.NewEngine(app.cfg.Settings(), application.Deps{
		Store:        app.store,
		Transactions: app.txlog,
		Permissions:  app.resolver,
		Sink:         sink,
		Notifier:     sink,
		World:        app.world,
		Scheduler:    sched,
		Log:          app.log,
	})

	collector := metricsadapter.NewCollector()
	collector.Attach(engine.Bus())
	if app.cfg.Metrics.Addr != "" {
		shutdown, err := serveMetrics(app, collector)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	app.watchConfig(engine)

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	source := ndjson.NewSource(engine, app.resolver, sink, app.log.WithName("ndjson"))
	runErr := source.Run(ctx, in)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var result *multierror.Error
	if runErr != nil {
		result = multierror.Append(result, runErr)
	}
	if err := engine.Stop(stopCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("stop engine: %w", err))
	}
	return result.ErrorOrNil()
}

func serveMetrics(app *app, collector *metricsadapter.Collector) (func(), error) {
	ln, err := net.Listen("tcp", app.cfg.Metrics.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics on %s: %w", app.cfg.Metrics.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.Error(err, "metrics server stopped")
		}
	}()
	app.log.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// watchConfig reloads settings and permission grants when the config file
// changes. Invalid edits are logged and the previous settings stay active.
func (a *app) watchConfig(engine *application.Engine) {
	if a.viper.ConfigFileUsed() == "" {
		return
	}

	a.viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := config.Load(a.viper)
		if err != nil {
			a.log.Error(err, "reload config, keeping previous settings", "file", e.Name)
			return
		}
		a.resolver.Replace(cfg.Permissions.Defaults, cfg.SessionGrants())
		engine.Reload(cfg.Settings())
		a.log.Info("config reloaded", "file", e.Name)
	})
	a.viper.WatchConfig()
}
