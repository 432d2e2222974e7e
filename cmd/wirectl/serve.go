package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	wirehttp "github.com/artpar/typedwire/adapters/http"
	"github.com/artpar/typedwire/config"
	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/schema"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve message types, checking, conversion and the archive over HTTP.

With schemas.watch enabled, definition files are reloaded when they change.
The config file is watched too and reloaded on SIGHUP; only the fields
listed as reloadable take effect without a restart.

Endpoints:
  GET    /v1/types
  GET    /v1/types/{type}
  POST   /v1/check/{type}
  POST   /v1/convert/{type}
  GET    /v1/archive/{type}
  POST   /v1/archive/{type}
  GET    /v1/archive/{type}/{id}
  DELETE /v1/archive/{type}/{id}
  GET    /metrics              (when metrics.enabled)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}

	env.useGlobalLevel()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	types, err := env.watchTypes()
	if err != nil {
		return err
	}
	if w, ok := types.(*schema.Watcher); ok {
		defer w.Stop()
	}

	if holder := env.watchConfig(); holder != nil {
		defer holder.Stop()
	}

	archive, err := env.openArchive(ctx)
	if err != nil {
		return err
	}
	defer archive.Close()

	rc := wirehttp.RouterConfig{
		Types:   types,
		Formats: env.formats,
		Archive: archive,
		Version: version,
		Logger:  env.logger,
	}
	if env.promReg != nil {
		rc.MetricsHandler = promhttp.HandlerFor(env.promReg, promhttp.HandlerOpts{})
	}

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           wirehttp.NewRouter(rc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		env.logger.Info().Str("addr", serveAddr).Msg("serving")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	env.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// watchTypes returns the source of message types for the server: a
// watcher reloading the schema directories when schemas.watch is set, the
// types loaded at startup otherwise.
func (e *environment) watchTypes() (wirehttp.TypeSource, error) {
	if !e.cfg.Schemas.Watch {
		return wirehttp.StaticTypes(e.types), nil
	}

	w, err := schema.NewWatcher(e.logger, e.cfg.Schemas.Dirs...)
	if err != nil {
		return nil, err
	}
	w.OnChange(func(reg *message.Registry) {
		e.logger.Info().Int("types", len(reg.Types())).Msg("message types updated")
	})
	if e.metrics != nil {
		w.OnReload(e.metrics.ObserveSchemaReload)
	}
	if err := w.Start(); err != nil {
		return nil, err
	}
	return w, nil
}

// useGlobalLevel moves the level filter of the logger to the global level
// so that config reloads can change it.
func (e *environment) useGlobalLevel() {
	level, err := zerolog.ParseLevel(e.cfg.Logging.Level)
	if err != nil {
		return
	}
	zerolog.SetGlobalLevel(level)
	e.logger = e.logger.Level(zerolog.TraceLevel)
}

// watchConfig reloads the config file on change and on SIGHUP. Without a
// config file there is nothing to watch.
func (e *environment) watchConfig() *config.Holder {
	if _, err := os.Stat(cfgFile); err != nil {
		return nil
	}

	holder, err := config.NewHolder(cfgFile, e.logger)
	if err != nil {
		e.logger.Warn().Err(err).Msg("config reload disabled")
		return nil
	}

	holder.OnChange(e.applyConfig)
	if err := holder.WatchFile(); err != nil {
		e.logger.Warn().Err(err).Msg("config file watch disabled")
	}
	holder.WatchSignals()
	return holder
}

// applyConfig installs the reloadable fields of cfg that changed: the log
// level and the JSON indentation and default format served when a request
// names none.
func (e *environment) applyConfig(cfg *config.Config, changes config.Changes) {
	if changes.Has("logging.level") {
		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	}
	if changes.Has("codec.pretty") {
		e.formats.Replace(jsonFormat(cfg.Codec, e.metrics))
	}
	if changes.Has("codec.format") {
		if err := e.formats.SetDefault(cfg.Codec.Format); err != nil {
			e.logger.Error().Err(err).Msg("default wire format not changed")
		}
	}
	if e.metrics != nil {
		e.metrics.ObserveConfigReload()
	}
}
