// Package main provides the portfolio server entrypoint.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/obiwac/obiwac.github.io/internal/buildinfo"
	"github.com/obiwac/obiwac.github.io/internal/config"
	"github.com/obiwac/obiwac.github.io/internal/content"
	"github.com/obiwac/obiwac.github.io/internal/metrics"
	"github.com/obiwac/obiwac.github.io/internal/renderer"
	"github.com/obiwac/obiwac.github.io/internal/server"
	"github.com/obiwac/obiwac.github.io/site"
)

func main() {
	cfg := config.Default()
	config.ApplyEnvOverrides(&cfg)

	flags := pflag.NewFlagSet("site", pflag.ExitOnError)
	config.RegisterFlags(flags, &cfg)
	versionFlag := flags.Bool("version", false, "Print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		slog.Error("parse flags", slog.Any("err", err))
		os.Exit(1)
	}
	if *versionFlag {
		println(buildinfo.Summary())
		os.Exit(0)
	}
	if err := config.Finalize(&cfg); err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}

	logLevel := slog.LevelWarn
	if cfg.Verbose {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	logger = logger.With("app", "site")
	slog.SetDefault(logger)
	logger.Log(context.Background(), slog.LevelInfo-1, "starting site", slog.String("version", buildinfo.Summary()))

	ctx := context.Background()
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		recorder metrics.Recorder
		srvOpts  server.Options
	)
	if cfg.Metrics {
		prom := metrics.NewPrometheusRecorder(nil)
		recorder = prom
		srvOpts = server.Options{Recorder: prom, MetricsHandler: prom.Handler()}
	}

	rendererSvc := renderer.NewService(logger, renderer.WithRecorder(recorder))
	contentSvc, err := content.NewService(ctx, site.FS(), rendererSvc, logger, content.Options{
		Dir:      cfg.ContentDir,
		Watch:    cfg.Watch,
		BaseURL:  cfg.BaseURL,
		Recorder: recorder,
	})
	if err != nil {
		cancel()
		logger.Error("content service init failed", slog.Any("err", err))
		//nolint:gocritic // exitAfterDefer: cancel() explicitly called before os.Exit
		os.Exit(1)
	}
	defer func() {
		if err := contentSvc.Close(); err != nil {
			logger.Error("close content service", slog.Any("err", err))
		}
	}()

	srv, err := server.New(cfg, logger, contentSvc, srvOpts)
	if err != nil {
		cancel()
		logger.Error("server init failed", slog.Any("err", err))
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", slog.Any("err", err))
		}
	}()

	if err := srv.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("shutdown complete")
			return
		}
		logger.Error("server error", slog.Any("err", err))
		os.Exit(1)
	}
}
