// Package main provides the static site export CLI.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/obiwac/obiwac.github.io/internal/buildinfo"
	"github.com/obiwac/obiwac.github.io/internal/config"
	"github.com/obiwac/obiwac.github.io/internal/content"
	"github.com/obiwac/obiwac.github.io/internal/exporter"
	"github.com/obiwac/obiwac.github.io/internal/renderer"
	"github.com/obiwac/obiwac.github.io/site"
)

func main() {
	cfg := config.Default()
	config.ApplyEnvOverrides(&cfg)

	flags := pflag.NewFlagSet("site-export", pflag.ExitOnError)
	flags.StringVarP(&cfg.ContentDir, "content", "c", cfg.ContentDir, "directory holding site.yaml, projects/ and blog/ (default: embedded)")
	flags.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "output directory for generated static site")
	flags.StringVar(&cfg.AssetsDir, "assets", cfg.AssetsDir, "directory overriding the embedded /public assets")
	flags.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "absolute site URL used in structured data (default: from site.yaml)")
	flags.BoolVar(&cfg.Downloads, "downloads", cfg.Downloads, "write PDF and Markdown copies of every article")
	clean := true
	flags.BoolVar(&clean, "clean", true, "wipe the output directory before exporting")

	if err := flags.Parse(os.Args[1:]); err != nil {
		slog.Error("flag parsing failed", slog.Any("err", err))
		os.Exit(1)
	}

	if err := config.Finalize(&cfg); err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("starting site-export", slog.String("version", buildinfo.Summary()))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	contentSvc, err := content.NewService(ctx, site.FS(), renderer.NewService(logger), logger, content.Options{
		Dir:     cfg.ContentDir,
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		cancel()
		logger.Error("load content failed", slog.Any("err", err))
		//nolint:gocritic // exitAfterDefer: cancel() explicitly called before os.Exit
		os.Exit(1)
	}
	defer contentSvc.Close()

	if err := exporter.New(logger).Export(ctx, contentSvc.Catalog(), exporter.Options{
		OutputDir:   cfg.OutputDir,
		AssetsDir:   cfg.AssetsDir,
		Downloads:   cfg.Downloads,
		CleanOutput: clean,
	}); err != nil {
		logger.Error("export failed", slog.Any("err", err))
		cancel()
		os.Exit(1)
	}

	logger.Info("export succeeded", slog.String("output", cfg.OutputDir))
}
