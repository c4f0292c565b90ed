// Package config manages application configuration from environment variables and flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

const envPrefix = "SITE_"

// Config holds runtime configuration for the site server and exporter.
type Config struct {
	// ContentDir and AssetsDir override the embedded content and assets when set.
	ContentDir string
	AssetsDir  string
	OutputDir  string
	BaseURL    string
	Host       string
	Port       int
	AutoOpen   bool
	Watch      bool
	Metrics    bool
	Downloads  bool
	Verbose    bool
}

// Default returns ready-to-use defaults prior to env/flag overrides.
func Default() Config {
	return Config{
		OutputDir: "dist",
		Host:      "127.0.0.1",
		Port:      8000,
		Downloads: true,
	}
}

// RegisterFlags attaches configuration flags to the provided FlagSet.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.ContentDir, "content", "c", cfg.ContentDir, "directory holding site.yaml, projects/ and blog/ (default: embedded)")
	fs.StringVar(&cfg.AssetsDir, "assets", cfg.AssetsDir, "directory overriding the embedded /public assets")
	fs.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "output directory for static export")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "absolute site URL used in structured data (default: from site.yaml)")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "interface to bind the HTTP server")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to bind the HTTP server (0 = auto-assign)")
	fs.BoolVar(&cfg.AutoOpen, "auto-open", cfg.AutoOpen, "open the browser automatically after start")
	fs.BoolVarP(&cfg.Watch, "watch", "w", cfg.Watch, "reload content when files under --content change")
	fs.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "expose Prometheus metrics on /metrics")
	fs.BoolVar(&cfg.Downloads, "downloads", cfg.Downloads, "offer PDF and Markdown downloads of articles")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "enable verbose logging (HTTP requests)")
}

// ApplyEnvOverrides reads supported environment variables and overrides cfg in place.
func ApplyEnvOverrides(cfg *Config) {
	applyStringEnv("CONTENT", func(v string) { cfg.ContentDir = v })
	applyStringEnv("ASSETS", func(v string) { cfg.AssetsDir = v })
	applyStringEnv("OUT", func(v string) { cfg.OutputDir = v })
	applyStringEnv("BASE_URL", func(v string) { cfg.BaseURL = v })
	applyStringEnv("HOST", func(v string) { cfg.Host = v })
	applyIntEnv("PORT", func(v int) { cfg.Port = v })
	applyBoolEnv("AUTO_OPEN", func(v bool) { cfg.AutoOpen = v })
	applyBoolEnv("WATCH", func(v bool) { cfg.Watch = v })
	applyBoolEnv("METRICS", func(v bool) { cfg.Metrics = v })
	applyBoolEnv("DOWNLOADS", func(v bool) { cfg.Downloads = v })
	applyBoolEnv("VERBOSE", func(v bool) { cfg.Verbose = v })
}

func applyStringEnv(key string, apply func(string)) {
	if raw, ok := lookupNonEmpty(key); ok {
		apply(raw)
	}
}

func applyIntEnv(key string, apply func(int)) {
	if raw, ok := lookupNonEmpty(key); ok {
		if value, err := strconv.Atoi(raw); err == nil {
			apply(value)
		}
	}
}

func applyBoolEnv(key string, apply func(bool)) {
	if raw, ok := lookupNonEmpty(key); ok {
		if value, err := strconv.ParseBool(raw); err == nil {
			apply(value)
		}
	}
}

func lookupNonEmpty(key string) (string, bool) {
	raw, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return "", false
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", false
	}
	return value, true
}

// Finalize validates and normalizes paths.
func Finalize(cfg *Config) error {
	var err error
	if cfg.ContentDir, err = absOrEmpty(cfg.ContentDir); err != nil {
		return fmt.Errorf("resolve content directory: %w", err)
	}
	if cfg.AssetsDir, err = absOrEmpty(cfg.AssetsDir); err != nil {
		return fmt.Errorf("resolve assets directory: %w", err)
	}

	if cfg.Watch && cfg.ContentDir == "" {
		return errors.New("--watch needs --content: embedded content never changes")
	}

	// Allow port 0 for dynamic allocation, otherwise validate range
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = "127.0.0.1"
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = "dist"
	}

	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("base URL must be absolute: %q", cfg.BaseURL)
		}
		cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return nil
}

func absOrEmpty(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", nil
	}
	return filepath.Abs(dir)
}
