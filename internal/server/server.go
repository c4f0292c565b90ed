// Package server serves the portfolio over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/obiwac/obiwac.github.io/internal/appicon"
	"github.com/obiwac/obiwac.github.io/internal/buildinfo"
	"github.com/obiwac/obiwac.github.io/internal/config"
	"github.com/obiwac/obiwac.github.io/internal/content"
	"github.com/obiwac/obiwac.github.io/internal/exporter"
	"github.com/obiwac/obiwac.github.io/internal/metrics"
	"github.com/obiwac/obiwac.github.io/internal/pages"
	"github.com/obiwac/obiwac.github.io/static"
)

// Server wraps the HTTP server and the collaborators its handlers read from.
type Server struct { //nolint:govet // field order favors logical grouping over padding optimizations
	mux        *http.ServeMux
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger
	content    *content.Service
	pages      *pages.Renderer
	icons      *appicon.Set
	assets     fs.FS
	recorder   metrics.Recorder
	cfg        config.Config
}

// Options carries optional collaborators.
type Options struct {
	Recorder metrics.Recorder
	// MetricsHandler is mounted on /metrics when set.
	MetricsHandler http.Handler
}

// New constructs a Server with its routes and middleware registered.
func New(cfg config.Config, logger *slog.Logger, contentSvc *content.Service, opts Options) (*Server, error) {
	if contentSvc == nil {
		return nil, errors.New("content service must be provided")
	}
	if logger == nil {
		logger = slog.Default()
	}

	assets := static.Source(cfg.AssetsDir)
	renderer, err := pages.New(assets, pages.Options{Downloads: cfg.Downloads})
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	icons, err := appicon.Load(assets, static.AvatarSVG, contentSvc.Catalog().Site.BackgroundColor)
	if err != nil {
		return nil, fmt.Errorf("load app icon: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		logger:   logger.With("component", "http"),
		content:  contentSvc,
		pages:    renderer,
		icons:    icons,
		assets:   assets,
		recorder: metrics.OrNoop(opts.Recorder),
	}

	s.registerRoutes(opts.MetricsHandler)
	s.handler = chain(s.mux,
		recoveryMiddleware,
		metricsMiddleware(s.recorder),
		gzipMiddleware,
		loggingMiddleware(s.logger, cfg.Verbose),
	)

	return s, nil
}

func (s *Server) registerRoutes(metricsHandler http.Handler) {
	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("GET /{slug}", s.handleSlug)
	s.mux.HandleFunc("GET /manifest.json", s.handleManifest)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /public/icons/{name}", s.handleIcon)
	s.mux.HandleFunc("GET /public/{path...}", s.handleStatic)

	if s.cfg.Watch {
		s.mux.HandleFunc("GET /events", s.handleEvents)
	}
	if metricsHandler != nil {
		s.mux.Handle("GET /metrics", metricsHandler)
	}

	s.mux.HandleFunc("/", s.handleNotFound)
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start runs the HTTP server and optionally opens the browser.
// The server listens on cfg.Host:cfg.Port (port 0 picks a free port) and
// shuts down gracefully when ctx is canceled. It blocks until the server
// stops.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		_ = listener.Close()
		return fmt.Errorf("unexpected listener address type")
	}
	host := s.cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	serverURL := "http://" + net.JoinHostPort(host, strconv.Itoa(tcpAddr.Port))

	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if s.cfg.Watch {
		// Event streams stay open.
		s.httpServer.WriteTimeout = 0
	}

	errCh := make(chan error, 1)
	go func() {
		if _, err := fmt.Fprintf(os.Stdout, "site listening on %s\n", serverURL); err != nil {
			s.logger.Warn("failed to announce server address", slog.String("url", serverURL), slog.Any("err", err))
		}
		errCh <- s.httpServer.Serve(listener)
	}()

	if s.cfg.AutoOpen {
		go s.openBrowserWhenReady(ctx, serverURL)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.ErrorContext(ctx, "graceful shutdown failed", slog.Any("err", err))
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown gracefully stops the server with the provided context timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	c := s.content.Catalog()
	respondJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Version:  buildinfo.Summary(),
		Projects: len(c.Projects),
		Posts:    len(c.Posts),
		Loaded:   c.Loaded,
	})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	c := s.content.Catalog()
	s.renderPage(w, r, http.StatusOK, func(out io.Writer) error {
		return s.pages.Home(out, c)
	})
}

// handleSlug serves /{slug} pages and the /{slug}.pdf and /{slug}.md article
// downloads. Projects and posts never share a slug.
func (s *Server) handleSlug(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	c := s.content.Catalog()

	if ext := path.Ext(slug); ext != "" {
		format, ok := exporter.ParseFormat(ext)
		post, found := c.Post(strings.TrimSuffix(slug, ext))
		if !ok || !found || !s.cfg.Downloads {
			s.handleNotFound(w, r)
			return
		}
		s.handleDownload(w, r, post, format)
		return
	}

	if p, ok := c.Project(slug); ok {
		s.renderPage(w, r, http.StatusOK, func(out io.Writer) error {
			return s.pages.Project(out, c, p)
		})
		return
	}
	if p, ok := c.Post(slug); ok {
		s.renderPage(w, r, http.StatusOK, func(out io.Writer) error {
			return s.pages.Post(out, c, p)
		})
		return
	}
	s.handleNotFound(w, r)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, post *content.Post, format exporter.Format) {
	var buf bytes.Buffer
	if err := exporter.WriteArticle(&buf, post, format); err != nil {
		s.logger.ErrorContext(r.Context(), "article export failed",
			slog.Any("err", err),
			slog.String("slug", post.Slug),
			slog.String("format", string(format)))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", exporter.FileName(post, format)))
	http.ServeContent(w, r, "", post.Modified, bytes.NewReader(buf.Bytes()))
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	data, err := pages.Manifest(s.content.Catalog().Site)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "encode manifest failed", slog.Any("err", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/manifest+json")
	_, _ = w.Write(data)
}

// handleIcon serves the generated app-{size}.png icons and falls through to
// the bundled SVG icons for every other name.
func (s *Server) handleIcon(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	raw, ok := strings.CutPrefix(name, "app-")
	if !ok || !strings.HasSuffix(raw, ".png") {
		s.serveAsset(w, r, path.Join(static.IconsDir, name))
		return
	}

	size, err := appicon.ParseSize(strings.TrimSuffix(raw, ".png"))
	if err != nil {
		s.handleNotFound(w, r)
		return
	}
	data, err := s.icons.PNG(size)
	if errors.Is(err, appicon.ErrSize) {
		s.handleNotFound(w, r)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "rasterize app icon failed", slog.Any("err", err), slog.Int("size", size))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	s.serveAsset(w, r, r.PathValue("path"))
}

// serveAsset serves one file of the asset tree. Directories are never listed.
func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request, name string) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if !static.Has(s.assets, name) {
		s.handleNotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFileFS(w, r, s.assets, name)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	c := s.content.Catalog()
	s.renderPage(w, r, http.StatusNotFound, func(out io.Writer) error {
		return s.pages.NotFound(out, c)
	})
}

// handleEvents streams catalog reloads as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := s.content.Subscribe(ctx)

	if _, err := w.Write([]byte(": ready\n\n")); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			payload, err := encodeJSON(evt)
			if err != nil {
				s.logger.WarnContext(ctx, "encode sse event failed", slog.Any("err", err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// renderPage buffers a page so a failed render yields a bare 500 instead of
// a truncated document.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		s.logger.ErrorContext(r.Context(), "render page failed", slog.Any("err", err), slog.String("path", r.URL.Path))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = buf.WriteTo(w)
}

func (s *Server) openBrowserWhenReady(ctx context.Context, url string) {
	timer := time.NewTimer(300 * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		if err := openBrowser(ctx, url); err != nil {
			s.logger.WarnContext(ctx, "auto-open failed", slog.String("url", url), slog.Any("err", err))
		}
	}
}

func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	return cmd.Start()
}
