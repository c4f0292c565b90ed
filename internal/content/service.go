// Package content loads the site catalog (site settings, projects and blog
// posts) and keeps it current while the source directory changes.
package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/obiwac/obiwac.github.io/internal/metrics"
	"github.com/obiwac/obiwac.github.io/internal/renderer"
)

// Event types sent to subscribers.
const (
	EventReloaded = "reloaded"
	EventFailed   = "failed"
)

// Event describes a catalog change.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Path      string    `json:"path,omitempty"`
	Err       string    `json:"error,omitempty"`
}

// Service owns the current catalog snapshot.
type Service struct {
	ctx         context.Context
	fsys        fs.FS
	logger      *slog.Logger
	watcher     *fsnotify.Watcher
	renderer    *renderer.Service
	recorder    metrics.Recorder
	cancel      context.CancelFunc
	catalog     atomic.Pointer[Catalog]
	subscribers map[uint64]*subscriber
	dir         string
	baseURL     string
	subCounter  atomic.Uint64
	subsMu      sync.RWMutex
	rebuildMu   sync.Mutex
}

type subscriber struct {
	ctx context.Context
	ch  chan Event
}

// Options configures the content service.
type Options struct {
	// Dir is the on-disk content directory. When set it replaces fsys and can
	// be watched.
	Dir string
	// Watch rebuilds the catalog when files under Dir change.
	Watch bool
	// BaseURL replaces the base_url of site.yaml when set.
	BaseURL  string
	Recorder metrics.Recorder
}

// NewService loads the catalog from fsys, or from opts.Dir when given.
func NewService(parentCtx context.Context, fsys fs.FS, rendererSvc *renderer.Service, logger *slog.Logger, opts Options) (*Service, error) {
	if rendererSvc == nil {
		return nil, errors.New("renderer service must be provided")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var dir string
	if opts.Dir != "" {
		abs, err := filepath.Abs(opts.Dir)
		if err != nil {
			return nil, fmt.Errorf("resolve content dir: %w", err)
		}
		dir = abs
		fsys = os.DirFS(abs)
	}
	if fsys == nil {
		return nil, errors.New("content source must be provided")
	}
	if opts.Watch && dir == "" {
		return nil, errors.New("watching requires a content directory")
	}

	ctx, cancel := context.WithCancel(parentCtx)

	svc := &Service{
		ctx:         ctx,
		fsys:        fsys,
		dir:         dir,
		baseURL:     opts.BaseURL,
		renderer:    rendererSvc,
		recorder:    metrics.OrNoop(opts.Recorder),
		logger:      logger.With("component", "content_service"),
		cancel:      cancel,
		subscribers: make(map[uint64]*subscriber),
	}

	if err := svc.Reload(ctx); err != nil {
		cancel()
		return nil, err
	}

	if opts.Watch {
		if err := svc.startWatcher(); err != nil {
			cancel()
			return nil, err
		}
	}

	return svc, nil
}

// Close stops watching.
func (s *Service) Close() error {
	s.cancel()
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// Catalog returns the current snapshot. It is never nil after NewService
// succeeds.
func (s *Service) Catalog() *Catalog {
	return s.catalog.Load()
}

// Renderer returns the renderer the catalog was built with.
func (s *Service) Renderer() *renderer.Service {
	return s.renderer
}

// Reload rebuilds the catalog. On failure the previous snapshot stays in
// place.
func (s *Service) Reload(ctx context.Context) error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	catalog, err := Load(ctx, s.fsys, s.renderer)
	s.recorder.IncCatalogReload(err == nil)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}
	if s.baseURL != "" {
		catalog.Site.BaseURL = s.baseURL
	}
	s.catalog.Store(catalog)
	s.recorder.SetCatalogSize(len(catalog.Projects), len(catalog.Posts))
	s.logger.Info("catalog loaded",
		slog.Int("projects", len(catalog.Projects)),
		slog.Int("posts", len(catalog.Posts)))
	return nil
}

// Subscribe registers for change events. The returned channel will close when ctx is done.
func (s *Service) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 8)
	id := s.subCounter.Add(1)

	s.subsMu.Lock()
	s.subscribers[id] = &subscriber{ctx: ctx, ch: ch}
	s.subsMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.ctx.Done():
		}
		s.removeSubscriber(id)
	}()

	return ch
}

func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	s.watcher = watcher

	if err := s.watchRecursive(s.dir); err != nil {
		return err
	}

	go s.runWatcher()
	return nil
}

func (s *Service) runWatcher() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("watcher error", slog.Any("err", err))
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) handleEvent(event fsnotify.Event) {
	if event.Name == "" || !relevant(event.Op) {
		return
	}

	rel := s.relativePath(event.Name)
	if hidden(rel) {
		return
	}
	s.logger.Debug("fsnotify event", slog.String("path", rel), slog.String("op", event.Op.String()))

	if isMarkdownPath(rel) {
		s.renderer.Invalidate(rel)
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = s.watchRecursive(event.Name)
		}
	}

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if err := s.Reload(ctx); err != nil {
		s.logger.Error("rebuild catalog failed, keeping previous", slog.String("path", rel), slog.Any("err", err))
		s.broadcast(Event{Type: EventFailed, Path: rel, Err: err.Error(), Timestamp: time.Now()})
		return
	}
	s.broadcast(Event{Type: EventReloaded, Path: rel, Timestamp: time.Now()})
}

func (s *Service) broadcast(evt Event) {
	s.subsMu.RLock()
	var stale []uint64
	for id, sub := range s.subscribers {
		select {
		case <-sub.ctx.Done():
			stale = append(stale, id)
		case <-s.ctx.Done():
			stale = append(stale, id)
		case sub.ch <- evt:
		default:
			// drop event when subscriber lags
		}
	}
	s.subsMu.RUnlock()

	for _, id := range stale {
		s.removeSubscriber(id)
	}
}

func (s *Service) removeSubscriber(id uint64) {
	s.subsMu.Lock()
	if sub, ok := s.subscribers[id]; ok {
		close(sub.ch)
		delete(s.subscribers, id)
	}
	s.subsMu.Unlock()
}

func (s *Service) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != s.dir {
				return filepath.SkipDir
			}
			if err := s.watcher.Add(path); err != nil {
				s.logger.Warn("failed to watch directory", slog.String("path", path), slog.Any("err", err))
			}
		}
		return nil
	})
}

func (s *Service) relativePath(abs string) string {
	rel, err := filepath.Rel(s.dir, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

func relevant(op fsnotify.Op) bool {
	return op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

// hidden covers editor swap files and dot directories.
func hidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
		if strings.HasSuffix(part, "~") {
			return true
		}
	}
	return false
}
