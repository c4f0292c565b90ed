// Package renderer turns markdown into sanitized HTML fragments. The pipeline
// runs parse, highlight, link/table rewrite, serialize and sanitize in that
// order, once per document.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	goldmarkmeta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/obiwac/obiwac.github.io/internal/metrics"
	"github.com/obiwac/obiwac.github.io/internal/renderer/event"
	"github.com/obiwac/obiwac.github.io/internal/renderer/sanitize"
	"github.com/obiwac/obiwac.github.io/internal/renderer/transform"
)

// Metadata captures optional front matter found at the top of a document.
type Metadata struct {
	Raw         map[string]any
	Title       string
	Description string
	Tags        []string
}

// IsZero reports whether the metadata carries any values.
func (m Metadata) IsZero() bool {
	if m.Title != "" || m.Description != "" || len(m.Tags) > 0 {
		return false
	}
	return len(m.Raw) == 0
}

// Document is a rendered markdown file.
//
//nolint:govet // field order optimized for readability, not memory
type Document struct {
	HTML     template.HTML
	Metadata Metadata
	Modified time.Time
	Raw      string
}

// NewMarkdown returns the parser configuration shared by every render: tables,
// strikethrough, bare URL autolinks and YAML front matter.
func NewMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.Strikethrough,
			extension.Linkify,
			goldmarkmeta.Meta,
		),
	)
}

var defaultMarkdown = sync.OnceValue(NewMarkdown)

// Render converts source into an HTML fragment that satisfies policy. A nil
// policy means sanitize.Default(). Malformed link or table structure fails the
// render with a *transform.RewriteError and no fragment.
func Render(source []byte, policy *sanitize.Policy) (template.HTML, error) {
	return render(defaultMarkdown(), source, policy, parser.NewContext())
}

func render(md goldmark.Markdown, source []byte, policy *sanitize.Policy, pc parser.Context) (template.HTML, error) {
	if policy == nil {
		policy = sanitize.Default()
	}

	doc := md.Parser().Parse(text.NewReader(source), parser.WithContext(pc))
	events := event.FromAST(doc, source)

	events, err := transform.Highlight(events)
	if err != nil {
		return "", fmt.Errorf("highlight: %w", err)
	}
	events, err = transform.Rewrite(events)
	if err != nil {
		return "", fmt.Errorf("rewrite: %w", err)
	}

	var buf bytes.Buffer
	if err := event.WriteHTML(&buf, events); err != nil {
		return "", fmt.Errorf("serialize: %w", err)
	}

	//nolint:gosec // sanitized against the allow-list above
	return template.HTML(policy.SanitizeBytes(buf.Bytes())), nil
}

type cacheEntry struct {
	modTime time.Time
	doc     Document
}

type cacheKey string

// Service renders documents through the pipeline, caching results by path and
// modification time.
type Service struct {
	md       goldmark.Markdown
	policy   *sanitize.Policy
	recorder metrics.Recorder
	logger   *slog.Logger
	cache    sync.Map // map[cacheKey]cacheEntry
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy replaces the default allow-list policy.
func WithPolicy(p *sanitize.Policy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithRecorder reports render timings to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Service) {
		s.recorder = metrics.OrNoop(r)
	}
}

// NewService constructs a renderer. If logger is nil, the default slog logger
// is used.
func NewService(logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		md:       NewMarkdown(),
		policy:   sanitize.Default(),
		recorder: metrics.NoopRecorder{},
		logger:   logger.With("component", "renderer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the allow-list policy the service sanitizes with.
func (s *Service) Policy() *sanitize.Policy {
	return s.policy
}

// Render converts content to a Document. A cached Document is returned when
// path was last rendered with the same non-zero modTime.
func (s *Service) Render(ctx context.Context, path string, modTime time.Time, content []byte) (Document, error) {
	start := time.Now()
	key := cacheKey(path)

	if entry, ok := s.cache.Load(key); ok {
		if cached, ok := entry.(cacheEntry); ok {
			if !cached.modTime.IsZero() && modTime.Equal(cached.modTime) {
				s.recorder.ObserveRender(metrics.OutcomeCached, time.Since(start))
				return cached.doc, nil
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	pc := parser.NewContext()
	html, err := render(s.md, content, s.policy, pc)
	if err != nil {
		s.recorder.ObserveRender(metrics.OutcomeFailed, time.Since(start))
		s.logger.Warn("render failed", slog.String("path", path), slog.Any("err", err))
		return Document{}, fmt.Errorf("render %s: %w", path, err)
	}

	doc := Document{
		HTML:     html,
		Metadata: extractMetadata(pc),
		Modified: modTime,
		Raw:      string(content),
	}

	s.cache.Store(key, cacheEntry{modTime: modTime, doc: doc})
	s.recorder.ObserveRender(metrics.OutcomeRendered, time.Since(start))
	s.logger.Debug("rendered", slog.String("path", path), slog.Duration("took", time.Since(start)))
	return doc, nil
}

// Fragment renders a short snippet (a summary or footer note) without front
// matter handling or caching.
func (s *Service) Fragment(source string) (template.HTML, error) {
	return render(s.md, []byte(source), s.policy, parser.NewContext())
}

// Invalidate drops the cached entry for path.
func (s *Service) Invalidate(path string) {
	s.cache.Delete(cacheKey(path))
}

// Reset drops every cached entry.
func (s *Service) Reset() {
	s.cache.Range(func(k, _ any) bool {
		s.cache.Delete(k)
		return true
	})
}

func extractMetadata(ctx parser.Context) Metadata {
	raw := goldmarkmeta.Get(ctx)
	var meta Metadata
	if raw == nil {
		return meta
	}

	meta.Raw = make(map[string]any, len(raw))
	for k, v := range raw {
		meta.Raw[k] = v
		switch k {
		case "title":
			if str, ok := toString(v); ok {
				meta.Title = str
			}
		case "description", "summary":
			if str, ok := toString(v); ok {
				meta.Description = str
			}
		case "tags", "keywords":
			meta.Tags = toStringSlice(v)
		}
	}

	if len(meta.Raw) == 0 {
		meta.Raw = nil
	}

	return meta
}

func toString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case fmt.Stringer:
		return val.String(), true
	default:
		return "", false
	}
}

func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if str, ok := toString(item); ok {
				out = append(out, str)
			}
		}
		return out
	case []string:
		return append([]string(nil), vv...)
	default:
		if str, ok := toString(v); ok {
			return []string{str}
		}
		return nil
	}
}
