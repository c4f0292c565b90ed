// Package metrics records render and request observations. Components take a
// Recorder and default to NoopRecorder, so metrics stay optional.
package metrics

import "time"

// Render outcomes.
const (
	OutcomeRendered = "rendered"
	OutcomeCached   = "cached"
	OutcomeFailed   = "failed"
)

// Recorder receives observations from the renderer, the catalog and the HTTP
// server.
type Recorder interface {
	ObserveRender(outcome string, d time.Duration)
	ObserveRequest(method, route string, status int, d time.Duration)
	IncCatalogReload(success bool)
	SetCatalogSize(projects, posts int)
}

// NoopRecorder drops everything.
type NoopRecorder struct{}

func (NoopRecorder) ObserveRender(string, time.Duration)               {}
func (NoopRecorder) ObserveRequest(string, string, int, time.Duration) {}
func (NoopRecorder) IncCatalogReload(bool)                             {}
func (NoopRecorder) SetCatalogSize(int, int)                           {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
