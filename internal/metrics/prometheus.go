package metrics

import (
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "site"

// PrometheusRecorder implements Recorder with Prometheus collectors registered
// on its own registry.
type PrometheusRecorder struct {
	reg             *prom.Registry
	renderDuration  *prom.HistogramVec
	requests        *prom.CounterVec
	requestDuration *prom.HistogramVec
	reloads         *prom.CounterVec
	catalogSize     *prom.GaugeVec
}

// NewPrometheusRecorder registers the site collectors, plus the Go runtime and
// process collectors, on reg. A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		renderDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "markdown_render_duration_seconds",
			Help:      "Duration of markdown renders by outcome",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"outcome"}),
		requests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		requestDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prom.DefBuckets,
		}, []string{"route"}),
		reloads: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reloads_total",
			Help:      "Content catalog reloads by result",
		}, []string{"result"}),
		catalogSize: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_entries",
			Help:      "Entries in the current content catalog",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		pr.renderDuration,
		pr.requests,
		pr.requestDuration,
		pr.reloads,
		pr.catalogSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return pr
}

// Registry exposes the registry the recorder writes to.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *PrometheusRecorder) ObserveRender(outcome string, d time.Duration) {
	if p == nil {
		return
	}
	p.renderDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRequest(method, route string, status int, d time.Duration) {
	if p == nil {
		return
	}
	p.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCatalogReload(success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.reloads.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) SetCatalogSize(projects, posts int) {
	if p == nil {
		return
	}
	p.catalogSize.WithLabelValues("project").Set(float64(projects))
	p.catalogSize.WithLabelValues("post").Set(float64(posts))
}
