// Package metrics holds the Prometheus collectors of the service. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "news_reader"

type Metrics struct {
	registry *prometheus.Registry

	stepDuration *prometheus.HistogramVec
	stepTotal    *prometheus.CounterVec
	articles     *prometheus.CounterVec
	evaluation   *prometheus.GaugeVec
	feedback     *prometheus.CounterVec
	requests     *prometheus.CounterVec
}

// New registers every collector on a fresh registry, alongside the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_step_duration_seconds",
			Help:      "Latency of single LLM extraction steps.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"step"}),
		stepTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_steps_total",
			Help:      "Extraction steps by outcome.",
		}, []string{"step", "outcome"}),
		articles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_processed_total",
			Help:      "Articles run through the pipeline by outcome.",
		}, []string{"outcome"}),
		evaluation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "evaluation_metric",
			Help:      "Latest evaluation result per metric.",
		}, []string{"metric"}),
		feedback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_total",
			Help:      "Viewer feedback events by kind.",
		}, []string{"feedback"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.stepDuration,
		m.stepTotal,
		m.articles,
		m.evaluation,
		m.feedback,
		m.requests,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveStep(step string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(elapsed.Seconds())
	m.stepTotal.WithLabelValues(step, outcome(err)).Inc()
}

func (m *Metrics) ArticleProcessed(err error) {
	if m == nil {
		return
	}
	m.articles.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) SetEvaluation(metric string, value float64) {
	if m == nil {
		return
	}
	m.evaluation.WithLabelValues(metric).Set(value)
}

func (m *Metrics) FeedbackRecorded(kind string) {
	if m == nil {
		return
	}
	m.feedback.WithLabelValues(kind).Inc()
}

func (m *Metrics) RequestServed(method, route string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
