// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ttbt-io/lineupkeeper/backend/generator"
	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

// Metrics holds the Prometheus collectors of one server. A nil *Metrics
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpLatency      *prometheus.HistogramVec
	validations      prometheus.Counter
	violations       *prometheus.CounterVec
	autofills        *prometheus.CounterVec
	generateAttempts *prometheus.CounterVec
	generateLatency  prometheus.Histogram
	wsClients        prometheus.Gauge
}

// NewMetrics registers the collectors on a fresh registry. teamCount and
// gameCount, when set, are exported as gauges.
func NewMetrics(teamCount, gameCount func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lineupkeeper_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lineupkeeper_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		validations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lineupkeeper_validations_total",
			Help: "Rotation validations run.",
		}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lineupkeeper_violations_total",
			Help: "Violations found by validations, by kind.",
		}, []string{"kind"}),
		autofills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lineupkeeper_autofills_total",
			Help: "Autofill operations by scope.",
		}, []string{"scope"}),
		generateAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lineupkeeper_generate_attempts_total",
			Help: "External rotation generation attempts by outcome.",
		}, []string{"outcome"}),
		generateLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lineupkeeper_generate_duration_seconds",
			Help:    "External rotation generation latency.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lineupkeeper_websocket_clients",
			Help: "Connected websocket clients.",
		}),
	}
	m.registry.MustRegister(
		m.httpRequests, m.httpLatency, m.validations, m.violations,
		m.autofills, m.generateAttempts, m.generateLatency, m.wsClients,
		collectors.NewGoCollector(),
	)
	if teamCount != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "lineupkeeper_teams",
			Help: "Live teams.",
		}, func() float64 { return float64(teamCount()) }))
	}
	if gameCount != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "lineupkeeper_games",
			Help: "Live games.",
		}, func() float64 { return float64(gameCount()) }))
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveReport(r *lineup.Report) {
	if m == nil || r == nil {
		return
	}
	m.validations.Inc()
	m.violations.WithLabelValues("structural").Add(float64(r.StructuralCount()))
	m.violations.WithLabelValues("fairness").Add(float64(r.FairnessCount()))
}

func (m *Metrics) ObserveAutofill(scope string) {
	if m == nil {
		return
	}
	m.autofills.WithLabelValues(scope).Inc()
}

// ObserveGenerate records one generation attempt. The outcome label is
// "ok" or the generation error kind.
func (m *Metrics) ObserveGenerate(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.generateAttempts.WithLabelValues(generateOutcome(err)).Inc()
	m.generateLatency.Observe(d.Seconds())
}

func generateOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	var ge *generator.GenerationError
	if errors.As(err, &ge) {
		return ge.Kind.String()
	}
	if errors.Is(err, ErrGenerationInProgress) {
		return "in_progress"
	}
	return "error"
}

func (m *Metrics) ClientConnected() {
	if m != nil {
		m.wsClients.Inc()
	}
}

func (m *Metrics) ClientDisconnected() {
	if m != nil {
		m.wsClients.Dec()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument wraps a handler registered under route.
func (m *Metrics) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		m.httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.httpLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
