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
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/ttbt-io/lineupkeeper/backend/generator"
	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

// metricValue returns the counter or gauge value of the series of name whose
// label values are labels, ordered by label name.
func metricValue(t *testing.T, m *Metrics, name string, labels ...string) float64 {
	t.Helper()
	mfs, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, metric := range mf.GetMetric() {
			pairs := metric.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			for i, lp := range pairs {
				if lp.GetValue() != labels[i] {
					continue series
				}
			}
			return value(metric)
		}
	}
	t.Fatalf("no series %s%v", name, labels)
	return 0
}

func value(metric *dto.Metric) float64 {
	switch {
	case metric.Counter != nil:
		return metric.GetCounter().GetValue()
	case metric.Gauge != nil:
		return metric.GetGauge().GetValue()
	}
	return 0
}

func TestGenerateOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&generator.GenerationError{Kind: generator.KindTimeout}, "timeout"},
		{fmt.Errorf("wrapped: %w", &generator.GenerationError{Kind: generator.KindDeclined}), "declined"},
		{ErrGenerationInProgress, "in_progress"},
		{errors.New("boom"), "error"},
	}
	for _, tc := range tests {
		if got := generateOutcome(tc.err); got != tc.want {
			t.Errorf("generateOutcome(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestMetricsNil(t *testing.T) {
	var m *Metrics
	m.ObserveReport(&lineup.Report{})
	m.ObserveAutofill("all")
	m.ObserveGenerate(nil, time.Second)
	m.ClientConnected()
	m.ClientDisconnected()
	h := m.instrument("x", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("Code = %d", rec.Code)
	}
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(func() int { return 3 }, func() int { return 7 })

	m.ObserveReport(&lineup.Report{
		Innings: []lineup.InningViolations{{Inning: 1, Missing: []lineup.Position{lineup.Pitcher, lineup.Catcher}}},
		Players: []lineup.PlayerViolations{{PlayerID: "p1", Repeated: []lineup.RepeatedPosition{{Position: lineup.Pitcher, Count: 2}}}},
	})
	if got := metricValue(t, m, "lineupkeeper_validations_total"); got != 1 {
		t.Errorf("validations = %v", got)
	}
	if got := metricValue(t, m, "lineupkeeper_violations_total", "structural"); got != 2 {
		t.Errorf("structural = %v", got)
	}
	if got := metricValue(t, m, "lineupkeeper_violations_total", "fairness"); got != 1 {
		t.Errorf("fairness = %v", got)
	}

	m.ObserveGenerate(&generator.GenerationError{Kind: generator.KindMalformed}, time.Second)
	if got := metricValue(t, m, "lineupkeeper_generate_attempts_total", "malformed"); got != 1 {
		t.Errorf("malformed attempts = %v", got)
	}

	m.ClientConnected()
	m.ClientConnected()
	m.ClientDisconnected()
	if got := metricValue(t, m, "lineupkeeper_websocket_clients"); got != 1 {
		t.Errorf("wsClients = %v", got)
	}

	h := m.instrument("GET /api/x", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	h(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/x", nil))
	if got := metricValue(t, m, "lineupkeeper_http_requests_total", "404", "GET /api/x"); got != 1 {
		t.Errorf("http requests = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{"lineupkeeper_teams 3", "lineupkeeper_games 7", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
