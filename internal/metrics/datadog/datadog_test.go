package datadog

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"feedbacketl/internal/metrics"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

func newTestBackend(t *testing.T, sub *fakeSubmitter) *Backend {
	t.Helper()
	fixed := time.Unix(1700000000, 0)
	b, err := NewBackend(context.Background(), Options{
		JobName:    "test",
		FlushEvery: time.Hour,
		now:        func() time.Time { return fixed },
		submitter:  sub,
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestResolveEnvTag(t *testing.T) {
	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ENV", tc.env)
			t.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWrapInitErr(t *testing.T) {
	if wrapInitErr(nil) != nil {
		t.Fatal("wrapInitErr(nil) should be nil")
	}
	base := errors.New("boom")
	err := wrapInitErr(base)
	if !errors.Is(err, base) {
		t.Fatalf("wrapped error lost its cause: %v", err)
	}
	if !strings.HasPrefix(err.Error(), "datadog metrics init:") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestNewBackend_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	if _, err := NewBackend(nil, Options{}); err == nil {
		t.Fatal("expected error for nil context")
	}
}

func TestSeriesKeyRoundTrip(t *testing.T) {
	step, status := splitKey(seriesKey("file", "warn"))
	if step != "file" || status != "warn" {
		t.Fatalf("round trip = (%q, %q)", step, status)
	}
	step, status = splitKey("bare")
	if step != "bare" || status != "unknown" {
		t.Fatalf("bare key = (%q, %q)", step, status)
	}
}

func TestTagsWith(t *testing.T) {
	base := []string{"env:test"}
	got := tagsWith(base, "step:file")
	want := []string{"env:test", "step:file"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tagsWith = %v, want %v", got, want)
	}
	got[0] = "mutated"
	if base[0] != "env:test" {
		t.Fatal("tagsWith must not alias the base slice")
	}
}

func TestNearestRank(t *testing.T) {
	s := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{0.5, 6},
		{0.9, 9},
		{1, 10},
	}
	for _, tc := range tests {
		if got := nearestRank(s, tc.p); got != tc.want {
			t.Errorf("p=%v: got %v, want %v", tc.p, got, tc.want)
		}
	}
	if got := nearestRank(nil, 0.5); got != 0 {
		t.Errorf("empty: got %v", got)
	}
}

func TestAddPercentiles(t *testing.T) {
	var series []datadogV2.MetricSeries
	samples := []float64{3, 1, 2}
	addPercentiles(&series, []string{"job:test"}, "m", seriesKey("file", "ok"), samples, 10)

	if len(series) != 6 {
		t.Fatalf("got %d series, want 6", len(series))
	}
	if samples[0] != 3 {
		t.Fatal("addPercentiles must not sort the caller's slice")
	}
	byName := map[string]float64{}
	for _, s := range series {
		byName[s.Metric] = *s.Points[0].Value
		if !contains(s.Tags, "step:file") || !contains(s.Tags, "status:ok") {
			t.Fatalf("missing tags on %s: %v", s.Metric, s.Tags)
		}
	}
	if byName["m.max"] != 3 || byName["m.samples"] != 3 || byName["m.p50"] != 2 {
		t.Fatalf("unexpected values %v", byName)
	}

	series = nil
	addPercentiles(&series, nil, "m", "k", nil, 10)
	if len(series) != 0 {
		t.Fatal("no samples should add no series")
	}
}

func TestNewBackend_Defaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("DD_ENV", "")
	b, err := NewBackend(context.Background(), Options{submitter: &fakeSubmitter{}})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer b.Close()

	if b.flushEvery != 60*time.Second {
		t.Errorf("flushEvery = %v", b.flushEvery)
	}
	if !contains(b.baseTags, "job:"+DefaultJobName) {
		t.Errorf("baseTags = %v", b.baseTags)
	}
	if !contains(b.baseTags, "env:unknown") {
		t.Errorf("baseTags = %v", b.baseTags)
	}
}

func TestFlush_SubmitsAndResets(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "file", "status": "ok"})
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "file", "status": "ok"})
	b.IncCounter(metrics.RecordsTotal, 7, metrics.Labels{"kind": "parsed"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.25, metrics.Labels{"step": "file", "status": "ok"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	p, ok := sub.last()
	if !ok {
		t.Fatal("nothing submitted")
	}

	var stepTotal, records float64
	var durations int
	for _, s := range p.Series {
		switch {
		case s.Metric == "feedback.step.total":
			stepTotal = *s.Points[0].Value
		case s.Metric == "feedback.records.total":
			records = *s.Points[0].Value
			if !contains(s.Tags, "kind:parsed") {
				t.Errorf("records tags = %v", s.Tags)
			}
		case strings.HasPrefix(s.Metric, "feedback.step.duration_seconds."):
			durations++
		}
		if *s.Points[0].Timestamp != 1700000000 {
			t.Errorf("timestamp = %d", *s.Points[0].Timestamp)
		}
	}
	if stepTotal != 2 || records != 7 || durations != 6 {
		t.Fatalf("stepTotal=%v records=%v durations=%d", stepTotal, records, durations)
	}

	if err := b.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if sub.count() != 1 {
		t.Fatalf("buffers were not reset: %d submissions", sub.count())
	}
}

func TestFlush_SubmitError(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("403")}
	b := newTestBackend(t, sub)
	b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{"kind": "written"})

	if err := b.Flush(); err == nil || !strings.Contains(err.Error(), "datadog submit") {
		t.Fatalf("Flush err = %v", err)
	}
}

func TestIncCounterAndObserveHistogram_EdgeCases(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter(metrics.StepTotal, 0, metrics.Labels{"step": "file", "status": "ok"})
	b.IncCounter(metrics.StepTotal, -1, metrics.Labels{"step": "file", "status": "ok"})
	b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{})
	b.IncCounter("unknown_metric", 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, -1, nil)
	b.ObserveHistogram("unknown_metric", 1, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if sub.count() != 0 {
		t.Fatalf("ignored observations were submitted")
	}
}

func TestLoopAndClose(t *testing.T) {
	sub := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		FlushEvery: 5 * time.Millisecond,
		submitter:  sub,
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "file", "status": "ok"})
	deadline := time.Now().Add(2 * time.Second)
	for sub.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sub.count() == 0 {
		t.Fatal("ticker never flushed")
	}

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "file", "status": "warn"})
	before := sub.count()
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if sub.count() <= before {
		t.Fatal("Close did not flush")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestBackend_ConcurrentAccess(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{"kind": "parsed"})
				b.ObserveHistogram(metrics.StepDurationSeconds, 0.1, metrics.Labels{"step": "file", "status": "ok"})
			}
		}()
	}
	wg.Wait()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	p, _ := sub.last()
	for _, s := range p.Series {
		if s.Metric == "feedback.records.total" && *s.Points[0].Value != 800 {
			t.Fatalf("records = %v, want 800", *s.Points[0].Value)
		}
		if s.Metric == "feedback.step.duration_seconds.samples" && *s.Points[0].Value != 800 {
			t.Fatalf("samples = %v, want 800", *s.Points[0].Value)
		}
	}
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func TestParseTagsCSV(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"env:prod", []string{"env:prod"}},
		{" env:prod , ,team:research ", []string{"env:prod", "team:research"}},
	}
	for _, tc := range tests {
		got := ParseTagsCSV(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParseTagsCSV(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
