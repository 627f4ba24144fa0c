// Package datadog implements a Datadog backend for internal/metrics.
//
// Observations are buffered in memory and submitted on a ticker (default once
// per minute) and one final time on Close. A normalize run over a handful of
// files usually finishes before the first tick, so the Close flush is the one
// that matters for batch use; the ticker keeps long runs visible as a time
// series.
//
// Concurrency model:
//   - IncCounter/ObserveHistogram may be called from any goroutine
//   - Flush snapshots and resets buffers under a mutex, then submits out-of-lock
//
// Unknown metric names are ignored, so the core code only depends on
// metrics.Backend.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"feedbacketl/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// DefaultJobName tags metrics when Options.JobName is empty.
const DefaultJobName = "feedback_normalize"

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric.
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"team:research"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets them.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the part of *datadogV2.MetricsApi the backend needs,
// so tests can stub submission without HTTP.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	stepTotals    map[string]float64 // step\x00status -> count
	recordTotals  map[string]float64 // kind -> count
	stepDurations map[string][]float64
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client and starts
// its flush loop. Credentials and site come from the client's environment
// (DD_API_KEY, DD_SITE).
//
// Edge cases:
//   - If opts.FlushEvery <= 0, defaults to 60s.
//   - If opts.JobName is empty, defaults to DefaultJobName.
//   - The environment tag uses ENV then DD_ENV, otherwise env:unknown.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, wrapInitErr(fmt.Errorf("nil context"))
	}

	job := opts.JobName
	if job == "" {
		job = DefaultJobName
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		submitter = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,

		stepTotals:    make(map[string]float64),
		recordTotals:  make(map[string]float64),
		stepDurations: make(map[string][]float64),
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush. Later calls only
// flush.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.stopCh)
		<-b.doneCh
	})
	return b.Flush()
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.StepTotal:
		b.stepTotals[seriesKey(labels["step"], labels["status"])] += delta
	case metrics.RecordsTotal:
		kind := labels["kind"]
		if kind == "" {
			return
		}
		b.recordTotals[kind] += delta
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 || name != metrics.StepDurationSeconds {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	k := seriesKey(labels["step"], labels["status"])
	b.stepDurations[k] = append(b.stepDurations[k], value)
}

type snapshot struct {
	stepTotals    map[string]float64
	recordTotals  map[string]float64
	stepDurations map[string][]float64
}

func (s snapshot) isEmpty() bool {
	return len(s.stepTotals) == 0 && len(s.recordTotals) == 0 && len(s.stepDurations) == 0
}

// drain detaches the current buffers. Callers must not hold b.mu.
func (b *Backend) drain() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		stepTotals:    b.stepTotals,
		recordTotals:  b.recordTotals,
		stepDurations: b.stepDurations,
	}
	b.stepTotals = make(map[string]float64)
	b.recordTotals = make(map[string]float64)
	b.stepDurations = make(map[string][]float64)
	return s
}

// Flush submits buffered metrics and resets local buffers.
//
// Buffers are reset even if submission fails; delivery is at most once.
// Returns nil without submitting when there is nothing buffered.
func (b *Backend) Flush() error {
	snap := b.drain()
	if snap.isEmpty() {
		return nil
	}

	series := b.toSeries(snap, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	if err != nil {
		return fmt.Errorf("datadog submit: %w", err)
	}
	return nil
}

// toSeries is pure: it turns a snapshot into series at a fixed timestamp.
// Output is sorted by metric name then tags so payloads are reproducible.
func (b *Backend) toSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.stepTotals)+len(s.recordTotals)+6*len(s.stepDurations))

	for k, v := range s.stepTotals {
		if v == 0 {
			continue
		}
		step, status := splitKey(k)
		tags := tagsWith(b.baseTags, "step:"+step, "status:"+status)
		series = append(series, countPoint("feedback.step.total", v, tags, nowUnix))
	}

	for kind, v := range s.recordTotals {
		if v == 0 {
			continue
		}
		tags := tagsWith(b.baseTags, "kind:"+kind)
		series = append(series, countPoint("feedback.records.total", v, tags, nowUnix))
	}

	for k, samples := range s.stepDurations {
		addPercentiles(&series, b.baseTags, "feedback.step.duration_seconds", k, samples, nowUnix)
	}

	sort.SliceStable(series, func(i, j int) bool {
		if series[i].Metric != series[j].Metric {
			return series[i].Metric < series[j].Metric
		}
		return strings.Join(series[i].Tags, ",") < strings.Join(series[j].Tags, ",")
	})
	return series
}

// addPercentiles appends p50/p90/p95/p99/max/samples gauges for one
// step/status key. It sorts a copy of samples.
func addPercentiles(series *[]datadogV2.MetricSeries, baseTags []string, metricPrefix, key string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	step, status := splitKey(key)
	tags := tagsWith(baseTags, "step:"+step, "status:"+status)

	*series = append(*series,
		gaugePoint(metricPrefix+".p50", nearestRank(cp, 0.50), tags, nowUnix),
		gaugePoint(metricPrefix+".p90", nearestRank(cp, 0.90), tags, nowUnix),
		gaugePoint(metricPrefix+".p95", nearestRank(cp, 0.95), tags, nowUnix),
		gaugePoint(metricPrefix+".p99", nearestRank(cp, 0.99), tags, nowUnix),
		gaugePoint(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix),
		gaugePoint(metricPrefix+".samples", float64(len(cp)), tags, nowUnix),
	)
}

func countPoint(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugePoint(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func seriesKey(step, status string) string {
	return step + "\x00" + status
}

func splitKey(k string) (step, status string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
}

func tagsWith(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func nearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,team:research".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}
