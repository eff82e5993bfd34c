// Package profiler keeps rolling per-stage timings and per-frame metrics of
// a stabilizer instance and reports them periodically.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
)

// Stage names timed by the stabilizer loop.
const (
	StageCapture  = "capture"
	StageDetect   = "detect"
	StageTrack    = "track"
	StageEstimate = "estimate"
	StageEnhance  = "enhance"
	StageWarp     = "warp"
	StagePresent  = "present"
	StageFrame    = "frame"
)

// RuntimeProfiler tracks stage timings and custom metrics over a bounded
// window of samples.
//
// Recording is safe from any goroutine. Reports are emitted from a
// background goroutine between Start and Stop.
type RuntimeProfiler struct {
	reportInterval time.Duration
	maxSamples     int
	log            zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	memStats       runtime.MemStats
	customMetrics  map[string]*MetricTracker
	operationTimes map[string]*TimeTracker
}

// MetricTracker keeps the last MaxSamples values of a custom metric.
type MetricTracker struct {
	values []float64
	sum    float64
	count  int64
}

// TimeTracker keeps the last MaxSamples durations of a timed stage.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	count     int64
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to emit status reports (default: 2s)
	ReportInterval time.Duration
	// MaxSamples specifies maximum number of samples kept per metric (default: 600)
	MaxSamples int
	// Logger receives the reports.
	Logger zerolog.Logger
}

// OperationStats is a snapshot of one timed stage. Avg, Min and Max cover
// the retained window of Samples durations; Count is every recording since
// the profiler was created.
type OperationStats struct {
	Name    string
	Avg     time.Duration
	Min     time.Duration
	Max     time.Duration
	Samples int
	Count   int64
}

// MetricStats is a snapshot of one custom metric. Avg, Min and Max cover the
// retained window of Samples values.
type MetricStats struct {
	Name    string
	Avg     float64
	Min     float64
	Max     float64
	Samples int
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval == 0 {
		opts.ReportInterval = 2 * time.Second
	}
	if opts.MaxSamples == 0 {
		opts.MaxSamples = 600
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		maxSamples:     opts.MaxSamples,
		log:            opts.Logger.With().Str("component", "profiler").Logger(),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		customMetrics:  make(map[string]*MetricTracker),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// Start begins periodic reporting. Calling it twice is a no-op.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}

	rp.running = true
	rp.startTime = time.Now()

	rp.wg.Add(1)
	go func() {
		defer rp.wg.Done()

		ticker := time.NewTicker(rp.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-rp.ctx.Done():
				return
			case <-ticker.C:
				rp.emitStatusReport()
			}
		}
	}()
}

// Stop ends reporting and waits for the reporter to exit.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	rp.mu.Unlock()

	rp.cancel()
	rp.wg.Wait()
}

// RecordMetric records a custom metric value.
//
// Arguments:
// - name: The name of the metric
// - value: The metric value to record
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, exists := rp.customMetrics[name]
	if !exists {
		tracker = &MetricTracker{
			values: make([]float64, 0, rp.maxSamples),
		}
		rp.customMetrics[name] = tracker
	}

	tracker.values = append(tracker.values, value)
	if len(tracker.values) > rp.maxSamples {
		tracker.sum -= tracker.values[0]
		tracker.values = tracker.values[1:]
	}

	tracker.sum += value
	tracker.count++
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.RecordDuration(name, time.Since(start))
	}
}

// RecordDuration records the completion time of an operation.
func (rp *RuntimeProfiler) RecordDuration(name string, duration time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, exists := rp.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{}
		rp.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	if len(tracker.durations) > rp.maxSamples {
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}

	tracker.totalTime += duration
	tracker.count++
}

// Operations returns a snapshot of every timed stage, sorted by name.
func (rp *RuntimeProfiler) Operations() []OperationStats {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	out := make([]OperationStats, 0, len(rp.operationTimes))
	for name, tracker := range rp.operationTimes {
		if len(tracker.durations) == 0 {
			continue
		}
		lo, hi := tracker.durations[0], tracker.durations[0]
		for _, d := range tracker.durations[1:] {
			lo = min(lo, d)
			hi = max(hi, d)
		}
		out = append(out, OperationStats{
			Name:    name,
			Avg:     tracker.totalTime / time.Duration(len(tracker.durations)),
			Min:     lo,
			Max:     hi,
			Samples: len(tracker.durations),
			Count:   tracker.count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Metrics returns a snapshot of every custom metric, sorted by name.
func (rp *RuntimeProfiler) Metrics() []MetricStats {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	out := make([]MetricStats, 0, len(rp.customMetrics))
	for name, tracker := range rp.customMetrics {
		if len(tracker.values) == 0 {
			continue
		}
		out = append(out, MetricStats{
			Name:    name,
			Avg:     tracker.sum / float64(len(tracker.values)),
			Min:     floats.Min(tracker.values),
			Max:     floats.Max(tracker.values),
			Samples: len(tracker.values),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// emitStatusReport logs one line per stage and metric plus a memory summary.
func (rp *RuntimeProfiler) emitStatusReport() {
	rp.mu.Lock()
	runtime.ReadMemStats(&rp.memStats)
	uptime := time.Since(rp.startTime)
	heap := rp.memStats.HeapAlloc
	gc := rp.memStats.NumGC
	rp.mu.Unlock()

	rp.log.Info().
		Dur("uptime", uptime.Truncate(time.Millisecond)).
		Int("goroutines", runtime.NumGoroutine()).
		Str("heap", formatBytes(heap)).
		Uint32("gc_cycles", gc).
		Msg("status")

	if fps, ok := rp.FPS(); ok {
		rp.log.Info().Float64("fps", fps).Msg("throughput")
	}

	for _, op := range rp.Operations() {
		rp.log.Info().
			Str("stage", op.Name).
			Dur("avg", op.Avg.Truncate(time.Microsecond)).
			Dur("min", op.Min.Truncate(time.Microsecond)).
			Dur("max", op.Max.Truncate(time.Microsecond)).
			Int("samples", op.Samples).
			Int64("count", op.Count).
			Msg("stage timing")
	}

	for _, m := range rp.Metrics() {
		rp.log.Info().
			Str("metric", m.Name).
			Float64("avg", m.Avg).
			Float64("min", m.Min).
			Float64("max", m.Max).
			Int("samples", m.Samples).
			Msg("metric")
	}
}

// FPS derives the frame rate from the average StageFrame duration.
func (rp *RuntimeProfiler) FPS() (float64, bool) {
	for _, op := range rp.Operations() {
		if op.Name == StageFrame && op.Avg > 0 {
			return float64(time.Second) / float64(op.Avg), true
		}
	}
	return 0, false
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
