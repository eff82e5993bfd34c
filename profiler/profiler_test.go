package profiler

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDuration(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{MaxSamples: 3, Logger: zerolog.Nop()})

	for _, ms := range []int{10, 20, 30, 40} {
		rp.RecordDuration(StageWarp, time.Duration(ms)*time.Millisecond)
	}

	ops := rp.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, StageWarp, ops[0].Name)
	assert.Equal(t, 30*time.Millisecond, ops[0].Avg)
	// The 10ms sample fell out of the window, so it no longer bounds Min.
	assert.Equal(t, 20*time.Millisecond, ops[0].Min)
	assert.Equal(t, 40*time.Millisecond, ops[0].Max)
	assert.Equal(t, 3, ops[0].Samples)
	assert.Equal(t, int64(4), ops[0].Count)
}

func TestMetricWindow(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{MaxSamples: 2, Logger: zerolog.Nop()})
	for _, v := range []float64{-50, 4, 8} {
		rp.RecordMetric("residual_dx", v)
	}

	metrics := rp.Metrics()
	require.Len(t, metrics, 1)
	assert.Equal(t, 6.0, metrics[0].Avg)
	assert.Equal(t, 4.0, metrics[0].Min)
	assert.Equal(t, 8.0, metrics[0].Max)
	assert.Equal(t, 2, metrics[0].Samples)
}

func TestRecordMetric(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{Logger: zerolog.Nop()})
	rp.RecordMetric("points", 100)
	rp.RecordMetric("points", 50)
	rp.RecordMetric("residual_dx", -2)

	metrics := rp.Metrics()
	require.Len(t, metrics, 2)
	assert.Equal(t, "points", metrics[0].Name)
	assert.Equal(t, 75.0, metrics[0].Avg)
	assert.Equal(t, 2, metrics[0].Samples)
	assert.Equal(t, "residual_dx", metrics[1].Name)
}

func TestFPS(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{Logger: zerolog.Nop()})
	_, ok := rp.FPS()
	assert.False(t, ok)

	rp.RecordDuration(StageFrame, 40*time.Millisecond)
	fps, ok := rp.FPS()
	require.True(t, ok)
	assert.InDelta(t, 25, fps, 1e-9)
}

func TestStartOperation(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{Logger: zerolog.Nop()})
	done := rp.StartOperation(StageDetect)
	done()

	ops := rp.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, int64(1), ops[0].Count)
}

func TestReportLoop(t *testing.T) {
	var buf syncBuffer
	rp := NewRuntimeProfiler(ProfilingOptions{
		ReportInterval: 5 * time.Millisecond,
		Logger:         zerolog.New(&buf),
	})
	rp.RecordDuration(StageFrame, 10*time.Millisecond)

	rp.Start()
	rp.Start()
	assert.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "stage timing")
	}, time.Second, 5*time.Millisecond)
	rp.Stop()
	rp.Stop()

	assert.Contains(t, buf.String(), `"component":"profiler"`)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
