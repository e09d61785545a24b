package profiler

import (
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-runtime/common"
	"go.uber.org/zap"
)

// Sample is one recorded timing span.
type Sample struct {
	Seq      uint64
	Name     string
	Start    time.Time
	Duration time.Duration
}

// Profiler records named timing spans and tracks frame rate and memory statistics.
// Spans go into a fixed-size append-only ring; writers claim a slot with an atomic counter and publish
// the sample with an atomic pointer store, so Snapshot may run on any goroutine without locks.
// The profiler only observes; it never blocks or reorders the frame it measures.
type Profiler struct {
	enabled bool
	now     func() time.Time

	ring []atomic.Pointer[Sample]
	head atomic.Uint64

	frameCount     int
	lastTime       time.Time
	lastSeq        uint64
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new enabled Profiler. Update interval defaults to 1 second and the span ring
// holds 1024 samples.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		enabled:        true,
		now:            time.Now,
		updateInterval: time.Second,
		ring:           make([]atomic.Pointer[Sample], 1024),
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()
	return p
}

// Enabled reports whether spans and stats are recorded.
func (p *Profiler) Enabled() bool {
	return p != nil && p.enabled
}

// Span starts a named timing span and returns the function that ends it.
// On a nil or disabled profiler the returned function does nothing.
//
// Parameters:
//   - name: the span name, typically a frame phase
//
// Returns:
//   - func(): ends the span and records it
func (p *Profiler) Span(name string) func() {
	if !p.Enabled() {
		return func() {}
	}
	start := p.now()
	return func() {
		p.record(name, start, p.now().Sub(start))
	}
}

func (p *Profiler) record(name string, start time.Time, d time.Duration) {
	seq := p.head.Add(1)
	p.ring[(seq-1)%uint64(len(p.ring))].Store(&Sample{Seq: seq, Name: name, Start: start, Duration: d})
}

// Snapshot returns the samples currently held in the ring, oldest first.
//
// Returns:
//   - []Sample: the recorded samples
func (p *Profiler) Snapshot() []Sample {
	if p == nil {
		return nil
	}
	out := make([]Sample, 0, len(p.ring))
	for i := range p.ring {
		if s := p.ring[i].Load(); s != nil {
			out = append(out, *s)
		}
	}
	slices.SortFunc(out, func(a, b Sample) int {
		if a.Seq < b.Seq {
			return -1
		}
		if a.Seq > b.Seq {
			return 1
		}
		return 0
	})
	return out
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory and the
// average duration of every span name recorded since the previous report.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	if !p.Enabled() {
		return false
	}
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	fields := []zap.Field{
		zap.Float64("fps", fps),
		zap.Float64("heap_mb", allocMB),
		zap.Float64("alloc_rate_mb_s", allocRateMB),
		zap.Uint32("gc", gcCount),
		zap.Uint64("gc_last_us", lastPauseUs),
		zap.Uint64("gc_max_us", maxPauseUs),
		zap.Float64("sys_mb", sysMB),
	}
	for name, avg := range p.averagesSince(p.lastSeq) {
		fields = append(fields, zap.Duration("avg_"+name, avg))
	}
	common.Logger().Info("profiler", fields...)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastSeq = p.head.Load()
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Averages returns the mean duration per span name over the samples in the ring.
//
// Returns:
//   - map[string]time.Duration: mean duration keyed by span name
func (p *Profiler) Averages() map[string]time.Duration {
	return p.averagesSince(0)
}

func (p *Profiler) averagesSince(seq uint64) map[string]time.Duration {
	sums := make(map[string]time.Duration)
	counts := make(map[string]int)
	for _, s := range p.Snapshot() {
		if s.Seq <= seq {
			continue
		}
		sums[s.Name] += s.Duration
		counts[s.Name]++
	}
	for name, sum := range sums {
		sums[name] = sum / time.Duration(counts[name])
	}
	return sums
}
