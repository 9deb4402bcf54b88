package telemetry

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Recorder keeps metrics in memory. It backs the CLI's metrics report and
// is convenient in tests.
type Recorder struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
	spans    map[string][]time.Duration
	now      func() time.Time
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		spans:    make(map[string][]time.Duration),
		now:      time.Now,
	}
}

func (r *Recorder) Increment(counter string) {
	r.mu.Lock()
	r.counters[counter]++
	r.mu.Unlock()
}

func (r *Recorder) Observe(gauge string, value float64) {
	r.mu.Lock()
	r.gauges[gauge] = value
	r.mu.Unlock()
}

func (r *Recorder) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &recordedSpan{r: r, name: name, start: r.now()}
}

type recordedSpan struct {
	r     *Recorder
	name  string
	start time.Time
	once  sync.Once
}

func (s *recordedSpan) End() {
	s.once.Do(func() {
		d := s.r.now().Sub(s.start)
		s.r.mu.Lock()
		s.r.spans[s.name] = append(s.r.spans[s.name], d)
		s.r.mu.Unlock()
	})
}

// Counter returns the current value of a counter.
func (r *Recorder) Counter(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

// Gauge returns the last observed value of a gauge.
func (r *Recorder) Gauge(name string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.gauges[name]
	return v, ok
}

// SpanCount returns how many spans with name have ended.
func (r *Recorder) SpanCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spans[name])
}

// Report is a point-in-time copy of a recorder's metrics.
type Report struct {
	Counters map[string]int64   `json:"counters"`
	Gauges   map[string]float64 `json:"gauges"`
	SpansMs  map[string]float64 `json:"spans_ms"` // total duration per span name
}

// Report snapshots the recorder.
func (r *Recorder) Report() Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep := Report{
		Counters: make(map[string]int64, len(r.counters)),
		Gauges:   make(map[string]float64, len(r.gauges)),
		SpansMs:  make(map[string]float64, len(r.spans)),
	}
	for k, v := range r.counters {
		rep.Counters[k] = v
	}
	for k, v := range r.gauges {
		rep.Gauges[k] = v
	}
	for k, ds := range r.spans {
		var total time.Duration
		for _, d := range ds {
			total += d
		}
		rep.SpansMs[k] = float64(total.Microseconds()) / 1000
	}
	return rep
}

// WriteFile writes the report as indented JSON.
func (r *Recorder) WriteFile(path string) error {
	data, err := json.MarshalIndent(r.Report(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
