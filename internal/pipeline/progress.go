package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ProgressEvent reports how many reaches of a run have been processed.
// In testing mode Total is the testing limit rather than the network size.
type ProgressEvent struct {
	Current int
	Total   int
	Percent float64
	Testing bool
	Elapsed time.Duration
}

// ProgressSink receives progress notifications. Calls are serialized.
type ProgressSink interface {
	Progress(ProgressEvent)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) Progress(e ProgressEvent) { f(e) }

// LogProgress writes progress notifications to a logger.
type LogProgress struct {
	logger *slog.Logger
}

// NewLogProgress creates a ProgressSink backed by logger.
func NewLogProgress(logger *slog.Logger) *LogProgress {
	return &LogProgress{logger: logger}
}

func (l *LogProgress) Progress(e ProgressEvent) {
	if e.Testing {
		l.logger.Info(fmt.Sprintf("reach %d out of %d", e.Current, e.Total), "testing", true)
		return
	}
	l.logger.Info("classifying reaches",
		"current", e.Current,
		"total", e.Total,
		"percent", fmt.Sprintf("%.1f", e.Percent),
		"elapsed", e.Elapsed.Round(time.Millisecond).String(),
	)
}

// progressTracker counts processed reaches across workers and notifies the
// sink every interval reaches.
type progressTracker struct {
	mu       sync.Mutex
	sink     ProgressSink
	interval int
	total    int
	testing  bool
	done     int
	clock    clockwork.Clock
	start    time.Time
}

func newProgressTracker(sink ProgressSink, interval, total int, testing bool, clock clockwork.Clock) *progressTracker {
	return &progressTracker{
		sink:     sink,
		interval: interval,
		total:    total,
		testing:  testing,
		clock:    clock,
		start:    clock.Now(),
	}
}

func (t *progressTracker) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.done++
	if t.sink == nil || t.interval <= 0 || t.done%t.interval != 0 {
		return
	}
	t.sink.Progress(ProgressEvent{
		Current: t.done,
		Total:   t.total,
		Percent: 100 * float64(t.done) / float64(t.total),
		Testing: t.testing,
		Elapsed: t.clock.Since(t.start),
	})
}

func (t *progressTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
