package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/domain"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/observability"
)

// NetworkSource yields reach geometries in a stable order. Count must equal
// the number of geometries the iterator produces.
type NetworkSource interface {
	Count() int
	Geometries() iter.Seq[orb.LineString]
}

// Policy decides what happens to a run when a reach's required sample has
// no data.
type Policy string

const (
	// PolicyAbort stops the run and discards every result.
	PolicyAbort Policy = "abort"
	// PolicySkip leaves the reach out and continues.
	PolicySkip Policy = "skip"
)

// DefaultTestingLimit is the number of reaches classified in testing mode.
const DefaultTestingLimit = 10

// Options configures a run.
type Options struct {
	TestingMode      bool
	TestingLimit     int
	ProgressInterval int // notify every N reaches; <= 0 disables
	Workers          int
	Policy           Policy
}

// DefaultOptions returns abort-on-no-data options with one worker per CPU.
func DefaultOptions() Options {
	return Options{
		TestingLimit:     DefaultTestingLimit,
		ProgressInterval: 100,
		Workers:          runtime.GOMAXPROCS(0),
		Policy:           PolicyAbort,
	}
}

func (o Options) normalized() Options {
	if o.TestingLimit < 1 {
		o.TestingLimit = DefaultTestingLimit
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Policy == "" {
		o.Policy = PolicyAbort
	}
	return o
}

// SkippedReach records a reach left out under PolicySkip.
type SkippedReach struct {
	Index int
	Err   error
}

// Result is the outcome of a completed run.
type Result struct {
	RunID      string
	Collection *domain.Collection
	Skipped    []SkippedReach
	Total      int // reaches in the network
	Processed  int // reaches attempted, after the testing limit
	Duration   time.Duration
}

// AbortError is returned when a run stops before every reach is processed.
// No partial collection accompanies it.
type AbortError struct {
	Classified int // reaches classified before the run stopped
	Index      int // failing reach, or -1 when the run was cancelled
	Err        error
}

func (e *AbortError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("classification aborted after %d reaches: %v", e.Classified, e.Err)
	}
	return fmt.Sprintf("classification aborted at reach %d after %d reaches: %v", e.Index, e.Classified, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// Processor classifies every reach of a network.
type Processor struct {
	builder  ReachBuilder
	progress ProgressSink
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
	opts     Options
	started  atomic.Bool

	statusMu sync.Mutex
	status   Status
	tracker  *progressTracker
}

// Run states reported by Status.
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateAborted   = "aborted"
)

// Status is a point-in-time view of the processor's latest run.
type Status struct {
	RunID     string `json:"run_id,omitempty"`
	State     string `json:"state"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Skipped   int    `json:"skipped"`
}

// New creates a Processor. progress may be nil.
func New(builder ReachBuilder, progress ProgressSink, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Processor {
	return &Processor{
		builder:  builder,
		progress: progress,
		logger:   logger,
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
		opts:     opts.normalized(),
		status:   Status{State: StateIdle},
	}
}

// WithClock replaces the time source used for durations and progress.
func (p *Processor) WithClock(c clockwork.Clock) *Processor {
	p.clock = c
	return p
}

// CheckReadiness returns nil once a run has started.
func (p *Processor) CheckReadiness(_ context.Context) error {
	if !p.started.Load() {
		return errors.New("classification run has not started")
	}
	return nil
}

// Status reports the state of the current or most recent run.
func (p *Processor) Status() Status {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	st := p.status
	if st.State == StateRunning && p.tracker != nil {
		st.Processed = p.tracker.count()
	}
	return st
}

func (p *Processor) setStatus(st Status, tracker *progressTracker) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status = st
	p.tracker = tracker
}

type job struct {
	index    int
	geometry orb.LineString
}

// Process classifies the network. Reaches are built concurrently and the
// returned collection is in source order. An empty network yields an empty
// collection without any sampling.
func (p *Processor) Process(ctx context.Context, network NetworkSource) (*Result, error) {
	start := p.clock.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	total := network.Count()
	limit := total
	if p.opts.TestingMode {
		logger.Warn("TESTING: classifying a limited prefix of the network", "limit", p.opts.TestingLimit)
		limit = min(total, p.opts.TestingLimit)
	}

	logger.Info("classification started",
		"reaches", total,
		"processing", limit,
		"workers", p.opts.Workers,
		"policy", p.opts.Policy,
	)
	p.started.Store(true)
	p.metrics.RunInProgress.Set(1)
	defer p.metrics.RunInProgress.Set(0)

	if err := ctx.Err(); err != nil {
		p.metrics.Runs.WithLabelValues("aborted").Inc()
		p.setStatus(Status{RunID: runID, State: StateAborted, Total: limit}, nil)
		return nil, &AbortError{Index: -1, Err: err}
	}

	slots := make([]domain.Reach, limit)
	filled := make([]bool, limit)
	var (
		mu         sync.Mutex
		skipped    []SkippedReach
		classified atomic.Int64
	)
	tracker := newProgressTracker(p.progress, p.opts.ProgressInterval, limit, p.opts.TestingMode, p.clock)
	p.setStatus(Status{RunID: runID, State: StateRunning, Total: limit}, tracker)

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan job)

	g.Go(func() error {
		defer close(jobs)
		i := 0
		for geom := range network.Geometries() {
			if i >= limit {
				break
			}
			select {
			case jobs <- job{index: i, geometry: geom}:
			case <-gctx.Done():
				return gctx.Err()
			}
			i++
		}
		if i < limit {
			return fmt.Errorf("network yielded %d geometries, expected %d", i, limit)
		}
		return nil
	})

	for range p.opts.Workers {
		g.Go(func() error {
			for j := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				reach, err := p.builder.Build(gctx, j.index, j.geometry)
				if err != nil {
					if p.opts.Policy == PolicySkip && errors.Is(err, domain.ErrSampleUnavailable) {
						mu.Lock()
						skipped = append(skipped, SkippedReach{Index: j.index, Err: err})
						mu.Unlock()
						p.metrics.ReachesSkipped.Inc()
						logger.Warn("reach skipped", "index", j.index, "error", err)
						tracker.tick()
						continue
					}
					return &AbortError{Classified: int(classified.Load()), Index: j.index, Err: err}
				}
				slots[j.index] = reach
				filled[j.index] = true
				classified.Add(1)
				p.metrics.ReachesClassified.WithLabelValues(reach.Classification().String()).Inc()
				tracker.tick()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		p.metrics.Runs.WithLabelValues("aborted").Inc()
		var abort *AbortError
		if !errors.As(err, &abort) {
			abort = &AbortError{Classified: int(classified.Load()), Index: -1, Err: err}
		}
		p.setStatus(Status{RunID: runID, State: StateAborted, Processed: tracker.count(), Total: limit}, nil)
		logger.Error("classification aborted",
			"classified", abort.Classified,
			"index", abort.Index,
			"error", abort.Err,
		)
		return nil, abort
	}

	reaches := make([]domain.Reach, 0, limit-len(skipped))
	for i, ok := range filled {
		if ok {
			reaches = append(reaches, slots[i])
		}
	}
	slices.SortFunc(skipped, func(a, b SkippedReach) int { return cmp.Compare(a.Index, b.Index) })

	result := &Result{
		RunID:      runID,
		Collection: domain.NewCollection(reaches),
		Skipped:    skipped,
		Total:      total,
		Processed:  limit,
		Duration:   p.clock.Since(start),
	}

	p.setStatus(Status{RunID: runID, State: StateCompleted, Processed: limit, Total: limit, Skipped: len(skipped)}, nil)
	p.metrics.Runs.WithLabelValues("completed").Inc()
	p.metrics.RunDuration.Observe(result.Duration.Seconds())
	logger.Info("classification complete",
		"classified", result.Collection.Len(),
		"skipped", len(skipped),
		"duration", result.Duration.String(),
		"regimes", regimeCountAttrs(result.Collection),
	)
	return result, nil
}

func regimeCountAttrs(c *domain.Collection) slog.Value {
	counts := c.RegimeCounts()
	attrs := make([]slog.Attr, 0, len(counts))
	for _, r := range domain.Regimes() {
		if n, ok := counts[r]; ok {
			attrs = append(attrs, slog.Int(r.String(), n))
		}
	}
	return slog.GroupValue(attrs...)
}
