package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/domain"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/observability"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/pipeline"
)

type recordingProgress struct {
	mu     sync.Mutex
	events []pipeline.ProgressEvent
}

func (r *recordingProgress) Progress(e pipeline.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func newTestProcessor(t *testing.T, sampler domain.RasterSampler, progress pipeline.ProgressSink, opts pipeline.Options) (*pipeline.Processor, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(newTestBuilder(t, sampler), progress, discardLogger(), metrics, opts)
	return p, metrics
}

func TestProcessor_EmptyNetwork(t *testing.T) {
	sampler := newFakeSampler()
	p, _ := newTestProcessor(t, sampler, nil, pipeline.DefaultOptions())

	result, err := p.Process(context.Background(), sliceNetwork{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Collection.Len())
	assert.Empty(t, result.Skipped)
	assert.Zero(t, sampler.total(), "empty network must not sample")
}

func TestProcessor_TestingModeLimitsToPrefix(t *testing.T) {
	network := rainfallNetwork(1000)
	sampler := newFakeSampler()
	opts := pipeline.DefaultOptions()
	opts.TestingMode = true
	opts.TestingLimit = 10

	p, _ := newTestProcessor(t, sampler, nil, opts)
	result, err := p.Process(context.Background(), network)
	require.NoError(t, err)

	require.Equal(t, 10, result.Collection.Len())
	assert.Equal(t, 1000, result.Total)
	assert.Equal(t, 10, result.Processed)
	for i := 0; i < 10; i++ {
		reach := result.Collection.At(i)
		assert.Equal(t, i, reach.Index())
		assert.Equal(t, network[i], reach.Geometry())
		assert.Equal(t, domain.RegimeRainfall, reach.Classification())
	}
	assert.Equal(t, 10, sampler.count(precipRaster))
}

func TestProcessor_PreservesOrderWithManyWorkers(t *testing.T) {
	network := rainfallNetwork(700)
	sampler := newFakeSampler()
	// Even reaches take longer so completions arrive out of order.
	sampler.delayFn = func(pt orb.Point) time.Duration {
		if int(pt.Y())%2 == 0 {
			return 200 * time.Microsecond
		}
		return 0
	}
	opts := pipeline.DefaultOptions()
	opts.Workers = 16

	p, _ := newTestProcessor(t, sampler, nil, opts)
	result, err := p.Process(context.Background(), network)
	require.NoError(t, err)

	require.Equal(t, len(network), result.Collection.Len())
	for i, reach := range result.Collection.Reaches() {
		require.Equal(t, i, reach.Index())
		require.Equal(t, network[i][0], reach.RepresentativePoint())
		want := domain.RegimeRainfall
		if i >= 618 {
			want = domain.RegimeRainSnow
		}
		require.Equal(t, want, reach.Classification(), "reach %d", i)
	}
}

func TestProcessor_AbortPolicyDiscardsResults(t *testing.T) {
	network := rainfallNetwork(10)
	network[5] = orb.LineString{{-1, 0}}
	opts := pipeline.DefaultOptions()
	opts.Workers = 1

	p, metrics := newTestProcessor(t, newFakeSampler(), nil, opts)
	result, err := p.Process(context.Background(), network)
	require.Error(t, err)
	assert.Nil(t, result)

	var abort *pipeline.AbortError
	require.True(t, errors.As(err, &abort))
	assert.Equal(t, 5, abort.Index)
	assert.Equal(t, 5, abort.Classified)
	assert.ErrorIs(t, err, domain.ErrSampleUnavailable)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs.WithLabelValues("aborted")), 0)
}

func TestProcessor_SkipPolicyContinues(t *testing.T) {
	network := rainfallNetwork(20)
	network[3] = orb.LineString{{-1, 3}}
	network[11] = orb.LineString{{-2, 11}}
	opts := pipeline.DefaultOptions()
	opts.Policy = pipeline.PolicySkip
	opts.Workers = 4

	p, metrics := newTestProcessor(t, newFakeSampler(), nil, opts)
	result, err := p.Process(context.Background(), network)
	require.NoError(t, err)

	assert.Equal(t, 18, result.Collection.Len())
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, 3, result.Skipped[0].Index)
	assert.Equal(t, 11, result.Skipped[1].Index)
	assert.ErrorIs(t, result.Skipped[0].Err, domain.ErrSampleUnavailable)

	prev := -1
	for _, reach := range result.Collection.Reaches() {
		assert.Greater(t, reach.Index(), prev)
		assert.NotEqual(t, 3, reach.Index())
		assert.NotEqual(t, 11, reach.Index())
		prev = reach.Index()
	}
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ReachesSkipped), 0)
	assert.InDelta(t, 18, testutil.ToFloat64(metrics.ReachesClassified.WithLabelValues("Rainfall")), 0)
}

func TestProcessor_SkipPolicyStillAbortsOnOtherErrors(t *testing.T) {
	network := sliceNetwork{{{300, 1}}, {}}
	opts := pipeline.DefaultOptions()
	opts.Policy = pipeline.PolicySkip
	opts.Workers = 1

	p, _ := newTestProcessor(t, newFakeSampler(), nil, opts)
	_, err := p.Process(context.Background(), network)
	assert.ErrorIs(t, err, domain.ErrEmptyGeometry)
}

func TestProcessor_ProgressCadence(t *testing.T) {
	progress := &recordingProgress{}
	opts := pipeline.DefaultOptions()
	opts.ProgressInterval = 5
	opts.Workers = 3

	p, _ := newTestProcessor(t, newFakeSampler(), progress, opts)
	clock := clockwork.NewFakeClock()
	p.WithClock(clock)

	_, err := p.Process(context.Background(), rainfallNetwork(20))
	require.NoError(t, err)

	require.Len(t, progress.events, 4)
	for i, e := range progress.events {
		assert.Equal(t, (i+1)*5, e.Current)
		assert.Equal(t, 20, e.Total)
		assert.InDelta(t, float64((i+1)*25), e.Percent, 1e-9)
		assert.False(t, e.Testing)
	}
}

func TestProcessor_TestingModeProgressReportsLimit(t *testing.T) {
	progress := &recordingProgress{}
	opts := pipeline.DefaultOptions()
	opts.TestingMode = true
	opts.ProgressInterval = 1

	p, _ := newTestProcessor(t, newFakeSampler(), progress, opts)
	_, err := p.Process(context.Background(), rainfallNetwork(1000))
	require.NoError(t, err)

	require.Len(t, progress.events, pipeline.DefaultTestingLimit)
	last := progress.events[len(progress.events)-1]
	assert.Equal(t, 10, last.Current)
	assert.Equal(t, 10, last.Total)
	assert.True(t, last.Testing)
}

func TestProcessor_ProgressDisabled(t *testing.T) {
	progress := &recordingProgress{}
	opts := pipeline.DefaultOptions()
	opts.ProgressInterval = 0

	p, _ := newTestProcessor(t, newFakeSampler(), progress, opts)
	_, err := p.Process(context.Background(), rainfallNetwork(50))
	require.NoError(t, err)
	assert.Empty(t, progress.events)
}

func TestProcessor_CancelledContext(t *testing.T) {
	sampler := newFakeSampler()
	p, _ := newTestProcessor(t, sampler, nil, pipeline.DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Process(ctx, rainfallNetwork(100))
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)

	var abort *pipeline.AbortError
	require.True(t, errors.As(err, &abort))
	assert.Equal(t, -1, abort.Index)
}

type shortNetwork struct{ sliceNetwork }

func (s shortNetwork) Count() int { return len(s.sliceNetwork) + 5 }

func TestProcessor_NetworkShorterThanCount(t *testing.T) {
	p, _ := newTestProcessor(t, newFakeSampler(), nil, pipeline.DefaultOptions())
	_, err := p.Process(context.Background(), shortNetwork{rainfallNetwork(3)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 8")
}

func TestProcessor_Readiness(t *testing.T) {
	p, _ := newTestProcessor(t, newFakeSampler(), nil, pipeline.DefaultOptions())
	assert.Error(t, p.CheckReadiness(context.Background()))

	_, err := p.Process(context.Background(), rainfallNetwork(1))
	require.NoError(t, err)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestProcessor_ResultMetadata(t *testing.T) {
	p, metrics := newTestProcessor(t, newFakeSampler(), nil, pipeline.DefaultOptions())

	result, err := p.Process(context.Background(), rainfallNetwork(620))
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 620, result.Total)
	assert.Equal(t, 620, result.Processed)
	assert.Equal(t, map[domain.Regime]int{
		domain.RegimeRainfall: 618,
		domain.RegimeRainSnow: 2,
	}, result.Collection.RegimeCounts())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs.WithLabelValues("completed")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.RunInProgress), 0)
}

type gateSampler struct {
	*fakeSampler
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gateSampler) ValueAt(ctx context.Context, pt orb.Point, h domain.RasterHandle) (float64, bool, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.fakeSampler.ValueAt(ctx, pt, h)
}

func TestProcessor_Status(t *testing.T) {
	sampler := &gateSampler{fakeSampler: newFakeSampler(), entered: make(chan struct{}), release: make(chan struct{})}
	opts := pipeline.DefaultOptions()
	opts.Workers = 1
	p, _ := newTestProcessor(t, sampler, nil, opts)

	assert.Equal(t, pipeline.Status{State: pipeline.StateIdle}, p.Status())

	done := make(chan *pipeline.Result, 1)
	go func() {
		result, err := p.Process(context.Background(), rainfallNetwork(3))
		assert.NoError(t, err)
		done <- result
	}()

	<-sampler.entered
	running := p.Status()
	assert.Equal(t, pipeline.StateRunning, running.State)
	assert.Equal(t, 0, running.Processed)
	assert.Equal(t, 3, running.Total)
	assert.NotEmpty(t, running.RunID)
	close(sampler.release)

	result := <-done
	require.NotNil(t, result)
	assert.Equal(t, pipeline.Status{
		RunID:     result.RunID,
		State:     pipeline.StateCompleted,
		Processed: 3,
		Total:     3,
	}, p.Status())
}

func TestProcessor_StatusAfterAbort(t *testing.T) {
	network := rainfallNetwork(10)
	network[5] = orb.LineString{{-1, 0}}
	opts := pipeline.DefaultOptions()
	opts.Workers = 1

	p, _ := newTestProcessor(t, newFakeSampler(), nil, opts)
	_, err := p.Process(context.Background(), network)
	require.Error(t, err)

	st := p.Status()
	assert.Equal(t, pipeline.StateAborted, st.State)
	assert.Equal(t, 5, st.Processed)
	assert.Equal(t, 10, st.Total)
}
