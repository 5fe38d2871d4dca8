package pipeline_test

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/pipeline"
)

func TestLogProgress(t *testing.T) {
	var buf bytes.Buffer
	sink := pipeline.NewLogProgress(slog.New(slog.NewTextHandler(&buf, nil)))

	sink.Progress(pipeline.ProgressEvent{Current: 50, Total: 200, Percent: 25, Elapsed: 1500 * time.Millisecond})
	out := buf.String()
	assert.Contains(t, out, "current=50")
	assert.Contains(t, out, "total=200")
	assert.Contains(t, out, "percent=25.0")
	assert.Contains(t, out, "elapsed=1.5s")
}

func TestLogProgress_Testing(t *testing.T) {
	var buf bytes.Buffer
	sink := pipeline.NewLogProgress(slog.New(slog.NewTextHandler(&buf, nil)))

	sink.Progress(pipeline.ProgressEvent{Current: 3, Total: 10, Percent: 30, Testing: true})
	assert.Contains(t, buf.String(), `"reach 3 out of 10"`)
	assert.NotContains(t, buf.String(), "percent")
}

func TestProgressFunc(t *testing.T) {
	var got pipeline.ProgressEvent
	pipeline.ProgressFunc(func(e pipeline.ProgressEvent) { got = e }).Progress(pipeline.ProgressEvent{Current: 1})
	assert.Equal(t, 1, got.Current)
}
