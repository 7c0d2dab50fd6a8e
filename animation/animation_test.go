package animation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/drichelson/motelight/mote"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingOutput struct {
	frames [][]mote.Pixel
	err    error
}

func (o *recordingOutput) Write(frame []mote.Pixel) error {
	o.frames = append(o.frames, frame)
	return o.err
}

func TestToPixelTruncates(t *testing.T) {
	assert.Equal(t, mote.Pixel{}, ToPixel(Background))
	assert.Equal(t, mote.Pixel{R: 255, G: 255, B: 255}, ToPixel(colorful.Color{R: 1, G: 1, B: 1}))
	assert.Equal(t, mote.Pixel{R: 127, G: 63, B: 1}, ToPixel(colorful.Color{R: 0.5, G: 0.25, B: 0.005}))
	assert.Equal(t, mote.Pixel{R: 255}, ToPixel(colorful.Color{R: 1.2, G: -0.1}))
}

func TestFramePadsAndTruncates(t *testing.T) {
	pixels := []colorful.Color{red, green}

	frame := Frame(pixels, mote.TotalPixels)
	require.Len(t, frame, mote.TotalPixels)
	assert.Equal(t, mote.Pixel{R: 127}, frame[0])
	assert.Equal(t, mote.Pixel{G: 127}, frame[1])
	for i := 2; i < len(frame); i++ {
		assert.Equal(t, mote.Pixel{}, frame[i])
	}

	frame = Frame(pixels, 1)
	assert.Equal(t, []mote.Pixel{{R: 127}}, frame)
}

func TestStepWritesFullFrame(t *testing.T) {
	l := newTestLight(t, 4, 12, Params{Lambda: 255, Decay: 0, Rate: 50})
	out := &recordingOutput{}
	reg := metrics.NewRegistry()
	r := NewRenderer(l, out, mote.TotalPixels, reg)

	interval, err := r.Step()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, interval)
	require.Len(t, out.frames, 1)
	assert.Len(t, out.frames[0], mote.TotalPixels)

	for i := 0; i < 4; i++ {
		assert.NotEqual(t, mote.Pixel{}, out.frames[0][i*12], "segment %d", i)
	}
	for i := 48; i < mote.TotalPixels; i++ {
		assert.Equal(t, mote.Pixel{}, out.frames[0][i])
	}

	assert.Equal(t, int64(4), metrics.GetOrRegisterCounter("render.spawned", reg).Count())
	assert.Equal(t, int64(4), metrics.GetOrRegisterGauge("render.particles", reg).Value())
	assert.Equal(t, int64(1), metrics.GetOrRegisterTimer("render.tick", reg).Count())
}

func TestStepKeepsRenderingOnOutputFailure(t *testing.T) {
	l := newTestLight(t, 1, 16, Params{Lambda: 0, Decay: 0, Rate: 50})
	out := &recordingOutput{err: errors.New("unplugged")}
	reg := metrics.NewRegistry()
	r := NewRenderer(l, out, mote.TotalPixels, reg)

	for i := 0; i < 3; i++ {
		_, err := r.Step()
		assert.Error(t, err)
	}
	assert.Equal(t, int64(3), metrics.GetOrRegisterCounter("output.errors", reg).Count())

	_, stats := l.Tick()
	assert.Equal(t, uint64(3), stats.Tick)
}

func TestRunStopsOnCancel(t *testing.T) {
	l := newTestLight(t, 1, 16, Params{Lambda: 0, Decay: 0, Rate: 25})
	out := &recordingOutput{}
	r := NewRenderer(l, out, mote.TotalPixels, metrics.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		if len(slept) == 5 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, out.frames, 5)
	for _, d := range slept {
		assert.Equal(t, 40*time.Millisecond, d)
	}
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
