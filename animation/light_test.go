package animation

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLight(t *testing.T, segments, pixels int, p Params) *Light {
	t.Helper()
	l, err := NewLight(Options{
		Name:             "test light",
		ID:               "test/strip",
		Segments:         segments,
		PixelsPerSegment: pixels,
		Params:           p,
		Source:           rand.NewPCG(7, 11),
	})
	require.NoError(t, err)
	return l
}

func TestNewLightValidates(t *testing.T) {
	_, err := NewLight(Options{Segments: 1, PixelsPerSegment: 4, Params: Params{Rate: 0}})
	assert.True(t, errors.Is(err, ErrZeroRate))

	_, err = NewLight(Options{Segments: 0, PixelsPerSegment: 4, Params: Params{Rate: 1}})
	assert.Error(t, err)

	_, err = NewLight(Options{Segments: 1, PixelsPerSegment: 0, Params: Params{Rate: 1}})
	assert.Error(t, err)
}

func TestNoSpawnStaysBackground(t *testing.T) {
	l := newTestLight(t, 1, 4, Params{Lambda: 0, Decay: 255, Rate: 100})

	for i := 0; i < 500; i++ {
		pixels, stats := l.Tick()
		require.Len(t, pixels, 4)
		assert.Equal(t, 0, stats.Spawned)
		for j, c := range pixels {
			assert.Equal(t, Background, c, "tick %d pixel %d", i, j)
		}
	}
	assert.Empty(t, l.segments[0].Particles())
}

func TestHighLambdaSpawnsEveryTick(t *testing.T) {
	l := newTestLight(t, 4, 16, Params{Lambda: 255, Decay: 0, Rate: 100})

	_, stats := l.Tick()
	assert.Equal(t, 4, stats.Spawned)
	for i := 0; i < len(l.segments); i++ {
		require.Len(t, l.segments[i].Particles(), 1)
		assert.Equal(t, uint64(0), l.segments[i].Particles()[0].CreatedAt)
	}

	_, stats = l.Tick()
	assert.Equal(t, uint64(1), stats.Tick)
	assert.Equal(t, 8, stats.Particles)
}

func TestTickFlattensInSegmentOrder(t *testing.T) {
	l := newTestLight(t, 4, 12, Params{Lambda: 0, Decay: 0, Rate: 100})
	colors := []colorful.Color{red, green, blue, {R: 0.25, G: 0.25, B: 0.25}}
	for i, c := range colors {
		l.segments[i].Spawn(Particle{CreatedAt: 0, Color: c})
	}

	pixels, _ := l.Tick()
	require.Len(t, pixels, 48)
	for i, c := range colors {
		for j := 0; j < 12; j++ {
			want := Background
			if j == 0 {
				want = c
			}
			assert.Equal(t, want, pixels[i*12+j], "segment %d pixel %d", i, j)
		}
	}
}

func TestTickInterval(t *testing.T) {
	for rate, want := range map[uint8]time.Duration{
		1:   time.Second,
		3:   333 * time.Millisecond,
		128: 7 * time.Millisecond,
		255: 3 * time.Millisecond,
	} {
		l := newTestLight(t, 1, 4, Params{Rate: rate})
		_, stats := l.Tick()
		assert.Equal(t, want, stats.Interval, "rate %d", rate)
	}
}

func TestSetParam(t *testing.T) {
	l := newTestLight(t, 1, 4, Params{Lambda: 1, Decay: 2, Rate: 3})

	require.NoError(t, l.SetParam(ParamLambda, "10"))
	require.NoError(t, l.SetParam(ParamDecay, " 20 "))
	require.NoError(t, l.SetParam(ParamRate, "30"))
	assert.Equal(t, Params{Lambda: 10, Decay: 20, Rate: 30}, l.Params())
}

func TestSetParamRejectsOutOfRangeRate(t *testing.T) {
	l := newTestLight(t, 1, 4, Params{Lambda: 1, Decay: 2, Rate: 3})

	err := l.SetParam(ParamRate, "300")
	assert.True(t, errors.Is(err, ErrInvalidValue))
	assert.Equal(t, uint8(3), l.Params().Rate)
}

func TestSetParamRejectsMalformed(t *testing.T) {
	l := newTestLight(t, 1, 4, Params{Lambda: 1, Decay: 2, Rate: 3})

	assert.Error(t, l.SetParam(ParamLambda, "lots"))
	assert.Error(t, l.SetParam(ParamDecay, "-4"))
	assert.True(t, errors.Is(l.SetParam(ParamRate, "0"), ErrZeroRate))
	assert.Equal(t, Params{Lambda: 1, Decay: 2, Rate: 3}, l.Params())
}

func TestSetParamIgnoresUnknownNames(t *testing.T) {
	l := newTestLight(t, 1, 4, Params{Lambda: 1, Decay: 2, Rate: 3})

	assert.NoError(t, l.SetParam("brightness", "not even a number"))
	assert.Equal(t, Params{Lambda: 1, Decay: 2, Rate: 3}, l.Params())
}

func TestApply(t *testing.T) {
	l := newTestLight(t, 1, 4, Params{Lambda: 1, Decay: 2, Rate: 3})

	assert.Error(t, l.Apply(Params{Lambda: 9, Rate: 0}))
	require.NoError(t, l.Apply(Params{Lambda: 9, Decay: 8, Rate: 7}))
	assert.Equal(t, Params{Lambda: 9, Decay: 8, Rate: 7}, l.Params())
}

func TestParamChangeVisibleNextTick(t *testing.T) {
	l := newTestLight(t, 1, 4, Params{Rate: 10})

	_, stats := l.Tick()
	assert.Equal(t, 100*time.Millisecond, stats.Interval)
	require.NoError(t, l.SetParam(ParamRate, "20"))
	_, stats = l.Tick()
	assert.Equal(t, 50*time.Millisecond, stats.Interval)
}

func TestConcurrentUpdatesAndTicks(t *testing.T) {
	l := newTestLight(t, 4, 16, Params{Lambda: 2, Decay: 30, Rate: 100})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 300; i++ {
			l.Tick()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 300; i++ {
			_ = l.SetParam(ParamLambda, "3")
			_ = l.SetParam(ParamRate, "50")
			_ = l.Params()
		}
	}()
	wg.Wait()

	assert.Equal(t, Params{Lambda: 3, Decay: 30, Rate: 50}, l.Params())
}
