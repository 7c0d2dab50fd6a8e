package animation

import (
	"context"
	"time"

	"github.com/drichelson/motelight/mote"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("pkg", "animation")

const (
	fpsWindow     = 1000
	errorLogEvery = 100
)

// Output receives finished frames. Write may block; the render loop waits
// for it before sleeping.
type Output interface {
	Write(frame []mote.Pixel) error
}

// Discard is an Output that drops every frame.
var Discard Output = discard{}

type discard struct{}

func (discard) Write([]mote.Pixel) error { return nil }

// Renderer drives a Light in real time and hands each frame to an Output.
type Renderer struct {
	light  *Light
	out    Output
	pixels int

	tickTimer    metrics.Timer
	frames       metrics.Meter
	spawned      metrics.Counter
	evicted      metrics.Counter
	particles    metrics.Gauge
	outputErrors metrics.Counter

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRenderer builds a renderer emitting frames of totalPixels pixels.
// Metrics go to r, or metrics.DefaultRegistry when r is nil.
func NewRenderer(light *Light, out Output, totalPixels int, r metrics.Registry) *Renderer {
	if r == nil {
		r = metrics.DefaultRegistry
	}
	return &Renderer{
		light:  light,
		out:    out,
		pixels: totalPixels,

		tickTimer:    metrics.GetOrRegisterTimer("render.tick", r),
		frames:       metrics.GetOrRegisterMeter("render.frames", r),
		spawned:      metrics.GetOrRegisterCounter("render.spawned", r),
		evicted:      metrics.GetOrRegisterCounter("render.evicted", r),
		particles:    metrics.GetOrRegisterGauge("render.particles", r),
		outputErrors: metrics.GetOrRegisterCounter("output.errors", r),

		sleep: sleepContext,
	}
}

// Run renders until ctx is cancelled. Output failures are logged and
// counted; rendering continues regardless.
func (r *Renderer) Run(ctx context.Context) error {
	checkPointTime := time.Now()
	frameCount := 0
	failures := 0

	for {
		interval, err := r.Step()
		if err != nil {
			failures++
			if failures == 1 || failures%errorLogEvery == 0 {
				log.WithError(err).WithField("failures", failures).Warn("frame not written")
			}
		} else if failures > 0 {
			log.WithField("failures", failures).Info("output recovered")
			failures = 0
		}

		frameCount++
		if frameCount%fpsWindow == 0 {
			log.Infof("Avg FPS for past %d frames: %.1f", fpsWindow, fpsWindow/time.Since(checkPointTime).Seconds())
			checkPointTime = time.Now()
		}

		if err := r.sleep(ctx, interval); err != nil {
			return err
		}
	}
}

// Step renders one tick and writes it out. It returns the interval to wait
// before the next tick.
func (r *Renderer) Step() (time.Duration, error) {
	start := time.Now()
	pixels, stats := r.light.Tick()
	r.tickTimer.UpdateSince(start)

	r.frames.Mark(1)
	r.spawned.Inc(int64(stats.Spawned))
	r.evicted.Inc(int64(stats.Evicted))
	r.particles.Update(int64(stats.Particles))

	if err := r.out.Write(Frame(pixels, r.pixels)); err != nil {
		r.outputErrors.Inc(1)
		return stats.Interval, errors.Wrapf(err, "tick %d", stats.Tick)
	}
	return stats.Interval, nil
}

// Frame converts linear colours to 8-bit pixels by truncation and fits the
// result to exactly total pixels, padding with Background.
func Frame(pixels []colorful.Color, total int) []mote.Pixel {
	frame := make([]mote.Pixel, total)
	bg := ToPixel(Background)
	for i := range frame {
		if i < len(pixels) {
			frame[i] = ToPixel(pixels[i])
		} else {
			frame[i] = bg
		}
	}
	return frame
}

// ToPixel scales each channel by 255 and truncates. No gamma is applied.
func ToPixel(c colorful.Color) mote.Pixel {
	return mote.Pixel{R: channel(c.R), G: channel(c.G), B: channel(c.B)}
}

func channel(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v * 255.0)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
