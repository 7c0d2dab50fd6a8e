package animation

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Options describe a Light at construction time.
type Options struct {
	Name             string
	ID               string
	Segments         int
	PixelsPerSegment int
	Params           Params
	// Source drives spawning and colours. Nil seeds from the runtime.
	Source rand.Source
}

// Light is the whole fixture. A single instance is shared by the render
// loop and the parameter handlers; every method is safe for concurrent use.
type Light struct {
	mu sync.RWMutex

	name     string
	id       string
	params   Params
	segments []*Segment
	tick     uint64

	src rand.Source
	rng *rand.Rand
}

// TickStats describes one call to Tick.
type TickStats struct {
	Tick      uint64
	Interval  time.Duration
	Spawned   int
	Evicted   int
	Particles int
}

func NewLight(opts Options) (*Light, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	if opts.Segments <= 0 || opts.PixelsPerSegment <= 0 {
		return nil, errors.Errorf("light needs at least one pixel, got %d segments of %d",
			opts.Segments, opts.PixelsPerSegment)
	}
	src := opts.Source
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	l := &Light{
		name:     opts.Name,
		id:       opts.ID,
		params:   opts.Params,
		segments: make([]*Segment, opts.Segments),
		src:      src,
		rng:      rand.New(src),
	}
	for i := range l.segments {
		l.segments[i] = NewSegment(opts.PixelsPerSegment)
	}
	return l, nil
}

// Tick advances the animation by one step and returns every segment's
// pixels flattened in segment order. A parameter change made while Tick
// runs is seen by the next call.
func (l *Light) Tick() ([]colorful.Color, TickStats) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.tick
	stats := TickStats{
		Tick:     n,
		Interval: time.Duration(1000/int(l.params.Rate)) * time.Millisecond,
	}
	decay := float64(l.params.Decay) / 255.0
	dist := distuv.Poisson{Lambda: 2.0 * float64(l.params.Lambda), Src: l.src}

	pixels := make([]colorful.Color, 0, len(l.segments)*l.segments[0].Len())
	for _, s := range l.segments {
		if dist.Rand() > 1 {
			s.Spawn(Particle{CreatedAt: n, Color: RandomHuedColor(l.rng)})
			stats.Spawned++
		}
		stats.Evicted += s.Advance(n, decay)
		stats.Particles += len(s.particles)
		pixels = append(pixels, s.pixels...)
	}
	l.tick++
	return pixels, stats
}

// SetParam applies one textual parameter update. Unknown names are ignored
// and leave the light untouched; malformed values and a zero rate are
// rejected without changing state.
func (l *Light) SetParam(name, value string) error {
	if !IsParam(name) {
		log.WithField("param", name).Debug("ignoring unknown parameter")
		return nil
	}
	v, err := ParseValue(value)
	if err != nil {
		return errors.WithMessage(err, name)
	}
	if name == ParamRate && v == 0 {
		return ErrZeroRate
	}

	l.mu.Lock()
	switch name {
	case ParamLambda:
		l.params.Lambda = v
	case ParamDecay:
		l.params.Decay = v
	case ParamRate:
		l.params.Rate = v
	}
	l.mu.Unlock()
	return nil
}

// Apply replaces all parameters at once.
func (l *Light) Apply(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	l.params = p
	l.mu.Unlock()
	return nil
}

func (l *Light) Params() Params {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.params
}

func (l *Light) Name() string {
	return l.name
}
