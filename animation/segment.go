package animation

import (
	"github.com/lucasb-eyer/go-colorful"
)

// Particles this far past the end of a segment are dropped.
const evictMargin = 1

// Segment is one independently animated lane. Its pixel buffer persists
// between ticks and accumulates trails.
type Segment struct {
	particles []Particle
	pixels    []colorful.Color
}

func NewSegment(length int) *Segment {
	s := &Segment{pixels: make([]colorful.Color, length)}
	for i := range s.pixels {
		s.pixels[i] = Background
	}
	return s
}

func (s *Segment) Len() int {
	return len(s.pixels)
}

// Pixels returns a copy of the pixel buffer.
func (s *Segment) Pixels() []colorful.Color {
	return append([]colorful.Color(nil), s.pixels...)
}

func (s *Segment) Particles() []Particle {
	return append([]Particle(nil), s.particles...)
}

func (s *Segment) Spawn(p Particle) {
	s.particles = append(s.particles, p)
}

// Mask draws every live particle at its position for tick n. Later
// particles overwrite earlier ones sharing a position.
func (s *Segment) Mask(n uint64) []colorful.Color {
	mask := make([]colorful.Color, len(s.pixels))
	for i := range mask {
		mask[i] = Background
	}
	for _, p := range s.particles {
		pos, ok := p.Position(n)
		if ok && pos < len(mask) {
			mask[pos] = p.Color
		}
	}
	return mask
}

// Advance composites the tick-n mask onto the buffer and fades the result
// toward Background by decay in [0,1]. It returns how many particles were
// evicted for having left the segment.
func (s *Segment) Advance(n uint64, decay float64) int {
	evicted := s.evict(n)
	mask := s.Mask(n)
	for i := range s.pixels {
		s.pixels[i] = Mix(Screen(s.pixels[i], mask[i]), Background, decay)
	}
	return evicted
}

func (s *Segment) evict(n uint64) int {
	kept := s.particles[:0]
	for _, p := range s.particles {
		if pos, ok := p.Position(n); ok && pos >= len(s.pixels)+evictMargin {
			continue
		}
		kept = append(kept, p)
	}
	evicted := len(s.particles) - len(kept)
	for i := len(kept); i < len(s.particles); i++ {
		s.particles[i] = Particle{}
	}
	s.particles = kept
	return evicted
}
