package animation

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Speed in pixels per tick.
const particleSpeed = 0.5

// Particle is a pulse of light that leaves position 0 at its creation tick
// and travels at particleSpeed.
type Particle struct {
	CreatedAt uint64
	Color     colorful.Color
}

// Position returns the pixel the particle occupies at tick n. ok is false
// before the particle exists.
func (p Particle) Position(n uint64) (pos int, ok bool) {
	if n < p.CreatedAt {
		return 0, false
	}
	return int(math.Floor(float64(n-p.CreatedAt) * particleSpeed)), true
}
