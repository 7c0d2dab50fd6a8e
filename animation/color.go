package animation

import (
	"math/rand/v2"

	"github.com/lucasb-eyer/go-colorful"
)

// Background is both the decay target and the initial state of every pixel.
var Background = colorful.Color{}

// Screen lightens base by overlay. It never darkens and is exact when either
// operand is Background.
func Screen(base, overlay colorful.Color) colorful.Color {
	return colorful.Color{
		R: screen(base.R, overlay.R),
		G: screen(base.G, overlay.G),
		B: screen(base.B, overlay.B),
	}
}

func screen(a, b float64) float64 {
	return a + b - a*b
}

// Mix moves base toward target by t in [0,1].
func Mix(base, target colorful.Color, t float64) colorful.Color {
	return base.BlendRgb(target, t)
}

// RandomHuedColor picks a whole-degree hue uniformly at full saturation and
// half value.
func RandomHuedColor(rng *rand.Rand) colorful.Color {
	return colorful.Hsv(float64(rng.IntN(360)), 1.0, 0.5)
}
