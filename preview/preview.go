// Package preview draws frames in a terminal instead of on a strip.
package preview

import (
	"sync"

	"github.com/drichelson/motelight/mote"
	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

const (
	block     = '█'
	cellWidth = 2
)

// Screen shows each frame as rows of coloured blocks, one row per
// channel of the strip.
type Screen struct {
	mu      sync.Mutex
	screen  tcell.Screen
	columns int
}

// New wraps an initialised tcell screen. columns is the number of pixels
// per row.
func New(screen tcell.Screen, columns int) *Screen {
	if columns <= 0 {
		columns = mote.PixelsPerChannel
	}
	return &Screen{screen: screen, columns: columns}
}

// Open initialises the controlling terminal.
func Open(columns int) (*Screen, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, errors.Wrap(err, "preview: new screen")
	}
	if err := s.Init(); err != nil {
		return nil, errors.Wrap(err, "preview: init screen")
	}
	s.HideCursor()
	s.Clear()
	return New(s, columns), nil
}

func (s *Screen) Write(frame []mote.Pixel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range frame {
		x := (i % s.columns) * cellWidth
		y := i / s.columns
		style := tcell.StyleDefault.Foreground(Color(p))
		for dx := 0; dx < cellWidth; dx++ {
			s.screen.SetContent(x+dx, y, block, nil, style)
		}
	}
	s.screen.Show()
	return nil
}

// Color maps a linear-light strip pixel to the sRGB colour a terminal
// expects.
func Color(p mote.Pixel) tcell.Color {
	c := colorful.LinearRgb(float64(p.R)/255.0, float64(p.G)/255.0, float64(p.B)/255.0).Clamped()
	r, g, b := c.RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

// WaitQuit blocks until the user presses q, Escape or Ctrl-C.
func (s *Screen) WaitQuit() {
	for {
		switch ev := s.screen.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				return
			}
		case *tcell.EventResize:
			s.screen.Sync()
		}
	}
}

func (s *Screen) Close() {
	s.screen.Fini()
}
