package mote

import (
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("pkg", "mote")

// ErrBackingOff is returned by Write while the link is down and the next
// reconnect attempt is not yet due.
var ErrBackingOff = errors.New("mote: device unavailable, backing off")

// Dialer opens a fresh byte link to a Mote.
type Dialer func() (io.WriteCloser, error)

// Conn writes frames to a Mote, reopening the link after failures. Reconnects
// happen lazily inside Write and are spaced by an exponential backoff so a
// missing device never stalls the caller for longer than one dial.
type Conn struct {
	dial    Dialer
	gamma   bool
	backoff backoff.BackOff
	now     func() time.Time

	w       io.WriteCloser
	retryAt time.Time
}

type ConnOption func(*Conn)

// WithBackOff replaces the default exponential reconnect schedule.
func WithBackOff(b backoff.BackOff) ConnOption {
	return func(c *Conn) { c.backoff = b }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ConnOption {
	return func(c *Conn) { c.now = now }
}

func NewConn(dial Dialer, gamma bool, opts ...ConnOption) *Conn {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0

	c := &Conn{
		dial:    dial,
		gamma:   gamma,
		backoff: b,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Write sends one frame. A failed write drops the link; the next Write
// after the backoff delay dials again.
func (c *Conn) Write(frame []Pixel) error {
	if c.w == nil {
		if err := c.connect(); err != nil {
			return err
		}
	}
	if _, err := c.w.Write(FramePacket(frame)); err != nil {
		c.drop()
		return errors.Wrap(err, "mote: write frame")
	}
	return nil
}

func (c *Conn) connected() bool {
	return c.w != nil
}

func (c *Conn) Close() error {
	if c.w == nil {
		return nil
	}
	err := c.w.Close()
	c.w = nil
	return err
}

func (c *Conn) connect() error {
	now := c.now()
	if now.Before(c.retryAt) {
		return ErrBackingOff
	}
	w, err := c.dial()
	if err == nil {
		err = configure(w, c.gamma)
		if err != nil {
			w.Close()
		}
	}
	if err != nil {
		wait := c.backoff.NextBackOff()
		if wait == backoff.Stop {
			wait = time.Minute
		}
		c.retryAt = now.Add(wait)
		return errors.Wrapf(err, "mote: connect (retry in %v)", wait)
	}
	c.backoff.Reset()
	c.retryAt = time.Time{}
	c.w = w
	log.Info("device connected")
	return nil
}

func (c *Conn) drop() {
	if err := c.w.Close(); err != nil {
		log.WithError(err).Debug("close after failed write")
	}
	c.w = nil
	c.retryAt = c.now().Add(c.backoff.NextBackOff())
}

func configure(w io.Writer, gamma bool) error {
	for ch := 1; ch <= Channels; ch++ {
		if _, err := w.Write(ConfigurePacket(ch, PixelsPerChannel, gamma)); err != nil {
			return errors.Wrapf(err, "configure channel %d", ch)
		}
	}
	return nil
}
