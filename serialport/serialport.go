// Package serialport opens a Mote through its CDC-ACM serial device.
package serialport

import (
	"io"

	"github.com/drichelson/motelight/mote"
	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

const (
	DefaultPort = "/dev/ttyACM0"
	DefaultBaud = 115200
)

type Config struct {
	Port string
	Baud int
}

func (c Config) serial() *serial.Config {
	cfg := &serial.Config{
		Name: c.Port,
		Baud: c.Baud,
	}
	if cfg.Name == "" {
		cfg.Name = DefaultPort
	}
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaud
	}
	return cfg
}

// Dialer returns a mote.Dialer that opens the serial port described by cfg.
func Dialer(cfg Config) mote.Dialer {
	return func() (io.WriteCloser, error) {
		sc := cfg.serial()
		port, err := serial.OpenPort(sc)
		if err != nil {
			return nil, errors.Wrapf(err, "serial: open %s", sc.Name)
		}
		return port, nil
	}
}
