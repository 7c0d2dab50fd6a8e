// Package usb opens a Mote as a raw USB device and writes frames to its
// bulk OUT endpoint.
package usb

import (
	"io"
	"strconv"
	"strings"

	"github.com/drichelson/motelight/mote"
	"github.com/google/gousb"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("pkg", "usb")

const (
	moteVendorID  gousb.ID = 0x16d0
	moteProductID gousb.ID = 0x08c4
)

type Config struct {
	VendorID  gousb.ID
	ProductID gousb.ID
	// Interface and Endpoint select the CDC data interface and its bulk
	// OUT endpoint.
	Interface int
	Endpoint  int
}

// DefaultConfig matches a stock Pimoroni Mote.
func DefaultConfig() Config {
	return Config{
		VendorID:  moteVendorID,
		ProductID: moteProductID,
		Interface: 1,
		Endpoint:  2,
	}
}

// ParseID parses a hex vendor or product ID such as "16d0" or "0x16d0".
func ParseID(s string) (gousb.ID, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, errors.Wrapf(err, "usb id %q", s)
	}
	return gousb.ID(v), nil
}

// Dialer returns a mote.Dialer that opens the device described by cfg.
func Dialer(cfg Config) mote.Dialer {
	return func() (io.WriteCloser, error) {
		return open(cfg)
	}
}

type endpoint struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	done func()
	out  *gousb.OutEndpoint
}

func open(cfg Config) (w io.WriteCloser, err error) {
	ctx := gousb.NewContext()
	defer func() {
		if err != nil {
			ctx.Close()
		}
	}()

	dev, err := ctx.OpenDeviceWithVIDPID(cfg.VendorID, cfg.ProductID)
	if err != nil {
		return nil, errors.Wrap(err, "usb: open device")
	}
	if dev == nil {
		return nil, errors.Errorf("usb: no device %s:%s", cfg.VendorID, cfg.ProductID)
	}
	showInfo(dev)

	if err := dev.SetAutoDetach(true); err != nil {
		log.WithError(err).Debug("auto detach not supported")
	}
	intf, done, err := claim(dev, cfg.Interface)
	if err != nil {
		dev.Close()
		return nil, err
	}
	out, err := intf.OutEndpoint(cfg.Endpoint)
	if err != nil {
		done()
		dev.Close()
		return nil, errors.Wrapf(err, "usb: endpoint %d", cfg.Endpoint)
	}
	return &endpoint{ctx: ctx, dev: dev, done: done, out: out}, nil
}

func claim(dev *gousb.Device, num int) (*gousb.Interface, func(), error) {
	cfgNum, err := dev.ActiveConfigNum()
	if err != nil {
		return nil, nil, errors.Wrap(err, "usb: active config")
	}
	cfg, err := dev.Config(cfgNum)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "usb: claim config %d", cfgNum)
	}
	intf, err := cfg.Interface(num, 0)
	if err != nil {
		cfg.Close()
		return nil, nil, errors.Wrapf(err, "usb: claim interface %d", num)
	}
	return intf, func() {
		intf.Close()
		cfg.Close()
	}, nil
}

func (e *endpoint) Write(p []byte) (int, error) {
	return e.out.Write(p)
}

func (e *endpoint) Close() error {
	e.done()
	err := e.dev.Close()
	if cerr := e.ctx.Close(); err == nil {
		err = cerr
	}
	return err
}

func showInfo(dev *gousb.Device) {
	entry := log.WithFields(logrus.Fields{
		"vendor":  dev.Desc.Vendor,
		"product": dev.Desc.Product,
		"bus":     dev.Desc.Bus,
		"address": dev.Desc.Address,
		"speed":   dev.Desc.Speed,
	})
	if m, err := dev.Manufacturer(); err == nil {
		entry = entry.WithField("manufacturer", m)
	}
	if s, err := dev.SerialNumber(); err == nil {
		entry = entry.WithField("serial", s)
	}
	entry.Info("opened device")
}
