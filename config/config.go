// Package config loads the motelight YAML configuration.
package config

import (
	"os"
	"time"

	"github.com/drichelson/motelight/mote"
	"github.com/drichelson/motelight/usb"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Output drivers.
const (
	DriverUSB     = "usb"
	DriverSerial  = "serial"
	DriverPreview = "preview"
	DriverNone    = "none"
)

type Config struct {
	Light  LightConfig  `yaml:"light"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	HTTP   HTTPConfig   `yaml:"http"`
	Output OutputConfig `yaml:"output"`
	Log    LogConfig    `yaml:"log"`
}

type LightConfig struct {
	Name             string `yaml:"name"`
	ID               string `yaml:"id"`
	Segments         int    `yaml:"segments"`
	PixelsPerSegment int    `yaml:"pixels_per_segment"`
	Lambda           *uint8 `yaml:"lambda"`
	Decay            *uint8 `yaml:"decay"`
	Rate             *uint8 `yaml:"rate"`
	// Seed fixes the random source; zero picks a random seed.
	Seed uint64 `yaml:"seed"`
}

type MQTTConfig struct {
	Disabled  bool          `yaml:"disabled"`
	Broker    string        `yaml:"broker"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	ClientID  string        `yaml:"client_id"`
	Subscribe string        `yaml:"subscribe"`
	KeepAlive time.Duration `yaml:"keep_alive"`
	Reconnect time.Duration `yaml:"reconnect"`
	// Startup is published after every (re)subscription. An explicit
	// empty list disables it.
	Startup []Publish `yaml:"startup"`
}

type Publish struct {
	Topic    string `yaml:"topic"`
	Payload  string `yaml:"payload"`
	Retained bool   `yaml:"retained"`
}

type HTTPConfig struct {
	Disabled bool   `yaml:"disabled"`
	Addr     string `yaml:"addr"`
}

type OutputConfig struct {
	Driver     string `yaml:"driver"`
	SerialPort string `yaml:"serial_port"`
	Baud       int    `yaml:"baud"`
	VendorID   string `yaml:"vendor_id"`
	ProductID  string `yaml:"product_id"`
	Interface  int    `yaml:"interface"`
	Endpoint   int    `yaml:"endpoint"`
	Gamma      *bool  `yaml:"gamma"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File appends logs to a file instead of stderr.
	File string `yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads path and fills every unset field with its default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	l := &c.Light
	if l.Name == "" {
		l.Name = "bedroom lights"
	}
	if l.ID == "" {
		l.ID = "bedroom/ceiling"
	}
	if l.Segments == 0 {
		l.Segments = mote.Channels
	}
	if l.PixelsPerSegment == 0 {
		l.PixelsPerSegment = mote.PixelsPerChannel
	}
	l.Lambda = defaultUint8(l.Lambda, 128)
	l.Decay = defaultUint8(l.Decay, 128)
	l.Rate = defaultUint8(l.Rate, 128)

	m := &c.MQTT
	if m.Broker == "" {
		m.Broker = "tcp://127.0.0.1:1883"
	}
	if m.ClientID == "" {
		m.ClientID = "motelight"
	}
	if m.Subscribe == "" {
		m.Subscribe = "home/#"
	}
	if m.KeepAlive == 0 {
		m.KeepAlive = 5 * time.Second
	}
	if m.Reconnect == 0 {
		m.Reconnect = 3 * time.Second
	}
	if m.Startup == nil {
		m.Startup = []Publish{{Topic: "home/bedroom/ir", Payload: "ON"}}
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":4000"
	}

	o := &c.Output
	if o.Driver == "" {
		o.Driver = DriverUSB
	}
	if o.SerialPort == "" {
		o.SerialPort = "/dev/ttyACM0"
	}
	if o.Baud == 0 {
		o.Baud = 115200
	}
	dev := usb.DefaultConfig()
	if o.VendorID == "" {
		o.VendorID = dev.VendorID.String()
	}
	if o.ProductID == "" {
		o.ProductID = dev.ProductID.String()
	}
	if o.Interface == 0 {
		o.Interface = dev.Interface
	}
	if o.Endpoint == 0 {
		o.Endpoint = dev.Endpoint
	}
	if o.Gamma == nil {
		gamma := true
		o.Gamma = &gamma
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func defaultUint8(v *uint8, def uint8) *uint8 {
	if v != nil {
		return v
	}
	return &def
}

func (c *Config) Validate() error {
	if *c.Light.Rate == 0 {
		return errors.New("light.rate must be greater than zero")
	}
	if c.Light.Segments < 0 || c.Light.PixelsPerSegment < 0 {
		return errors.New("light.segments and light.pixels_per_segment must be positive")
	}
	switch c.Output.Driver {
	case DriverUSB, DriverSerial, DriverPreview:
		if err := c.Light.fitsMote(); err != nil {
			return err
		}
	case DriverNone:
	default:
		return errors.Errorf("unknown output.driver %q", c.Output.Driver)
	}
	for _, p := range c.MQTT.Startup {
		if p.Topic == "" {
			return errors.New("mqtt.startup entries need a topic")
		}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

// fitsMote reports whether every segment maps onto exactly one Mote channel.
func (l LightConfig) fitsMote() error {
	if l.PixelsPerSegment != mote.PixelsPerChannel {
		return errors.Errorf("light.pixels_per_segment must be %d for a Mote, got %d",
			mote.PixelsPerChannel, l.PixelsPerSegment)
	}
	if l.Segments > mote.Channels {
		return errors.Errorf("light.segments must be at most %d for a Mote, got %d",
			mote.Channels, l.Segments)
	}
	return nil
}
