package main

import (
	"context"
	"flag"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drichelson/motelight/animation"
	"github.com/drichelson/motelight/config"
	"github.com/drichelson/motelight/mote"
	"github.com/drichelson/motelight/mqtt"
	"github.com/drichelson/motelight/preview"
	"github.com/drichelson/motelight/serialport"
	"github.com/drichelson/motelight/server"
	"github.com/drichelson/motelight/usb"
	"github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"
)

var (
	configPath     = flag.String("config", "", "path to a YAML config file")
	brokerAddress  = flag.String("mqtt_broker_address", "", "MQTT broker, overrides the config file")
	brokerUsername = flag.String("mqtt_broker_username", "", "MQTT username, overrides the config file")
	brokerPassword = flag.String("mqtt_broker_password", "", "MQTT password, overrides the config file")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	if *brokerAddress != "" {
		cfg.MQTT.Broker = *brokerAddress
	}
	if *brokerUsername != "" {
		cfg.MQTT.Username = *brokerUsername
	}
	if *brokerPassword != "" {
		cfg.MQTT.Password = *brokerPassword
	}
	logFile, err := setupLogging(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	var src rand.Source
	if cfg.Light.Seed != 0 {
		src = rand.NewPCG(cfg.Light.Seed, cfg.Light.Seed)
	}
	light, err := animation.NewLight(animation.Options{
		Name:             cfg.Light.Name,
		ID:               cfg.Light.ID,
		Segments:         cfg.Light.Segments,
		PixelsPerSegment: cfg.Light.PixelsPerSegment,
		Params: animation.Params{
			Lambda: *cfg.Light.Lambda,
			Decay:  *cfg.Light.Decay,
			Rate:   *cfg.Light.Rate,
		},
		Source: src,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, closeOutput, err := openOutput(stop, cfg.Output)
	if err != nil {
		log.Fatal(err)
	}
	defer closeOutput()

	if !cfg.MQTT.Disabled {
		bridge := mqtt.New(mqtt.Config{
			Broker:    cfg.MQTT.Broker,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			ClientID:  cfg.MQTT.ClientID,
			Subscribe: cfg.MQTT.Subscribe,
			KeepAlive: cfg.MQTT.KeepAlive,
			Reconnect: cfg.MQTT.Reconnect,
			Startup:   startupMessages(cfg.MQTT.Startup),
		}, light)
		if err := bridge.Connect(10 * time.Second); err != nil {
			log.WithError(err).Warn("MQTT not connected yet, retrying in the background")
		}
		defer bridge.Close()
	}

	if !cfg.HTTP.Disabled {
		srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: server.New(light, metrics.DefaultRegistry)}
		go func() {
			log.WithField("addr", cfg.HTTP.Addr).Info("HTTP control listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("HTTP control stopped")
			}
		}()
		defer srv.Close()
	}

	log.WithFields(log.Fields{
		"light":  light.Name(),
		"id":     light.ID(),
		"params": light.Params().State(),
	}).Info("start")
	renderer := animation.NewRenderer(light, out, mote.TotalPixels, metrics.DefaultRegistry)
	if err := renderer.Run(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Error("render loop stopped")
	}
	log.Info("shutting down")
}

func startupMessages(pubs []config.Publish) []animation.Message {
	msgs := make([]animation.Message, 0, len(pubs))
	for _, p := range pubs {
		msgs = append(msgs, animation.Message{Topic: p.Topic, Payload: []byte(p.Payload), Retained: p.Retained})
	}
	return msgs
}

func setupLogging(cfg config.LogConfig) (*os.File, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.WithError(err).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	}
	if cfg.File == "" {
		return nil, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return f, nil
}

func openOutput(stop context.CancelFunc, cfg config.OutputConfig) (animation.Output, func(), error) {
	switch cfg.Driver {
	case config.DriverUSB:
		vid, err := usb.ParseID(cfg.VendorID)
		if err != nil {
			return nil, nil, err
		}
		pid, err := usb.ParseID(cfg.ProductID)
		if err != nil {
			return nil, nil, err
		}
		conn := mote.NewConn(usb.Dialer(usb.Config{
			VendorID:  vid,
			ProductID: pid,
			Interface: cfg.Interface,
			Endpoint:  cfg.Endpoint,
		}), *cfg.Gamma)
		return conn, func() { conn.Close() }, nil

	case config.DriverSerial:
		conn := mote.NewConn(serialport.Dialer(serialport.Config{
			Port: cfg.SerialPort,
			Baud: cfg.Baud,
		}), *cfg.Gamma)
		return conn, func() { conn.Close() }, nil

	case config.DriverPreview:
		screen, err := preview.Open(mote.PixelsPerChannel)
		if err != nil {
			return nil, nil, err
		}
		// The terminal swallows Ctrl-C, so quitting goes through the screen.
		go func() {
			screen.WaitQuit()
			stop()
		}()
		return screen, screen.Close, nil
	}
	return animation.Discard, func() {}, nil
}
