// Package server exposes the light parameters over HTTP.
//
//	GET /lambda            -> {"state": "128"}
//	GET /lambda?state=12   sets lambda and echoes the new value
//	GET /state             all parameters as JSON
//	PUT /state             replace all parameters from a JSON body
//	GET /config            read-only device description
//	GET /metrics           render metrics
package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/drichelson/motelight/animation"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
	"gopkg.in/macaron.v1"
)

var log = logrus.WithField("pkg", "server")

func New(light *animation.Light, registry metrics.Registry) *macaron.Macaron {
	if registry == nil {
		registry = metrics.DefaultRegistry
	}
	m := macaron.New()
	m.Use(macaron.Recovery())
	m.Use(requestLogger)

	for _, name := range []string{animation.ParamLambda, animation.ParamDecay, animation.ParamRate} {
		param := name
		m.Get("/"+param, func(ctx *macaron.Context) (int, string) {
			return getVar(ctx, light, param)
		})
	}

	m.Get("/state", func(ctx *macaron.Context) (int, string) {
		ctx.Header().Set("Content-Type", "application/json")
		return http.StatusOK, light.Params().State()
	})
	m.Put("/state", func(ctx *macaron.Context) (int, string) {
		body, err := ctx.Req.Body().String()
		if err != nil {
			return http.StatusBadRequest, err.Error()
		}
		p := light.Params()
		if err := p.Load(body); err != nil {
			return http.StatusBadRequest, err.Error()
		}
		if err := light.Apply(p); err != nil {
			return http.StatusBadRequest, err.Error()
		}
		log.WithField("params", p.State()).Info("parameters replaced")
		ctx.Header().Set("Content-Type", "application/json")
		return http.StatusOK, p.State()
	})

	m.Get("/config", func(ctx *macaron.Context) (int, string) {
		data, err := json.Marshal(light.Config())
		if err != nil {
			return http.StatusInternalServerError, err.Error()
		}
		ctx.Header().Set("Content-Type", "application/json")
		return http.StatusOK, string(data)
	})

	m.Get("/metrics", func(ctx *macaron.Context) (int, string) {
		var buf bytes.Buffer
		metrics.WriteJSONOnce(registry, &buf)
		ctx.Header().Set("Content-Type", "application/json")
		return http.StatusOK, buf.String()
	})
	return m
}

// Generic handler for getting/setting vars.
// Use with GET to retrieve the var
// Use with query param state=<newVal> to set var.
func getVar(ctx *macaron.Context, light *animation.Light, name string) (int, string) {
	ctx.Header().Set("Content-Type", "application/json")
	newValString := ctx.Query("state")
	if newValString == "" {
		v, _ := light.Params().Get(name)
		return http.StatusOK, stateJSON(strconv.Itoa(int(v)))
	}
	if err := light.SetParam(name, newValString); err != nil {
		log.WithError(err).WithField("param", name).Warn("rejected parameter update")
		return http.StatusBadRequest, stateError(err)
	}
	v, _ := light.Params().Get(name)
	log.WithField(name, v).Info("parameter updated")
	return http.StatusOK, stateJSON(strconv.Itoa(int(v)))
}

func stateJSON(v string) string {
	data, _ := json.Marshal(map[string]string{"state": v})
	return string(data)
}

func stateError(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}

func requestLogger(ctx *macaron.Context) {
	start := time.Now()
	ctx.Next()
	log.WithFields(logrus.Fields{
		"method":   ctx.Req.Method,
		"path":     ctx.Req.URL.Path,
		"status":   ctx.Resp.Status(),
		"duration": time.Since(start),
	}).Debug("request")
}
