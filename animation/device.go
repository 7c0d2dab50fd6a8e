package animation

import (
	"fmt"
	"strconv"
	"strings"
)

// Message is one control-channel message, inbound or outbound.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// Device is a controllable fixture. The control plumbing only talks to
// this interface, so other fixture kinds can sit behind the same transport.
type Device interface {
	// Config returns a serialisable description of the device.
	Config() any
	ConfigTopic() string
	ID() string
	// Handle applies an inbound message and returns the messages to
	// publish in response, if any.
	Handle(msg Message) []Message
	// State returns messages describing the current state.
	State() []Message
}

var _ Device = (*Light)(nil)

// LightConfig is the read-only description of a Light.
type LightConfig struct {
	Name string `json:"name"`
	ID   string `json:"id"`

	CommandTopic string `json:"command_topic"`
	StateTopic   string `json:"state_topic"`

	RGBCommandTopic string `json:"rgb_command_topic"`
	RGBStateTopic   string `json:"rgb_state_topic"`

	BrightnessCommandTopic string `json:"brightness_command_topic"`
	BrightnessStateTopic   string `json:"brightness_state_topic"`

	LambdaCommandTopic string `json:"lambda_command_topic"`
	DecayCommandTopic  string `json:"decay_command_topic"`
	RateCommandTopic   string `json:"rate_command_topic"`

	Params Params `json:"params"`
}

// Topics the light listens on but does not act upon.
const (
	featureSwitch     = "switch"
	featureRGB        = "rgb"
	featureBrightness = "brightness"
)

func (l *Light) commandTopic(feature string) string {
	return fmt.Sprintf("home/%s/%s/set", l.id, feature)
}

func (l *Light) stateTopic(feature string) string {
	return fmt.Sprintf("home/%s/%s/status", l.id, feature)
}

func (l *Light) ID() string {
	return l.id
}

func (l *Light) ConfigTopic() string {
	return fmt.Sprintf("homeassistant/light/%s/config", l.id)
}

func (l *Light) Config() any {
	return LightConfig{
		Name: l.name,
		ID:   l.id,

		CommandTopic: l.commandTopic(featureSwitch),
		StateTopic:   l.stateTopic(featureSwitch),

		RGBCommandTopic: l.commandTopic(featureRGB),
		RGBStateTopic:   l.stateTopic(featureRGB),

		BrightnessCommandTopic: l.commandTopic(featureBrightness),
		BrightnessStateTopic:   l.stateTopic(featureBrightness),

		LambdaCommandTopic: l.commandTopic(ParamLambda),
		DecayCommandTopic:  l.commandTopic(ParamDecay),
		RateCommandTopic:   l.commandTopic(ParamRate),

		Params: l.Params(),
	}
}

// Handle routes a command topic to SetParam. Any message on one of the
// light's command topics, applied or not, is answered with State so the
// broker always holds the effective values. Other topics get no reply.
func (l *Light) Handle(msg Message) []Message {
	feature, ok := l.feature(msg.Topic)
	entry := log.WithField("topic", msg.Topic)
	if !ok {
		entry.Debug("not a command topic for this light")
		return nil
	}
	value := string(msg.Payload)
	switch {
	case feature == featureSwitch || feature == featureRGB || feature == featureBrightness:
		entry.WithField("value", value).Info("unsupported feature, ignoring")
	case !IsParam(feature):
		entry.Debug("unknown parameter, ignoring")
	default:
		if err := l.SetParam(feature, value); err != nil {
			entry.WithError(err).Warn("rejected parameter update")
		} else {
			entry.WithField(feature, value).Info("parameter updated")
		}
	}
	return l.State()
}

func (l *Light) feature(topic string) (string, bool) {
	prefix := "home/" + l.id + "/"
	if !strings.HasPrefix(topic, prefix) || !strings.HasSuffix(topic, "/set") {
		return "", false
	}
	feature := strings.TrimSuffix(strings.TrimPrefix(topic, prefix), "/set")
	if feature == "" || strings.Contains(feature, "/") {
		return "", false
	}
	return feature, true
}

func (l *Light) State() []Message {
	p := l.Params()
	return []Message{
		l.stateMessage(ParamLambda, p.Lambda),
		l.stateMessage(ParamDecay, p.Decay),
		l.stateMessage(ParamRate, p.Rate),
	}
}

func (l *Light) stateMessage(param string, v uint8) Message {
	return Message{
		Topic:    l.stateTopic(param),
		Payload:  []byte(strconv.Itoa(int(v))),
		Retained: true,
	}
}
