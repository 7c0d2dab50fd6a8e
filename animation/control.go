package animation

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Parameter names accepted by SetParam.
const (
	ParamLambda = "lambda"
	ParamDecay  = "decay"
	ParamRate   = "rate"
)

var (
	ErrInvalidValue = errors.New("parameter value is not an unsigned 8-bit integer")
	ErrZeroRate     = errors.New("rate must be greater than zero")
)

// Params is a snapshot of the tunable animation parameters.
type Params struct {
	Lambda uint8 `json:"lambda"`
	Decay  uint8 `json:"decay"`
	Rate   uint8 `json:"rate"`
}

func (p Params) State() string {
	jsonBytes, _ := json.Marshal(p)
	return string(jsonBytes)
}

func (p *Params) Load(jsonString string) error {
	var next Params
	if err := json.Unmarshal([]byte(jsonString), &next); err != nil {
		return errors.Wrap(err, "decode params")
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*p = next
	return nil
}

func (p Params) Validate() error {
	if p.Rate == 0 {
		return ErrZeroRate
	}
	return nil
}

// Get returns the named parameter.
func (p Params) Get(name string) (uint8, bool) {
	switch name {
	case ParamLambda:
		return p.Lambda, true
	case ParamDecay:
		return p.Decay, true
	case ParamRate:
		return p.Rate, true
	}
	return 0, false
}

// IsParam reports whether name is one of the tunable parameters.
func IsParam(name string) bool {
	_, ok := Params{}.Get(name)
	return ok
}

// ParseValue parses the textual form of a parameter value.
func ParseValue(value string) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(value), 10, 8)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidValue, "%q", value)
	}
	return uint8(v), nil
}
