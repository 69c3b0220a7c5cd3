package render

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// JSON spellings of the non-finite values. encoding/json refuses NaN and
// ±Inf, but they are legal on the wire and must survive rendering.
const (
	jsonNaN    = "NaN"
	jsonPosInf = "+Inf"
	jsonNegInf = "-Inf"
)

// Float32 is a float32 that marshals NaN and ±Inf as JSON strings.
// YAML encodes it natively as .nan / .inf.
type Float32 float32

// Float64 is the float64 counterpart of Float32.
type Float64 float64

func (f Float32) MarshalJSON() ([]byte, error) {
	return marshalFloat(float64(f), 32)
}

func (f *Float32) UnmarshalJSON(b []byte) error {
	v, err := unmarshalFloat(b, 32)
	if err != nil {
		return err
	}
	*f = Float32(v)
	return nil
}

func (f Float64) MarshalJSON() ([]byte, error) {
	return marshalFloat(float64(f), 64)
}

func (f *Float64) UnmarshalJSON(b []byte) error {
	v, err := unmarshalFloat(b, 64)
	if err != nil {
		return err
	}
	*f = Float64(v)
	return nil
}

func marshalFloat(v float64, bits int) ([]byte, error) {
	switch {
	case math.IsNaN(v):
		return json.Marshal(jsonNaN)
	case math.IsInf(v, 1):
		return json.Marshal(jsonPosInf)
	case math.IsInf(v, -1):
		return json.Marshal(jsonNegInf)
	}
	return strconv.AppendFloat(nil, v, 'g', -1, bits), nil
}

func unmarshalFloat(b []byte, bits int) (float64, error) {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, err
		}
		switch s {
		case jsonNaN:
			return math.NaN(), nil
		case jsonPosInf:
			return math.Inf(1), nil
		case jsonNegInf:
			return math.Inf(-1), nil
		}
		return 0, fmt.Errorf("invalid float %q", s)
	}
	return strconv.ParseFloat(string(b), bits)
}
