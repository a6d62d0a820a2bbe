package features

import (
	"bytes"
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Value is a single optional numeric request field. The zero Value is a valid 0.
// Unparseable input does not fail decoding; it is kept and rejected by Validate so the
// caller gets a message naming the field.
type Value struct {
	num     float64
	raw     string
	invalid bool
}

// Num returns a valid Value holding f.
func Num(f float64) Value {
	return Value{num: f}
}

// ParseValue interprets s the way a request field is interpreted. Empty strings, hex
// literals and non-finite numbers are invalid.
func ParseValue(s string) Value {
	t := strings.TrimSpace(s)
	if isHex(t) {
		return Value{raw: s, invalid: true}
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{raw: s, invalid: true}
	}
	return Value{num: f}
}

func isHex(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// Float returns the numeric value, 0 when invalid.
func (v Value) Float() float64 {
	if v.invalid {
		return 0
	}
	return v.num
}

// Valid reports whether the value parsed as a finite number.
func (v Value) Valid() bool { return !v.invalid }

// Raw returns the original text of an invalid value.
func (v Value) Raw() string { return v.raw }

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*v = Value{}
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*v = Value{raw: string(b), invalid: true}
			return nil
		}
		*v = ParseValue(s)
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			*v = Value{raw: string(b), invalid: true}
			return nil
		}
		*v = Num(f)
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.invalid {
		return json.Marshal(v.raw)
	}
	return json.Marshal(v.num)
}

// Input is the prediction request schema. Every field is optional and defaults to 0.
type Input struct {
	Age      Value `json:"age"`
	Sex      Value `json:"sex"`
	CP       Value `json:"cp"`
	Trestbps Value `json:"trestbps"`
	Chol     Value `json:"chol"`
	FBS      Value `json:"fbs"`
	RestECG  Value `json:"restecg"`
	Thalach  Value `json:"thalach"`
	Exang    Value `json:"exang"`
	Oldpeak  Value `json:"oldpeak"`
	Slope    Value `json:"slope"`
	CA       Value `json:"ca"`
	Thal     Value `json:"thal"`
}

// UnmarshalJSON reads only the exact lowercase feature keys. Other keys, including case
// variants of a feature name, are ignored. Fields absent from b keep their value.
func (in *Input) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for _, n := range names {
		msg, ok := raw[n]
		if !ok {
			continue
		}
		var v Value
		if err := json.Unmarshal(msg, &v); err != nil {
			return err
		}
		in.Set(n, v)
	}
	return nil
}

func (in *Input) field(name string) *Value {
	switch name {
	case Age:
		return &in.Age
	case Sex:
		return &in.Sex
	case CP:
		return &in.CP
	case Trestbps:
		return &in.Trestbps
	case Chol:
		return &in.Chol
	case FBS:
		return &in.FBS
	case RestECG:
		return &in.RestECG
	case Thalach:
		return &in.Thalach
	case Exang:
		return &in.Exang
	case Oldpeak:
		return &in.Oldpeak
	case Slope:
		return &in.Slope
	case CA:
		return &in.CA
	case Thal:
		return &in.Thal
	}
	return nil
}

// Get returns the named field. Unknown names yield the zero Value.
func (in Input) Get(name string) Value {
	if f := in.field(name); f != nil {
		return *f
	}
	return Value{}
}

// Set assigns the named field and reports whether name is a feature.
func (in *Input) Set(name string, v Value) bool {
	f := in.field(name)
	if f == nil {
		return false
	}
	*f = v
	return true
}

// InputFromVector builds an Input holding the vector's values.
func InputFromVector(v Vector) Input {
	var in Input
	for i, n := range names {
		in.Set(n, Num(v[i]))
	}
	return in
}

// InputFromForm reads feature fields from form values. Absent or empty fields stay 0,
// matching the JSON schema where a missing key is 0.
func InputFromForm(form url.Values) Input {
	var in Input
	for _, n := range names {
		s := form.Get(n)
		if strings.TrimSpace(s) == "" {
			continue
		}
		in.Set(n, ParseValue(s))
	}
	return in
}
