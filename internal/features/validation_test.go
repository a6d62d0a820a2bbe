package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validInput is the reference patient used across the pipeline tests.
func validInput() Input {
	return Input{
		Age:      Num(45),
		Sex:      Num(1),
		CP:       Num(1),
		Trestbps: Num(130),
		Chol:     Num(200),
		FBS:      Num(0),
		RestECG:  Num(1),
		Thalach:  Num(150),
		Exang:    Num(0),
		Oldpeak:  Num(1.5),
		Slope:    Num(1),
		CA:       Num(0),
		Thal:     Num(2),
	}
}

func TestValidate_ValidInput(t *testing.T) {
	require.NoError(t, Validate(validInput()))
}

func TestValidate_IntervalBoundaries(t *testing.T) {
	for _, r := range Rules() {
		if len(r.Allowed) > 0 {
			continue
		}
		r := r
		t.Run(r.Field, func(t *testing.T) {
			for _, x := range []float64{r.Min, r.Max} {
				in := validInput()
				in.Set(r.Field, Num(x))
				assert.NoError(t, Validate(in), "boundary %v should be accepted", x)
			}
			for _, x := range []float64{r.Min - 1, r.Max + 1} {
				in := validInput()
				in.Set(r.Field, Num(x))
				err := Validate(in)
				require.Error(t, err, "value %v should be rejected", x)
				assert.ErrorIs(t, err, ErrOutOfRange)

				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, r.Field, verr.Field)
				assert.Equal(t, r.Message, verr.Message)
			}
		})
	}
}

func TestValidate_EnumerationRejectsOutsiders(t *testing.T) {
	for _, r := range Rules() {
		if len(r.Allowed) == 0 {
			continue
		}
		r := r
		t.Run(r.Field, func(t *testing.T) {
			for _, x := range r.Allowed {
				in := validInput()
				in.Set(r.Field, Num(x))
				assert.NoError(t, Validate(in))
			}
			outsiders := []float64{-1, 0.5, r.Allowed[len(r.Allowed)-1] + 1, 99}
			for _, x := range outsiders {
				in := validInput()
				in.Set(r.Field, Num(x))
				err := Validate(in)
				require.Error(t, err, "value %v should be rejected", x)
				assert.ErrorIs(t, err, ErrInvalidEnum)

				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, r.Field, verr.Field)
			}
		})
	}
}

func TestValidate_Messages(t *testing.T) {
	tests := []struct {
		field string
		value float64
		want  string
	}{
		{Age, 150, "Age must be between 20 and 100"},
		{Sex, 2, "Sex must be 0 (Female) or 1 (Male)"},
		{CP, 4, "Chest pain type must be 0-3"},
		{Trestbps, 79, "Resting blood pressure must be between 80 and 200"},
		{Chol, 601, "Cholesterol must be between 100 and 600"},
		{Thalach, 221, "Max heart rate must be between 60 and 220"},
		{CA, 5, "Major vessels must be 0-4"},
		{Thal, 7, "Thalassemia type must be 0-3"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s=%v", tt.field, tt.value), func(t *testing.T) {
			in := validInput()
			in.Set(tt.field, Num(tt.value))
			err := Validate(in)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestValidate_UncheckedFieldsAcceptAnything(t *testing.T) {
	for _, f := range []string{FBS, RestECG, Exang, Oldpeak, Slope} {
		in := validInput()
		in.Set(f, Num(-42.5))
		assert.NoError(t, Validate(in), f)
	}
}

func TestValidate_FirstFailureWins(t *testing.T) {
	in := validInput()
	in.Chol = Num(50)
	in.Age = Num(10)
	in.Thal = Num(9)

	err := Validate(in)
	require.Error(t, err)
	assert.Equal(t, "Age must be between 20 and 100", err.Error())

	in.Age = Num(50)
	err = Validate(in)
	require.Error(t, err)
	assert.Equal(t, "Cholesterol must be between 100 and 600", err.Error())
}

func TestValidate_MissingFieldsDefaultToZero(t *testing.T) {
	// Everything missing: age 0 fails first.
	err := Validate(Input{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Contains(t, err.Error(), "Age")
}

func TestValidate_InvalidFormat(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"word", `{"age":"forty"}`, Age},
		{"empty string", `{"chol":""}`, Chol},
		{"boolean", `{"sex":true}`, Sex},
		{"object", `{"oldpeak":{"v":1}}`, Oldpeak},
		{"array", `{"slope":[1]}`, Slope},
		{"nan string", `{"fbs":"NaN"}`, FBS},
		{"inf string", `{"exang":"+Inf"}`, Exang},
		{"hex string", `{"age":"0x2Dp0"}`, Age},
		{"signed hex string", `{"chol":"-0X1p4"}`, Chol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			require.NoError(t, json.Unmarshal([]byte(tt.body), &in))

			err := Validate(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidFormat)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.Contains(t, verr.Message, "Invalid input format")
		})
	}
}

func TestValidate_FormatCheckedBeforeRanges(t *testing.T) {
	in := validInput()
	in.Age = Num(150)
	in.Thal = ParseValue("x")

	err := Validate(in)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestValidate_NumericStrings(t *testing.T) {
	in := validInput()
	require.NoError(t, json.Unmarshal([]byte(`{"age":"63","oldpeak":" 2.3 "}`), &in))
	require.NoError(t, Validate(in))
	assert.Equal(t, 63.0, in.Age.Float())
	assert.Equal(t, 2.3, in.Oldpeak.Float())
}

func TestInput_UnmarshalJSONExactKeys(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantAge float64
		wantSex float64
	}{
		{"lowercase", `{"age":45,"sex":1}`, 45, 1},
		{"capitalized keys ignored", `{"Age":45,"SEX":1}`, 0, 0},
		{"case twin after exact key", `{"age":45,"AGE":150}`, 45, 0},
		{"case twin before exact key", `{"AGE":150,"age":45}`, 45, 0},
		{"unknown keys ignored", `{"age":50,"weight":80}`, 50, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in Input
			require.NoError(t, json.Unmarshal([]byte(tt.body), &in))
			assert.Equal(t, tt.wantAge, in.Age.Float())
			assert.Equal(t, tt.wantSex, in.Sex.Float())
		})
	}
}

func TestInput_UnmarshalJSONCaseVariantsFailValidation(t *testing.T) {
	var in Input
	body := `{"Age":45,"SEX":1,"cp":1,"trestbps":130,"chol":200,"fbs":0,"restecg":1,"thalach":150,"exang":0,"oldpeak":1.5,"slope":1,"ca":0,"thal":2}`
	require.NoError(t, json.Unmarshal([]byte(body), &in))

	err := Validate(in)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, "Age must be between 20 and 100", err.Error())
}

func TestInput_UnmarshalJSONRejectsNonObject(t *testing.T) {
	var in Input
	assert.Error(t, json.Unmarshal([]byte(`[1,2,3]`), &in))
	assert.Error(t, json.Unmarshal([]byte(`"age"`), &in))
}

func TestParseValue_Hex(t *testing.T) {
	for _, s := range []string{"0x2D", "0X2Dp0", "+0x1p4", " -0x10 "} {
		assert.False(t, ParseValue(s).Valid(), s)
	}
	for _, s := range []string{"0", "0.5", "-0", "10"} {
		assert.True(t, ParseValue(s).Valid(), s)
	}
}
