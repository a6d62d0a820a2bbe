package features

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNames_CanonicalOrder(t *testing.T) {
	want := []string{"age", "sex", "cp", "trestbps", "chol", "fbs", "restecg", "thalach", "exang", "oldpeak", "slope", "ca", "thal"}
	if diff := cmp.Diff(want, Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestNames_ReturnsCopy(t *testing.T) {
	n := Names()
	n[0] = "mutated"
	if Names()[0] != Age {
		t.Fatal("Names() exposed internal state")
	}
}

func TestIndex(t *testing.T) {
	for i, n := range Names() {
		if got := Index(n); got != i {
			t.Errorf("Index(%q) = %d, want %d", n, got, i)
		}
	}
	if got := Index("target"); got != -1 {
		t.Errorf("Index(target) = %d, want -1", got)
	}
}

func TestBuild_OrderIndependentOfKeyOrder(t *testing.T) {
	bodies := []string{
		`{"age":45,"sex":1,"cp":1,"trestbps":130,"chol":200,"fbs":0,"restecg":1,"thalach":150,"exang":0,"oldpeak":1.5,"slope":1,"ca":0,"thal":2}`,
		`{"thal":2,"ca":0,"slope":1,"oldpeak":1.5,"exang":0,"thalach":150,"restecg":1,"fbs":0,"chol":200,"trestbps":130,"cp":1,"sex":1,"age":45}`,
		`{"chol":200,"age":45,"oldpeak":1.5,"thal":2,"sex":1,"restecg":1,"ca":0,"cp":1,"exang":0,"trestbps":130,"slope":1,"thalach":150,"fbs":0}`,
	}
	want := []float64{45, 1, 1, 130, 200, 0, 1, 150, 0, 1.5, 1, 0, 2}

	for _, body := range bodies {
		var in Input
		if err := json.Unmarshal([]byte(body), &in); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		v, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if diff := cmp.Diff(want, v.Slice()); diff != "" {
			t.Errorf("vector mismatch for %s (-want +got):\n%s", body, diff)
		}
	}
}

func TestBuild_MissingKeysAreZero(t *testing.T) {
	var in Input
	if err := json.Unmarshal([]byte(`{"age":50,"chol":210,"unknown":7}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	v := Build(in)
	want := Vector{50, 0, 0, 0, 210}
	if v != want {
		t.Errorf("Build() = %v, want %v", v, want)
	}
}

func TestParse_RejectsInvalid(t *testing.T) {
	in := validInput()
	in.Age = Num(150)
	if _, err := Parse(in); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestInputFromVector_RoundTrip(t *testing.T) {
	v := Vector{63, 1, 3, 145, 233, 1, 0, 150, 0, 2.3, 0, 0, 1}
	if got := Build(InputFromVector(v)); got != v {
		t.Errorf("round trip = %v, want %v", got, v)
	}
}

func TestVector_Map(t *testing.T) {
	v := Build(validInput())
	m := v.Map()
	if len(m) != Count {
		t.Fatalf("map has %d keys, want %d", len(m), Count)
	}
	if m[Chol] != 200 || m[Oldpeak] != 1.5 {
		t.Errorf("unexpected values: %v", m)
	}
}

func TestInputFromForm(t *testing.T) {
	form := url.Values{}
	form.Set("age", "52")
	form.Set("sex", "0")
	form.Set("oldpeak", "1.2")
	form.Set("chol", "")
	form.Set("thal", "abc")

	in := InputFromForm(form)
	if in.Age.Float() != 52 || in.Oldpeak.Float() != 1.2 {
		t.Errorf("unexpected parsed values: age=%v oldpeak=%v", in.Age.Float(), in.Oldpeak.Float())
	}
	if !in.Chol.Valid() || in.Chol.Float() != 0 {
		t.Error("empty form field should default to a valid zero")
	}
	if in.Thal.Valid() {
		t.Error("non-numeric form field should be invalid")
	}
	if in.Thal.Raw() != "abc" {
		t.Errorf("Raw() = %q, want abc", in.Thal.Raw())
	}
}

func TestValue_MarshalJSON(t *testing.T) {
	in := Input{Age: Num(61), Thal: ParseValue("bad")}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back["age"] != 61.0 {
		t.Errorf("age = %v, want 61", back["age"])
	}
	if back["thal"] != "bad" {
		t.Errorf("thal = %v, want raw text", back["thal"])
	}
}
