package domain

import (
	"encoding/json"
	"testing"
)

func TestParseDataBagKeepsScalarKinds(t *testing.T) {
	bag, err := ParseDataBag([]byte(`{"budget":"15000","seats":12.5,"vip":false,"ref":null,"tags":["a", "b"],"meta":{"k":1}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := []struct {
		field string
		kind  ValueKind
		text  string
	}{
		{"budget", KindString, "15000"},
		{"seats", KindNumber, "12.5"},
		{"vip", KindBool, "false"},
		{"ref", KindNull, ""},
		{"tags", KindString, `["a","b"]`},
		{"meta", KindString, `{"k":1}`},
	}
	for _, c := range checks {
		v, ok := bag.Lookup(c.field)
		if !ok {
			t.Fatalf("field %q missing", c.field)
		}
		if v.Kind() != c.kind || v.Text() != c.text {
			t.Fatalf("field %q = (%s, %q), want (%s, %q)", c.field, v.Kind(), v.Text(), c.kind, c.text)
		}
	}
}

func TestDataBagJSONRoundTripPreservesKinds(t *testing.T) {
	in := DataBag{"n": Number(1e6), "s": String("x"), "b": Bool(true), "z": Null()}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := ParseDataBag(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for k, v := range in {
		if out[k] != v {
			t.Fatalf("field %q: got %+v, want %+v", k, out[k], v)
		}
	}
	if out["n"].Text() != "1000000" {
		t.Fatalf("expected plain decimal rendering, got %q", out["n"].Text())
	}
}

func TestMergeDoesNotMutate(t *testing.T) {
	base := DataBag{"a": String("1"), "b": String("2")}
	merged := base.Merge(DataBag{"b": Null(), "c": Number(3)})

	if base["b"] != String("2") || len(base) != 2 {
		t.Fatalf("base mutated: %+v", base)
	}
	if !merged["b"].IsNull() || merged["c"] != Number(3) || merged["a"] != String("1") {
		t.Fatalf("unexpected merge result: %+v", merged)
	}
}

func TestParseDataBagEmptyAndInvalid(t *testing.T) {
	for _, raw := range []string{"", "null", "{}"} {
		bag, err := ParseDataBag([]byte(raw))
		if err != nil || bag == nil || len(bag) != 0 {
			t.Fatalf("ParseDataBag(%q) = %v, %v", raw, bag, err)
		}
	}
	if _, err := ParseDataBag([]byte(`[1,2]`)); err == nil {
		t.Fatal("expected an array payload to be rejected")
	}
}
