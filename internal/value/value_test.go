package value

import "testing"

func TestTruthiness(t *testing.T) {
	cases := []struct {
		v       Value
		falsey  bool
		comment string
	}{
		{Nil, true, "nil"},
		{Bool(false), true, "false"},
		{Bool(true), false, "true"},
		{Number(0), false, "zero is truthy"},
		{Object(&ObjString{Chars: ""}), false, "empty string is truthy"},
	}
	for _, c := range cases {
		if got := c.v.IsFalsey(); got != c.falsey {
			t.Errorf("%s: IsFalsey() = %v, want %v", c.comment, got, c.falsey)
		}
	}
}

func TestEqualityByVariant(t *testing.T) {
	if !Equal(Nil, Nil) {
		t.Error("nil should equal nil")
	}
	if Equal(Nil, Bool(false)) {
		t.Error("nil should not equal false")
	}
	if !Equal(Number(1), Number(1)) {
		t.Error("equal numbers should be equal")
	}
	if Equal(Number(1), Number(2)) {
		t.Error("unequal numbers should not be equal")
	}
}

func TestStringIdentityEquality(t *testing.T) {
	a := &ObjString{Chars: "hi"}
	b := &ObjString{Chars: "hi"}
	if Equal(Object(a), Object(b)) {
		t.Error("distinct string objects with equal bytes must not be Equal without interning")
	}
	if !Equal(Object(a), Object(a)) {
		t.Error("a string object should equal itself")
	}
}

func TestNumberFormatting(t *testing.T) {
	cases := map[float64]string{
		7:    "7",
		1.5:  "1.5",
		0:    "0",
		-3:   "-3",
		0.25: "0.25",
	}
	for n, want := range cases {
		if got := Number(n).String(); got != want {
			t.Errorf("Number(%v).String() = %q, want %q", n, got, want)
		}
	}
}

func TestEqualReflexiveAndSymmetric(t *testing.T) {
	values := []Value{Nil, Bool(true), Bool(false), Number(1), Number(-2.5), Object(&ObjString{Chars: "x"})}
	for _, a := range values {
		for _, b := range values {
			if Equal(a, b) != Equal(b, a) {
				t.Errorf("Equal not symmetric for %v, %v", a, b)
			}
		}
		if !Equal(a, a) {
			t.Errorf("Equal not reflexive for %v", a)
		}
	}
}
