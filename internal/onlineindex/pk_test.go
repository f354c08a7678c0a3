package onlineindex

import "testing"

func TestPKOrdering(t *testing.T) {
	a := Key([]byte("a"))
	b := Key([]byte("b"))

	cases := []struct {
		name     string
		p, q     PK
		wantLess bool
	}{
		{"neginf < key", NegInf(), a, true},
		{"key < posinf", a, PosInf(), true},
		{"neginf < posinf", NegInf(), PosInf(), true},
		{"a < b", a, b, true},
		{"b !< a", b, a, false},
		{"equal", a, a, false},
	}

	for _, c := range cases {
		if got := c.p.Less(c.q); got != c.wantLess {
			t.Errorf("%s: Less() = %v, want %v", c.name, got, c.wantLess)
		}
	}
}

func TestPKEncodeDecodeRoundTrip(t *testing.T) {
	for _, p := range []PK{NegInf(), PosInf(), Key([]byte("hello")), Key([]byte{})} {
		got := decodeBound(encodeBound(p))
		if got.Compare(p) != 0 {
			t.Errorf("round trip of %s produced %s", p, got)
		}
	}
}

func TestEncodeBoundOrdering(t *testing.T) {
	// The on-disk tagged encoding must preserve the PK order under plain
	// byte comparison, since that's exactly what a bbolt bucket does.
	lo := encodeBound(NegInf())
	mid := encodeBound(Key([]byte{0x00})) // a real key starting with the sentinel byte
	hi := encodeBound(PosInf())

	if !(string(lo) < string(mid) && string(mid) < string(hi)) {
		t.Errorf("encoded bounds not ordered: %x < %x < %x", lo, mid, hi)
	}
}

func TestDecodeBoundEmpty(t *testing.T) {
	if got := decodeBound(nil); !got.IsNegInf() {
		t.Errorf("decodeBound(nil) = %s, want -inf", got)
	}
}
