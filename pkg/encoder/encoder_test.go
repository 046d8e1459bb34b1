package encoder

import (
	"math"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestNewEncoder(t *testing.T) {
	c := qt.New(t)

	_, err := NewEncoder(0)
	c.Check(err, qt.IsNotNil)

	_, err = NewEncoder(-8)
	c.Check(err, qt.IsNotNil)

	enc, err := NewEncoder(128)
	c.Assert(err, qt.IsNil)
	c.Check(enc.Dimension(), qt.Equals, 128)
}

func TestEncode_Deterministic(t *testing.T) {
	c := qt.New(t)
	enc, err := NewEncoder(64)
	c.Assert(err, qt.IsNil)

	a, err := enc.Encode("Vintage 35mm film camera|Works perfectly|electronics")
	c.Assert(err, qt.IsNil)
	b, err := enc.Encode("Vintage 35mm film camera|Works perfectly|electronics")
	c.Assert(err, qt.IsNil)

	c.Check(a, qt.DeepEquals, b)
}

func TestEncode_BlankTextYieldsNil(t *testing.T) {
	c := qt.New(t)
	enc, err := NewEncoder(64)
	c.Assert(err, qt.IsNil)

	for _, text := range []string{"", "   ", "\n\t"} {
		vector, err := enc.Encode(text)
		c.Assert(err, qt.IsNil)
		c.Check(vector, qt.IsNil)
	}
}

func TestEncode_Normalized(t *testing.T) {
	c := qt.New(t)
	enc, err := NewEncoder(128)
	c.Assert(err, qt.IsNil)

	vector, err := enc.Encode("a compact mirrorless camera with two lenses")
	c.Assert(err, qt.IsNil)
	c.Assert(vector, qt.HasLen, 128)

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	c.Check(math.Abs(math.Sqrt(norm)-1) < 1e-5, qt.IsTrue)
}

func TestEncode_DifferentTextsDiffer(t *testing.T) {
	c := qt.New(t)
	enc, err := NewEncoder(128)
	c.Assert(err, qt.IsNil)

	a, err := enc.Encode("red leather sofa")
	c.Assert(err, qt.IsNil)
	b, err := enc.Encode("mountain bike with disc brakes")
	c.Assert(err, qt.IsNil)

	c.Check(a, qt.Not(qt.DeepEquals), b)
}

func TestListingText(t *testing.T) {
	c := qt.New(t)

	c.Check(ListingText("Camera", "35mm film", "electronics"), qt.Equals, "Camera|35mm film|electronics")
	c.Check(ListingText("Camera", "", ""), qt.Equals, "Camera||")
	// A listing with no text must not be indexed at all.
	c.Check(ListingText("", "", ""), qt.Equals, "")
	c.Check(ListingText(" ", "\t", ""), qt.Equals, "")
}
