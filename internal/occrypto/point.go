package occrypto

import (
	"fmt"

	"github.com/gtank/ristretto255"
)

const PointBytes = 32

// Point is a ristretto255 group element (canonical 32-byte encoding).
type Point struct {
	v ristretto255.Element
}

func PointFromBytesCanonical(b []byte) (Point, error) {
	if len(b) != PointBytes {
		return Point{}, fmt.Errorf("point: expected %d bytes", PointBytes)
	}
	var p Point
	if _, err := p.v.SetCanonicalBytes(b); err != nil {
		return Point{}, fmt.Errorf("point: non-canonical: %w", err)
	}
	return p, nil
}

func (p Point) Bytes() []byte {
	return p.v.Bytes()
}

// MulBase returns s*G.
func MulBase(s Scalar) Point {
	var p Point
	p.v.ScalarBaseMult(&s.v)
	return p
}

// MulPoint returns s*q.
func MulPoint(q Point, s Scalar) Point {
	var p Point
	p.v.ScalarMult(&s.v, &q.v)
	return p
}

func PointAdd(a, b Point) Point {
	var p Point
	p.v.Add(&a.v, &b.v)
	return p
}

func PointSub(a, b Point) Point {
	var p Point
	p.v.Subtract(&a.v, &b.v)
	return p
}

func PointEq(a, b Point) bool {
	return a.v.Equal(&b.v) == 1
}
