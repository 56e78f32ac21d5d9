package geom

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// ClosedTolerance is the endpoint distance below which a polyline counts as closed.
const ClosedTolerance = 0.01

type Polyline []r3.Vec

type Box struct {
	Min r3.Vec
	Max r3.Vec
}

func EmptyBox() Box {
	return Box{
		Min: r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		Max: r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
	}
}

func (b Box) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

func (b Box) Extend(p r3.Vec) Box {
	b.Min.X = math.Min(b.Min.X, p.X)
	b.Min.Y = math.Min(b.Min.Y, p.Y)
	b.Min.Z = math.Min(b.Min.Z, p.Z)
	b.Max.X = math.Max(b.Max.X, p.X)
	b.Max.Y = math.Max(b.Max.Y, p.Y)
	b.Max.Z = math.Max(b.Max.Z, p.Z)
	return b
}

func (b Box) Union(o Box) Box {
	if o.IsEmpty() {
		return b
	}
	return b.Extend(o.Min).Extend(o.Max)
}

func (b Box) Center() r3.Vec {
	return r3.Scale(0.5, r3.Add(b.Min, b.Max))
}

func (b Box) Size() r3.Vec {
	return r3.Sub(b.Max, b.Min)
}

func (p Polyline) Bounds() Box {
	b := EmptyBox()
	for i := range p {
		b = b.Extend(p[i])
	}
	return b
}

func (p Polyline) First() r3.Vec { return p[0] }
func (p Polyline) Last() r3.Vec  { return p[len(p)-1] }

func (p Polyline) SegmentLengths() []float64 {
	if len(p) < 2 {
		return nil
	}
	lengths := make([]float64, len(p)-1)
	for i := 1; i < len(p); i++ {
		lengths[i-1] = Distance(p[i-1], p[i])
	}
	return lengths
}

func (p Polyline) Length() float64 {
	return floats.Sum(p.SegmentLengths())
}

// ClosedWithin reports whether the first and last vertex coincide within tol.
func (p Polyline) ClosedWithin(tol float64) bool {
	if len(p) < 3 {
		return false
	}
	return Distance(p.First(), p.Last()) <= tol
}

func (p Polyline) Closed() bool {
	return p.ClosedWithin(ClosedTolerance)
}

func (p Polyline) Translated(v r3.Vec) Polyline {
	moved := make(Polyline, len(p))
	for i := range p {
		moved[i] = r3.Add(p[i], v)
	}
	return moved
}

func (p Polyline) Reversed() Polyline {
	rev := make(Polyline, len(p))
	for i := range p {
		rev[len(p)-1-i] = p[i]
	}
	return rev
}

// Prefix returns the leading part of p whose arc length is length. The
// final point is interpolated on the segment where the length runs out, so
// the returned polyline always ends exactly length along p (or at the last
// vertex if p is shorter).
func (p Polyline) Prefix(length float64) Polyline {
	if len(p) == 0 {
		return nil
	}

	prefix := Polyline{p[0]}
	remaining := length

	for i := 1; i < len(p); i++ {
		d := Distance(p[i-1], p[i])
		if d >= remaining {
			if d > 0 {
				t := remaining / d
				prefix = append(prefix, r3.Add(p[i-1], r3.Scale(t, r3.Sub(p[i], p[i-1]))))
			}
			return prefix
		}
		prefix = append(prefix, p[i])
		remaining -= d
	}

	return prefix
}

func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(b, a))
}
