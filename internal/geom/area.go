package geom

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrOpenBoundary       = errors.New("boundary is not closed")
	ErrDegenerateBoundary = errors.New("boundary is degenerate")
)

// AreaOracle computes the enclosed area of a closed planar boundary.
type AreaOracle interface {
	Area(boundary Polyline) (float64, error)
}

// Shoelace measures the area of a boundary projected onto the XY plane.
type Shoelace struct {
	Tolerance float64
}

func (s Shoelace) Area(boundary Polyline) (float64, error) {
	tol := s.Tolerance
	if tol <= 0 {
		tol = ClosedTolerance
	}

	if len(boundary) < 3 {
		return 0, fmt.Errorf("%w: %d vertices", ErrDegenerateBoundary, len(boundary))
	}
	if !boundary.ClosedWithin(tol) {
		return 0, ErrOpenBoundary
	}

	area := math.Abs(SignedArea(boundary))
	if math.IsNaN(area) || math.IsInf(area, 0) {
		return 0, fmt.Errorf("%w: area is %v", ErrDegenerateBoundary, area)
	}

	return area, nil
}

// SignedArea is positive for counter-clockwise boundaries in the XY plane.
func SignedArea(p Polyline) float64 {
	sum := 0.0
	for i := range p {
		a := p[i]
		b := p[(i+1)%len(p)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}

func EnsureCCW(p Polyline) Polyline {
	if SignedArea(p) < 0 {
		return p.Reversed()
	}
	return p
}
