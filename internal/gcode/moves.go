package gcode

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/digitaldesignunit/clayprinting-slicer/internal/geom"
)

type SegmentKind int

const (
	TravelSegment SegmentKind = iota
	RetractSegment
	ExtrudeSegment
)

func (k SegmentKind) String() string {
	switch k {
	case TravelSegment:
		return "travel"
	case RetractSegment:
		return "retract"
	case ExtrudeSegment:
		return "extrude"
	}
	return "unknown"
}

type Segment struct {
	From r3.Vec
	To   r3.Vec
	Kind SegmentKind
}

type Moves struct {
	Segments []Segment
	// consecutive extrusion segments joined together
	PrintPaths []geom.Polyline
}

func (c Command) Pos() r3.Vec {
	return r3.Vec{X: c.X, Y: c.Y, Z: c.Z}
}

// ClassifyMoves labels the move between each pair of consecutive commands
// from the change in extrusion value.
func ClassifyMoves(cmds []Command) Moves {
	m := Moves{}

	pl := geom.Polyline{}
	flush := func() {
		if len(pl) > 1 {
			m.PrintPaths = append(m.PrintPaths, pl)
		}
		pl = geom.Polyline{}
	}

	for i := 0; i+1 < len(cmds); i++ {
		a := cmds[i]
		b := cmds[i+1]

		travel := b.E == 0 || a.E == b.E
		retract := b.E < a.E
		approach := a.E == 0 && b.E > 0

		seg := Segment{From: a.Pos(), To: b.Pos()}
		switch {
		case travel || approach:
			seg.Kind = TravelSegment
			flush()
		case retract:
			seg.Kind = RetractSegment
			flush()
		default:
			seg.Kind = ExtrudeSegment
			if len(pl) == 0 {
				pl = append(pl, seg.From)
			}
			pl = append(pl, seg.To)
		}
		m.Segments = append(m.Segments, seg)
	}
	flush()

	return m
}

func (m Moves) Length(kind SegmentKind) float64 {
	total := 0.0
	for _, s := range m.Segments {
		if s.Kind == kind {
			total += geom.Distance(s.From, s.To)
		}
	}
	return total
}
