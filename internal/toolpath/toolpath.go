package toolpath

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/digitaldesignunit/clayprinting-slicer/internal/geom"
)

type MoveKind int

const (
	Marker MoveKind = iota
	Reset
	Travel
	Rapid
	Extrude
	Retract
	ZHop
	RetractZHop
	Pause
)

func (k MoveKind) String() string {
	switch k {
	case Marker:
		return "marker"
	case Reset:
		return "reset"
	case Travel:
		return "travel"
	case Rapid:
		return "rapid"
	case Extrude:
		return "extrude"
	case Retract:
		return "retract"
	case ZHop:
		return "z-hop"
	case RetractZHop:
		return "retract+z-hop"
	case Pause:
		return "pause"
	}
	return "unknown"
}

type Move struct {
	Kind    MoveKind
	Pos     r3.Vec
	E       float64
	Feed    float64
	Dwell   int // ms, Pause only
	Comment string
}

func (m Move) IsMotion() bool {
	switch m.Kind {
	case Travel, Rapid, Extrude, Retract, ZHop, RetractZHop:
		return true
	}
	return false
}

func (m Move) Gcode() string {
	switch m.Kind {
	case Marker:
		return "; " + m.Comment
	case Reset:
		return "G92 E0 ; Reset Extrusion Distance"
	case Pause:
		return fmt.Sprintf("G04 P%d ; Dwell / Pause", m.Dwell)
	}

	g := 1
	if m.Kind == Rapid {
		g = 0
	}
	line := fmt.Sprintf("G%d X%.3f Y%.3f Z%.3f E%.3f F%s", g, m.Pos.X, m.Pos.Y, m.Pos.Z, m.E, num(m.Feed))
	if m.Comment != "" {
		line += " ; " + m.Comment
	}
	return line
}

// num formats v in plain decimal notation, never with an exponent.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type Program struct {
	Moves []Move
}

func NewProgram() Program {
	return Program{
		Moves: []Move{},
	}
}

func (prog *Program) Append(m Move) {
	prog.Moves = append(prog.Moves, m)
}

func (prog *Program) Count(kind MoveKind) int {
	n := 0
	for i := range prog.Moves {
		if prog.Moves[i].Kind == kind {
			n++
		}
	}
	return n
}

func (prog *Program) ToGcode() string {
	gcode := strings.Builder{}

	for i := range prog.Moves {
		gcode.WriteString(prog.Moves[i].Gcode())
		gcode.WriteByte('\n')
	}

	return gcode.String()
}

// CycleTime estimates the printing time in seconds, starting at the first
// motion move. Acceleration is not taken into account.
func (prog *Program) CycleTime() float64 {
	cycleTime := 0.0

	var last r3.Vec
	started := false

	for i := range prog.Moves {
		m := prog.Moves[i]

		if m.Kind == Pause {
			cycleTime += float64(m.Dwell) / 1000
			continue
		}
		if !m.IsMotion() {
			continue
		}

		if started && m.Feed > 0 {
			cycleTime += 60 * (geom.Distance(last, m.Pos) / m.Feed)
		}
		last = m.Pos
		started = true
	}

	return cycleTime
}

// FormatDuration renders d like "2 hours, 5 minutes, 3 seconds.", leaving
// out zero parts.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)

	parts := []string{}
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%d hours", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%d minutes", m))
	}
	if s > 0 {
		parts = append(parts, fmt.Sprintf("%d seconds", s))
	}

	return strings.Join(parts, ", ") + "."
}
