package toolpath

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/digitaldesignunit/clayprinting-slicer/internal/gcode"
	"github.com/digitaldesignunit/clayprinting-slicer/internal/geom"
)

func testParams() Params {
	return Params{
		PrintSpeed:         1000,
		TravelSpeed:        3000,
		RetractionSpeed:    1800,
		ExtrusionRate:      1,
		InitExtrusion:      0,
		RetractionConstant: 2,
		LayerHeight:        1.5,
		LineWidth:          3,
		ZHop:               2,
	}
}

func square(side, z float64) geom.Polyline {
	return geom.Polyline{
		{X: 0, Y: 0, Z: z},
		{X: side, Y: 0, Z: z},
		{X: side, Y: side, Z: z},
		{X: 0, Y: side, Z: z},
		{X: 0, Y: 0, Z: z},
	}
}

func kinds(moves []Move) []MoveKind {
	k := []MoveKind{}
	for _, m := range moves {
		k = append(k, m.Kind)
	}
	return k
}

// pathEnd returns the moves after the last extrusion of the first path.
func pathEnd(t *testing.T, prog *Program) []Move {
	t.Helper()
	lastExtrude := -1
	for i, m := range prog.Moves {
		if m.Kind == Extrude {
			lastExtrude = i
		}
		if m.Kind == Reset && lastExtrude >= 0 {
			return prog.Moves[lastExtrude+1 : i]
		}
	}
	t.Fatalf("no complete path in program")
	return nil
}

func TestSquarePerimeterExtrusion(t *testing.T) {
	opt := testParams()
	job := NewJob(&opt, [][]geom.Polyline{{square(10, 0)}}, nil, nil)

	prog := job.Toolpath()
	require.Equal(t, 5, prog.Count(Extrude))

	lastE := 0.0
	for _, m := range prog.Moves {
		if m.Kind == Extrude {
			lastE = m.E
		}
	}
	assert.InDelta(t, 40.0, lastE, 1e-9)
}

func TestToolpathGcode(t *testing.T) {
	opt := testParams()
	job := NewJob(&opt, [][]geom.Polyline{{square(10, 0)}}, nil, nil)

	gcode := job.Toolpath().ToGcode()
	wantGcode := `; ///// LAYER 1 /////
G1 X-5.000 Y-5.000 Z2.000 E0.000 F3000
G1 X-5.000 Y-5.000 Z0.000 E0.000 F500
G1 X5.000 Y-5.000 Z0.000 E10.000 F1000
G1 X5.000 Y5.000 Z0.000 E20.000 F1000
G1 X-5.000 Y5.000 Z0.000 E30.000 F1000
G1 X-5.000 Y-5.000 Z0.000 E40.000 F1000
G1 X-5.000 Y-5.000 Z2.000 E38.000 F1800 ; Z-Hop with retraction
G92 E0 ; Reset Extrusion Distance
`
	if gcode != wantGcode {
		t.Errorf("incorrect gcode; got:\n%v\n---\nexpected:\n%v", gcode, wantGcode)
	}
}

func TestPrimerAndHalfSpeedStart(t *testing.T) {
	opt := testParams()
	opt.InitExtrusion = 0.75
	job := NewJob(&opt, [][]geom.Polyline{{square(10, 0)}}, nil, nil)

	moves := job.Toolpath().Moves
	require.Equal(t, Travel, moves[1].Kind)
	assert.Equal(t, 0.0, moves[1].E)
	assert.Equal(t, opt.TravelSpeed, moves[1].Feed)
	assert.Equal(t, 2.0, moves[1].Pos.Z)

	require.Equal(t, Extrude, moves[2].Kind)
	assert.Equal(t, 0.75, moves[2].E)
	assert.Equal(t, opt.PrintSpeed/2, moves[2].Feed)

	assert.Equal(t, opt.PrintSpeed, moves[3].Feed)
	assert.InDelta(t, 10.75, moves[3].E, 1e-9)
}

func TestRetractWithoutExtension(t *testing.T) {
	opt := testParams()
	open := geom.Polyline{{X: 0}, {X: 10}, {X: 10, Y: 10}}
	job := NewJob(&opt, [][]geom.Polyline{{open, square(10, 0)}, {square(10, 1.5)}}, nil, nil)

	prog := job.Toolpath()
	assert.Equal(t, 3, prog.Count(RetractZHop))
	assert.Equal(t, 0, prog.Count(Retract))
	assert.Equal(t, 0, prog.Count(ZHop))

	end := pathEnd(t, prog)
	require.Equal(t, []MoveKind{RetractZHop}, kinds(end))
	// the open path is centred on (5, 5)
	assert.Equal(t, r3.Vec{X: 5, Y: 5, Z: 2}, end[0].Pos)
	assert.InDelta(t, 18.0, end[0].E, 1e-9)
}

func TestRetractExtensionOpenPath(t *testing.T) {
	opt := testParams()
	opt.RetractExtension = 3
	opt.CurveExtensionRetraction = true
	open := geom.Polyline{{X: 0}, {X: 10}, {X: 10, Y: 10}}
	job := NewJob(&opt, [][]geom.Polyline{{open}}, nil, nil)

	end := pathEnd(t, job.Toolpath())
	require.Equal(t, []MoveKind{Retract, ZHop}, kinds(end))

	// three further along the last segment, which points in +Y
	assert.Equal(t, r3.Vec{X: 5, Y: 8, Z: 0}, end[0].Pos)
	assert.InDelta(t, 18.0, end[0].E, 1e-9)
	assert.Equal(t, opt.RetractionSpeed, end[0].Feed)
	assert.Equal(t, r3.Vec{X: 5, Y: 8, Z: 2}, end[1].Pos)
	assert.Equal(t, end[0].E, end[1].E)
}

func TestRetractExtensionClosedWithoutCurveFollowing(t *testing.T) {
	opt := testParams()
	opt.RetractExtension = 3
	job := NewJob(&opt, [][]geom.Polyline{{square(10, 0)}}, nil, nil)

	end := pathEnd(t, job.Toolpath())
	require.Equal(t, []MoveKind{Retract, ZHop}, kinds(end))
	// last segment runs from (-5, 5) to (-5, -5)
	assert.Equal(t, r3.Vec{X: -5, Y: -8}, end[0].Pos)
}

func TestRetractAlongClosedCurve(t *testing.T) {
	opt := testParams()
	opt.RetractExtension = 12
	opt.CurveExtensionRetraction = true
	job := NewJob(&opt, [][]geom.Polyline{{square(10, 0)}}, nil, nil)

	end := pathEnd(t, job.Toolpath())
	require.Equal(t, []MoveKind{Retract, Retract, ZHop}, kinds(end))

	assert.Equal(t, r3.Vec{X: 5, Y: -5}, end[0].Pos)
	assert.InDelta(t, 40-10.0/12*2, end[0].E, 1e-9)
	assert.Equal(t, "RetractExtensionClosedCurve", end[0].Comment)

	assert.Equal(t, r3.Vec{X: 5, Y: -3}, end[1].Pos)
	// the whole retraction constant is used up over the walk
	assert.InDelta(t, 38.0, end[1].E, 1e-9)

	assert.Equal(t, r3.Vec{X: 5, Y: -3, Z: 2}, end[2].Pos)
	assert.Equal(t, end[1].E, end[2].E)
}

func TestRetractExtensionLongerThanPath(t *testing.T) {
	opt := testParams()
	opt.RetractExtension = 50
	opt.CurveExtensionRetraction = true
	job := NewJob(&opt, [][]geom.Polyline{{square(10, 0)}}, nil, nil)

	end := pathEnd(t, job.Toolpath())
	require.Equal(t, []MoveKind{Retract, ZHop}, kinds(end))
	assert.Equal(t, "RetractExtension", end[0].Comment)
}

func TestExtrusionBookkeeping(t *testing.T) {
	opt := testParams()
	opt.InitExtrusion = 0.5
	opt.RetractExtension = 4
	opt.CurveExtensionRetraction = true
	layers := [][]geom.Polyline{
		{square(10, 0), geom.Polyline{{X: 20}, {X: 25}, {X: 25, Y: 3}}},
		{square(8, 1.5)},
	}
	job := NewJob(&opt, layers, nil, nil)

	e := 0.0
	inPath := false
	for _, m := range job.Toolpath().Moves {
		switch m.Kind {
		case Reset:
			e = 0
			inPath = false
		case Travel:
			assert.False(t, inPath)
			assert.Equal(t, 0.0, m.E)
			inPath = true
			e = 0
		case Extrude, ZHop:
			assert.GreaterOrEqual(t, m.E, e)
			e = m.E
		case Retract, RetractZHop:
			assert.Less(t, m.E, e)
			e = m.E
		}
	}
}

func TestDuplicateVerticesSkipped(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	opt := testParams()
	path := geom.Polyline{{X: 0}, {X: 10}, {X: 10.0001}, {X: 10, Y: 10}}
	// the skipped vertex still consumes its modifier
	flow := []float64{1, 1, 100, 2}

	job := NewJob(&opt, [][]geom.Polyline{{path}}, flow, zap.New(core))

	prog := job.Toolpath()
	assert.Equal(t, 3, prog.Count(Extrude))
	skipped := logs.FilterMessage("point distance below tolerance, point is skipped").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, zapcore.InfoLevel, skipped[0].Level)

	end := pathEnd(t, prog)
	assert.InDelta(t, 10+10*2-2, end[0].E, 1e-9)
}

func TestFlowModifiers(t *testing.T) {
	opt := testParams()
	flow := []float64{1, 2, 2, 2, 2, 1, 0.5, 0.5, 0.5, 0.5}
	job := NewJob(&opt, [][]geom.Polyline{{square(10, 0)}, {square(10, 1.5)}}, flow, nil)

	es := []float64{}
	for _, m := range job.Toolpath().Moves {
		if m.Kind == RetractZHop {
			es = append(es, m.E+opt.RetractionConstant)
		}
	}
	require.Len(t, es, 2)
	assert.InDelta(t, 80.0, es[0], 1e-9)
	assert.InDelta(t, 20.0, es[1], 1e-9)
}

func TestFlowModifierMismatch(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	opt := testParams()
	job := NewJob(&opt, [][]geom.Polyline{{square(10, 0)}}, []float64{3, 3, 3}, zap.New(core))

	require.Equal(t, 1, logs.Len())
	assert.EqualValues(t, 3, logs.All()[0].ContextMap()["modifiers"])
	assert.EqualValues(t, 5, logs.All()[0].ContextMap()["vertices"])

	end := pathEnd(t, job.Toolpath())
	assert.InDelta(t, 38.0, end[0].E, 1e-9)
}

func TestCentering(t *testing.T) {
	opt := testParams()
	a := square(10, 3).Translated(r3.Vec{X: 100, Y: 50})
	b := square(10, 4.5).Translated(r3.Vec{X: 120, Y: 50})
	job := NewJob(&opt, [][]geom.Polyline{{a}, {b}}, nil, nil)

	assert.Equal(t, r3.Vec{X: -115, Y: -55}, job.Offset())

	bbx := geom.EmptyBox()
	for _, m := range job.Toolpath().Moves {
		if m.Kind == Extrude {
			bbx = bbx.Extend(m.Pos)
		}
	}
	assert.Equal(t, r3.Vec{X: -15, Y: -5, Z: 3}, bbx.Min)
	assert.Equal(t, r3.Vec{X: 15, Y: 5, Z: 4.5}, bbx.Max)
}

func TestPauseAfterFloor(t *testing.T) {
	opt := testParams()
	opt.FloorLayerCount = 1
	opt.PauseAfterFloor = true
	opt.PauseTime = 5000
	job := NewJob(&opt, [][]geom.Polyline{{square(10, 0)}, {square(10, 1.5)}}, nil, nil)

	moves := job.Toolpath().Moves
	at := -1
	for i, m := range moves {
		if m.Kind == Pause {
			at = i
		}
	}
	require.GreaterOrEqual(t, at, 4)
	assert.Equal(t, 1, job.Toolpath().Count(Pause))

	block := moves[at-4 : at+2]
	assert.Equal(t, []MoveKind{Marker, Reset, Rapid, Rapid, Pause, Marker}, kinds(block))
	assert.Equal(t, r3.Vec{X: -5, Y: -5, Z: 5}, block[2].Pos)
	assert.Equal(t, 0.0, block[2].E)
	assert.Equal(t, opt.PrintSpeed, block[2].Feed)
	assert.Equal(t, r3.Vec{Z: 100}, block[3].Pos)
	assert.Equal(t, "///// LAYER 2 /////", block[5].Comment)

	assert.Equal(t, "G04 P5000 ; Dwell / Pause", block[4].Gcode())
	assert.Equal(t, "G0 X-5.000 Y-5.000 Z5.000 E0.000 F1000", block[2].Gcode())
	assert.Equal(t, "; ///// PAUSE AFTER FLOOR FOR 5000 ms /////", block[0].Gcode())
}

func TestNoPauseWithoutFloors(t *testing.T) {
	opt := testParams()
	opt.PauseAfterFloor = true
	opt.PauseTime = 5000
	job := NewJob(&opt, [][]geom.Polyline{{square(10, 0)}, {square(10, 1.5)}}, nil, nil)
	assert.Equal(t, 0, job.Toolpath().Count(Pause))
}

func TestEmptyInput(t *testing.T) {
	opt := testParams()

	job := NewJob(&opt, nil, nil, nil)
	assert.Equal(t, "", job.Gcode())
	assert.Empty(t, job.Toolpath().Moves)

	job = NewJob(&opt, [][]geom.Polyline{{}, {geom.Polyline{}}}, nil, nil)
	assert.Equal(t, "", job.Gcode())
}

func TestPreambleAndPostamble(t *testing.T) {
	opt := testParams()
	opt.PrintSpeed = 3000
	job := NewJob(&opt, [][]geom.Polyline{{square(10, 1)}}, nil, nil)
	job.Info = HeaderInfo{Author: "maker", FileName: "vase.yaml", Created: time.Date(2025, 4, 11, 9, 30, 0, 0, time.UTC)}

	out := job.Gcode()
	assert.True(t, strings.HasPrefix(out, "; Clay printing GCODE\n; Created by : maker\n; File name  : vase.yaml\n; Date time  : 2025-04-11T09:30:00\n"))
	assert.Contains(t, out, gcode.HeaderBegin+"\n; PRINTSPEED=3000\n; TRAVELSPEED=3000\n; RETRACTIONSPEED=1800\n; EXTRUSIONRATE=1\n; LAYERHEIGHT=1.5\n; LINEWIDTH=3\n"+gcode.HeaderEnd+"\n")
	assert.Contains(t, out, "G0 X0.0 Y0.0 Z6.000 F3000\n; approach first point with x and y coordinates\nG1 X-5.000 Y-5.000 Z6.000\n; --- END HEADER ---\n; ///// LAYER 1 /////\n")
	assert.True(t, strings.HasSuffix(out, "M84; disable motors\nM82 ; absolute extrusion mode\n; --- END OF GCODE ---\n"))
}

func TestGcodeRoundTrip(t *testing.T) {
	opt := testParams()
	opt.PrintSpeed = 3000
	opt.ExtrusionRate = 0.0375
	opt.LayerHeight = 1.25
	opt.RetractExtension = 2.5
	opt.CurveExtensionRetraction = true
	opt.FloorLayerCount = 1
	opt.PauseAfterFloor = true
	opt.PauseTime = 1500
	layers := [][]geom.Polyline{
		{square(10, 0), geom.Polyline{{X: 3, Y: 3}, {X: 7, Y: 3.3333}, {X: 7, Y: 7}}},
		{square(10, 1.25)},
	}
	job := NewJob(&opt, layers, nil, nil)

	parsed, err := gcode.ParseString(job.Gcode())
	require.NoError(t, err)

	require.True(t, parsed.HasHeader)
	assert.Equal(t, 3000.0, parsed.Header.PrintSpeed)
	assert.Equal(t, gcode.Header{
		PrintSpeed:      opt.PrintSpeed,
		TravelSpeed:     opt.TravelSpeed,
		RetractionSpeed: opt.RetractionSpeed,
		ExtrusionRate:   opt.ExtrusionRate,
		LayerHeight:     opt.LayerHeight,
		LineWidth:       opt.LineWidth,
	}, parsed.Header)

	motion := []Move{}
	for _, m := range job.Toolpath().Moves {
		if m.IsMotion() {
			motion = append(motion, m)
		}
	}
	// the two approach lines of the preamble come first
	require.Len(t, parsed.Commands, len(motion)+2)
	for i, m := range motion {
		c := parsed.Commands[i+2]
		assert.InDelta(t, m.Pos.X, c.X, 0.0005)
		assert.InDelta(t, m.Pos.Y, c.Y, 0.0005)
		assert.InDelta(t, m.Pos.Z, c.Z, 0.0005)
		assert.InDelta(t, m.E, c.E, 0.0005)
		assert.Equal(t, m.Feed, c.F)
	}
}

func TestCycleTime(t *testing.T) {
	prog := NewProgram()
	prog.Append(Move{Kind: Marker, Comment: "start"})
	prog.Append(Move{Kind: Travel, Pos: r3.Vec{}, Feed: 600})
	prog.Append(Move{Kind: Extrude, Pos: r3.Vec{X: 10}, Feed: 600})
	prog.Append(Move{Kind: Reset})
	prog.Append(Move{Kind: Pause, Dwell: 2000})
	prog.Append(Move{Kind: Rapid, Pos: r3.Vec{X: 10, Y: 20}, Feed: 1200})

	assert.InDelta(t, 1+2+1, prog.CycleTime(), 1e-9)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1 hours, 2 minutes, 3 seconds.", FormatDuration(3723*time.Second))
	assert.Equal(t, "59 seconds.", FormatDuration(59*time.Second))
	assert.Equal(t, "2 hours.", FormatDuration(2*time.Hour))
	assert.Equal(t, "5 minutes, 1 seconds.", FormatDuration(301*time.Second+400*time.Millisecond))
	empty := NewProgram()
	assert.False(t, math.IsNaN(empty.CycleTime()))
}

func TestMoveKindString(t *testing.T) {
	assert.Equal(t, "extrude", Extrude.String())
	assert.Equal(t, "retract+z-hop", RetractZHop.String())
	assert.Equal(t, "pause", Pause.String())
	assert.Equal(t, "unknown", MoveKind(42).String())
	assert.Equal(t, "unknown", MoveKind(-1).String())
}

func TestNumbersWithoutExponent(t *testing.T) {
	m := Move{Kind: Rapid, Pos: r3.Vec{X: 1}, Feed: 1e6}
	assert.Equal(t, "G0 X1.000 Y0.000 Z0.000 E0.000 F1000000", m.Gcode())

	m = Move{Kind: Extrude, Feed: 0.00005}
	assert.Equal(t, "G1 X0.000 Y0.000 Z0.000 E0.000 F0.00005", m.Gcode())

	opt := testParams()
	opt.ExtrusionRate = 0.00005
	opt.TravelSpeed = 2500000
	job := NewJob(&opt, [][]geom.Polyline{{square(10, 0)}}, nil, nil)

	out := job.Gcode()
	assert.Contains(t, out, "; EXTRUSIONRATE=0.00005\n")
	assert.Contains(t, out, "; TRAVELSPEED=2500000\n")
	assert.Contains(t, out, " F2500000\n")
	assert.NotRegexp(t, `[0-9]e[-+][0-9]`, out)

	parsed, err := gcode.ParseString(out)
	require.NoError(t, err)
	assert.Equal(t, 0.00005, parsed.Header.ExtrusionRate)
	assert.Equal(t, 2500000.0, parsed.Header.TravelSpeed)
}
