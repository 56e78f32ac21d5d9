package toolpath

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/digitaldesignunit/clayprinting-slicer/internal/gcode"
	"github.com/digitaldesignunit/clayprinting-slicer/internal/geom"
)

const (
	// clearance above the first vertex for the initial approach
	safeZ        = 5.0
	approachFeed = 3000.0

	pauseLift = 5.0
	pausePark = 100.0
)

type HeaderInfo struct {
	Author   string
	FileName string
	Created  time.Time
}

type Job struct {
	Info HeaderInfo

	options *Params
	layers  [][]geom.Polyline
	flow    []float64
	offset  r3.Vec
	logger  *zap.Logger

	mainToolpath Program
}

// NewJob centres the paths on the origin and builds the program. The flow
// modifiers are only used when there is exactly one per vertex.
func NewJob(opt *Params, layers [][]geom.Polyline, flow []float64, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}

	j := Job{
		options: opt,
		logger:  logger,
	}

	bbx := geom.EmptyBox()
	vertices := 0
	for i := range layers {
		for _, path := range layers[i] {
			bbx = bbx.Union(path.Bounds())
			vertices += len(path)
		}
	}

	if !bbx.IsEmpty() {
		c := bbx.Center()
		j.offset = r3.Vec{X: -c.X, Y: -c.Y}
	}
	logger.Debug("centering paths", zap.Float64("dx", j.offset.X), zap.Float64("dy", j.offset.Y))

	j.layers = make([][]geom.Polyline, len(layers))
	for i := range layers {
		j.layers[i] = make([]geom.Polyline, len(layers[i]))
		for k, path := range layers[i] {
			j.layers[i][k] = path.Translated(j.offset)
		}
	}

	if len(flow) > 0 {
		if len(flow) == vertices {
			j.flow = flow
		} else {
			logger.Warn("flow modifiers do not correspond with supplied paths, constant extrusion rate will be used",
				zap.Int("modifiers", len(flow)),
				zap.Int("vertices", vertices))
		}
	}

	j.MakeToolpath()

	return &j
}

func (j *Job) Offset() r3.Vec { return j.offset }

func (j *Job) Toolpath() *Program { return &j.mainToolpath }

func (j *Job) empty() bool {
	for i := range j.layers {
		for _, path := range j.layers[i] {
			if len(path) > 0 {
				return false
			}
		}
	}
	return true
}

func (j *Job) firstVertex() r3.Vec {
	for i := range j.layers {
		for _, path := range j.layers[i] {
			if len(path) > 0 {
				return path.First()
			}
		}
	}
	return r3.Vec{}
}

func (j *Job) MakeToolpath() {
	j.mainToolpath = NewProgram()

	opt := j.options
	tp := &j.mainToolpath

	if j.empty() {
		return
	}

	lastPos := j.firstVertex()
	cursor := 0

	for i := range j.layers {
		if opt.pauseScheduled(i) {
			tp.Append(Move{Kind: Marker, Comment: fmt.Sprintf("///// PAUSE AFTER FLOOR FOR %d ms /////", opt.PauseTime)})
			tp.Append(Move{Kind: Reset})
			tp.Append(Move{Kind: Rapid, Pos: up(lastPos, pauseLift), Feed: opt.FeedRate(Rapid)})
			tp.Append(Move{Kind: Rapid, Pos: r3.Vec{Z: lastPos.Z + pausePark}, Feed: opt.FeedRate(Rapid)})
			tp.Append(Move{Kind: Pause, Dwell: opt.PauseTime})
		}

		tp.Append(Move{Kind: Marker, Comment: fmt.Sprintf("///// LAYER %d /////", i+1)})

		for _, path := range j.layers[i] {
			if len(path) == 0 {
				j.logger.Info("empty path skipped", zap.Int("layer", i))
				continue
			}

			var mods []float64
			if j.flow != nil {
				mods = j.flow[cursor : cursor+len(path)]
			}
			cursor += len(path)

			lastPos = j.emitPath(tp, path, mods)
			tp.Append(Move{Kind: Reset})
		}
	}
}

// emitPath appends the moves for one path and returns where the nozzle is
// left before its z-hop. Extrusion starts at zero for every path.
func (j *Job) emitPath(tp *Program, path geom.Polyline, mods []float64) r3.Vec {
	opt := j.options
	tol := opt.tolerance()

	e := 0.0
	p0 := path.First()
	tp.Append(Move{Kind: Travel, Pos: up(p0, opt.ZHop), E: e, Feed: opt.FeedRate(Travel)})

	// primer charge on the first vertex, independent of distance
	e += opt.InitExtrusion

	last := p0
	for k := range path {
		d := geom.Distance(last, path[k])
		if k > 0 && d < tol {
			j.logger.Info("point distance below tolerance, point is skipped", zap.Int("vertex", k))
			continue
		}

		mod := 1.0
		if mods != nil {
			mod = mods[k]
		}
		e += d * opt.ExtrusionRate * mod

		feed := opt.FeedRate(Extrude)
		if k == 0 {
			feed *= 0.5
		}
		tp.Append(Move{Kind: Extrude, Pos: path[k], E: e, Feed: feed})

		last = path[k]
	}

	return j.retract(tp, path, e)
}

func (j *Job) retract(tp *Program, path geom.Polyline, e float64) r3.Vec {
	opt := j.options

	if opt.RetractExtension <= 0 {
		end := path.Last()
		e -= opt.RetractionConstant
		tp.Append(Move{Kind: RetractZHop, Pos: up(end, opt.ZHop), E: e, Feed: opt.FeedRate(RetractZHop), Comment: "Z-Hop with retraction"})
		return end
	}

	if opt.CurveExtensionRetraction && path.Closed() && path.Length() > opt.RetractExtension {
		// keep moving along the start of the closed path while retracting
		sub := path.Prefix(opt.RetractExtension)
		last := sub.First()
		for k := 1; k < len(sub); k++ {
			d := geom.Distance(last, sub[k])
			if d < opt.tolerance() {
				j.logger.Info("point distance below tolerance, point is skipped", zap.Int("vertex", k))
				continue
			}
			e -= d / opt.RetractExtension * opt.RetractionConstant
			tp.Append(Move{Kind: Retract, Pos: sub[k], E: e, Feed: opt.FeedRate(Retract), Comment: "RetractExtensionClosedCurve"})
			last = sub[k]
		}

		end := sub.Last()
		tp.Append(Move{Kind: ZHop, Pos: up(end, opt.ZHop), E: e, Feed: opt.FeedRate(ZHop), Comment: "Z-Hop"})
		return end
	}

	// extend in the direction of the last segment
	dir := r3.Vec{}
	if len(path) > 1 {
		seg := r3.Sub(path.Last(), path[len(path)-2])
		if r3.Norm(seg) > 0 {
			dir = r3.Unit(seg)
		}
	}
	end := r3.Add(path.Last(), r3.Scale(opt.RetractExtension, dir))
	e -= opt.RetractionConstant
	tp.Append(Move{Kind: Retract, Pos: end, E: e, Feed: opt.FeedRate(Retract), Comment: "RetractExtension"})
	tp.Append(Move{Kind: ZHop, Pos: up(end, opt.ZHop), E: e, Feed: opt.FeedRate(ZHop), Comment: "Z-Hop"})
	return end
}

func up(p r3.Vec, dz float64) r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z + dz}
}

// Gcode returns the complete program, or nothing when there are no paths.
func (j *Job) Gcode() string {
	if j.empty() {
		return ""
	}
	return j.Preamble() + j.mainToolpath.ToGcode() + j.Postamble()
}

func (j *Job) Preamble() string {
	opt := j.options
	p0 := j.firstVertex()

	created := "unknown"
	if !j.Info.Created.IsZero() {
		created = j.Info.Created.Format("2006-01-02T15:04:05")
	}

	gcode := strings.Builder{}

	gcode.WriteString("; Clay printing GCODE\n")
	fmt.Fprintf(&gcode, "; Created by : %s\n", j.Info.Author)
	fmt.Fprintf(&gcode, "; File name  : %s\n", j.Info.FileName)
	fmt.Fprintf(&gcode, "; Date time  : %s\n", created)
	gcode.WriteString(";\n")
	gcode.WriteString(headerBlock(opt))
	gcode.WriteString(";\n")
	gcode.WriteString("M105 ; get extruder temperature\n")
	gcode.WriteString("M109 S0 ; set extruder temp to 0 (deactivate)\n")
	gcode.WriteString("M82 ; use absolute distances for extrusion\n")
	gcode.WriteString("G90 ; use absolute coordinates\n")
	gcode.WriteString("M106 S0 ; set fan speed to 0 (deactivate)\n")
	gcode.WriteString("M107 ; fan off\n")
	gcode.WriteString("M104 S0 T0 ; set hotend temperature to 0 (deactivate)\n")
	gcode.WriteString("G28 ; home all axes\n")
	gcode.WriteString("T0 ; set extruder to extruder 0 (first and only one)\n")
	gcode.WriteString("G21 ; set units to millimetres\n")
	gcode.WriteString("G92 E0 ; reset E distance\n")
	gcode.WriteString("; approach the first vertex using z safety height\n")
	fmt.Fprintf(&gcode, "G0 X0.0 Y0.0 Z%.3f F%s\n", p0.Z+safeZ, num(approachFeed))
	gcode.WriteString("; approach first point with x and y coordinates\n")
	fmt.Fprintf(&gcode, "G1 X%.3f Y%.3f Z%.3f\n", p0.X, p0.Y, p0.Z+safeZ)
	gcode.WriteString("; --- END HEADER ---\n")

	return gcode.String()
}

func headerBlock(opt *Params) string {
	b := strings.Builder{}
	b.WriteString(gcode.HeaderBegin + "\n")
	fmt.Fprintf(&b, "; %s=%s\n", gcode.KeyPrintSpeed, num(opt.PrintSpeed))
	fmt.Fprintf(&b, "; %s=%s\n", gcode.KeyTravelSpeed, num(opt.TravelSpeed))
	fmt.Fprintf(&b, "; %s=%s\n", gcode.KeyRetractionSpeed, num(opt.RetractionSpeed))
	fmt.Fprintf(&b, "; %s=%s\n", gcode.KeyExtrusionRate, num(opt.ExtrusionRate))
	fmt.Fprintf(&b, "; %s=%s\n", gcode.KeyLayerHeight, num(opt.LayerHeight))
	fmt.Fprintf(&b, "; %s=%s\n", gcode.KeyLineWidth, num(opt.LineWidth))
	b.WriteString(gcode.HeaderEnd + "\n")
	return b.String()
}

func (j *Job) Postamble() string {
	return "G1 E-1 ; retract\n" +
		"G92 E0 ; reset E value\n" +
		"M104 S0 ; turn off extruder\n" +
		"M140 S0 ; turn off bed\n" +
		"G28 X0 Y0 ; home all axes\n" +
		"M84; disable motors\n" +
		"M82 ; absolute extrusion mode\n" +
		"; --- END OF GCODE ---\n"
}
