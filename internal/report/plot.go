package report

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/digitaldesignunit/clayprinting-slicer/internal/gcode"
	"github.com/digitaldesignunit/clayprinting-slicer/internal/layers"
)

var ErrNoData = errors.New("nothing to plot")

var roleColors = map[layers.Role]color.Color{
	layers.Floor:    color.RGBA{R: 120, G: 120, B: 120, A: 255},
	layers.Regular:  color.RGBA{R: 30, G: 110, B: 200, A: 255},
	layers.Overhang: color.RGBA{R: 230, G: 120, B: 20, A: 255},
	layers.Cap:      color.RGBA{R: 200, G: 30, B: 40, A: 255},
}

var segmentColors = map[gcode.SegmentKind]color.Color{
	gcode.TravelSegment:  color.RGBA{R: 160, G: 160, B: 160, A: 255},
	gcode.RetractSegment: color.RGBA{R: 200, G: 30, B: 40, A: 255},
	gcode.ExtrudeSegment: color.RGBA{R: 30, G: 110, B: 200, A: 255},
}

// PlotAreas draws the outer area of every layer against its index, one
// marker colour per role, and saves the chart to file. The format follows
// the file extension.
func PlotAreas(areas []float64, roles []layers.Role, file string) error {
	if len(areas) == 0 {
		return ErrNoData
	}
	if len(areas) != len(roles) {
		return fmt.Errorf("got %d areas for %d layers", len(areas), len(roles))
	}

	p := plot.New()
	p.Title.Text = "Layer areas by role"
	p.X.Label.Text = "Layer"
	p.Y.Label.Text = "Area (mm²)"

	all := make(plotter.XYs, len(areas))
	for i, a := range areas {
		all[i] = plotter.XY{X: float64(i), Y: a}
	}
	line, err := plotter.NewLine(all)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	line.Color = color.Gray{Y: 180}
	p.Add(line)

	for _, role := range layers.Roles {
		pts := plotter.XYs{}
		for i := range roles {
			if roles[i] == role {
				pts = append(pts, all[i])
			}
		}
		if len(pts) == 0 {
			continue
		}

		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = roleColors[role]
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add(role.String(), sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 5*vg.Inch, file); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", file, err)
	}
	return nil
}

// PlotMoves draws a top view of the classified moves of a program.
func PlotMoves(moves gcode.Moves, file string) error {
	if len(moves.Segments) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Moves (top view)"
	p.X.Label.Text = "X (mm)"
	p.Y.Label.Text = "Y (mm)"

	for _, kind := range []gcode.SegmentKind{gcode.TravelSegment, gcode.RetractSegment, gcode.ExtrudeSegment} {
		labelled := false
		for _, s := range moves.Segments {
			if s.Kind != kind {
				continue
			}
			line, err := plotter.NewLine(plotter.XYs{{X: s.From.X, Y: s.From.Y}, {X: s.To.X, Y: s.To.Y}})
			if err != nil {
				return err
			}
			line.Color = segmentColors[kind]
			line.Width = vg.Points(1)
			if kind == gcode.TravelSegment {
				line.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
			}
			p.Add(line)
			if !labelled {
				p.Legend.Add(kind.String(), line)
				labelled = true
			}
		}
	}

	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 8*vg.Inch, file); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", file, err)
	}
	return nil
}
