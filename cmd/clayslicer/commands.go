package main

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/digitaldesignunit/clayprinting-slicer/internal/config"
	"github.com/digitaldesignunit/clayprinting-slicer/internal/gcode"
	"github.com/digitaldesignunit/clayprinting-slicer/internal/geom"
	"github.com/digitaldesignunit/clayprinting-slicer/internal/layers"
	"github.com/digitaldesignunit/clayprinting-slicer/internal/mesh"
	"github.com/digitaldesignunit/clayprinting-slicer/internal/report"
	"github.com/digitaldesignunit/clayprinting-slicer/internal/toolpath"
)

func newClassifyCmd(a *app) *cobra.Command {
	var (
		floorLayers int
		capLayers   int
		floor       bool
		threshold   float64
		debug       bool
		plotFile    string
	)

	cmd := &cobra.Command{
		Use:   "classify LAYERS",
		Short: "Sort layers into floor, regular, overhang and cap partitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.cfg.Classify
			flags := cmd.Flags()
			if flags.Changed("floor-layers") {
				p.FloorLayerCount = floorLayers
			}
			if flags.Changed("cap-layers") {
				p.CapLayerCount = capLayers
			}
			if flags.Changed("floor") {
				p.FloorEnabled = floor
			}
			if flags.Changed("threshold") {
				p.Threshold = threshold
			}
			if flags.Changed("debug") {
				p.Debug = debug
			}

			in, err := config.LoadLayers(args[0])
			if err != nil {
				return err
			}
			a.logger.Debug("loaded layers", zap.String("file", args[0]), zap.Int("layers", len(in)))

			oracle := geom.Shoelace{}
			res := layers.NewClassifier(p, oracle, a.logger).Classify(in)

			for _, line := range res.Debug {
				fmt.Fprintln(cmd.ErrOrStderr(), line)
			}
			for _, role := range layers.Roles {
				a.logger.Info("partition", zap.Stringer("role", role), zap.Ints("layers", res.Indices(role)))
			}

			if plotFile != "" {
				areas := make([]float64, len(in))
				for i := range in {
					areas[i] = layers.LayerArea(oracle, in[i], in[i].Name(i), zap.NewNop())
				}
				if err := report.PlotAreas(areas, res.Roles, plotFile); err != nil {
					return err
				}
			}

			out, err := config.NewClassifyReport(res).Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&floorLayers, "floor-layers", 3, "Set the number of bottom layers that form the floor.")
	flags.IntVar(&capLayers, "cap-layers", 3, "Set the number of layers below a shrinking layer that form a cap. 0 disables caps.")
	flags.BoolVar(&floor, "floor", true, "Print the bottom layers as floor.")
	flags.Float64Var(&threshold, "threshold", 10, "Set the area change in percent above which a layer counts as cap or overhang.")
	flags.BoolVar(&debug, "debug", false, "Write the area comparison of every layer to stderr.")
	flags.StringVar(&plotFile, "plot", "", "Write a chart of the layer areas to this file (png, svg or pdf).")

	return cmd
}

func newGcodeCmd(a *app) *cobra.Command {
	var (
		outFile          string
		printSpeed       float64
		extrusionRate    float64
		retractExtension float64
		curveRetraction  bool
		zHop             float64
		floorLayers      int
		pauseAfterFloor  bool
		pauseTime        int
		ccw              bool
	)

	cmd := &cobra.Command{
		Use:   "gcode PATHS",
		Short: "Generate G-code for layered print paths",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opt := a.cfg.Process
			flags := cmd.Flags()
			if flags.Changed("print-speed") {
				opt.PrintSpeed = printSpeed
			}
			if flags.Changed("extrusion-rate") {
				opt.ExtrusionRate = extrusionRate
			}
			if flags.Changed("retract-extension") {
				opt.RetractExtension = retractExtension
			}
			if flags.Changed("curve-retraction") {
				opt.CurveExtensionRetraction = curveRetraction
			}
			if flags.Changed("z-hop") {
				opt.ZHop = zHop
			}
			if flags.Changed("floor-layers") {
				opt.FloorLayerCount = floorLayers
			}
			if flags.Changed("pause-after-floor") {
				opt.PauseAfterFloor = pauseAfterFloor
			}
			if flags.Changed("pause-time") {
				opt.PauseTime = pauseTime
			}

			set, err := config.LoadPaths(args[0])
			if err != nil {
				return err
			}

			if ccw {
				orientPaths(set.Layers)
			}

			job := toolpath.NewJob(&opt, set.Layers, set.Flow, a.logger)
			job.Info = toolpath.HeaderInfo{
				Author:   currentUser(),
				FileName: filepath.Base(args[0]),
				Created:  time.Now(),
			}

			out := job.Gcode()
			if out == "" {
				a.logger.Warn("no paths to print", zap.String("file", args[0]))
			}

			secs := job.Toolpath().CycleTime()
			a.logger.Info("estimated print time",
				zap.String("time", toolpath.FormatDuration(time.Duration(secs*float64(time.Second)))),
				zap.Int("layers", len(set.Layers)))

			if outFile == "" {
				_, err = cmd.OutOrStdout().Write([]byte(out))
				return err
			}
			if err := os.WriteFile(outFile, []byte(out), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outFile, err)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&outFile, "output", "o", "", "Write G-code to this file instead of stdout.")
	flags.Float64Var(&printSpeed, "print-speed", 1500, "Set the feed rate for extrusion moves in mm/min.")
	flags.Float64Var(&extrusionRate, "extrusion-rate", 0.2, "Set the extrusion amount per mm of path.")
	flags.Float64Var(&retractExtension, "retract-extension", 0, "Set the distance to keep moving while retracting at the end of a path in mm.")
	flags.BoolVar(&curveRetraction, "curve-retraction", false, "Follow closed paths while retracting instead of moving straight on.")
	flags.Float64Var(&zHop, "z-hop", 2, "Set the lift above the path for travel moves in mm.")
	flags.IntVar(&floorLayers, "floor-layers", 3, "Set the number of floor layers, used for the pause.")
	flags.BoolVar(&pauseAfterFloor, "pause-after-floor", false, "Pause and park the nozzle after the floor layers.")
	flags.IntVar(&pauseTime, "pause-time", 10000, "Set the pause duration in ms.")
	flags.BoolVar(&ccw, "ccw", false, "Print closed paths counter-clockwise. Flow modifiers of reversed paths are not reordered.")

	return cmd
}

// orientPaths reverses clockwise closed paths in place.
func orientPaths(paths [][]geom.Polyline) {
	for i := range paths {
		for k, p := range paths[i] {
			if p.Closed() {
				paths[i][k] = geom.EnsureCCW(p)
			}
		}
	}
}

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return u.Username
}

func newParseCmd(a *app) *cobra.Command {
	var plotFile string

	cmd := &cobra.Command{
		Use:   "parse GCODE",
		Short: "Read back a generated program and summarise its moves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			prog, err := gcode.Parse(f)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if prog.HasHeader {
				h := prog.Header
				fmt.Fprintf(w, "print speed:      %g\n", h.PrintSpeed)
				fmt.Fprintf(w, "travel speed:     %g\n", h.TravelSpeed)
				fmt.Fprintf(w, "retraction speed: %g\n", h.RetractionSpeed)
				fmt.Fprintf(w, "extrusion rate:   %g\n", h.ExtrusionRate)
				fmt.Fprintf(w, "layer height:     %g\n", h.LayerHeight)
				fmt.Fprintf(w, "line width:       %g\n", h.LineWidth)
			} else {
				a.logger.Warn("no header found", zap.String("file", args[0]))
			}

			moves := gcode.ClassifyMoves(prog.Commands)
			fmt.Fprintf(w, "commands:         %d\n", len(prog.Commands))
			fmt.Fprintf(w, "print paths:      %d\n", len(moves.PrintPaths))
			fmt.Fprintf(w, "extrude length:   %.3f\n", moves.Length(gcode.ExtrudeSegment))
			fmt.Fprintf(w, "travel length:    %.3f\n", moves.Length(gcode.TravelSegment))
			fmt.Fprintf(w, "retract length:   %.3f\n", moves.Length(gcode.RetractSegment))

			if plotFile != "" {
				return report.PlotMoves(moves, plotFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&plotFile, "plot", "", "Write a top view of the moves to this file (png, svg or pdf).")

	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect MESH",
		Short: "Check that an STL mesh is closed and report its size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			solid, err := mesh.Load(args[0])
			if err != nil {
				return err
			}

			rep := mesh.Inspect(solid)
			if !rep.Closed {
				a.logger.Warn("mesh is not closed", zap.String("file", args[0]))
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, rep.String())
			size := rep.Size()
			fmt.Fprintf(w, "%d triangles, %d components. %gx%gx%g mm.\n", rep.Triangles, rep.Components, size.X, size.Y, size.Z)
			return nil
		},
	}
}

func newInitConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config FILE",
		Short: "Write the current configuration to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Save(args[0]); err != nil {
				return err
			}
			a.logger.Info("config written", zap.String("file", args[0]))
			return nil
		},
	}
}
