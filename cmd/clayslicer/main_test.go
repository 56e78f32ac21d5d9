package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hschendel/stl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/digitaldesignunit/clayprinting-slicer/internal/config"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const layersDoc = `layers:
  - outer: [[[0,0,0],[10,0,0],[10,10,0],[0,10,0],[0,0,0]]]
  - outer: [[[0,0,1],[10,0,1],[10,10,1],[0,10,1],[0,0,1]]]
  - outer: [[[0,0,2],[10,0,2],[10,10,2],[0,10,2],[0,0,2]]]
  - outer: [[[0,0,3],[4,0,3],[4,10,3],[0,10,3],[0,0,3]]]
  - outer: [[[0,0,4],[10,0,4],[10,10,4],[0,10,4],[0,0,4]]]
`

const pathsDoc = `layers:
  - paths:
      - [[0,0,0],[10,0,0],[10,10,0],[0,10,0],[0,0,0]]
  - paths:
      - [[0,0,1.5],[10,0,1.5],[10,10,1.5],[0,10,1.5],[0,0,1.5]]
`

func TestClassifyCommand(t *testing.T) {
	in := writeFile(t, "layers.yaml", layersDoc)
	plotFile := filepath.Join(t.TempDir(), "areas.png")

	out, stderr, err := run(t, "classify", in, "--floor=false", "--debug", "--plot", plotFile)
	require.NoError(t, err)

	var rep config.ClassifyReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &rep))
	assert.Equal(t, []string{"regular", "regular", "cap", "cap", "cap"}, rep.Roles)
	assert.Len(t, rep.Partitions["cap"], 3)

	assert.Contains(t, stderr, "LAST {2} <- -150% <--| {3} THIS {3} |--> -150% -> {4} NEXT")
	assert.FileExists(t, plotFile)
}

func TestGcodeCommand(t *testing.T) {
	in := writeFile(t, "square.yaml", pathsDoc)
	outFile := filepath.Join(t.TempDir(), "square.gcode")

	_, _, err := run(t, "gcode", in, "-o", outFile, "--print-speed", "1000", "--pause-after-floor", "--floor-layers", "1")
	require.NoError(t, err)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	gc := string(data)
	assert.Contains(t, gc, "; File name  : square.yaml\n")
	assert.Contains(t, gc, "; PRINTSPEED=1000\n")
	assert.Contains(t, gc, "; ///// PAUSE AFTER FLOOR FOR 10000 ms /////\n")
	assert.True(t, strings.HasSuffix(gc, "; --- END OF GCODE ---\n"))

	stdout, _, err := run(t, "parse", outFile)
	require.NoError(t, err)
	assert.Contains(t, stdout, "print speed:      1000\n")
	assert.Contains(t, stdout, "print paths:      2\n")
}

func TestGcodeCommandToStdout(t *testing.T) {
	in := writeFile(t, "square.yaml", pathsDoc)

	stdout, _, err := run(t, "gcode", in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "; Clay printing GCODE\n"))
}

func TestGcodeCommandCCW(t *testing.T) {
	// clockwise square
	in := writeFile(t, "cw.yaml", `layers:
  - paths:
      - [[0,0,0],[0,10,0],[10,10,0],[10,0,0],[0,0,0]]
`)

	stdout, _, err := run(t, "gcode", in, "--ccw", "--extrusion-rate", "1", "--print-speed", "1000")
	require.NoError(t, err)
	assert.Contains(t, stdout, "G1 X-5.000 Y-5.000 Z0.000 E0.500 F500\nG1 X5.000 Y-5.000 Z0.000 E10.500 F1000\n")
}

func TestInspectCommand(t *testing.T) {
	a := stl.Vec3{0, 0, 0}
	b := stl.Vec3{10, 0, 0}
	c := stl.Vec3{0, 10, 0}
	d := stl.Vec3{0, 0, 10}
	solid := &stl.Solid{Name: "tetra", Triangles: []stl.Triangle{
		{Vertices: [3]stl.Vec3{a, c, b}},
		{Vertices: [3]stl.Vec3{a, b, d}},
		{Vertices: [3]stl.Vec3{a, d, c}},
		{Vertices: [3]stl.Vec3{b, c, d}},
	}}
	path := filepath.Join(t.TempDir(), "tetra.stl")
	require.NoError(t, solid.WriteFile(path))

	stdout, _, err := run(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "[INFO] Base Mesh is closed.\n")
	assert.Contains(t, stdout, "4 triangles, 1 components. 10x10x10 mm.\n")
}

func TestInitConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clayslicer.yaml")

	_, _, err := run(t, "init-config", path)
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestMissingInput(t *testing.T) {
	_, _, err := run(t, "classify", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
