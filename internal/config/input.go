package config

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/digitaldesignunit/clayprinting-slicer/internal/geom"
	"github.com/digitaldesignunit/clayprinting-slicer/internal/layers"
)

// Points are written as [x, y, z]. JSON documents parse as well since
// they are valid YAML.
type polyline [][]float64

type layerDoc struct {
	ID    string     `yaml:"id"`
	Outer []polyline `yaml:"outer"`
	Inner []polyline `yaml:"inner"`
}

type layersDoc struct {
	Layers []layerDoc `yaml:"layers"`
}

type pathLayerDoc struct {
	Paths []polyline `yaml:"paths"`
}

type pathsDoc struct {
	Layers []pathLayerDoc `yaml:"layers"`
	Flow   []float64      `yaml:"flow"`
}

// PathSet is the input of the G-code generator: paths grouped by layer,
// bottom first, plus optional per-vertex flow modifiers.
type PathSet struct {
	Layers [][]geom.Polyline
	Flow   []float64
}

func (p polyline) toGeom() (geom.Polyline, error) {
	out := make(geom.Polyline, len(p))
	for i, pt := range p {
		switch len(pt) {
		case 2:
			out[i] = r3.Vec{X: pt[0], Y: pt[1]}
		case 3:
			out[i] = r3.Vec{X: pt[0], Y: pt[1], Z: pt[2]}
		default:
			return nil, fmt.Errorf("point %d has %d coordinates", i, len(pt))
		}
	}
	return out, nil
}

func toGeom(pl []polyline) ([]geom.Polyline, error) {
	out := make([]geom.Polyline, len(pl))
	for i := range pl {
		p, err := pl[i].toGeom()
		if err != nil {
			return nil, fmt.Errorf("polyline %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

func fromGeom(pl []geom.Polyline) []polyline {
	out := make([]polyline, len(pl))
	for i, p := range pl {
		out[i] = make(polyline, len(p))
		for k, v := range p {
			out[i][k] = []float64{v.X, v.Y, v.Z}
		}
	}
	return out
}

func ParseLayers(data []byte) ([]layers.Layer, error) {
	var doc layersDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse layers: %w", err)
	}

	out := make([]layers.Layer, len(doc.Layers))
	for i, l := range doc.Layers {
		outer, err := toGeom(l.Outer)
		if err != nil {
			return nil, fmt.Errorf("layer %d outer: %w", i, err)
		}
		inner, err := toGeom(l.Inner)
		if err != nil {
			return nil, fmt.Errorf("layer %d inner: %w", i, err)
		}
		out[i] = layers.Layer{ID: l.ID, Outer: outer, Inner: inner}
	}
	return out, nil
}

func LoadLayers(path string) ([]layers.Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layers: %w", err)
	}
	return ParseLayers(data)
}

func ParsePaths(data []byte) (*PathSet, error) {
	var doc pathsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse paths: %w", err)
	}

	set := PathSet{
		Layers: make([][]geom.Polyline, len(doc.Layers)),
		Flow:   doc.Flow,
	}
	for i, l := range doc.Layers {
		paths, err := toGeom(l.Paths)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		set.Layers[i] = paths
	}
	return &set, nil
}

func LoadPaths(path string) (*PathSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read paths: %w", err)
	}
	return ParsePaths(data)
}

// Partition is the YAML form of one classified group.
type Partition struct {
	Index int        `yaml:"index"`
	ID    string     `yaml:"id"`
	Outer []polyline `yaml:"outer,omitempty"`
	Inner []polyline `yaml:"inner,omitempty"`
}

type ClassifyReport struct {
	Roles      []string               `yaml:"roles"`
	Partitions map[string][]Partition `yaml:"partitions"`
	Debug      []string               `yaml:"debug,omitempty"`
}

// NewClassifyReport flattens a classification into a document keyed by
// role name. The outer and inner groups share indices.
func NewClassifyReport(res *layers.Result) *ClassifyReport {
	rep := ClassifyReport{
		Roles:      make([]string, len(res.Roles)),
		Partitions: map[string][]Partition{},
		Debug:      res.Debug,
	}
	for i, r := range res.Roles {
		rep.Roles[i] = r.String()
	}
	for _, role := range layers.Roles {
		parts := []Partition{}
		for k, g := range res.Outer[role] {
			p := Partition{Index: g.Index, ID: g.ID, Outer: fromGeom(g.Boundaries)}
			if k < len(res.Inner[role]) {
				p.Inner = fromGeom(res.Inner[role][k].Boundaries)
			}
			parts = append(parts, p)
		}
		rep.Partitions[role.String()] = parts
	}
	return &rep
}

func (r *ClassifyReport) Marshal() ([]byte, error) {
	return yaml.Marshal(r)
}
