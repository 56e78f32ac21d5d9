package layers

import (
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/digitaldesignunit/clayprinting-slicer/internal/geom"
)

type Layer struct {
	ID    string
	Outer []geom.Polyline
	Inner []geom.Polyline
}

func (l Layer) Name(i int) string {
	if l.ID != "" {
		return l.ID
	}
	return fmt.Sprintf("{%d}", i)
}

type Params struct {
	FloorLayerCount int     `yaml:"floor_layers"`
	CapLayerCount   int     `yaml:"cap_layers"`
	FloorEnabled    bool    `yaml:"floor_enabled"`
	Threshold       float64 `yaml:"threshold"` // percent
	Debug           bool    `yaml:"debug"`
}

// Group is the boundary set of one layer in one partition.
type Group struct {
	Index      int
	ID         string
	Boundaries []geom.Polyline
}

type Result struct {
	Roles []Role
	Outer map[Role][]Group
	Inner map[Role][]Group
	Debug []string
}

func (r *Result) Indices(role Role) []int {
	idx := []int{}
	for i := range r.Roles {
		if r.Roles[i] == role {
			idx = append(idx, i)
		}
	}
	return idx
}

type Classifier struct {
	params Params
	oracle geom.AreaOracle
	logger *zap.Logger
}

func NewClassifier(params Params, oracle geom.AreaOracle, logger *zap.Logger) *Classifier {
	if oracle == nil {
		oracle = geom.Shoelace{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{params: params, oracle: oracle, logger: logger}
}

// LayerArea sums the outer boundary areas of a layer. Boundaries whose area
// can't be computed contribute nothing.
func LayerArea(oracle geom.AreaOracle, layer Layer, name string, logger *zap.Logger) float64 {
	areas := make([]float64, 0, len(layer.Outer))
	for i := range layer.Outer {
		a, err := oracle.Area(layer.Outer[i])
		if err != nil {
			logger.Warn("area computation failed",
				zap.String("layer", name),
				zap.Int("boundary", i),
				zap.Error(err))
			continue
		}
		areas = append(areas, a)
	}
	return floats.Sum(areas)
}

// Classify assigns every layer a role. Layers must be ordered bottom to top;
// the scan is strictly sequential because cap propagation rewrites the roles
// of layers decided in earlier iterations.
func (c *Classifier) Classify(layers []Layer) *Result {
	opt := c.params
	n := len(layers)
	parts := newPartitions()

	areas := make([]float64, n)
	known := make([]bool, n)
	area := func(i int) float64 {
		if !known[i] {
			areas[i] = LayerArea(c.oracle, layers[i], layers[i].Name(i), c.logger)
			known[i] = true
		}
		return areas[i]
	}

	// backward cap propagation, floors are left alone
	propagate := func(anchor int) {
		for j := 1; j < opt.CapLayerCount && anchor-j >= 0; j++ {
			parts.promote(anchor - j)
		}
	}

	top := func(i int) {
		if opt.CapLayerCount > 0 {
			parts.promote(i)
			propagate(i)
		} else {
			parts.assign(i, Regular)
		}
	}

	debug := []string{}

	for i := 0; i < n; i++ {
		if i == 0 || i < opt.FloorLayerCount {
			if opt.FloorEnabled {
				parts.assign(i, Floor)
			} else {
				parts.assign(i, Regular)
			}
			continue
		}

		if i == n-1 {
			// normally decided by the previous iteration; only a layer
			// directly above the floor block is still open here
			if _, ok := parts.role(i); !ok {
				top(i)
			}
			continue
		}

		lastArea := area(i - 1)
		thisArea := area(i)
		nextArea := area(i + 1)

		percLast := (thisArea - lastArea) / thisArea * 100
		percNext := (thisArea - nextArea) / thisArea * 100

		if opt.Debug {
			debug = append(debug, fmt.Sprintf("LAST %s <- %s%% <--| %s THIS %s |--> %s%% -> %s NEXT",
				layers[i-1].Name(i-1), round2(percLast),
				layers[i].Name(i), layers[i].Name(i),
				round2(percNext), layers[i+1].Name(i+1)))
		}

		if percNext > 0 && math.Abs(percNext) > opt.Threshold && opt.CapLayerCount > 0 {
			// this layer is larger than the next one
			parts.assign(i, Cap)
			propagate(i)
			if i >= n-2 {
				parts.assign(i+1, Cap)
			} else {
				parts.assign(i+1, Regular)
				continue
			}
		}

		if i >= n-2 {
			if opt.CapLayerCount > 0 {
				parts.promote(i)
				parts.assign(i+1, Cap)
				propagate(i + 1)
			} else {
				parts.assign(i, Regular)
				parts.assign(i+1, Regular)
			}
			continue
		}

		if percLast > 0 && math.Abs(percLast) > opt.Threshold {
			// this layer is larger than the last one
			parts.assign(i, Overhang)
		} else {
			parts.assign(i, Regular)
		}
	}

	return collect(layers, parts, debug)
}

func collect(layers []Layer, parts *partitions, debug []string) *Result {
	res := &Result{
		Roles: make([]Role, len(layers)),
		Outer: map[Role][]Group{},
		Inner: map[Role][]Group{},
		Debug: debug,
	}

	for _, r := range Roles {
		res.Outer[r] = []Group{}
		res.Inner[r] = []Group{}
		for _, i := range parts.indices(r) {
			res.Roles[i] = r
			name := layers[i].Name(i)
			res.Outer[r] = append(res.Outer[r], Group{Index: i, ID: name, Boundaries: layers[i].Outer})
			res.Inner[r] = append(res.Inner[r], Group{Index: i, ID: name, Boundaries: layers[i].Inner})
		}
	}

	return res
}

func round2(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
