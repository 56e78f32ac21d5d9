package mesh

import (
	"fmt"
	"math"

	"github.com/hschendel/stl"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	X = 0
	Y = 1
	Z = 2
)

// vertices closer than this are welded when matching edges
const weld = 1e-4

type Report struct {
	Triangles  int
	Closed     bool
	Components int
	Min        r3.Vec
	Max        r3.Vec
}

func (r Report) Size() r3.Vec {
	return r3.Sub(r.Max, r.Min)
}

func (r Report) String() string {
	if r.Closed {
		return "[INFO] Base Mesh is closed."
	}
	return "[INFO] Base Mesh is open and/or disjoint!"
}

func Load(path string) (*stl.Solid, error) {
	solid, err := stl.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mesh %s: %w", path, err)
	}
	return solid, nil
}

type vertexKey [3]int64

type edgeKey [2]vertexKey

func key(v stl.Vec3) vertexKey {
	return vertexKey{
		int64(math.Round(float64(v[X]) / weld)),
		int64(math.Round(float64(v[Y]) / weld)),
		int64(math.Round(float64(v[Z]) / weld)),
	}
}

func less(a, b vertexKey) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func edge(a, b vertexKey) edgeKey {
	if less(b, a) {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// Inspect measures the solid and checks that it is closed: every edge must
// be shared by exactly two triangles. An empty solid is not closed.
func Inspect(solid *stl.Solid) Report {
	rep := Report{Triangles: len(solid.Triangles)}
	if rep.Triangles == 0 {
		return rep
	}

	var min, max stl.Vec3
	min[X] = float32(math.Inf(1))
	min[Y] = float32(math.Inf(1))
	min[Z] = float32(math.Inf(1))
	max[X] = float32(math.Inf(-1))
	max[Y] = float32(math.Inf(-1))
	max[Z] = float32(math.Inf(-1))

	edges := map[edgeKey][]int{}

	for i := range solid.Triangles {
		t := solid.Triangles[i]
		for j := range t.Vertices {
			v := t.Vertices[j]
			for a := X; a <= Z; a++ {
				if v[a] < min[a] {
					min[a] = v[a]
				}
				if v[a] > max[a] {
					max[a] = v[a]
				}
			}

			e := edge(key(v), key(t.Vertices[(j+1)%3]))
			edges[e] = append(edges[e], i)
		}
	}

	rep.Min = r3.Vec{X: float64(min[X]), Y: float64(min[Y]), Z: float64(min[Z])}
	rep.Max = r3.Vec{X: float64(max[X]), Y: float64(max[Y]), Z: float64(max[Z])}

	rep.Closed = true
	parent := make([]int, rep.Triangles)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	for _, tris := range edges {
		if len(tris) != 2 {
			rep.Closed = false
		}
		for _, t := range tris[1:] {
			parent[find(t)] = find(tris[0])
		}
	}

	for i := range parent {
		if find(i) == i {
			rep.Components++
		}
	}

	return rep
}
