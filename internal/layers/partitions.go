package layers

import "sort"

type Role int

const (
	Floor Role = iota
	Regular
	Overhang
	Cap
)

var Roles = []Role{Floor, Regular, Overhang, Cap}

func (r Role) String() string {
	switch r {
	case Floor:
		return "floor"
	case Regular:
		return "regular"
	case Overhang:
		return "overhang"
	case Cap:
		return "cap"
	}
	return "unknown"
}

// partitions holds one set of layer indices per role. A layer index is in
// at most one set at a time.
type partitions [4]map[int]struct{}

func newPartitions() *partitions {
	var p partitions
	for i := range p {
		p[i] = map[int]struct{}{}
	}
	return &p
}

// assign moves layer i into role r, dropping it from every other set.
func (p *partitions) assign(i int, r Role) {
	for j := range p {
		delete(p[j], i)
	}
	p[r][i] = struct{}{}
}

// promote moves layer i to Cap unless it is a floor layer.
func (p *partitions) promote(i int) {
	if p.has(i, Floor) {
		return
	}
	p.assign(i, Cap)
}

func (p *partitions) has(i int, r Role) bool {
	_, ok := p[r][i]
	return ok
}

func (p *partitions) role(i int) (Role, bool) {
	for _, r := range Roles {
		if p.has(i, r) {
			return r, true
		}
	}
	return 0, false
}

func (p *partitions) indices(r Role) []int {
	idx := make([]int, 0, len(p[r]))
	for i := range p[r] {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}
