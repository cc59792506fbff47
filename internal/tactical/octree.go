package tactical

import "sort"

// octreeEntry is one id/position pair stored in a leaf.
type octreeEntry struct {
	id  string
	pos Vec3
}

type octreeNode struct {
	bounds   AABB
	depth    int
	children []*octreeNode // nil for a leaf, length 8 otherwise
	entries  []octreeEntry // leaf payload
}

// Octree maps combatant ids to positions and answers radius, k-nearest and
// ray queries against them. Every live id appears in exactly one leaf at its
// last-set (world-clamped) position. A leaf subdivides when its entry count
// exceeds splitAt and its depth is below maxDepth.
type Octree struct {
	root        *octreeNode
	positions   map[string]Vec3
	maxDepth    int
	splitAt     int
	entryRadius float64 // bounding-sphere radius used by ray queries
	nodeCount   int
}

// OctreeStats is a point-in-time summary of the tree shape.
type OctreeStats struct {
	Nodes          int
	Entities       int
	MaxDepth       int
	AvgPerLeaf     float64
	PopulatedLeafs int
}

// NewOctree builds an empty index over a cube of edge worldSize centered at
// the origin.
func NewOctree(worldSize float64, maxDepth, splitAt int, entryRadius float64) *Octree {
	half := worldSize / 2
	if maxDepth < 1 {
		maxDepth = 1
	}
	if splitAt < 1 {
		splitAt = 1
	}
	return &Octree{
		root: &octreeNode{
			bounds: AABB{Min: Vec3{-half, -half, -half}, Max: Vec3{half, half, half}},
		},
		positions:   make(map[string]Vec3),
		maxDepth:    maxDepth,
		splitAt:     splitAt,
		entryRadius: entryRadius,
		nodeCount:   1,
	}
}

// Len returns the number of mapped ids.
func (o *Octree) Len() int { return len(o.positions) }

// InsertOrUpdate maps id to pos. Positions outside the world volume are
// clamped onto it so the leaf invariant holds for every id.
func (o *Octree) InsertOrUpdate(id string, pos Vec3) {
	if !pos.IsFinite() {
		return
	}
	pos = o.root.bounds.ClosestPoint(pos)
	if old, ok := o.positions[id]; ok {
		if old == pos {
			return
		}
		o.removeFromLeaf(id, old)
	}
	o.positions[id] = pos
	o.insert(o.root, octreeEntry{id: id, pos: pos})
}

// Remove unmaps id. Subsequent queries never return it.
func (o *Octree) Remove(id string) {
	pos, ok := o.positions[id]
	if !ok {
		return
	}
	delete(o.positions, id)
	o.removeFromLeaf(id, pos)
}

// Contains reports whether id is currently mapped.
func (o *Octree) Contains(id string) bool {
	_, ok := o.positions[id]
	return ok
}

// PositionOf returns the last-set (clamped) position for id.
func (o *Octree) PositionOf(id string) (Vec3, bool) {
	p, ok := o.positions[id]
	return p, ok
}

func (o *Octree) insert(n *octreeNode, e octreeEntry) {
	for n.children != nil {
		n = n.children[childIndex(n.bounds, e.pos)]
	}
	n.entries = append(n.entries, e)
	if len(n.entries) > o.splitAt && n.depth < o.maxDepth {
		o.split(n)
	}
}

func (o *Octree) split(n *octreeNode) {
	c := n.bounds.Center()
	n.children = make([]*octreeNode, 8)
	for i := 0; i < 8; i++ {
		child := AABB{Min: n.bounds.Min, Max: n.bounds.Max}
		if i&1 != 0 {
			child.Min.X = c.X
		} else {
			child.Max.X = c.X
		}
		if i&2 != 0 {
			child.Min.Y = c.Y
		} else {
			child.Max.Y = c.Y
		}
		if i&4 != 0 {
			child.Min.Z = c.Z
		} else {
			child.Max.Z = c.Z
		}
		n.children[i] = &octreeNode{bounds: child, depth: n.depth + 1}
	}
	o.nodeCount += 8
	for _, e := range n.entries {
		child := n.children[childIndex(n.bounds, e.pos)]
		child.entries = append(child.entries, e)
	}
	n.entries = nil
}

// childIndex picks the octant for pos: bit 0 = +X, bit 1 = +Y, bit 2 = +Z.
func childIndex(b AABB, pos Vec3) int {
	c := b.Center()
	idx := 0
	if pos.X >= c.X {
		idx |= 1
	}
	if pos.Y >= c.Y {
		idx |= 2
	}
	if pos.Z >= c.Z {
		idx |= 4
	}
	return idx
}

func (o *Octree) removeFromLeaf(id string, pos Vec3) {
	n := o.root
	for n.children != nil {
		n = n.children[childIndex(n.bounds, pos)]
	}
	for i, e := range n.entries {
		if e.id == id {
			n.entries[i] = n.entries[len(n.entries)-1]
			n.entries = n.entries[:len(n.entries)-1]
			return
		}
	}
}

// QueryRadius returns exactly the ids within the closed ball (center, r).
func (o *Octree) QueryRadius(center Vec3, r float64) []string {
	if r < 0 || !center.IsFinite() {
		return nil
	}
	var out []string
	rSq := r * r
	o.walkSphere(o.root, center, r, func(e octreeEntry) {
		if e.pos.DistSqTo(center) <= rSq {
			out = append(out, e.id)
		}
	})
	return out
}

// QueryNearestK returns up to k ids within maxDistance of center, sorted by
// ascending distance (id order breaks ties so results are deterministic).
func (o *Octree) QueryNearestK(center Vec3, k int, maxDistance float64) []string {
	if k <= 0 || maxDistance < 0 || !center.IsFinite() {
		return nil
	}
	type cand struct {
		id     string
		distSq float64
	}
	var cands []cand
	maxSq := maxDistance * maxDistance
	o.walkSphere(o.root, center, maxDistance, func(e octreeEntry) {
		if d := e.pos.DistSqTo(center); d <= maxSq {
			cands = append(cands, cand{e.id, d})
		}
	})
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].distSq != cands[j].distSq {
			return cands[i].distSq < cands[j].distSq
		}
		return cands[i].id < cands[j].id
	})
	if len(cands) > k {
		cands = cands[:k]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.id
	}
	return out
}

// QueryRay returns the ids whose bounding sphere (entryRadius) intersects
// the segment origin -> origin + dir*maxDistance. A degenerate direction
// yields no hits.
func (o *Octree) QueryRay(origin, dir Vec3, maxDistance float64) []string {
	unit, ok := dir.Normalized()
	if !ok || maxDistance <= 0 || !origin.IsFinite() {
		return nil
	}
	end := origin.Add(unit.Scale(maxDistance))
	rSq := o.entryRadius * o.entryRadius
	var out []string
	o.walkSegment(o.root, origin, end, func(e octreeEntry) {
		if pointToSegmentDistSq(e.pos, origin, end) <= rSq {
			out = append(out, e.id)
		}
	})
	return out
}

func (o *Octree) walkSphere(n *octreeNode, center Vec3, r float64, visit func(octreeEntry)) {
	if !n.bounds.IntersectsSphere(center, r) {
		return
	}
	if n.children == nil {
		for _, e := range n.entries {
			visit(e)
		}
		return
	}
	for _, c := range n.children {
		o.walkSphere(c, center, r, visit)
	}
}

func (o *Octree) walkSegment(n *octreeNode, a, e Vec3, visit func(octreeEntry)) {
	// Inflate the node box by the entry radius so spheres straddling a
	// boundary are not pruned.
	inflated := AABB{
		Min: n.bounds.Min.Sub(Vec3{o.entryRadius, o.entryRadius, o.entryRadius}),
		Max: n.bounds.Max.Add(Vec3{o.entryRadius, o.entryRadius, o.entryRadius}),
	}
	if !inflated.IntersectsSegment(a, e) {
		return
	}
	if n.children == nil {
		for _, en := range n.entries {
			visit(en)
		}
		return
	}
	for _, c := range n.children {
		o.walkSegment(c, a, e, visit)
	}
}

// Stats walks the tree and summarizes its shape.
func (o *Octree) Stats() OctreeStats {
	st := OctreeStats{Entities: len(o.positions), Nodes: o.nodeCount}
	leafs := 0
	entries := 0
	var walk func(n *octreeNode)
	walk = func(n *octreeNode) {
		if n.depth > st.MaxDepth {
			st.MaxDepth = n.depth
		}
		if n.children == nil {
			if len(n.entries) > 0 {
				leafs++
				entries += len(n.entries)
			}
			return
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(o.root)
	st.PopulatedLeafs = leafs
	if leafs > 0 {
		st.AvgPerLeaf = float64(entries) / float64(leafs)
	}
	return st
}
