package surface

import (
	"container/heap"
	"fmt"
	"math"

	dvec3 "github.com/flywave/go3d/float64/vec3"

	"github.com/Faultbox/ifc-terrain/pkg/geom"
)

// borderWeight scales the quadrics of the planes that pin border edges.
const borderWeight = 2.0

// minNormalCos rejects collapses that rotate a surviving triangle by ~90 degrees or more.
const minNormalCos = 1e-3

// Simplify reduces the index count to round(len(indices)*factor) by
// quadric-error edge collapse. Collapses move a vertex onto one of its
// neighbours, so every surviving vertex keeps its original position; border
// vertices only slide along the border. Collapses whose accumulated error
// exceeds maxError (in mesh units) are not taken, so the target may not be
// reached. The vertex buffer is copied unchanged; run Compact afterwards.
func Simplify(mesh *geom.Mesh, factor, maxError float64) (*geom.Mesh, error) {
	if factor < 0 || factor > 1 || math.IsNaN(factor) {
		return nil, &geom.GeometryError{Op: "simplify", Reason: fmt.Sprintf("reduction factor %v not in [0, 1]", factor)}
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}

	target := int(math.Round(float64(len(mesh.Indices)) * factor))
	s := newSimplifier(mesh)
	s.run(target, maxError*maxError)

	vertices := make([]geom.Vertex, len(mesh.Vertices))
	copy(vertices, mesh.Vertices)
	return geom.NewMesh(vertices, s.indices()), nil
}

type collapse struct {
	cost           float64
	from, to       uint32
	fromVer, toVer int
}

type collapseQueue []collapse

func (q collapseQueue) Len() int      { return len(q) }
func (q collapseQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *collapseQueue) Push(x any)   { *q = append(*q, x.(collapse)) }
func (q *collapseQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Less orders by cost and breaks ties on the edge so the result does not
// depend on insertion order.
func (q collapseQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	switch {
	case a.cost != b.cost:
		return a.cost < b.cost
	case a.from != b.from:
		return a.from < b.from
	case a.to != b.to:
		return a.to < b.to
	case a.fromVer != b.fromVer:
		return a.fromVer < b.fromVer
	default:
		return a.toVer < b.toVer
	}
}

type edgeKey [2]uint32

func makeEdge(a, b uint32) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

type simplifier struct {
	pos         []dvec3.T
	quadrics    []quadric
	tris        [][3]uint32
	alive       []bool
	vertTris    [][]int
	removed     []bool
	version     []int
	border      []bool
	borderEdges map[edgeKey]struct{}
	live        int
	queue       collapseQueue
}

func newSimplifier(mesh *geom.Mesh) *simplifier {
	nv := len(mesh.Vertices)
	nt := mesh.TriangleCount()

	s := &simplifier{
		pos:         make([]dvec3.T, nv),
		quadrics:    make([]quadric, nv),
		tris:        make([][3]uint32, nt),
		alive:       make([]bool, nt),
		vertTris:    make([][]int, nv),
		removed:     make([]bool, nv),
		version:     make([]int, nv),
		border:      make([]bool, nv),
		borderEdges: make(map[edgeKey]struct{}),
	}

	// Local frame keeps quadric evaluation well conditioned for projected
	// coordinates.
	origin := mesh.Bounds().Min
	for i, v := range mesh.Vertices {
		s.pos[i] = dvec3.Sub(&v.Position, &origin)
	}

	edgeUse := make(map[edgeKey]int, nt*3/2)
	for t := range nt {
		tri := mesh.Triangle(t)
		s.tris[t] = tri
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
			continue
		}
		s.alive[t] = true
		s.live++
		for _, v := range tri {
			s.vertTris[v] = append(s.vertTris[v], t)
		}
		edgeUse[makeEdge(tri[0], tri[1])]++
		edgeUse[makeEdge(tri[1], tri[2])]++
		edgeUse[makeEdge(tri[2], tri[0])]++
	}

	for e, n := range edgeUse {
		if n != 2 {
			s.borderEdges[e] = struct{}{}
			s.border[e[0]] = true
			s.border[e[1]] = true
		}
	}

	for t := range nt {
		if !s.alive[t] {
			continue
		}
		tri := s.tris[t]
		p0, p1, p2 := &s.pos[tri[0]], &s.pos[tri[1]], &s.pos[tri[2]]
		n := triangleNormal(p0, p1, p2)
		l := n.Length()
		if l == 0 {
			continue
		}
		n.Scale(1 / l)
		q := planeQuadric(n, -dvec3.Dot(&n, p0), 1)
		for _, v := range tri {
			s.quadrics[v].add(&q)
		}

		// Planes through border edges, perpendicular to the face.
		for k := range 3 {
			a, b := tri[k], tri[(k+1)%3]
			if _, ok := s.borderEdges[makeEdge(a, b)]; !ok {
				continue
			}
			edge := dvec3.Sub(&s.pos[b], &s.pos[a])
			m := dvec3.Cross(&edge, &n)
			ml := m.Length()
			if ml == 0 {
				continue
			}
			m.Scale(1 / ml)
			bq := planeQuadric(m, -dvec3.Dot(&m, &s.pos[a]), borderWeight)
			s.quadrics[a].add(&bq)
			s.quadrics[b].add(&bq)
		}
	}

	for e := range edgeUse {
		s.push(e[0], e[1])
		s.push(e[1], e[0])
	}
	heap.Init(&s.queue)
	return s
}

// canMove reports whether from may collapse onto to.
func (s *simplifier) canMove(from, to uint32) bool {
	if !s.border[from] {
		return true
	}
	_, ok := s.borderEdges[makeEdge(from, to)]
	return ok
}

func (s *simplifier) push(from, to uint32) {
	if !s.canMove(from, to) {
		return
	}
	q := s.quadrics[from]
	q.add(&s.quadrics[to])
	s.queue = append(s.queue, collapse{
		cost:    q.eval(s.pos[to]),
		from:    from,
		to:      to,
		fromVer: s.version[from],
		toVer:   s.version[to],
	})
}

func (s *simplifier) run(targetIndices int, maxCost float64) {
	for s.live*3 > targetIndices && s.queue.Len() > 0 {
		c := heap.Pop(&s.queue).(collapse)
		if s.removed[c.from] || s.removed[c.to] ||
			s.version[c.from] != c.fromVer || s.version[c.to] != c.toVer {
			continue
		}
		if c.cost > maxCost {
			return
		}
		if !s.valid(c.from, c.to) {
			continue
		}
		s.apply(c.from, c.to)
	}
}

func (s *simplifier) neighbors(v uint32) map[uint32]struct{} {
	set := make(map[uint32]struct{}, 8)
	for _, t := range s.vertTris[v] {
		if !s.alive[t] {
			continue
		}
		for _, u := range s.tris[t] {
			if u != v {
				set[u] = struct{}{}
			}
		}
	}
	return set
}

func contains(tri [3]uint32, v uint32) bool {
	return tri[0] == v || tri[1] == v || tri[2] == v
}

// valid checks the link condition and rejects collapses that fold or
// flatten a surviving triangle.
func (s *simplifier) valid(from, to uint32) bool {
	nFrom := s.neighbors(from)
	if _, ok := nFrom[to]; !ok {
		return false
	}
	nTo := s.neighbors(to)
	shared := 0
	for u := range nFrom {
		if _, ok := nTo[u]; ok {
			shared++
		}
	}
	onEdge := 0
	for _, t := range s.vertTris[from] {
		if s.alive[t] && contains(s.tris[t], to) {
			onEdge++
		}
	}
	if shared != onEdge {
		return false
	}

	for _, t := range s.vertTris[from] {
		if !s.alive[t] {
			continue
		}
		tri := s.tris[t]
		if contains(tri, to) {
			continue
		}
		before := triangleNormal(&s.pos[tri[0]], &s.pos[tri[1]], &s.pos[tri[2]])
		for k := range tri {
			if tri[k] == from {
				tri[k] = to
			}
		}
		after := triangleNormal(&s.pos[tri[0]], &s.pos[tri[1]], &s.pos[tri[2]])
		lb, la := before.Length(), after.Length()
		if la <= 1e-12*lb || la == 0 {
			return false
		}
		if dvec3.Dot(&before, &after) < minNormalCos*lb*la {
			return false
		}
	}
	return true
}

func (s *simplifier) apply(from, to uint32) {
	fromNeighbors := s.neighbors(from)

	for _, t := range s.vertTris[from] {
		if !s.alive[t] {
			continue
		}
		if contains(s.tris[t], to) {
			s.alive[t] = false
			s.live--
			continue
		}
		for k := range s.tris[t] {
			if s.tris[t][k] == from {
				s.tris[t][k] = to
			}
		}
		s.vertTris[to] = append(s.vertTris[to], t)
	}
	s.vertTris[from] = nil

	for u := range fromNeighbors {
		key := makeEdge(from, u)
		if _, ok := s.borderEdges[key]; !ok {
			continue
		}
		delete(s.borderEdges, key)
		if u != to {
			s.borderEdges[makeEdge(to, u)] = struct{}{}
		}
	}

	s.quadrics[to].add(&s.quadrics[from])
	s.removed[from] = true
	s.version[from]++
	s.version[to]++

	for u := range s.neighbors(to) {
		heap.Push(&s.queue, s.candidate(u, to))
		heap.Push(&s.queue, s.candidate(to, u))
	}
}

// candidate builds a queue entry without the canMove filter; rejected moves
// get an infinite cost so they sink to the bottom of the queue.
func (s *simplifier) candidate(from, to uint32) collapse {
	cost := math.Inf(1)
	if s.canMove(from, to) {
		q := s.quadrics[from]
		q.add(&s.quadrics[to])
		cost = q.eval(s.pos[to])
	}
	return collapse{
		cost:    cost,
		from:    from,
		to:      to,
		fromVer: s.version[from],
		toVer:   s.version[to],
	}
}

func (s *simplifier) indices() []uint32 {
	out := make([]uint32, 0, s.live*3)
	for t, tri := range s.tris {
		if s.alive[t] {
			out = append(out, tri[0], tri[1], tri[2])
		}
	}
	return out
}
