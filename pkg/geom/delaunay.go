package geom

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

type delaunayTriangle struct {
	a, b, c int
	// circumcircle in local coordinates
	cx, cy, r2 float64
}

type delaunayEdge struct {
	a, b int
}

// Delaunay triangulates an unstructured point cloud by incremental
// Bowyer-Watson insertion over the x/y plane, sweeping the points in x order.
// Vertices are kept in input order; triangles are counter-clockwise in x/y.
// Duplicate x/y positions are left unreferenced.
//
// Each insertion scans the triangles whose circumcircle still reaches the
// sweep line, roughly sqrt(n) of them for an evenly spread cloud. There is no
// point location structure, so clouds of well over 10^5 points get slow.
func Delaunay(points []Vertex) (*Mesh, error) {
	if len(points) < 3 {
		return nil, &GeometryError{Op: "delaunay", Reason: fmt.Sprintf("need at least 3 points, got %d", len(points))}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.X())
		minY = math.Min(minY, p.Y())
		maxX = math.Max(maxX, p.X())
		maxY = math.Max(maxY, p.Y())
	}
	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		return nil, &GeometryError{Op: "delaunay", Reason: "all points share one position"}
	}

	// Local coordinates keep the circumcircle tests well conditioned for
	// projected coordinates in the millions.
	n := len(points)
	xs := make([]float64, n+3)
	ys := make([]float64, n+3)
	for i, p := range points {
		xs[i] = p.X() - minX
		ys[i] = p.Y() - minY
	}

	// Super triangle enclosing every point.
	mid := span / 2
	big := span * 64
	xs[n], ys[n] = mid-big, mid-big
	xs[n+1], ys[n+1] = mid+big, mid-big
	xs[n+2], ys[n+2] = mid, mid+big

	newTriangle := func(a, b, c int) delaunayTriangle {
		if orient(xs, ys, a, b, c) < 0 {
			b, c = c, b
		}
		t := delaunayTriangle{a: a, b: b, c: c}
		t.cx, t.cy, t.r2 = circumcircle(xs[a], ys[a], xs[b], ys[b], xs[c], ys[c])
		return t
	}

	// Points are inserted in x order. A triangle whose circumcircle lies
	// entirely left of the sweep can no longer be disturbed and is retired,
	// so each insertion only scans the active front.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := cmp.Compare(xs[a], xs[b]); c != 0 {
			return c
		}
		return cmp.Compare(ys[a], ys[b])
	})

	triangles := []delaunayTriangle{newTriangle(n, n+1, n+2)}
	var retired []delaunayTriangle
	seen := make(map[[2]float64]struct{}, n)
	edgeCount := make(map[delaunayEdge]int)
	var bad []delaunayTriangle
	var edgeOrder []delaunayEdge

	for _, i := range order {
		key := [2]float64{xs[i], ys[i]}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		px, py := xs[i], ys[i]
		bad = bad[:0]
		kept := triangles[:0]
		for _, t := range triangles {
			dx, dy := px-t.cx, py-t.cy
			switch {
			case dx*dx+dy*dy <= t.r2*(1+1e-12):
				bad = append(bad, t)
			case dx > 0 && dx*dx > t.r2*(1+1e-12):
				retired = append(retired, t)
			default:
				kept = append(kept, t)
			}
		}
		triangles = kept

		// Boundary of the cavity: edges used by exactly one bad triangle.
		clear(edgeCount)
		edgeOrder = edgeOrder[:0]
		for _, t := range bad {
			for _, e := range [3]delaunayEdge{{t.a, t.b}, {t.b, t.c}, {t.c, t.a}} {
				k := e
				if k.a > k.b {
					k.a, k.b = k.b, k.a
				}
				if edgeCount[k] == 0 {
					edgeOrder = append(edgeOrder, e)
				}
				edgeCount[k]++
			}
		}

		for _, e := range edgeOrder {
			k := e
			if k.a > k.b {
				k.a, k.b = k.b, k.a
			}
			if edgeCount[k] != 1 {
				continue
			}
			if orient(xs, ys, e.a, e.b, i) == 0 {
				continue
			}
			triangles = append(triangles, newTriangle(e.a, e.b, i))
		}
	}
	triangles = append(retired, triangles...)

	indices := make([]uint32, 0, len(triangles)*3)
	for _, t := range triangles {
		if t.a >= n || t.b >= n || t.c >= n {
			continue
		}
		indices = append(indices, uint32(t.a), uint32(t.b), uint32(t.c))
	}
	if len(indices) == 0 {
		return nil, &GeometryError{Op: "delaunay", Reason: "points are collinear"}
	}

	vertices := make([]Vertex, n)
	copy(vertices, points)
	return &Mesh{Vertices: vertices, Indices: indices}, nil
}

// orient returns the signed doubled area of (a, b, c); positive is counter-clockwise.
func orient(xs, ys []float64, a, b, c int) float64 {
	return (xs[b]-xs[a])*(ys[c]-ys[a]) - (ys[b]-ys[a])*(xs[c]-xs[a])
}

func circumcircle(ax, ay, bx, by, cx, cy float64) (float64, float64, float64) {
	d := 2 * (ax*(by-cy) + bx*(cy-ay) + cx*(ay-by))
	if d == 0 {
		return 0, 0, math.Inf(1)
	}
	a2 := ax*ax + ay*ay
	b2 := bx*bx + by*by
	c2 := cx*cx + cy*cy
	ux := (a2*(by-cy) + b2*(cy-ay) + c2*(ay-by)) / d
	uy := (a2*(cx-bx) + b2*(ax-cx) + c2*(bx-ax)) / d
	dx, dy := ax-ux, ay-uy
	return ux, uy, dx*dx + dy*dy
}
