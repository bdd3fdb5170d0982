package surface

import (
	dvec3 "github.com/flywave/go3d/float64/vec3"
)

// quadric is the symmetric 4x4 error matrix of a set of planes, stored as its
// upper triangle: a2 ab ac ad b2 bc bd c2 cd d2.
type quadric [10]float64

// planeQuadric returns the quadric of the plane n.p + d = 0 scaled by w.
// n must be unit length.
func planeQuadric(n dvec3.T, d, w float64) quadric {
	a, b, c := n[0], n[1], n[2]
	return quadric{
		w * a * a, w * a * b, w * a * c, w * a * d,
		w * b * b, w * b * c, w * b * d,
		w * c * c, w * c * d,
		w * d * d,
	}
}

func (q *quadric) add(o *quadric) {
	for i := range q {
		q[i] += o[i]
	}
}

// eval returns the summed squared distance of p to the planes in q.
func (q *quadric) eval(p dvec3.T) float64 {
	x, y, z := p[0], p[1], p[2]
	v := q[0]*x*x + 2*q[1]*x*y + 2*q[2]*x*z + 2*q[3]*x +
		q[4]*y*y + 2*q[5]*y*z + 2*q[6]*y +
		q[7]*z*z + 2*q[8]*z +
		q[9]
	if v < 0 {
		return 0
	}
	return v
}

// triangleNormal returns the non-normalized normal of (a, b, c).
func triangleNormal(a, b, c *dvec3.T) dvec3.T {
	e1 := dvec3.Sub(b, a)
	e2 := dvec3.Sub(c, a)
	return dvec3.Cross(&e1, &e2)
}
