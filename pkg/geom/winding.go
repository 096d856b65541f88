package geom

import "github.com/paulmach/orb"

// SignedArea returns Σ (x[i+1]-x[i])·(y[i+1]+y[i]) over the cyclic ring.
// The sum is twice the area, positive for clockwise rings in a y-up plane.
func SignedArea(ring orb.Ring) float64 {
	n := len(ring)
	var sum float64
	for i, v1 := range ring {
		v2 := ring[(i+1)%n]
		sum += (v2[0] - v1[0]) * (v2[1] + v1[1])
	}
	return sum
}

// IsClockwise reports whether ring winds clockwise. Degenerate rings have a
// signed area of exactly zero and are classified counterclockwise.
func IsClockwise(ring orb.Ring) bool {
	return SignedArea(ring) > 0
}
