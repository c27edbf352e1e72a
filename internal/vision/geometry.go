package vision

import "math"

// Point is a pixel coordinate in the camera frame.
type Point struct {
	X float64
	Y float64
}

// Quad is the four corners of a detected square region, in detection order.
type Quad [4]Point

// Centroid returns the mean of the four corners.
func (q Quad) Centroid() Point {
	var c Point
	for _, p := range q {
		c.X += p.X
		c.Y += p.Y
	}
	c.X /= 4
	c.Y /= 4
	return c
}

// Confidence is a regularity heuristic for a detected square: the ratio of
// the shortest edge to the longest edge. A perfectly square detection scores
// 1.0; skew, occlusion or partial detection push it towards 0.
func (q Quad) Confidence() float64 {
	minEdge := math.Inf(1)
	maxEdge := 0.0
	for i := range q {
		next := q[(i+1)%4]
		edge := math.Hypot(next.X-q[i].X, next.Y-q[i].Y)
		minEdge = math.Min(minEdge, edge)
		maxEdge = math.Max(maxEdge, edge)
	}
	if maxEdge == 0 {
		return 0
	}
	return minEdge / maxEdge
}

// Extent returns the smaller dimension of the quad's axis-aligned bounding
// box. Used to rank competing decodes of the same code region.
func (q Quad) Extent() float64 {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range q {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return math.Min(maxX-minX, maxY-minY)
}
