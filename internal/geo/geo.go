// Package geo provides the geometric primitives the collaboration core
// depends on: polygon ring validation, geodesic surface area, and
// bounding-box intersection tests.
//
// All functions here are pure computation over WGS84 latitude/longitude
// coordinates. Rings are ordered vertex sequences; closure is implicit
// (the first vertex does not need to be repeated at the end).
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrTooFewPoints is returned when a ring has fewer than three vertices
var ErrTooFewPoints = errors.New("polygon requires at least three points")

// ErrNotSimple is returned when a ring does not form a simple polygon
// (self-intersecting edges or repeated vertices)
var ErrNotSimple = errors.New("polygon is not simple")

// authalicRadiusKm is the WGS84 authalic ("equal area") earth radius.
// Using it in the spherical excess formula keeps computed areas within
// a small fraction of a percent of the true ellipsoidal value.
const authalicRadiusKm = 6371.0072

// Point is a single vertex in (latitude, longitude) order.
// The wire representation is a two-element JSON array [lat, lng],
// matching the client protocol.
type Point struct {
	Lat float64
	Lng float64
}

// MarshalJSON encodes the point as [lat, lng]
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lat, p.Lng})
}

// UnmarshalJSON decodes a [lat, lng] pair, rejecting any other arity
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("point must be a [lat, lng] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("point must be a [lat, lng] pair, got %d elements", len(pair))
	}
	p.Lat = pair[0]
	p.Lng = pair[1]
	return nil
}

// Ring is an ordered vertex sequence defining a closed polygon boundary
type Ring []Point

// Clone returns an independent copy of the ring
// Callers that hand rings across goroutine boundaries must copy first
func (r Ring) Clone() Ring {
	if r == nil {
		return nil
	}
	out := make(Ring, len(r))
	copy(out, r)
	return out
}

// ValidateRing checks that the ring forms a valid simple polygon.
// Returns ErrTooFewPoints for rings with fewer than three vertices, or
// ErrNotSimple (wrapped with a diagnostic) for repeated vertices and
// self-intersecting boundaries. A nil error means the ring is usable
// for storage and area computation.
func ValidateRing(ring Ring) error {
	n := len(ring)
	if n < 3 {
		return ErrTooFewPoints
	}

	// Repeated consecutive vertices produce zero-length edges that break
	// the intersection scan, so reject them up front.
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		if ring[i] == ring[j] {
			return fmt.Errorf("%w: repeated vertex at index %d", ErrNotSimple, i)
		}
	}

	// Pairwise edge intersection scan. Edges sharing a vertex are allowed
	// to touch at that vertex only; any other contact makes the boundary
	// self-intersecting. O(n^2) is fine at the ring sizes drawn by hand.
	for i := 0; i < n; i++ {
		a1, a2 := ring[i], ring[(i+1)%n]
		for j := i + 1; j < n; j++ {
			if adjacentEdges(i, j, n) {
				continue
			}
			b1, b2 := ring[j], ring[(j+1)%n]
			if segmentsIntersect(a1, a2, b1, b2) {
				return fmt.Errorf("%w: edge %d intersects edge %d", ErrNotSimple, i, j)
			}
		}
	}
	return nil
}

// adjacentEdges reports whether edges i and j of an n-vertex ring share
// an endpoint (consecutive edges, including the closing wrap-around)
func adjacentEdges(i, j, n int) bool {
	return j == i+1 || (i == 0 && j == n-1)
}

// Area computes the unsigned geodesic surface area of the ring in square
// kilometers using the spherical excess formula (Chamberlain & Duquette)
// on the authalic earth radius. Deterministic for a given ring; callers
// validate the ring first.
func Area(ring Ring) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}
	// The formula works in (lng, lat) order, radians.
	total := 0.0
	for i := 0; i < n; i++ {
		p1 := ring[i]
		p2 := ring[(i+1)%n]
		lng1 := p1.Lng * math.Pi / 180
		lng2 := p2.Lng * math.Pi / 180
		lat1 := p1.Lat * math.Pi / 180
		lat2 := p2.Lat * math.Pi / 180
		total += (lng2 - lng1) * (2 + math.Sin(lat1) + math.Sin(lat2))
	}
	return math.Abs(total) * authalicRadiusKm * authalicRadiusKm / 2
}

// BBox is an axis-aligned query rectangle spanning latitude South→North
// and longitude West→East
type BBox struct {
	North float64
	South float64
	East  float64
	West  float64
}

// contains reports whether the point lies inside or on the rectangle
func (b BBox) contains(p Point) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lng >= b.West && p.Lng <= b.East
}

// corners returns the four rectangle corners as points
func (b BBox) corners() [4]Point {
	return [4]Point{
		{Lat: b.South, Lng: b.West},
		{Lat: b.South, Lng: b.East},
		{Lat: b.North, Lng: b.East},
		{Lat: b.North, Lng: b.West},
	}
}

// IntersectsBBox reports whether the ring's polygon intersects the
// rectangle. Intersection is evaluated on the flat lat/lng plane:
// a ring vertex inside the box, a box corner inside the polygon, or any
// ring edge crossing a box edge all count. Containment either way is
// therefore covered without a separate test.
func IntersectsBBox(ring Ring, b BBox) bool {
	if len(ring) < 3 {
		return false
	}
	for _, p := range ring {
		if b.contains(p) {
			return true
		}
	}
	for _, c := range b.corners() {
		if PointInRing(c, ring) {
			return true
		}
	}
	cs := b.corners()
	for i := 0; i < len(ring); i++ {
		a1, a2 := ring[i], ring[(i+1)%len(ring)]
		for j := 0; j < 4; j++ {
			if segmentsIntersect(a1, a2, cs[j], cs[(j+1)%4]) {
				return true
			}
		}
	}
	return false
}

// PointInRing reports whether the point lies inside the ring using the
// even-odd ray casting rule. Points exactly on the boundary may land on
// either side; callers needing boundary hits combine this with the edge
// crossing tests above.
func PointInRing(pt Point, ring Ring) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	x, y := pt.Lng, pt.Lat
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lng, ring[i].Lat
		xj, yj := ring[j].Lng, ring[j].Lat
		if ((yi > y) != (yj > y)) && (x < (xj-xi)*(y-yi)/(yj-yi)+xi) {
			inside = !inside
		}
	}
	return inside
}

// orientation classifies the turn a→b→c: 0 collinear, 1 clockwise,
// 2 counter-clockwise
func orientation(a, b, c Point) int {
	v := (b.Lat-a.Lat)*(c.Lng-b.Lng) - (b.Lng-a.Lng)*(c.Lat-b.Lat)
	switch {
	case v > 0:
		return 1
	case v < 0:
		return 2
	default:
		return 0
	}
}

// onSegment reports whether collinear point p lies on segment a-b
func onSegment(a, p, b Point) bool {
	return p.Lng >= math.Min(a.Lng, b.Lng) && p.Lng <= math.Max(a.Lng, b.Lng) &&
		p.Lat >= math.Min(a.Lat, b.Lat) && p.Lat <= math.Max(a.Lat, b.Lat)
}

// segmentsIntersect reports whether segments p1-p2 and q1-q2 intersect,
// including collinear overlap and endpoint touches
func segmentsIntersect(p1, p2, q1, q2 Point) bool {
	o1 := orientation(p1, p2, q1)
	o2 := orientation(p1, p2, q2)
	o3 := orientation(q1, q2, p1)
	o4 := orientation(q1, q2, p2)

	if o1 != o2 && o3 != o4 {
		return true
	}
	if o1 == 0 && onSegment(p1, q1, p2) {
		return true
	}
	if o2 == 0 && onSegment(p1, q2, p2) {
		return true
	}
	if o3 == 0 && onSegment(q1, p1, q2) {
		return true
	}
	if o4 == 0 && onSegment(q1, p2, q2) {
		return true
	}
	return false
}
