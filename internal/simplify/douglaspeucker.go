// Package simplify implements the Douglas-Peucker polyline reduction used
// by the low-zoom way/area optimization stages (the `optimization_way_method`
// configuration selects between original_source's
// `TransPolygon::OptimizeMethod` "quality"/"fast_douglas_peucker" choice —
// this package implements the latter; "quality" is not reproduced, see
// DESIGN.md).
package simplify

import (
	"math"

	"github.com/osmscout-go/mapimport/internal/objdata"
)

// DouglasPeucker returns a reduced copy of points, keeping only vertices
// that contribute more than epsilon (in the same units as Lat/Lon — the
// caller picks a per-magnification epsilon) of perpendicular deviation from
// the line between their neighboring kept vertices. The first and last
// points are always kept.
func DouglasPeucker(points []objdata.Point, epsilon float64) []objdata.Point {
	if len(points) < 3 {
		return points
	}
	keep := make([]bool, len(points))
	keep[0] = true
	keep[len(points)-1] = true
	reduce(points, 0, len(points)-1, epsilon, keep)

	out := make([]objdata.Point, 0, len(points))
	for i, k := range keep {
		if k {
			out = append(out, points[i])
		}
	}
	return out
}

func reduce(points []objdata.Point, lo, hi int, epsilon float64, keep []bool) {
	if hi-lo < 2 {
		return
	}
	maxDist := -1.0
	maxIdx := lo
	for i := lo + 1; i < hi; i++ {
		d := perpendicularDistance(points[i], points[lo], points[hi])
		if d > maxDist {
			maxDist = d
			maxIdx = i
		}
	}
	if maxDist <= epsilon {
		return
	}
	keep[maxIdx] = true
	reduce(points, lo, maxIdx, epsilon, keep)
	reduce(points, maxIdx, hi, epsilon, keep)
}

func perpendicularDistance(p, a, b objdata.Point) float64 {
	dx := b.Lon - a.Lon
	dy := b.Lat - a.Lat
	if dx == 0 && dy == 0 {
		return math.Hypot(p.Lon-a.Lon, p.Lat-a.Lat)
	}
	num := math.Abs(dy*p.Lon - dx*p.Lat + b.Lon*a.Lat - b.Lat*a.Lon)
	return num / math.Hypot(dx, dy)
}
