package geo

import "math"

const degToRad = math.Pi / 180.0

// GeoBox is an axis-aligned bounding box over latitude/longitude, with the
// same half-open semantics as libosmscout's GeoBox: Includes treats the
// maximum edge as exclusive so adjacent, non-overlapping cells tile cleanly.
type GeoBox struct {
	MinLat, MinLon float64
	MaxLat, MaxLon float64
	valid          bool
}

// NewGeoBox builds a GeoBox from two corner coordinates, normalizing so that
// Min <= Max on both axes.
func NewGeoBox(a, b Coord) GeoBox {
	box := GeoBox{valid: true}
	if a.Lat <= b.Lat {
		box.MinLat, box.MaxLat = a.Lat, b.Lat
	} else {
		box.MinLat, box.MaxLat = b.Lat, a.Lat
	}
	if a.Lon <= b.Lon {
		box.MinLon, box.MaxLon = a.Lon, b.Lon
	} else {
		box.MinLon, box.MaxLon = b.Lon, a.Lon
	}
	return box
}

// Valid reports whether the box was constructed with at least one point
// (the zero value GeoBox{} is invalid and never intersects or includes
// anything).
func (b GeoBox) Valid() bool { return b.valid }

// Includes reports whether coord lies within the box using a half-open
// interval on both axes: [MinLat, MaxLat[ x [MinLon, MaxLon[.
func (b GeoBox) Includes(c Coord) bool {
	if !b.valid {
		return false
	}
	return c.Lat >= b.MinLat && c.Lat < b.MaxLat &&
		c.Lon >= b.MinLon && c.Lon < b.MaxLon
}

// Intersects reports whether b and other share any area, treating the
// maximum edges as exclusive the same way Includes does.
func (b GeoBox) Intersects(other GeoBox) bool {
	if !b.valid || !other.valid {
		return false
	}
	return b.MinLat < other.MaxLat && other.MinLat < b.MaxLat &&
		b.MinLon < other.MaxLon && other.MinLon < b.MaxLon
}

// Width/Height return the box's extent in degrees.
func (b GeoBox) Width() float64  { return b.MaxLon - b.MinLon }
func (b GeoBox) Height() float64 { return b.MaxLat - b.MinLat }

// Merge returns the smallest GeoBox covering both b and other.
func (b GeoBox) Merge(other GeoBox) GeoBox {
	if !b.valid {
		return other
	}
	if !other.valid {
		return b
	}
	out := GeoBox{valid: true}
	out.MinLat = minF(b.MinLat, other.MinLat)
	out.MinLon = minF(b.MinLon, other.MinLon)
	out.MaxLat = maxF(b.MaxLat, other.MaxLat)
	out.MaxLon = maxF(b.MaxLon, other.MaxLon)
	return out
}

// BoxByCenterAndRadius builds a GeoBox approximating a circle of the given
// radius (meters) around center, using the same equirectangular
// approximation as libosmscout's GeoBox::BoxByCenterAndRadius.
func BoxByCenterAndRadius(center Coord, radiusMeters float64) GeoBox {
	const metersPerDegreeLat = 111320.0
	latDelta := radiusMeters / metersPerDegreeLat
	lonScale := math.Cos(center.Lat * degToRad)
	if lonScale < 0.000001 {
		lonScale = 0.000001
	}
	lonDelta := radiusMeters / (metersPerDegreeLat * lonScale)

	return NewGeoBox(
		Coord{Lat: center.Lat - latDelta, Lon: center.Lon - lonDelta},
		Coord{Lat: center.Lat + latDelta, Lon: center.Lon + lonDelta},
	)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
