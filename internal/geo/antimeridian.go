package geo

import "math"

// SplitAntimeridian returns the segment a-b as one or two pieces that never
// jump across ±180°. A segment whose endpoints are more than 180° apart in
// longitude is taken to cross the antimeridian and is cut there, with the
// crossing latitude interpolated linearly.
func SplitAntimeridian(a, b LatLon) [][2]LatLon {
	if math.Abs(a.Lon-b.Lon) <= 180 {
		return [][2]LatLon{{a, b}}
	}

	edgeA, edgeB := 180.0, -180.0
	bLon := b.Lon + 360
	if a.Lon < 0 {
		edgeA, edgeB = -180, 180
		bLon = b.Lon - 360
	}
	t := (edgeA - a.Lon) / (bLon - a.Lon)
	lat := a.Lat + t*(b.Lat-a.Lat)

	return [][2]LatLon{
		{a, {Lat: lat, Lon: edgeA}},
		{{Lat: lat, Lon: edgeB}, b},
	}
}
