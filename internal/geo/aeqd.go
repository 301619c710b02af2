package geo

import (
	"math"

	gogeo "github.com/kellydunn/golang-geo"
)

// CartesianToGeographic projects site-relative (x, y) meters to longitude and
// latitude with an azimuthal equidistant projection centred on (lon0, lat0).
func CartesianToGeographic(x, y []float64, lon0, lat0 float64) (lon, lat []float64) {
	center := gogeo.NewPoint(lat0, lon0)
	lon = make([]float64, len(x))
	lat = make([]float64, len(x))
	for i := range x {
		dist := math.Hypot(x[i], y[i])
		if dist == 0 {
			lon[i], lat[i] = lon0, lat0
			continue
		}
		p := center.PointAtDistanceAndBearing(dist/1000, Azimuth(x[i], y[i]))
		lon[i], lat[i] = p.Lng(), p.Lat()
	}
	return lon, lat
}

// GeographicToCartesian is the inverse of CartesianToGeographic.
func GeographicToCartesian(lon, lat []float64, lon0, lat0 float64) (x, y []float64) {
	center := gogeo.NewPoint(lat0, lon0)
	x = make([]float64, len(lon))
	y = make([]float64, len(lon))
	for i := range lon {
		p := gogeo.NewPoint(lat[i], lon[i])
		dist := center.GreatCircleDistance(p) * 1000
		if dist == 0 {
			continue
		}
		b := deg2rad(center.BearingTo(p))
		x[i], y[i] = dist*math.Sin(b), dist*math.Cos(b)
	}
	return x, y
}
