// Package geo converts between radar antenna coordinates, site-relative
// Cartesian coordinates and geographic coordinates.
//
// Beam propagation follows the 4/3 effective Earth radius model. Cartesian x
// points east and y north, both in meters along the Earth surface from the
// site; z is height above sea level.
package geo

import "math"

const (
	// EarthRadius is the mean Earth radius in meters.
	EarthRadius = 6371000.0
	// RefractionFactor scales EarthRadius for standard atmospheric refraction.
	RefractionFactor = 4.0 / 3.0
)

// effectiveRadius is k*Re.
const effectiveRadius = RefractionFactor * EarthRadius

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// AntennaToCartesian maps a gate at slant range r (m), azimuth az and
// elevation el (degrees) to Cartesian coordinates. z includes siteHeight.
func AntennaToCartesian(r, az, el, siteHeight float64) (x, y, z float64) {
	elr := deg2rad(el)
	h := math.Sqrt(r*r+effectiveRadius*effectiveRadius+2*r*effectiveRadius*math.Sin(elr)) - effectiveRadius
	s := effectiveRadius * math.Asin(r*math.Cos(elr)/(effectiveRadius+h))
	azr := deg2rad(az)
	return s * math.Sin(azr), s * math.Cos(azr), h + siteHeight
}

// Azimuth returns the bearing of (x, y) from the site in [0, 360).
func Azimuth(x, y float64) float64 {
	az := rad2deg(math.Atan2(x, y))
	if az < 0 {
		az += 360
	}
	return az
}

// CartesianToAntenna inverts AntennaToCartesian on the cone of fixed elevation
// el. It returns the azimuth, the slant range and the beam height above sea
// level at (x, y). Positions the beam cannot reach yield an infinite range.
func CartesianToAntenna(x, y, el, siteHeight float64) (az, r, z float64) {
	az = Azimuth(x, y)
	s := math.Hypot(x, y)
	theta := s / effectiveRadius
	elr := deg2rad(el)
	c := math.Cos(elr + theta)
	if c <= 0 {
		return az, math.Inf(1), math.Inf(1)
	}
	r = effectiveRadius * math.Sin(theta) / c
	h := math.Sqrt(r*r+effectiveRadius*effectiveRadius+2*r*effectiveRadius*math.Sin(elr)) - effectiveRadius
	return az, r, h + siteHeight
}

// CartesianXYZToAntenna finds the beam that reaches height (m above sea
// level) at (x, y). It returns the azimuth, slant range and the virtual
// elevation of that beam.
func CartesianXYZToAntenna(x, y, height, siteHeight float64) (az, r, el float64) {
	az = Azimuth(x, y)
	s := math.Hypot(x, y)
	theta := s / effectiveRadius
	rz := effectiveRadius + height - siteHeight
	horiz := rz * math.Sin(theta)
	vert := rz*math.Cos(theta) - effectiveRadius
	return az, math.Hypot(horiz, vert), rad2deg(math.Atan2(vert, horiz))
}
