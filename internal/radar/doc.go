// Package radar models a decoded weather-radar volume scan independent of the
// vendor file layout it came from.
//
// # Units
//
// Ranges, heights and Cartesian coordinates are meters. Angles are degrees,
// azimuth clockwise from north in [0, 360). Frequency is GHz. Nyquist velocity
// is m/s. Times are UTC.
//
// # Missing values
//
// Gates that carry no valid measurement hold NaN. Use [IsMissing] rather than
// comparing against [Missing] because NaN never compares equal.
//
// # Sweep boundaries
//
// Decoders tag every radial with a [Status]. A radial with the start flag opens
// a sweep, one with the end flag closes it, and a radial carrying both flags is
// a one-ray sweep. Vendor status codes map as:
//
//	0, 3  sweep start (3 also marks the first sweep of a volume)
//	1     mid-sweep
//	2, 4  sweep end (4 also marks the last sweep of a volume)
//
// Sweeps index into the volume-wide radial arrays with inclusive
// [Sweep.StartRay] and [Sweep.EndRay]; together they partition every radial.
//
// # Moments
//
// Moment arrays are keyed by the closed [MomentKind] enum. Vendor moment codes
// with no known meaning decode to [MomentIgnored] and keep their raw code so
// callers can still see them; they are not carried into [Volume.Fields].
//
// # Products
//
// A [Volume] lazily computes gridded products (composite reflectivity "CR",
// constant-altitude slices "CAPPI_<height>") and memoizes them per grid axes and
// height. Concurrent requests for the same key share one computation.
package radar
