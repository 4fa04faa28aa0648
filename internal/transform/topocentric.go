package transform

import "math"

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

const (
	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi

	// minRangeM is the shortest slant range with resolvable look angles.
	// Frame rotations leave nanometre residue on coincident points.
	minRangeM = 1e-3
)

// Site is a ground observer in both geodetic and ECEF form. The ECEF vector is
// computed once and reused for every satellite in a request.
type Site struct {
	LatRad, LngRad, AltM float64
	ECEF                 PositionECEF // meters, zero velocity
}

// LookAngles holds azimuth, elevation, and range from observer to satellite.
// For a satellite coincident with the site (closer than a millimetre), range
// is 0 and both angles are NaN.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeKm      float64
}

// Degenerate reports whether the angles could not be resolved: a zero or
// non-finite range, or a non-finite elevation.
func (la LookAngles) Degenerate() bool {
	return !isFinite(la.RangeKm) || la.RangeKm <= 0 || !isFinite(la.ElevationDeg)
}

// NewSite creates a Site from latitude and longitude in degrees and altitude
// in meters above the WGS-84 ellipsoid.
func NewSite(latDeg, lngDeg, altM float64) Site {
	lat := latDeg * degToRad
	lng := lngDeg * degToRad

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Radius of curvature in the prime vertical.
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Site{
		LatRad: lat,
		LngRad: lng,
		AltM:   altM,
		ECEF: PositionECEF{
			X: (N + altM) * cosLat * math.Cos(lng),
			Y: (N + altM) * cosLat * math.Sin(lng),
			Z: (N*(1-wgs84E2) + altM) * sinLat,
		},
	}
}

// Geodetic is a WGS-84 position.
type Geodetic struct {
	LatDeg float64 // [-90, 90]
	LngDeg float64 // (-180, 180]
	AltKm  float64 // above the ellipsoid
}

// ECEFToGeodetic converts an ECEF position (meters) to geodetic coordinates
// using Bowring's iteration, which converges in 2-3 steps for orbital radii.
func ECEFToGeodetic(pos PositionECEF) Geodetic {
	x, y, z := pos.X, pos.Y, pos.Z
	lng := math.Atan2(y, x)
	p := math.Sqrt(x*x + y*y)

	lat := math.Atan2(z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*N*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - N
	} else {
		// Near the poles p/cos(lat) is unstable.
		alt = math.Abs(z)/math.Abs(sinLat) - N*(1-wgs84E2)
	}

	return Geodetic{
		LatDeg: lat * radToDeg,
		LngDeg: lng * radToDeg,
		AltKm:  alt / 1000.0,
	}
}

// ECEFToLookAngles computes azimuth, elevation, and range from site to a
// satellite ECEF position, via the SEZ (South-East-Zenith) rotation of
// Vallado Section 4.4.
func ECEFToLookAngles(site Site, sat PositionECEF) LookAngles {
	rx := sat.X - site.ECEF.X
	ry := sat.Y - site.ECEF.Y
	rz := sat.Z - site.ECEF.Z

	sinLat := math.Sin(site.LatRad)
	cosLat := math.Cos(site.LatRad)
	sinLng := math.Sin(site.LngRad)
	cosLng := math.Cos(site.LngRad)

	south := sinLat*cosLng*rx + sinLat*sinLng*ry - cosLat*rz
	east := -sinLng*rx + cosLng*ry
	zenith := cosLat*cosLng*rx + cosLat*sinLng*ry + sinLat*rz

	rangeM := math.Sqrt(south*south + east*east + zenith*zenith)
	if rangeM < minRangeM {
		return LookAngles{AzimuthDeg: math.NaN(), ElevationDeg: math.NaN(), RangeKm: 0}
	}

	// Clamp guards asin against rounding just past ±1.
	el := math.Asin(math.Max(-1, math.Min(1, zenith/rangeM)))

	// North is -South, so az = atan2(east, -south).
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthDeg:   az * radToDeg,
		ElevationDeg: el * radToDeg,
		RangeKm:      rangeM / 1000.0,
	}
}
