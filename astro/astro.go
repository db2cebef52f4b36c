// Package astro provides the coordinate service the pipeline depends on:
// transforms between horizontal and equatorial frames at a fixed ground
// station, and apparent positions of solar-system bodies.
//
// The implementation uses standard low-precision algorithms (no nutation,
// aberration or refraction), which is sufficient for observation metadata.
package astro

import (
	"math"
	"time"
)

// Site locates the ground station.
type Site struct {
	LongitudeDeg float64
	LatitudeDeg  float64
	ElevationM   float64
}

// Equatorial is a position in the equatorial frame, degrees.
type Equatorial struct {
	RA  float64
	Dec float64
}

// Horizontal is a position in the horizontal frame, degrees. Azimuth is
// measured from north through east.
type Horizontal struct {
	Az float64
	El float64
}

// Zenith is the fixed local zenith pointing.
var Zenith = Horizontal{Az: 0, El: 90}

// Service converts between frames and resolves solar-system bodies. All
// operations are pure; implementations must be side-effect free.
type Service interface {
	ToEquatorial(h Horizontal, at time.Time) Equatorial
	ToHorizontal(e Equatorial, at time.Time) Horizontal
	BodyCoordinates(name string, at time.Time) (Equatorial, error)
}

// Ephemeris is the builtin Service implementation for a fixed site.
type Ephemeris struct {
	site Site
}

// New returns an ephemeris service anchored at the given site.
func New(site Site) *Ephemeris {
	return &Ephemeris{site: site}
}

// Site returns the ground station the service is anchored at.
func (e *Ephemeris) Site() Site { return e.site }

const degToRad = math.Pi / 180

func normDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// julianDay converts an instant to the Julian day number.
func julianDay(t time.Time) float64 {
	return float64(t.UTC().UnixMilli())/86400000.0 + 2440587.5
}

// localSiderealDeg returns the local sidereal time in degrees.
func (e *Ephemeris) localSiderealDeg(t time.Time) float64 {
	jd := julianDay(t)
	gmst := 280.46061837 + 360.98564736629*(jd-2451545.0)
	return normDegrees(gmst + e.site.LongitudeDeg)
}

// ToHorizontal converts equatorial to horizontal coordinates at the site.
func (e *Ephemeris) ToHorizontal(eq Equatorial, at time.Time) Horizontal {
	lst := e.localSiderealDeg(at)
	ha := (lst - eq.RA) * degToRad
	dec := eq.Dec * degToRad
	lat := e.site.LatitudeDeg * degToRad

	x := math.Cos(ha) * math.Cos(dec)
	y := math.Sin(ha) * math.Cos(dec)
	z := math.Sin(dec)

	xhor := x*math.Sin(lat) - z*math.Cos(lat)
	yhor := y
	zhor := x*math.Cos(lat) + z*math.Sin(lat)

	az := normDegrees(math.Atan2(yhor, xhor)/degToRad + 180)
	el := math.Asin(zhor) / degToRad
	return Horizontal{Az: az, El: el}
}

// ToEquatorial converts horizontal to equatorial coordinates at the site.
func (e *Ephemeris) ToEquatorial(h Horizontal, at time.Time) Equatorial {
	lst := e.localSiderealDeg(at)
	az := (h.Az - 180) * degToRad
	el := h.El * degToRad
	lat := e.site.LatitudeDeg * degToRad

	xhor := math.Cos(az) * math.Cos(el)
	yhor := math.Sin(az) * math.Cos(el)
	zhor := math.Sin(el)

	x := xhor*math.Sin(lat) + zhor*math.Cos(lat)
	y := yhor
	z := -xhor*math.Cos(lat) + zhor*math.Sin(lat)

	ha := math.Atan2(y, x) / degToRad
	dec := math.Asin(z) / degToRad
	return Equatorial{RA: normDegrees(lst - ha), Dec: dec}
}
