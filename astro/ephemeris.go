package astro

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Low-precision solar-system positions after P. Schlyter's "How to
// compute planetary positions". Accuracy is on the order of arcminutes,
// which is ample for observation metadata.

type orbitalElements struct {
	n  float64 // longitude of the ascending node, deg
	i  float64 // inclination, deg
	w  float64 // argument of perihelion, deg
	a  float64 // semi-major axis, AU (Earth radii for the Moon)
	e  float64 // eccentricity
	m  float64 // mean anomaly, deg
}

// dayNumber is the time scale the element polynomials are expressed in:
// days from 2000 Jan 0.0 UT.
func dayNumber(t time.Time) float64 {
	return julianDay(t) - 2451543.5
}

func obliquityDeg(d float64) float64 {
	return 23.4393 - 3.563e-7*d
}

// BodyCoordinates resolves the apparent geocentric equatorial position of
// a named solar-system body.
func (e *Ephemeris) BodyCoordinates(name string, at time.Time) (Equatorial, error) {
	body := strings.ToLower(strings.TrimSpace(name))
	d := dayNumber(at)
	switch body {
	case "sun":
		x, y, z := sunEcliptic(d)
		return eclipticToEquatorial(x, y, z, d), nil
	case "moon":
		x, y, z := moonEcliptic(d)
		return eclipticToEquatorial(x, y, z, d), nil
	case "mercury", "venus", "mars", "jupiter", "saturn", "uranus", "neptune":
		px, py, pz := heliocentricEcliptic(planetElements(body, d))
		sx, sy, sz := sunEcliptic(d)
		return eclipticToEquatorial(px+sx, py+sy, pz+sz, d), nil
	default:
		return Equatorial{}, fmt.Errorf("unknown solar-system body %q", name)
	}
}

func solveKepler(mDeg, ecc float64) float64 {
	m := normDegrees(mDeg) * degToRad
	ea := m + ecc*math.Sin(m)*(1+ecc*math.Cos(m))
	for iter := 0; iter < 20; iter++ {
		delta := (ea - ecc*math.Sin(ea) - m) / (1 - ecc*math.Cos(ea))
		ea -= delta
		if math.Abs(delta) < 1e-9 {
			break
		}
	}
	return ea
}

// sunEcliptic returns the geocentric ecliptic rectangular coordinates of
// the Sun in AU.
func sunEcliptic(d float64) (x, y, z float64) {
	w := 282.9404 + 4.70935e-5*d
	ecc := 0.016709 - 1.151e-9*d
	m := 356.0470 + 0.9856002585*d

	ea := solveKepler(m, ecc)
	xv := math.Cos(ea) - ecc
	yv := math.Sqrt(1-ecc*ecc) * math.Sin(ea)
	v := math.Atan2(yv, xv) / degToRad
	r := math.Sqrt(xv*xv + yv*yv)

	lon := normDegrees(v+w) * degToRad
	return r * math.Cos(lon), r * math.Sin(lon), 0
}

func planetElements(body string, d float64) orbitalElements {
	switch body {
	case "mercury":
		return orbitalElements{
			n: 48.3313 + 3.24587e-5*d, i: 7.0047 + 5.00e-8*d,
			w: 29.1241 + 1.01444e-5*d, a: 0.387098,
			e: 0.205635 + 5.59e-10*d, m: 168.6562 + 4.0923344368*d,
		}
	case "venus":
		return orbitalElements{
			n: 76.6799 + 2.46590e-5*d, i: 3.3946 + 2.75e-8*d,
			w: 54.8910 + 1.38374e-5*d, a: 0.723330,
			e: 0.006773 - 1.302e-9*d, m: 48.0052 + 1.6021302244*d,
		}
	case "mars":
		return orbitalElements{
			n: 49.5574 + 2.11081e-5*d, i: 1.8497 - 1.78e-8*d,
			w: 286.5016 + 2.92961e-5*d, a: 1.523688,
			e: 0.093405 + 2.516e-9*d, m: 18.6021 + 0.5240207766*d,
		}
	case "jupiter":
		return orbitalElements{
			n: 100.4542 + 2.76854e-5*d, i: 1.3030 - 1.557e-7*d,
			w: 273.8777 + 1.64505e-5*d, a: 5.20256,
			e: 0.048498 + 4.469e-9*d, m: 19.8950 + 0.0830853001*d,
		}
	case "saturn":
		return orbitalElements{
			n: 113.6634 + 2.38980e-5*d, i: 2.4886 - 1.081e-7*d,
			w: 339.3939 + 2.97661e-5*d, a: 9.55475,
			e: 0.055546 - 9.499e-9*d, m: 316.9670 + 0.0334442282*d,
		}
	case "uranus":
		return orbitalElements{
			n: 74.0005 + 1.3978e-5*d, i: 0.7733 + 1.9e-8*d,
			w: 96.6612 + 3.0565e-5*d, a: 19.18171 - 1.55e-8*d,
			e: 0.047318 + 7.45e-9*d, m: 142.5905 + 0.011725806*d,
		}
	default: // neptune
		return orbitalElements{
			n: 131.7806 + 3.0173e-5*d, i: 1.7700 - 2.55e-7*d,
			w: 272.8461 - 6.027e-6*d, a: 30.05826 + 3.313e-8*d,
			e: 0.008606 + 2.15e-9*d, m: 260.2471 + 0.005995147*d,
		}
	}
}

// heliocentricEcliptic converts orbital elements to heliocentric ecliptic
// rectangular coordinates.
func heliocentricEcliptic(el orbitalElements) (x, y, z float64) {
	ea := solveKepler(el.m, el.e)
	xv := el.a * (math.Cos(ea) - el.e)
	yv := el.a * math.Sqrt(1-el.e*el.e) * math.Sin(ea)
	v := math.Atan2(yv, xv)
	r := math.Sqrt(xv*xv + yv*yv)

	n := el.n * degToRad
	i := el.i * degToRad
	vw := v + el.w*degToRad

	x = r * (math.Cos(n)*math.Cos(vw) - math.Sin(n)*math.Sin(vw)*math.Cos(i))
	y = r * (math.Sin(n)*math.Cos(vw) + math.Cos(n)*math.Sin(vw)*math.Cos(i))
	z = r * math.Sin(vw) * math.Sin(i)
	return x, y, z
}

// moonEcliptic returns the geocentric ecliptic coordinates of the Moon in
// Earth radii, including the dominant perturbation terms.
func moonEcliptic(d float64) (x, y, z float64) {
	el := orbitalElements{
		n: 125.1228 - 0.0529538083*d, i: 5.1454,
		w: 318.0634 + 0.1643573223*d, a: 60.2666,
		e: 0.054900, m: 115.3654 + 13.0649929509*d,
	}
	x, y, z = heliocentricEcliptic(el)

	lon := math.Atan2(y, x) / degToRad
	lat := math.Atan2(z, math.Sqrt(x*x+y*y)) / degToRad
	r := math.Sqrt(x*x + y*y + z*z)

	// Fundamental arguments for the perturbations.
	ms := normDegrees(356.0470 + 0.9856002585*d)            // Sun mean anomaly
	ws := 282.9404 + 4.70935e-5*d                           // Sun argument of perihelion
	ls := normDegrees(ms + ws)                              // Sun mean longitude
	lm := normDegrees(el.n + el.w + el.m)                   // Moon mean longitude
	dm := normDegrees(lm - ls)                              // mean elongation
	f := normDegrees(lm - el.n)                             // argument of latitude

	sin := func(deg float64) float64 { return math.Sin(deg * degToRad) }
	cos := func(deg float64) float64 { return math.Cos(deg * degToRad) }

	lon += -1.274*sin(el.m-2*dm) + // evection
		0.658*sin(2*dm) + // variation
		-0.186*sin(ms) + // yearly equation
		-0.059*sin(2*el.m-2*dm) +
		-0.057*sin(el.m-2*dm+ms) +
		0.053*sin(el.m+2*dm)
	lat += -0.173*sin(f-2*dm) +
		-0.055*sin(el.m-f-2*dm) +
		-0.046*sin(el.m+f-2*dm)
	r += -0.58*cos(el.m-2*dm) - 0.46*cos(2*dm)

	lonR := lon * degToRad
	latR := lat * degToRad
	return r * math.Cos(lonR) * math.Cos(latR),
		r * math.Sin(lonR) * math.Cos(latR),
		r * math.Sin(latR)
}

func eclipticToEquatorial(x, y, z, d float64) Equatorial {
	ecl := obliquityDeg(d) * degToRad
	xe := x
	ye := y*math.Cos(ecl) - z*math.Sin(ecl)
	ze := y*math.Sin(ecl) + z*math.Cos(ecl)

	ra := normDegrees(math.Atan2(ye, xe) / degToRad)
	dec := math.Atan2(ze, math.Sqrt(xe*xe+ye*ye)) / degToRad
	return Equatorial{RA: ra, Dec: dec}
}
