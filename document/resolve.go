package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/tmarchal/nfparset/astro"
	"github.com/tmarchal/nfparset/parset"
)

// Direction type tokens recognized by the resolver.
const (
	directionJ2000     = "j2000"
	directionAzElGeo   = "azelgeo"
	directionAzElFile  = "azelgeo_azelfile"
	directionNatif     = "natif"
	directionZenithXST = "zenith_xst"
)

// Resolver turns entity pointing parameters into equatorial centers.
type Resolver struct {
	svc astro.Service
}

// NewResolver builds a resolver around an ephemeris service.
func NewResolver(svc astro.Service) *Resolver {
	return &Resolver{svc: svc}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// clampRA keeps right ascension inside [0, 360).
func clampRA(v float64) float64 {
	v = clamp(v, 0, 360)
	if v >= 360 {
		return 0
	}
	return v
}

// entitySpan reads the start time and duration of an entity and returns
// its midpoint, at which all coordinate conversions are evaluated.
func entitySpan(props *parset.Store) (start time.Time, durSec float64, mid time.Time, err error) {
	start, err = props.Time("startTime")
	if err != nil {
		return time.Time{}, 0, time.Time{}, err
	}
	dv, err := props.Get("duration")
	if err != nil {
		return time.Time{}, 0, time.Time{}, err
	}
	durSec, err = dv.Float()
	if err != nil {
		return time.Time{}, 0, time.Time{}, fmt.Errorf("duration: %w", err)
	}
	mid = start.Add(time.Duration(durSec * float64(time.Second) / 2))
	return start, durSec, mid, nil
}

// Resolve computes the equatorial center of an entity. Explicit azimuth
// and elevation offsets are applied in the horizontal frame and clamped,
// right ascension and declination offsets in the equatorial frame. An
// azelFile parameter overrides the declared direction type.
func (r *Resolver) Resolve(props *parset.Store) (Center, error) {
	_, _, mid, err := entitySpan(props)
	if err != nil {
		return Center{}, err
	}

	// A trajectory file marker overrides whatever direction type the
	// entity declares; the declared type is only required without one.
	dirType := directionAzElFile
	if !props.Has("azelFile") {
		declared, err := props.Text("directionType")
		if err != nil {
			return Center{}, err
		}
		dirType = strings.ToLower(declared)
	}

	decalAz := props.FloatDefault("decal_az", 0)
	decalEl := props.FloatDefault("decal_el", 0)
	decalRA := props.FloatDefault("decal_ra", 0)
	decalDec := props.FloatDefault("decal_dec", 0)
	hasHorizontalDecal := props.Has("decal_az") || props.Has("decal_el")

	var eq astro.Equatorial
	switch dirType {
	case directionJ2000:
		ra, err := angleOf(props, "angle1")
		if err != nil {
			return Center{}, err
		}
		dec, err := angleOf(props, "angle2")
		if err != nil {
			return Center{}, err
		}
		eq = astro.Equatorial{RA: ra, Dec: dec}
		if hasHorizontalDecal {
			eq = r.offsetHorizontal(eq, mid, decalAz, decalEl)
		}
	case directionAzElGeo:
		az, err := angleOf(props, "angle1")
		if err != nil {
			return Center{}, err
		}
		el, err := angleOf(props, "angle2")
		if err != nil {
			return Center{}, err
		}
		hor := astro.Horizontal{
			Az: clamp(az+decalAz, 0, 360),
			El: clamp(el+decalEl, 0, 90),
		}
		eq = r.svc.ToEquatorial(hor, mid)
	case directionAzElFile:
		// Trajectory files are tracked elsewhere; the document keeps the
		// local zenith as a representative direction.
		eq = r.svc.ToEquatorial(astro.Zenith, mid)
	case directionNatif:
		// Hardware test pattern, no sky direction.
		return Center{
			RA:            FloatQuantity{Unit: "deg"},
			Dec:           FloatQuantity{Unit: "deg"},
			DirectionType: dirType,
		}, nil
	default:
		eq, err = r.svc.BodyCoordinates(dirType, mid)
		if err != nil {
			return Center{}, err
		}
		if hasHorizontalDecal {
			eq = r.offsetHorizontal(eq, mid, decalAz, decalEl)
		}
	}

	return Center{
		RA:            deg(clampRA(eq.RA + decalRA)),
		Dec:           deg(clamp(eq.Dec+decalDec, -90, 90)),
		DirectionType: dirType,
	}, nil
}

// offsetHorizontal converts to the horizontal frame, applies clamped
// azimuth and elevation offsets, and converts back.
func (r *Resolver) offsetHorizontal(eq astro.Equatorial, at time.Time, dAz, dEl float64) astro.Equatorial {
	hor := r.svc.ToHorizontal(eq, at)
	hor.Az = clamp(hor.Az+dAz, 0, 360)
	hor.El = clamp(hor.El+dEl, 0, 90)
	return r.svc.ToEquatorial(hor, at)
}

func angleOf(props *parset.Store, key string) (float64, error) {
	v, err := props.Get(key)
	if err != nil {
		return 0, err
	}
	f, err := v.Float()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
