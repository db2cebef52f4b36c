package writer

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tmarchal/nfparset/parset"
)

func newTestParset(t *testing.T) *Parset {
	t.Helper()
	p, err := New(zerolog.Nop())
	require.NoError(t, err)
	return p
}

func TestRenderDefaults(t *testing.T) {
	p := newTestParset(t)
	out := p.Render()

	// Required fields appear with their catalogue defaults, nothing else.
	require.Contains(t, out, "Observation.topic=ES00 DEBUG")
	require.Contains(t, out, "Observation.nrAnabeams=0")
	require.Contains(t, out, "Observation.nrBeams=0")
	require.NotContains(t, out, "Observation.title=")
	require.NotContains(t, out, "Output.hd_bitMode=")
}

func TestSetFormatting(t *testing.T) {
	p := newTestParset(t)
	require.NoError(t, p.Observation.Set("startTime", time.Date(2022, 3, 1, 8, 0, 0, 0, time.UTC)))
	require.NoError(t, p.Observation.Set("stopTime", "2022-03-01T10:00:00Z"))

	beam, err := p.AddAnalogBeam(map[string]any{
		"target":     "CYG A",
		"duration":   time.Hour,
		"beamSquint": true,
	})
	require.NoError(t, err)

	out := p.Render()
	require.Contains(t, out, "Observation.startTime=2022-03-01T08:00:00Z")
	require.Contains(t, out, "Anabeam[0].duration=3600s")
	require.Contains(t, out, "Anabeam[0].beamSquint=true")

	value, ok := beam.Get("target")
	require.True(t, ok)
	require.Equal(t, "CYG A", value)
}

func TestSetUnknownKey(t *testing.T) {
	p := newTestParset(t)
	err := p.Observation.Set("flavour", "vanilla")
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestRenumbering(t *testing.T) {
	p := newTestParset(t)

	_, err := p.AddAnalogBeam(map[string]any{"target": "FIELD_A"})
	require.NoError(t, err)
	_, err = p.AddAnalogBeam(map[string]any{"target": "FIELD_B"})
	require.NoError(t, err)

	_, err = p.AddNumericalBeam(0, map[string]any{"target": "SRC_A"})
	require.NoError(t, err)
	_, err = p.AddNumericalBeam(1, map[string]any{"target": "SRC_B1"})
	require.NoError(t, err)
	_, err = p.AddNumericalBeam(1, map[string]any{"target": "SRC_B2"})
	require.NoError(t, err)

	out := p.Render()
	require.Contains(t, out, "Observation.nrAnabeams=2")
	require.Contains(t, out, "Observation.nrBeams=3")
	require.Contains(t, out, "Beam[1].target=SRC_B1")
	require.Contains(t, out, "Beam[1].noBeam=1")

	// Removing the first analog beam shifts every index down and drops
	// its numerical beam.
	require.NoError(t, p.RemoveAnalogBeam(0))
	out = p.Render()
	require.Contains(t, out, "Observation.nrAnabeams=1")
	require.Contains(t, out, "Observation.nrBeams=2")
	require.Contains(t, out, "Anabeam[0].target=FIELD_B")
	require.Contains(t, out, "Beam[0].target=SRC_B1")
	require.Contains(t, out, "Beam[0].noBeam=0")
	require.Contains(t, out, "Beam[1].target=SRC_B2")
	require.NotContains(t, out, "SRC_A")
}

func TestRemoveNumericalBeamFlatIndex(t *testing.T) {
	p := newTestParset(t)
	_, err := p.AddAnalogBeam(map[string]any{"target": "FIELD_A"})
	require.NoError(t, err)
	_, err = p.AddAnalogBeam(map[string]any{"target": "FIELD_B"})
	require.NoError(t, err)
	_, err = p.AddNumericalBeam(0, map[string]any{"target": "SRC_A"})
	require.NoError(t, err)
	_, err = p.AddNumericalBeam(1, map[string]any{"target": "SRC_B"})
	require.NoError(t, err)

	require.NoError(t, p.RemoveNumericalBeam(1))
	out := p.Render()
	require.Contains(t, out, "Observation.nrBeams=1")
	require.NotContains(t, out, "SRC_B")

	require.Error(t, p.RemoveNumericalBeam(5))
}

func TestRenderBlockOrder(t *testing.T) {
	p := newTestParset(t)
	_, err := p.AddAnalogBeam(map[string]any{"target": "FIELD_A"})
	require.NoError(t, err)
	_, err = p.AddNumericalBeam(0, map[string]any{"target": "SRC_A"})
	require.NoError(t, err)
	require.NoError(t, p.Output.Set("hd_bitMode", 16))

	out := p.Render()
	obs := strings.Index(out, "Observation.")
	ana := strings.Index(out, "Anabeam[0].")
	num := strings.Index(out, "Beam[0].")
	outp := strings.Index(out, "Output.")
	require.True(t, obs < ana && ana < num && num < outp)
	require.Contains(t, out, "\n\n")
}

func TestRenderRoundTrip(t *testing.T) {
	p := newTestParset(t)
	require.NoError(t, p.Observation.Set("name", "roundtrip"))
	require.NoError(t, p.Observation.Set("contactName", "jdoe"))
	require.NoError(t, p.Observation.Set("startTime", time.Date(2022, 3, 1, 8, 0, 0, 0, time.UTC)))
	require.NoError(t, p.Observation.Set("stopTime", time.Date(2022, 3, 1, 10, 0, 0, 0, time.UTC)))

	_, err := p.AddAnalogBeam(map[string]any{
		"target":    "FIELD_A",
		"maList":    "[0..5]",
		"startTime": time.Date(2022, 3, 1, 8, 0, 0, 0, time.UTC),
		"duration":  2 * time.Hour,
	})
	require.NoError(t, err)
	_, err = p.AddNumericalBeam(0, map[string]any{
		"target":      "SRC_A",
		"subbandList": "[200..210]",
	})
	require.NoError(t, err)

	decoded, err := parset.Parse(strings.NewReader(p.Render()))
	require.NoError(t, err)

	require.Len(t, decoded.AnaBeams, 1)
	require.Len(t, decoded.DigiBeams, 1)

	target, err := decoded.AnaBeams[0].Text("target")
	require.NoError(t, err)
	require.Equal(t, "FIELD_A", target)

	noBeam, err := decoded.DigiBeams[0].Int("noBeam")
	require.NoError(t, err)
	require.Equal(t, 0, noBeam)

	subbands, err := decoded.DigiBeams[0].Ints("subbandList")
	require.NoError(t, err)
	require.Len(t, subbands, 11)

	start, err := decoded.AnaBeams[0].Time("startTime")
	require.NoError(t, err)
	require.Equal(t, time.Date(2022, 3, 1, 8, 0, 0, 0, time.UTC), start.UTC())
}
