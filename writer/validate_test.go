package writer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tmarchal/nfparset/astro"
)

var validateSite = astro.Site{
	LongitudeDeg: 2.192400,
	LatitudeDeg:  47.376511,
	ElevationM:   150,
}

func issueMessages(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.String()
	}
	return out
}

func TestValidateSyntax(t *testing.T) {
	p := newTestParset(t)
	require.NoError(t, p.Observation.Set("contactEmail", "not-an-email"))
	require.NoError(t, p.Observation.Set("name", ""))

	_, err := p.AddAnalogBeam(map[string]any{
		"target":   "FIELD_A",
		"duration": "20 minutes",
	})
	require.NoError(t, err)

	issues := p.Validate(nil)

	keys := make(map[string]bool)
	for _, issue := range issues {
		keys[issue.Key] = true
	}
	require.True(t, keys["contactEmail"], "issues: %v", issueMessages(issues))
	require.True(t, keys["name"], "issues: %v", issueMessages(issues))
	require.True(t, keys["duration"], "issues: %v", issueMessages(issues))
}

func TestValidateEmptyValueStillSyntaxChecked(t *testing.T) {
	p := newTestParset(t)
	require.NoError(t, p.Observation.Set("startTime", ""))

	issues := p.Validate(nil)

	var messages []string
	for _, issue := range issues {
		require.Equal(t, "startTime", issue.Key)
		messages = append(messages, issue.Message)
	}
	require.Len(t, messages, 2, "issues: %v", issueMessages(issues))
	require.Contains(t, messages, "empty value")
	require.Contains(t, messages[1], "syntax error")
}

func TestValidateUntouchedFieldsNotChecked(t *testing.T) {
	p := newTestParset(t)
	// Untouched fields are not syntax-checked even when required.
	issues := p.Validate(nil)
	require.Empty(t, issues, "issues: %v", issueMessages(issues))
}

func TestValidateObservationWindow(t *testing.T) {
	p := newTestParset(t)
	require.NoError(t, p.Observation.Set("startTime", time.Date(2022, 3, 1, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, p.Observation.Set("stopTime", time.Date(2022, 3, 1, 8, 0, 0, 0, time.UTC)))

	issues := p.Validate(nil)
	require.Len(t, issues, 1)
	require.Equal(t, "stopTime must fall after startTime", issues[0].Message)
}

func TestValidateHorizonRule(t *testing.T) {
	p := newTestParset(t)
	_, err := p.AddAnalogBeam(map[string]any{"target": "FIELD_A"})
	require.NoError(t, err)

	// Far southern declination, never visible from the site latitude.
	_, err = p.AddNumericalBeam(0, map[string]any{
		"target":    "SOUTHERN",
		"angle1":    "180.0",
		"angle2":    "-60.0",
		"startTime": time.Date(2022, 3, 1, 8, 0, 0, 0, time.UTC),
		"duration":  time.Hour,
	})
	require.NoError(t, err)

	svc := astro.New(validateSite)
	issues := p.Validate(svc)
	require.Len(t, issues, 1)
	require.Equal(t, "Beam[0]", issues[0].Block)
	require.Contains(t, issues[0].Message, "below the horizon")

	// The same check passes without an ephemeris service.
	require.Empty(t, p.Validate(nil))
}

func TestValidateHorizonRulePasses(t *testing.T) {
	p := newTestParset(t)
	_, err := p.AddAnalogBeam(map[string]any{"target": "FIELD_A"})
	require.NoError(t, err)

	// Circumpolar declination, always above the horizon.
	_, err = p.AddNumericalBeam(0, map[string]any{
		"target":    "NORTHERN",
		"angle1":    "30.0",
		"angle2":    "85.0",
		"startTime": time.Date(2022, 3, 1, 8, 0, 0, 0, time.UTC),
		"duration":  time.Hour,
	})
	require.NoError(t, err)

	issues := p.Validate(astro.New(validateSite))
	require.Empty(t, issues, "issues: %v", issueMessages(issues))
}

func TestSchemaCompiles(t *testing.T) {
	s, err := loadSchema()
	require.NoError(t, err)
	require.NotEmpty(t, s.Observation)
	require.NotEmpty(t, s.Anabeam)
	require.NotEmpty(t, s.Beam)
	require.NotEmpty(t, s.Output)
	require.NotEmpty(t, s.Rules)
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		raw    string
		sec    float64
		hasErr bool
	}{
		{raw: "3600s", sec: 3600},
		{raw: "60m", sec: 3600},
		{raw: "2h", sec: 7200},
		{raw: "20 minutes", hasErr: true},
		{raw: "s", hasErr: true},
	}
	for _, tc := range cases {
		sec, err := parseDuration(tc.raw)
		if tc.hasErr {
			require.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		require.Equal(t, tc.sec, sec, tc.raw)
	}
}
