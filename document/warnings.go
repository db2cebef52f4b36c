package document

import (
	"errors"
	"fmt"
)

// ErrDanglingPointing marks a numerical beam whose analog beam reference
// does not resolve to any declared field of view.
var ErrDanglingPointing = errors.New("pointing references unknown field of view")

// Warning codes attached to non-fatal build anomalies.
const (
	WarnUnresolvedCenter     = "center_unresolved"
	WarnDanglingPointing     = "dangling_pointing"
	WarnMissingParameters    = "missing_parameters"
	WarnBadConfiguration     = "bad_configuration"
	WarnUnknownMode          = "unknown_mode"
	WarnParametersIgnored    = "parameters_ignored"
	WarnDefaultsApplied      = "defaults_applied"
	WarnImagingMultipleBeams = "imaging_multiple_beams"
)

// Warning describes a recoverable anomaly encountered while building a
// document. The build continues past warnings.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func warnf(code, format string, args ...any) Warning {
	return Warning{Code: code, Message: fmt.Sprintf(format, args...)}
}
