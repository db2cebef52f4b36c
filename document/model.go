package document

import (
	"encoding/json"
	"fmt"
	"os"
)

// Receiver name tokens emitted into documents.
const (
	ReceiverLaNewBa    = "LaNewBa"
	ReceiverUndysputed = "undysputed"
	ReceiverNickel     = "nickel"
)

// FloatQuantity is a value with an attached unit. The value is a pointer
// so that unresolved coordinates serialize as JSON null.
type FloatQuantity struct {
	Value *float64 `json:"value"`
	Unit  string   `json:"unit,omitempty"`
}

// IntQuantity wraps bare instrument indices such as mini-array numbers.
type IntQuantity struct {
	Value int `json:"value"`
}

// FrequencyBounds is a half-open frequency interval.
type FrequencyBounds struct {
	Gte float64 `json:"gte"`
	Lt  float64 `json:"lt"`
}

// FrequencyBand is a frequency interval with its unit.
type FrequencyBand struct {
	Value FrequencyBounds `json:"value"`
	Unit  string          `json:"unit"`
}

// Quantity carries a scalar measurement with its unit.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// MetaStartStop bounds the whole observation. The stop bound is exclusive.
type MetaStartStop struct {
	Gte string `json:"gte"`
	Lt  string `json:"lt"`
}

// MetaTime is the observation-level time span.
type MetaTime struct {
	StartStop MetaStartStop `json:"startstop"`
	Duration  Quantity      `json:"duration"`
}

// StartStop bounds a single entity. The stop bound is inclusive.
type StartStop struct {
	Gte string `json:"gte"`
	Lte string `json:"lte"`
}

// TimeSpec is an entity-level time span.
type TimeSpec struct {
	StartStop StartStop `json:"startstop"`
	Duration  Quantity  `json:"duration"`
}

// Center is a resolved pointing direction in equatorial coordinates.
type Center struct {
	RA            FloatQuantity `json:"ra"`
	Dec           FloatQuantity `json:"dec"`
	DirectionType string        `json:"obs_direction_type"`
}

// BeamSquint records the squint correction state of a field of view.
type BeamSquint struct {
	Correction bool          `json:"correction"`
	Frequency  FloatQuantity `json:"frequency"`
}

// FilterEntry pairs an analog filter index with its activation time.
type FilterEntry struct {
	Name  int    `json:"name"`
	Start string `json:"start"`
}

// ChannelQuantity is the imaging channelization factor. It has no
// physical unit; the unit slot still serializes, as null.
type ChannelQuantity struct {
	Value *float64 `json:"value"`
	Unit  *string  `json:"unit"`
}

// Receiver describes the backend configuration attached to a pointing.
// Fields absent from a given mode are omitted from the JSON output.
type Receiver struct {
	Name           string           `json:"name,omitempty"`
	Mode           string           `json:"mode,omitempty"`
	SourceName     string           `json:"source_name,omitempty"`
	NPolars        int              `json:"n_polars,omitempty"`
	Downsampling   int              `json:"downsampling,omitempty"`
	Dt             *Quantity        `json:"dt,omitempty"`
	Df             *Quantity        `json:"df,omitempty"`
	Channelization *ChannelQuantity `json:"channelization,omitempty"`
	DumpTime       *Quantity        `json:"dumptime,omitempty"`
	Frequency      []FrequencyBand  `json:"frequency,omitempty"`
}

// Empty reports whether the receiver carries no configuration at all.
func (r Receiver) Empty() bool {
	return r.Name == "" && r.Mode == "" && r.SourceName == "" &&
		r.NPolars == 0 && r.Downsampling == 0 &&
		r.Dt == nil && r.Df == nil && r.Channelization == nil &&
		r.DumpTime == nil && len(r.Frequency) == 0
}

// Pointing is a numerical beam, phase center, or synthetic pointing
// attached to a field of view.
type Pointing struct {
	Idx      int      `json:"idx"`
	Name     string   `json:"name"`
	Center   Center   `json:"center"`
	Time     TimeSpec `json:"time"`
	Receiver Receiver `json:"receiver"`
}

// FieldOfView is the document form of an analog beam.
type FieldOfView struct {
	Idx        int           `json:"idx"`
	Name       string        `json:"name"`
	Center     Center        `json:"center"`
	Time       TimeSpec      `json:"time"`
	BeamSquint BeamSquint    `json:"beamsquint"`
	MiniArrays []IntQuantity `json:"mini_arrays"`
	Antennas   []IntQuantity `json:"antennas"`
	Filter     []FilterEntry `json:"filter"`
	Pointings  []Pointing    `json:"pointings"`
}

// FileName locates the source file the document was built from.
type FileName struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Topic is the scientific program the observation belongs to.
type Topic struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Document is the flattened, index-ready form of a decoded file.
type Document struct {
	Timestamp    string        `json:"@timestamp"`
	FileName     FileName      `json:"file_name"`
	Time         MetaTime      `json:"time"`
	Topic        Topic         `json:"topic"`
	Title        string        `json:"title,omitempty"`
	ContactName  string        `json:"contact_name,omitempty"`
	Name         string        `json:"name,omitempty"`
	ParsetUser   string        `json:"parset_user,omitempty"`
	FieldOfViews []FieldOfView `json:"field_of_views"`
}

// WriteFile serializes the document as indented JSON.
func (d *Document) WriteFile(path string) error {
	data, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

func deg(v float64) FloatQuantity {
	return FloatQuantity{Value: &v, Unit: "deg"}
}

func seconds(v float64) *Quantity {
	return &Quantity{Value: v, Unit: "s"}
}

func milliseconds(v float64) *Quantity {
	return &Quantity{Value: v, Unit: "ms"}
}

func kilohertz(v float64) *Quantity {
	return &Quantity{Value: v, Unit: "kHz"}
}

func megahertz(v float64) FloatQuantity {
	return FloatQuantity{Value: &v, Unit: "MHz"}
}
