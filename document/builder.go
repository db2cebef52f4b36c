package document

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tmarchal/nfparset/astro"
	"github.com/tmarchal/nfparset/config"
	"github.com/tmarchal/nfparset/parset"
)

const isoLayout = "2006-01-02T15:04:05.000"

func isot(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

func roundSeconds(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).Round(3).Float64()
	return out
}

// Builder assembles index-ready documents from decoded files. Entity
// level failures degrade to warnings so that one bad beam does not lose
// the whole observation.
type Builder struct {
	resolver   *Resolver
	dispatcher *Dispatcher
	freq       FrequencyScale
	svc        astro.Service
	remoteMin  int
	log        zerolog.Logger
}

// NewBuilder wires a builder from the instrument configuration.
func NewBuilder(cfg config.InstrumentConfig, svc astro.Service, logger zerolog.Logger) *Builder {
	freq := NewFrequencyScale(cfg.SubbandWidthKHz)
	return &Builder{
		resolver:   NewResolver(svc),
		dispatcher: NewDispatcher(freq, logger),
		freq:       freq,
		svc:        svc,
		remoteMin:  cfg.RemoteMiniArrayThreshold,
		log:        logger.With().Str("component", "builder").Logger(),
	}
}

// fovSpan keeps the parsed time bounds of a field of view so that later
// passes do not reparse the serialized strings.
type fovSpan struct {
	start time.Time
	dur   float64
}

// Build flattens a decoded file into a document. The returned warnings
// list every entity that was skipped or degraded.
func (b *Builder) Build(p *parset.Parset) (*Document, []Warning, error) {
	version := p.Version()
	var warns []Warning
	warn := func(w Warning) {
		warns = append(warns, w)
		b.log.Warn().Str("code", w.Code).Msg(w.Message)
	}

	doc, err := b.metadata(p)
	if err != nil {
		return nil, warns, err
	}

	// Field of views from the analog beams.
	fovPos := make(map[int]int)
	var spans []fovSpan
	for _, idx := range p.AnaBeamIndices() {
		fov, span, err := b.fieldOfView(idx, p.AnaBeams[idx])
		if err != nil {
			warn(warnf(WarnUnresolvedCenter, "analog beam %d skipped: %v", idx, err))
			continue
		}
		fovPos[idx] = len(doc.FieldOfViews)
		doc.FieldOfViews = append(doc.FieldOfViews, fov)
		spans = append(spans, span)
	}

	pointingCount := 0
	attach := func(idx int, name string, props *parset.Store, setting settingFunc) {
		pointing, fovIdx, err := b.pointing(idx, name, props, p.Output, version, setting)
		if err != nil {
			warn(warnf(WarnUnresolvedCenter, "%s skipped: %v", name, err))
			return
		}
		pos, ok := fovPos[fovIdx]
		if !ok {
			warn(warnf(WarnDanglingPointing, "%s: %v: no field of view %d", name, ErrDanglingPointing, fovIdx))
			return
		}
		for _, w := range pointing.warnings {
			warns = append(warns, w)
		}
		doc.FieldOfViews[pos].Pointings = append(doc.FieldOfViews[pos].Pointings, pointing.Pointing)
		pointingCount++
	}

	// Pointings from the numerical beams.
	maxDigi := -1
	for _, idx := range p.DigiBeamIndices() {
		attach(idx, fmt.Sprintf("numerical beam %d", idx), p.DigiBeams[idx], nil)
		maxDigi = idx
	}

	// Phase centers exist from format version 1.0 on. Their pointing
	// indices continue after the numerical beams.
	if version.AtLeast(1, 0) {
		for _, idx := range p.PhaseCenterIndices() {
			attach(idx+maxDigi+1, fmt.Sprintf("phase center %d", idx), p.PhaseCenters[idx], nil)
		}
	}

	// One synthetic zenith pointing per field of view when crosslet
	// statistics were recorded.
	if p.Output.BoolDefault("xst_userfile", false) {
		b.addCrossletPointings(doc, spans, pointingCount, p.Output, warn)
		pointingCount += len(doc.FieldOfViews)
	}

	// Old format versions never declare the imaging receiver on a beam;
	// inject a pointing for it when the output section requests it.
	if !version.AtLeast(1, 0) && outputHasNickel(p.Output) && !anyBeamIsTBD(p) {
		digi := p.DigiBeamIndices()
		if len(digi) == 0 {
			warn(warnf(WarnBadConfiguration, "imaging receiver requested but no numerical beam declared"))
		} else {
			if len(digi) > 1 {
				warn(warnf(WarnImagingMultipleBeams, "found %d numerical beams, imaging pointing added for the first one only", len(digi)))
			}
			attach(pointingCount, fmt.Sprintf("imaging pointing for numerical beam %d", digi[0]), p.DigiBeams[digi[0]], b.dispatcher.nickelDelegate(version))
		}
	}

	b.pruneRemoteMiniArrays(doc)

	return doc, warns, nil
}

func (b *Builder) metadata(p *parset.Parset) (*Document, error) {
	start, err := p.Observation.Time("startTime")
	if err != nil {
		return nil, fmt.Errorf("observation start: %w", err)
	}
	stop, err := p.Observation.Time("stopTime")
	if err != nil {
		return nil, fmt.Errorf("observation stop: %w", err)
	}

	doc := &Document{
		Timestamp: isot(start),
		FileName: FileName{
			Name: filepath.Base(p.Path),
			Path: filepath.Dir(p.Path),
		},
		Time: MetaTime{
			StartStop: MetaStartStop{Gte: isot(start), Lt: isot(stop)},
			Duration:  Quantity{Value: roundSeconds(stop.Sub(start).Seconds()), Unit: "s"},
		},
		Topic:        splitTopic(p.Observation),
		ParsetUser:   p.User,
		FieldOfViews: []FieldOfView{},
	}

	if title, err := p.Observation.Text("title"); err == nil {
		doc.Title = title
	}
	if contact, err := p.Observation.Text("contactName"); err == nil {
		doc.ContactName = contact
	}
	if name, err := p.Observation.Text("name"); err == nil {
		doc.Name = name
	}
	return doc, nil
}

// splitTopic separates a scientific program entry such as "ES03 PULSARS"
// into its code and label. Entries without a program prefix fall back to
// the debug program.
func splitTopic(observation *parset.Store) Topic {
	raw := "ES00 DEBUG"
	if v, err := observation.Text("topic"); err == nil {
		raw = v
	}
	if strings.HasPrefix(raw, "ES") && len(raw) >= 4 {
		name := ""
		if len(raw) > 5 {
			name = raw[5:]
		}
		return Topic{Code: raw[:4], Name: name}
	}
	return Topic{Code: "ES00", Name: raw}
}

func (b *Builder) entityTime(props *parset.Store) (TimeSpec, fovSpan, error) {
	start, durSec, _, err := entitySpan(props)
	if err != nil {
		return TimeSpec{}, fovSpan{}, err
	}
	stop := start.Add(time.Duration(durSec * float64(time.Second)))
	spec := TimeSpec{
		StartStop: StartStop{Gte: isot(start), Lte: isot(stop)},
		Duration:  Quantity{Value: roundSeconds(durSec), Unit: "s"},
	}
	return spec, fovSpan{start: start, dur: durSec}, nil
}

func (b *Builder) fieldOfView(idx int, props *parset.Store) (FieldOfView, fovSpan, error) {
	target, err := props.Text("target")
	if err != nil {
		return FieldOfView{}, fovSpan{}, err
	}
	center, err := b.resolver.Resolve(props)
	if err != nil {
		return FieldOfView{}, fovSpan{}, err
	}
	spec, span, err := b.entityTime(props)
	if err != nil {
		return FieldOfView{}, fovSpan{}, err
	}
	miniArrays, err := props.Ints("maList")
	if err != nil {
		return FieldOfView{}, fovSpan{}, fmt.Errorf("maList: %w", err)
	}
	antennas, err := props.Ints("antList")
	if err != nil {
		return FieldOfView{}, fovSpan{}, fmt.Errorf("antList: %w", err)
	}
	filter, err := filterEntries(props)
	if err != nil {
		return FieldOfView{}, fovSpan{}, err
	}

	squint := BeamSquint{
		Correction: props.BoolDefault("beamSquint", false),
		Frequency:  FloatQuantity{Unit: "MHz"},
	}
	if v, err := props.Get("optFrq"); err == nil {
		if f, err := v.Float(); err == nil {
			squint.Frequency = megahertz(f)
		}
	}

	return FieldOfView{
		Idx:        idx,
		Name:       target,
		Center:     center,
		Time:       spec,
		BeamSquint: squint,
		MiniArrays: intQuantities(miniArrays),
		Antennas:   intQuantities(antennas),
		Filter:     filter,
		Pointings:  []Pointing{},
	}, span, nil
}

// filterEntries pairs the analog filter indices with their switch times.
func filterEntries(props *parset.Store) ([]FilterEntry, error) {
	filters, err := props.Ints("filter")
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	timesValue, err := props.Get("filterTime")
	if err != nil {
		return nil, err
	}
	items, ok := timesValue.Items()
	if !ok {
		items = []parset.Value{timesValue}
	}

	n := len(filters)
	if len(items) < n {
		n = len(items)
	}
	entries := make([]FilterEntry, 0, n)
	for i := 0; i < n; i++ {
		start, ok := items[i].Time()
		if !ok {
			return nil, fmt.Errorf("filterTime[%d]: %w", i, parset.ErrMalformedValue)
		}
		entries = append(entries, FilterEntry{Name: filters[i], Start: isot(start)})
	}
	return entries, nil
}

func intQuantities(values []int) []IntQuantity {
	out := make([]IntQuantity, len(values))
	for i, v := range values {
		out[i] = IntQuantity{Value: v}
	}
	return out
}

// builtPointing carries a pointing plus the warnings its receiver
// handler produced.
type builtPointing struct {
	Pointing
	warnings []Warning
}

type settingFunc func(name string, beam, output *parset.Store, version parset.Version) (Receiver, []Warning)

// nickelDelegate forces the imaging receiver handler regardless of the
// beam's own processing mode.
func (d *Dispatcher) nickelDelegate(version parset.Version) settingFunc {
	return func(name string, beam, output *parset.Store, _ parset.Version) (Receiver, []Warning) {
		rcv, warns, err := d.nickelSetting(name, beam, output, version)
		if err != nil {
			warns = append(warns, warnf(WarnBadConfiguration, "%s: %v", name, err))
			rcv = Receiver{}
		}
		return rcv, warns
	}
}

func (b *Builder) pointing(idx int, name string, props, output *parset.Store, version parset.Version, setting settingFunc) (builtPointing, int, error) {
	target, err := props.Text("target")
	if err != nil {
		return builtPointing{}, 0, err
	}
	center, err := b.resolver.Resolve(props)
	if err != nil {
		return builtPointing{}, 0, err
	}
	spec, _, err := b.entityTime(props)
	if err != nil {
		return builtPointing{}, 0, err
	}
	fovIdx, err := props.Int("noBeam")
	if err != nil {
		return builtPointing{}, 0, fmt.Errorf("noBeam: %w", err)
	}

	if setting == nil {
		setting = b.dispatcher.Dispatch
	}
	rcv, warns := setting(name, props, output, version)

	return builtPointing{
		Pointing: Pointing{
			Idx:      idx,
			Name:     target,
			Center:   center,
			Time:     spec,
			Receiver: rcv,
		},
		warnings: warns,
	}, fovIdx, nil
}

// addCrossletPointings appends one zenith pointing per field of view,
// evaluated at the field of view's mid-observation time.
func (b *Builder) addCrossletPointings(doc *Document, spans []fovSpan, firstIdx int, output *parset.Store, warn func(Warning)) {
	rcv := Receiver{Name: ReceiverLaNewBa}
	if subbands, err := output.Ints("xst_sbList"); err != nil {
		warn(warnf(WarnBadConfiguration, "xst_sbList: %v", err))
	} else {
		rcv.Frequency = b.freq.Bands(subbands)
	}

	for i := range doc.FieldOfViews {
		fov := &doc.FieldOfViews[i]
		span := spans[i]
		mid := span.start.Add(time.Duration(span.dur * float64(time.Second) / 2))
		zenith := b.svc.ToEquatorial(astro.Zenith, mid)
		fov.Pointings = append(fov.Pointings, Pointing{
			Idx: firstIdx + i,
			Center: Center{
				RA:            deg(zenith.RA),
				Dec:           deg(zenith.Dec),
				DirectionType: directionZenithXST,
			},
			Time:     fov.Time,
			Receiver: rcv,
		})
	}
}

// pruneRemoteMiniArrays drops remote mini-arrays from fields of view
// whose pointings never involve the imaging receiver. Remote antennas
// only contribute to correlated imaging data.
func (b *Builder) pruneRemoteMiniArrays(doc *Document) {
	for i := range doc.FieldOfViews {
		fov := &doc.FieldOfViews[i]

		hasRemote := false
		for _, ma := range fov.MiniArrays {
			if ma.Value > b.remoteMin {
				hasRemote = true
				break
			}
		}
		if !hasRemote {
			continue
		}

		usesImaging := false
		for _, pointing := range fov.Pointings {
			if pointing.Receiver.Name == ReceiverNickel {
				usesImaging = true
				break
			}
		}
		if usesImaging {
			continue
		}

		kept := fov.MiniArrays[:0]
		for _, ma := range fov.MiniArrays {
			if ma.Value <= b.remoteMin {
				kept = append(kept, ma)
			}
		}
		fov.MiniArrays = kept
		b.log.Info().
			Int("field_of_view", fov.Idx).
			Msg("remote mini-arrays removed, no associated pointing uses the imaging receiver")
	}
}

func anyBeamIsTBD(p *parset.Parset) bool {
	for _, beam := range p.DigiBeams {
		if mode, err := beam.Text("toDo"); err == nil && strings.EqualFold(mode, "tbd") {
			return true
		}
	}
	return false
}
