package document

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tmarchal/nfparset/parset"
)

// rerouteFlag marks a dynamic-spectrum beam actually recorded raw.
const rerouteFlag = "tf: rawrt"

// paramConfig holds the parsed content of a beam "parameters" entry.
type paramConfig struct {
	values map[string]string
	flags  map[string]bool
}

// parseParameters splits a backend parameter string such as
// "TF: DF=3.05 DT=10.0 HAMM" into a mode token and key/value pairs.
// Pulsar parameters separate options with "--", other backends with
// whitespace. Bare tokens become boolean flags.
func parseParameters(raw string, pulsar bool) (string, paramConfig) {
	raw = strings.ToLower(raw)
	mode, _, _ := strings.Cut(raw, ":")
	cfg := paramConfig{
		values: make(map[string]string),
		flags:  make(map[string]bool),
	}

	valueTokens := strings.Fields(raw)
	if pulsar {
		valueTokens = strings.Split(raw, "--")
	}
	for _, tok := range valueTokens {
		if k, v, ok := strings.Cut(tok, "="); ok {
			cfg.values[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	for _, tok := range strings.Split(raw, "--") {
		if strings.Contains(tok, "=") {
			continue
		}
		if flag := strings.TrimSpace(tok); flag != "" {
			cfg.flags[flag] = true
		}
	}
	return mode, cfg
}

// Dispatcher selects and applies the receiver handler matching a beam's
// processing mode.
type Dispatcher struct {
	freq FrequencyScale
	log  zerolog.Logger
}

// NewDispatcher builds a dispatcher around a frequency scale.
func NewDispatcher(freq FrequencyScale, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		freq: freq,
		log:  logger.With().Str("component", "receiver").Logger(),
	}
}

// Dispatch builds the receiver document for one beam. Handler failures
// never abort the build: they produce an empty receiver plus warnings.
func (d *Dispatcher) Dispatch(name string, beam, output *parset.Store, version parset.Version) (Receiver, []Warning) {
	mode := "none"
	if raw, err := beam.Text("toDo"); err == nil {
		mode = strings.ToLower(raw)
	}

	var (
		rcv   Receiver
		warns []Warning
		err   error
	)
	switch mode {
	case "none":
		rcv, err = d.defaultSetting(beam)
	case "pulsar":
		rcv, warns, err = d.pulsarSetting(name, beam)
	case "waveform":
		rcv, err = d.waveformSetting(beam)
	case "dynamicspectrum":
		rcv, warns, err = d.dynamicSpectrumSetting(name, beam)
	case "tbd":
		rcv, warns, err = d.tbdSetting(name, beam, output, version)
	case "nickel":
		rcv, warns, err = d.nickelSetting(name, beam, output, version)
	default:
		warns = append(warns, warnf(WarnUnknownMode, "unknown processing mode %q on %s", mode, name))
	}
	if err != nil {
		warns = append(warns, warnf(WarnBadConfiguration, "%s: %v", name, err))
		rcv = Receiver{}
	}
	for _, w := range warns {
		d.log.Warn().Str("code", w.Code).Msg(w.Message)
	}
	return rcv, warns
}

func (d *Dispatcher) defaultSetting(beam *parset.Store) (Receiver, error) {
	subbands, err := beam.Ints("subbandList")
	if err != nil {
		return Receiver{}, err
	}
	return Receiver{
		Name:      ReceiverLaNewBa,
		Dt:        seconds(1),
		Df:        kilohertz(d.freq.WidthKHz()),
		Frequency: d.freq.Bands(subbands),
	}, nil
}

func (d *Dispatcher) pulsarSetting(name string, beam *parset.Store) (Receiver, []Warning, error) {
	raw, err := beam.Text("parameters")
	if err != nil {
		return Receiver{}, []Warning{warnf(WarnMissingParameters, "no parameters for %s", name)}, nil
	}
	mode, cfg := parseParameters(raw, true)

	src, ok := cfg.values["src"]
	if !ok {
		return Receiver{}, nil, fmt.Errorf("pulsar parameters miss src: %q", raw)
	}
	subbands, err := beam.Ints("subbandList")
	if err != nil {
		return Receiver{}, nil, err
	}

	nPolars := 4
	if cfg.flags["onlyi"] {
		nPolars = 1
	}

	switch mode {
	case "fold":
		return Receiver{
			Name:       ReceiverUndysputed,
			Mode:       "pulsar_fold",
			SourceName: src,
			NPolars:    nPolars,
			Frequency:  d.freq.Bands(subbands),
		}, nil, nil
	case "single":
		dstime, ok := cfg.values["dstime"]
		if !ok {
			return Receiver{}, nil, fmt.Errorf("pulsar single parameters miss dstime: %q", raw)
		}
		downsampling, err := strconv.Atoi(dstime)
		if err != nil {
			return Receiver{}, nil, fmt.Errorf("pulsar dstime %q: %w", dstime, err)
		}
		return Receiver{
			Name:         ReceiverUndysputed,
			Mode:         "pulsar_single",
			SourceName:   src,
			Downsampling: downsampling,
			NPolars:      nPolars,
			Frequency:    d.freq.Bands(subbands),
		}, nil, nil
	case "waveolaf":
		return Receiver{
			Name:       ReceiverUndysputed,
			Mode:       "pulsar_waveolaf",
			SourceName: src,
			Frequency:  d.freq.Bands(subbands),
		}, nil, nil
	case "wave":
		return Receiver{
			Name:       ReceiverUndysputed,
			Mode:       "pulsar_wave",
			SourceName: src,
			Frequency:  d.freq.Bands(subbands),
		}, nil, nil
	default:
		return Receiver{}, []Warning{warnf(WarnUnknownMode, "pulsar mode %q not recognized on %s", mode, name)}, nil
	}
}

func (d *Dispatcher) waveformSetting(beam *parset.Store) (Receiver, error) {
	subbands, err := beam.Ints("subbandList")
	if err != nil {
		return Receiver{}, err
	}
	return Receiver{
		Name:      ReceiverUndysputed,
		Mode:      "waveform",
		Frequency: d.freq.Bands(subbands),
	}, nil
}

func (d *Dispatcher) dynamicSpectrumSetting(name string, beam *parset.Store) (Receiver, []Warning, error) {
	var warns []Warning
	cfg := paramConfig{
		values: map[string]string{"dt": "5.00", "df": "6.1"},
		flags:  make(map[string]bool),
	}
	if raw, err := beam.Text("parameters"); err == nil {
		_, cfg = parseParameters(raw, false)
		if cfg.flags[rerouteFlag] {
			rcv, err := d.waveformSetting(beam)
			return rcv, warns, err
		}
	} else {
		warns = append(warns, warnf(WarnDefaultsApplied, "no parameters for %s, using default time-frequency resolution", name))
	}

	dt, err := configFloat(cfg, "dt")
	if err != nil {
		return Receiver{}, warns, err
	}
	df, err := configFloat(cfg, "df")
	if err != nil {
		return Receiver{}, warns, err
	}
	subbands, err := beam.Ints("subbandList")
	if err != nil {
		return Receiver{}, warns, err
	}
	return Receiver{
		Name:      ReceiverUndysputed,
		Mode:      "tf",
		Dt:        milliseconds(dt),
		Df:        kilohertz(df),
		Frequency: d.freq.Bands(subbands),
	}, warns, nil
}

func (d *Dispatcher) nickelSetting(name string, beam, output *parset.Store, version parset.Version) (Receiver, []Warning, error) {
	channelization, err := output.Int("nri_channelization")
	if err != nil {
		return Receiver{}, nil, err
	}
	dumpValue, err := output.Get("nri_dumpTime")
	if err != nil {
		return Receiver{}, nil, err
	}
	dumpTime, err := dumpValue.Float()
	if err != nil {
		return Receiver{}, nil, fmt.Errorf("nri_dumpTime: %w", err)
	}

	var warns []Warning
	var subbands []int
	if version.AtLeast(1, 0) {
		if beam.Has("parameters") {
			// Correlator parameter folding is not implemented yet.
			warns = append(warns, warnf(WarnParametersIgnored, "imaging parameters on %s are not folded into the document", name))
		} else {
			warns = append(warns, warnf(WarnMissingParameters, "no parameters for %s", name))
		}
		subbands, err = beam.Ints("subbandList")
	} else {
		subbands, err = output.Ints("nri_subbandList")
	}
	if err != nil {
		return Receiver{}, warns, err
	}

	chanFloat := float64(channelization)
	return Receiver{
		Name:           ReceiverNickel,
		Channelization: &ChannelQuantity{Value: &chanFloat},
		DumpTime:       seconds(dumpTime),
		Frequency:      d.freq.Bands(subbands),
	}, warns, nil
}

func (d *Dispatcher) tbdSetting(name string, beam, output *parset.Store, version parset.Version) (Receiver, []Warning, error) {
	if outputHasNickel(output) && !version.AtLeast(1, 0) {
		return d.nickelSetting(name, beam, output, version)
	}
	rcv, err := d.defaultSetting(beam)
	return rcv, nil, err
}

func outputHasNickel(output *parset.Store) bool {
	for _, rcv := range output.Strings("nri_receivers") {
		if strings.EqualFold(rcv, ReceiverNickel) {
			return true
		}
	}
	return false
}

func configFloat(cfg paramConfig, key string) (float64, error) {
	raw, ok := cfg.values[key]
	if !ok {
		return 0, fmt.Errorf("time-frequency parameters miss %s", key)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("time-frequency %s=%q: %w", key, raw, err)
	}
	return f, nil
}
