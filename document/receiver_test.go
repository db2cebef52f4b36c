package document

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tmarchal/nfparset/parset"
)

func newStore(t *testing.T, pairs ...[2]string) *parset.Store {
	t.Helper()
	s := parset.NewStore()
	for _, p := range pairs {
		require.NoError(t, s.Set(p[0], p[1]))
	}
	return s
}

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(NewFrequencyScale(195.3125), zerolog.Nop())
}

func TestParseParametersPulsar(t *testing.T) {
	mode, cfg := parseParameters("FOLD: --SRC=B0329+54 --ONLYI", true)
	require.Equal(t, "fold", mode)
	require.Equal(t, "b0329+54", cfg.values["src"])
	require.True(t, cfg.flags["onlyi"])
}

func TestParseParametersTimeFrequency(t *testing.T) {
	mode, cfg := parseParameters("TF: DF=3.05 DT=10.0 HAMM", false)
	require.Equal(t, "tf", mode)
	require.Equal(t, "3.05", cfg.values["df"])
	require.Equal(t, "10.0", cfg.values["dt"])
}

func TestDispatchDefault(t *testing.T) {
	d := newTestDispatcher()
	beam := newStore(t, [2]string{"subbandList", "[200..210]"})

	rcv, warns := d.Dispatch("numerical beam 0", beam, parset.NewStore(), parset.Version{})
	require.Empty(t, warns)
	require.Equal(t, ReceiverLaNewBa, rcv.Name)
	require.Equal(t, 1.0, rcv.Dt.Value)
	require.Equal(t, "s", rcv.Dt.Unit)
	require.InDelta(t, 195.3125, rcv.Df.Value, 1e-9)
	require.Len(t, rcv.Frequency, 1)
}

func TestDispatchPulsarFold(t *testing.T) {
	d := newTestDispatcher()
	beam := newStore(t,
		[2]string{"toDo", "PULSAR"},
		[2]string{"parameters", "FOLD: --SRC=B0329+54 --ONLYI"},
		[2]string{"subbandList", "[200..210]"},
	)

	rcv, warns := d.Dispatch("numerical beam 0", beam, parset.NewStore(), parset.Version{})
	require.Empty(t, warns)
	require.Equal(t, ReceiverUndysputed, rcv.Name)
	require.Equal(t, "pulsar_fold", rcv.Mode)
	require.Equal(t, "b0329+54", rcv.SourceName)
	require.Equal(t, 1, rcv.NPolars)
}

func TestDispatchPulsarSingle(t *testing.T) {
	d := newTestDispatcher()
	beam := newStore(t,
		[2]string{"toDo", "PULSAR"},
		[2]string{"parameters", "SINGLE: --SRC=B1919+21 --DSTIME=128"},
		[2]string{"subbandList", "[200..210]"},
	)

	rcv, warns := d.Dispatch("numerical beam 0", beam, parset.NewStore(), parset.Version{})
	require.Empty(t, warns)
	require.Equal(t, "pulsar_single", rcv.Mode)
	require.Equal(t, 128, rcv.Downsampling)
	require.Equal(t, 4, rcv.NPolars)
}

func TestDispatchPulsarMissingParameters(t *testing.T) {
	d := newTestDispatcher()
	beam := newStore(t,
		[2]string{"toDo", "PULSAR"},
		[2]string{"subbandList", "[200..210]"},
	)

	rcv, warns := d.Dispatch("numerical beam 0", beam, parset.NewStore(), parset.Version{})
	require.True(t, rcv.Empty())
	require.Len(t, warns, 1)
	require.Equal(t, WarnMissingParameters, warns[0].Code)
}

func TestDispatchPulsarMissingSource(t *testing.T) {
	d := newTestDispatcher()
	beam := newStore(t,
		[2]string{"toDo", "PULSAR"},
		[2]string{"parameters", "FOLD: --ONLYI"},
		[2]string{"subbandList", "[200..210]"},
	)

	rcv, warns := d.Dispatch("numerical beam 0", beam, parset.NewStore(), parset.Version{})
	require.True(t, rcv.Empty())
	require.Len(t, warns, 1)
	require.Equal(t, WarnBadConfiguration, warns[0].Code)
}

func TestDispatchDynamicSpectrum(t *testing.T) {
	d := newTestDispatcher()
	beam := newStore(t,
		[2]string{"toDo", "DYNAMICSPECTRUM"},
		[2]string{"parameters", "TF: DF=3.05 DT=10.0"},
		[2]string{"subbandList", "[300..310]"},
	)

	rcv, warns := d.Dispatch("numerical beam 0", beam, parset.NewStore(), parset.Version{})
	require.Empty(t, warns)
	require.Equal(t, "tf", rcv.Mode)
	require.InDelta(t, 10.0, rcv.Dt.Value, 1e-9)
	require.Equal(t, "ms", rcv.Dt.Unit)
	require.InDelta(t, 3.05, rcv.Df.Value, 1e-9)
	require.Equal(t, "kHz", rcv.Df.Unit)
}

func TestDispatchDynamicSpectrumDefaults(t *testing.T) {
	d := newTestDispatcher()
	beam := newStore(t,
		[2]string{"toDo", "DYNAMICSPECTRUM"},
		[2]string{"subbandList", "[300..310]"},
	)

	rcv, warns := d.Dispatch("numerical beam 0", beam, parset.NewStore(), parset.Version{})
	require.Len(t, warns, 1)
	require.Equal(t, WarnDefaultsApplied, warns[0].Code)
	require.InDelta(t, 5.00, rcv.Dt.Value, 1e-9)
	require.InDelta(t, 6.1, rcv.Df.Value, 1e-9)
}

func TestDispatchDynamicSpectrumRawReroute(t *testing.T) {
	d := newTestDispatcher()
	beam := newStore(t,
		[2]string{"toDo", "DYNAMICSPECTRUM"},
		[2]string{"parameters", "TF: RAWRT"},
		[2]string{"subbandList", "[300..310]"},
	)

	rcv, warns := d.Dispatch("numerical beam 0", beam, parset.NewStore(), parset.Version{})
	require.Empty(t, warns)
	require.Equal(t, "waveform", rcv.Mode)
	require.Nil(t, rcv.Dt)
}

func TestDispatchNickelLegacySubbands(t *testing.T) {
	d := newTestDispatcher()
	beam := newStore(t, [2]string{"subbandList", "[200..210]"})
	output := newStore(t,
		[2]string{"nri_receivers", "[nickel]"},
		[2]string{"nri_channelization", "64"},
		[2]string{"nri_dumpTime", "10"},
		[2]string{"nri_subbandList", "[120..130]"},
	)

	rcv, _, err := d.nickelSetting("phase center 0", beam, output, parset.Version{})
	require.NoError(t, err)
	require.Equal(t, ReceiverNickel, rcv.Name)
	require.Equal(t, 64.0, *rcv.Channelization.Value)
	require.Equal(t, 10.0, rcv.DumpTime.Value)
	require.Len(t, rcv.Frequency, 1)
	require.InDelta(t, 23.4375, rcv.Frequency[0].Value.Gte, 1e-9)

	// The channelization factor has no unit; the slot still serializes,
	// as null.
	raw, err := json.Marshal(rcv.Channelization)
	require.NoError(t, err)
	require.JSONEq(t, `{"value": 64, "unit": null}`, string(raw))
}

func TestDispatchNickelCurrentVersionUsesBeamSubbands(t *testing.T) {
	d := newTestDispatcher()
	beam := newStore(t, [2]string{"subbandList", "[200..210]"})
	output := newStore(t,
		[2]string{"nri_channelization", "64"},
		[2]string{"nri_dumpTime", "10"},
	)

	rcv, warns, err := d.nickelSetting("phase center 0", beam, output, parset.Version{Major: 1})
	require.NoError(t, err)
	require.Len(t, warns, 1)
	require.Equal(t, WarnMissingParameters, warns[0].Code)
	require.InDelta(t, 39.0625, rcv.Frequency[0].Value.Gte, 1e-9)
}

func TestDispatchTBDDelegation(t *testing.T) {
	d := newTestDispatcher()
	beam := newStore(t,
		[2]string{"toDo", "TBD"},
		[2]string{"subbandList", "[200..210]"},
	)
	output := newStore(t,
		[2]string{"nri_receivers", "[nickel]"},
		[2]string{"nri_channelization", "64"},
		[2]string{"nri_dumpTime", "10"},
		[2]string{"nri_subbandList", "[120..130]"},
	)

	rcv, warns := d.Dispatch("numerical beam 0", beam, output, parset.Version{})
	require.Empty(t, warns)
	require.Equal(t, ReceiverNickel, rcv.Name)

	// From format 1.0 on the delegation falls back to the beamformer.
	rcv, warns = d.Dispatch("numerical beam 0", beam, output, parset.Version{Major: 1})
	require.Empty(t, warns)
	require.Equal(t, ReceiverLaNewBa, rcv.Name)
}

func TestDispatchUnknownMode(t *testing.T) {
	d := newTestDispatcher()
	beam := newStore(t, [2]string{"toDo", "IMPROVISE"})

	rcv, warns := d.Dispatch("numerical beam 0", beam, parset.NewStore(), parset.Version{})
	require.True(t, rcv.Empty())
	require.Len(t, warns, 1)
	require.Equal(t, WarnUnknownMode, warns[0].Code)
}
