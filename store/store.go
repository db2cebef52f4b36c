// Package store archives decoded observation configurations in a
// relational database for later lookup.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tmarchal/nfparset/parset"
)

var (
	// ErrDuplicateEntry marks a parset file that is already archived.
	ErrDuplicateEntry = errors.New("parset already archived")
	// ErrUnknownSubmitter marks a contact name the archive does not know.
	ErrUnknownSubmitter = errors.New("unknown submitter")
)

// Store persists decoded parsets. Implementations translate their
// backend's duplicate and reference failures into the package sentinels.
type Store interface {
	// RegisterParset records the file itself and returns its archive id.
	RegisterParset(ctx context.Context, fileName, submitter string) (int64, error)
	// AddEntity records one decoded section under a registered parset.
	// kind is one of "observation", "anabeam" or "digibeam".
	AddEntity(ctx context.Context, parsetID int64, kind string, idx int, fields map[string]string) error
	Close() error
}

// Entity kind tokens accepted by AddEntity.
const (
	KindObservation = "observation"
	KindAnaBeam     = "anabeam"
	KindDigiBeam    = "digibeam"
)

// Archive writes a decoded parset into the store: one merged
// observation row followed by one row per beam. An already archived
// file or an unknown submitter ends the archive quietly.
func Archive(ctx context.Context, st Store, p *parset.Parset, logger zerolog.Logger) error {
	log := logger.With().Str("component", "store").Str("parset", p.Path).Logger()

	submitter, _ := submitterOf(p)
	id, err := st.RegisterParset(ctx, p.Path, submitter)
	if errors.Is(err, ErrDuplicateEntry) {
		log.Info().Msg("parset already archived, skipping")
		return nil
	}
	if errors.Is(err, ErrUnknownSubmitter) {
		log.Warn().Str("submitter", submitter).Msg("unknown submitter, skipping archive")
		return nil
	}
	if err != nil {
		return fmt.Errorf("register parset: %w", err)
	}

	// The observation row merges the observation and output sections,
	// output keys winning on collision.
	merged := flatten(p.Observation)
	for key, value := range flatten(p.Output) {
		merged[key] = value
	}
	if err := st.AddEntity(ctx, id, KindObservation, 0, merged); err != nil {
		return fmt.Errorf("archive observation: %w", err)
	}

	for _, idx := range p.AnaBeamIndices() {
		if err := st.AddEntity(ctx, id, KindAnaBeam, idx, flatten(p.AnaBeams[idx])); err != nil {
			return fmt.Errorf("archive analog beam %d: %w", idx, err)
		}
	}
	for _, idx := range p.DigiBeamIndices() {
		if err := st.AddEntity(ctx, id, KindDigiBeam, idx, flatten(p.DigiBeams[idx])); err != nil {
			return fmt.Errorf("archive numerical beam %d: %w", idx, err)
		}
	}

	log.Info().Msg("parset archived")
	return nil
}

func submitterOf(p *parset.Parset) (string, bool) {
	name, err := p.Observation.Text("contactName")
	return name, err == nil
}

func flatten(s *parset.Store) map[string]string {
	out := make(map[string]string, s.Len())
	for _, key := range s.Keys() {
		value, err := s.Get(key)
		if err != nil {
			continue
		}
		out[key] = value.Format()
	}
	return out
}
