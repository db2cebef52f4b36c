// Package writer builds observation request files from a declarative
// field catalogue. Blocks only serialize the fields a caller touched
// plus the catalogue's required set, in catalogue order.
package writer

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// AnalogBeam groups a beam block with the numerical beams it feeds.
type AnalogBeam struct {
	*Block
	numerical []*Block
}

// NumericalBeams returns the attached numerical beam blocks.
func (a *AnalogBeam) NumericalBeams() []*Block { return a.numerical }

// Parset assembles a complete observation request. Beam indices and the
// beam counters on the observation block are renumbered automatically as
// beams come and go.
type Parset struct {
	Observation *Block
	Output      *Block
	analog      []*AnalogBeam

	schema *Schema
	log    zerolog.Logger
}

// New creates an empty request with catalogue defaults.
func New(logger zerolog.Logger) (*Parset, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}
	return &Parset{
		Observation: newBlock(schema, scopeObservation),
		Output:      newBlock(schema, scopeOutput),
		schema:      schema,
		log:         logger.With().Str("component", "writer").Logger(),
	}, nil
}

// AnalogBeams returns the analog beam blocks in serialization order.
func (p *Parset) AnalogBeams() []*AnalogBeam { return p.analog }

// AddAnalogBeam appends an analog beam initialized from settings.
func (p *Parset) AddAnalogBeam(settings map[string]any) (*AnalogBeam, error) {
	beam := &AnalogBeam{Block: newBlock(p.schema, scopeAnabeam)}
	if err := beam.Fill(settings); err != nil {
		return nil, err
	}
	p.analog = append(p.analog, beam)
	p.renumber()
	return beam, nil
}

// RemoveAnalogBeam drops the analog beam at the given position together
// with its numerical beams. Remaining beams are renumbered.
func (p *Parset) RemoveAnalogBeam(index int) error {
	if index < 0 || index >= len(p.analog) {
		return fmt.Errorf("analog beam index %d out of range, %d beams set", index, len(p.analog))
	}
	p.analog = append(p.analog[:index], p.analog[index+1:]...)
	p.renumber()
	return nil
}

// AddNumericalBeam attaches a numerical beam to the analog beam at the
// given position.
func (p *Parset) AddNumericalBeam(anabeamIndex int, settings map[string]any) (*Block, error) {
	if anabeamIndex < 0 || anabeamIndex >= len(p.analog) {
		return nil, fmt.Errorf("analog beam index %d out of range, %d beams set", anabeamIndex, len(p.analog))
	}
	beam := newBlock(p.schema, scopeBeam)
	if err := beam.Fill(settings); err != nil {
		return nil, err
	}
	anabeam := p.analog[anabeamIndex]
	anabeam.numerical = append(anabeam.numerical, beam)
	p.renumber()
	return beam, nil
}

// RemoveNumericalBeam drops the numerical beam at the given flat
// position, counted across all analog beams in order.
func (p *Parset) RemoveNumericalBeam(index int) error {
	counter := 0
	for _, anabeam := range p.analog {
		for i := range anabeam.numerical {
			if counter == index {
				anabeam.numerical = append(anabeam.numerical[:i], anabeam.numerical[i+1:]...)
				p.renumber()
				return nil
			}
			counter++
		}
	}
	return fmt.Errorf("numerical beam index %d out of range, %d beams set", index, counter)
}

// renumber reassigns serial indices, propagates each analog beam's index
// to its numerical beams, and refreshes the beam counters.
func (p *Parset) renumber() {
	numCount := 0
	for anaIdx, anabeam := range p.analog {
		anabeam.index = anaIdx
		for _, numbeam := range anabeam.numerical {
			numbeam.index = numCount
			numCount++
			// Ignore the impossible unknown-key error, noBeam is declared.
			_ = numbeam.Set("noBeam", strconv.Itoa(anaIdx))
		}
	}
	_ = p.Observation.Set("nrAnabeams", strconv.Itoa(len(p.analog)))
	_ = p.Observation.Set("nrBeams", strconv.Itoa(numCount))
}

// Render serializes the request: observation block, analog beams,
// numerical beams, output block, separated by blank lines.
func (p *Parset) Render() string {
	p.renumber()

	var blocks []string
	section := func(b *Block) {
		var sb strings.Builder
		b.render(&sb)
		blocks = append(blocks, sb.String())
	}

	section(p.Observation)
	for _, anabeam := range p.analog {
		section(anabeam.Block)
	}
	for _, anabeam := range p.analog {
		for _, numbeam := range anabeam.numerical {
			section(numbeam)
		}
	}
	section(p.Output)

	return strings.Join(blocks, "\n\n")
}

// WriteFile renders the request into a file.
func (p *Parset) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(p.Render()+"\n"), 0o644); err != nil {
		return fmt.Errorf("write request file: %w", err)
	}
	p.log.Debug().Str("path", path).Msg("request file written")
	return nil
}
