package parset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// UserSidecarSuffix is appended to a parset path to locate the optional
// free-text submitter file.
const UserSidecarSuffix = "_user"

// Parset holds the decoded entities of one observation configuration.
type Parset struct {
	Path         string
	Observation  *Store
	Output       *Store
	AnaBeams     map[int]*Store
	DigiBeams    map[int]*Store
	PhaseCenters map[int]*Store
	// User carries the free-text submitter metadata from the sidecar
	// file, empty when absent.
	User string
	// SkippedLines counts blank or malformed input lines.
	SkippedLines int
}

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// Load reads and decodes a parset file plus its optional user sidecar.
func Load(path string) (*Parset, error) {
	if !strings.HasSuffix(path, ".parset") {
		return nil, fmt.Errorf("parset file must end with .parset: %s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve parset path: %w", err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open parset: %w", err)
	}
	defer f.Close()

	p, err := Parse(f)
	if err != nil {
		return nil, err
	}
	p.Path = abs

	// The sidecar is best effort; its absence is not an error.
	if raw, err := os.ReadFile(abs + UserSidecarSuffix); err == nil {
		p.User = string(raw)
	}
	return p, nil
}

// Parse decodes parset statements from r. Blank and malformed lines are
// skipped and counted; a line whose value fails coercion aborts the
// decode.
func Parse(r io.Reader) (*Parset, error) {
	p := &Parset{
		Observation:  NewStore(),
		Output:       NewStore(),
		AnaBeams:     make(map[int]*Store),
		DigiBeams:    make(map[int]*Store),
		PhaseCenters: make(map[int]*Store),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			p.SkippedLines++
			continue
		}
		section, rest, ok := strings.Cut(line, ".")
		if !ok {
			p.SkippedLines++
			continue
		}
		key, value, ok := strings.Cut(rest, "=")
		if !ok {
			p.SkippedLines++
			continue
		}

		// Section casing varies between generated and hand-written
		// files ("AnaBeam" vs "Anabeam"), so match case-insensitively.
		var err error
		switch {
		case sectionIs(section, "Observation"):
			err = p.Observation.Set(key, value)
		case sectionIs(section, "Output"):
			err = p.Output.Set(key, value)
		case sectionIs(section, "AnaBeam"):
			err = setIndexed(p.AnaBeams, section, "anaIdx", key, value)
		case sectionIs(section, "Beam"):
			err = setIndexed(p.DigiBeams, section, "digiIdx", key, value)
		case sectionIs(section, "PhaseCenter"):
			err = setIndexed(p.PhaseCenters, section, "pcIdx", key, value)
		default:
			p.SkippedLines++
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read parset: %w", err)
	}
	return p, nil
}

func sectionIs(section, name string) bool {
	return len(section) >= len(name) && strings.EqualFold(section[:len(name)], name)
}

func setIndexed(entities map[int]*Store, section, idxKey, key, value string) error {
	match := bracketIndex.FindStringSubmatch(section)
	if match == nil {
		return fmt.Errorf("section %q misses a bracketed index: %w", section, ErrMalformedValue)
	}
	idx, err := strconv.Atoi(match[1])
	if err != nil {
		return fmt.Errorf("section %q index: %w", section, ErrMalformedValue)
	}
	store, ok := entities[idx]
	if !ok {
		store = NewStore()
		if err := store.Set(idxKey, strconv.Itoa(idx)); err != nil {
			return err
		}
		entities[idx] = store
	}
	return store.Set(key, value)
}

// Version identifies the parset format revision.
type Version struct {
	Major int
	Minor int
}

// AtLeast reports whether the version is maj.min or newer.
func (v Version) AtLeast(maj, min int) bool {
	if v.Major != maj {
		return v.Major > maj
	}
	return v.Minor >= min
}

// String renders the version as maj.min.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Version parses the declared parset format version, defaulting to 0.0
// for parsets that predate versioning.
func (p *Parset) Version() Version {
	value, err := p.Observation.Get("parsetVersion")
	if err != nil {
		return Version{}
	}
	raw := value.Format()
	parts := strings.SplitN(raw, ".", 2)
	var v Version
	if len(parts) > 0 {
		v.Major, _ = strconv.Atoi(parts[0])
	}
	if len(parts) > 1 {
		v.Minor, _ = strconv.Atoi(parts[1])
	}
	return v
}

// AnaBeamIndices returns the analog beam indices in ascending order.
func (p *Parset) AnaBeamIndices() []int { return sortedIndices(p.AnaBeams) }

// DigiBeamIndices returns the numerical beam indices in ascending order.
func (p *Parset) DigiBeamIndices() []int { return sortedIndices(p.DigiBeams) }

// PhaseCenterIndices returns the phase center indices in ascending order.
func (p *Parset) PhaseCenterIndices() []int { return sortedIndices(p.PhaseCenters) }

func sortedIndices(entities map[int]*Store) []int {
	out := make([]int, 0, len(entities))
	for idx := range entities {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
