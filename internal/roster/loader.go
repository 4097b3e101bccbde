// Package roster loads participant rosters from tabular files.
//
// Two syntaxes are supported: a YAML document with a participants list, and
// CSV with a header row (name,contact[,team][,year]). File order is
// preserved exactly; it determines which week of the generated schedule
// carries which pairing.
//
// The loader checks that every row carries a name and a contact, but never
// inspects the contact format. Whether a contact is routable is the
// notifier's problem, not the roster's.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"rondo/internal/roulette"
)

// Format selects the roster file syntax.
type Format string

const (
	FormatAuto Format = "auto"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

var ErrUnknownFormat = errors.New("roster: unknown format")

// Load reads a roster file, picking the format from the file extension.
func Load(path string) (roulette.Roster, error) {
	return LoadFormat(path, FormatAuto)
}

// LoadFormat reads a roster file with an explicit format. FormatAuto falls
// back to the extension (.yaml/.yml or .csv).
func LoadFormat(path string, f Format) (roulette.Roster, error) {
	if f == FormatAuto || f == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			f = FormatYAML
		case ".csv":
			f = FormatCSV
		default:
			return nil, fmt.Errorf("%w: cannot infer from %q", ErrUnknownFormat, filepath.Base(path))
		}
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("roster: open: %w", err)
	}
	defer fh.Close()

	r, err := Parse(fh, f)
	if err != nil {
		return nil, fmt.Errorf("roster: %s: %w", filepath.Base(path), err)
	}
	return r, nil
}

// Parse reads a roster from r in the given format. FormatAuto is not
// accepted here; the caller must have resolved the format already.
func Parse(r io.Reader, f Format) (roulette.Roster, error) {
	switch f {
	case FormatYAML:
		return parseYAML(r)
	case FormatCSV:
		return parseCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// flexString accepts YAML scalars that users naturally leave unquoted
// (numeric Telegram chat IDs in particular).
type flexString string

func (s *flexString) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!str", "!!int", "!!float":
		*s = flexString(value.Value)
		return nil
	}
	return fmt.Errorf("expected a scalar, got %s", value.Tag)
}

type yamlParticipant struct {
	Name    string     `yaml:"name"`
	Contact flexString `yaml:"contact"`
	Team    *string    `yaml:"team"`
	Year    *int       `yaml:"year"`
}

type yamlDoc struct {
	Participants []yamlParticipant `yaml:"participants"`
}

func parseYAML(r io.Reader) (roulette.Roster, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc yamlDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(doc.Participants) == 0 {
		return nil, errors.New("no participants listed")
	}

	out := make(roulette.Roster, 0, len(doc.Participants))
	for i, yp := range doc.Participants {
		p := roulette.Participant{
			Name:    strings.TrimSpace(yp.Name),
			Contact: strings.TrimSpace(string(yp.Contact)),
		}
		if yp.Team != nil {
			p.Team = roulette.Some(strings.TrimSpace(*yp.Team))
		}
		if yp.Year != nil {
			p.Year = roulette.Some(*yp.Year)
		}
		if err := checkRequired(p, i+1); err != nil {
			return nil, err
		}
		out.Add(p)
	}
	return out, nil
}

func parseCSV(r io.Reader) (roulette.Roster, error) {
	rd := csv.NewReader(r)
	rd.TrimLeadingSpace = true

	header, err := rd.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	nameCol, ok := cols["name"]
	if !ok {
		return nil, errors.New(`csv header is missing a "name" column`)
	}
	contactCol, ok := cols["contact"]
	if !ok {
		return nil, errors.New(`csv header is missing a "contact" column`)
	}
	teamCol, hasTeam := cols["team"]
	yearCol, hasYear := cols["year"]

	var out roulette.Roster
	for row := 2; ; row++ {
		rec, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		p := roulette.Participant{
			Name:    strings.TrimSpace(rec[nameCol]),
			Contact: strings.TrimSpace(rec[contactCol]),
		}
		if hasTeam {
			if v := strings.TrimSpace(rec[teamCol]); v != "" {
				p.Team = roulette.Some(v)
			}
		}
		if hasYear {
			if v := strings.TrimSpace(rec[yearCol]); v != "" {
				year, err := strconv.Atoi(v)
				if err != nil {
					return nil, fmt.Errorf("row %d: invalid year %q", row, v)
				}
				p.Year = roulette.Some(year)
			}
		}
		if err := checkRequired(p, row); err != nil {
			return nil, err
		}
		out.Add(p)
	}
	if out.Len() == 0 {
		return nil, errors.New("no participants listed")
	}
	return out, nil
}

func checkRequired(p roulette.Participant, row int) error {
	if p.Name == "" {
		return fmt.Errorf("row %d: name is required", row)
	}
	if p.Contact == "" {
		return fmt.Errorf("row %d: contact is required", row)
	}
	return nil
}
