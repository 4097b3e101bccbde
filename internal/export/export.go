// Package export renders generated schedules to files and writers.
//
// Weeks are numbered from 1 in every artifact. A connection is rendered as
// a triple exactly when its third slot is present; exporters never assume a
// fixed arity.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"rondo/internal/roulette"
)

// Format identifies an export artifact syntax.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatText     Format = "text"
)

var ErrUnknownFormat = errors.New("export: unknown format")

// ParseFormats normalizes a list of user-supplied format names.
func ParseFormats(raw []string) ([]Format, error) {
	out := make([]Format, 0, len(raw))
	for _, s := range raw {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "csv":
			out = append(out, FormatCSV)
		case "markdown", "md":
			out = append(out, FormatMarkdown)
		case "json":
			out = append(out, FormatJSON)
		case "text", "txt":
			out = append(out, FormatText)
		case "":
			continue
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
		}
	}
	return out, nil
}

func (f Format) ext() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatText:
		return "txt"
	default:
		return string(f)
	}
}

// Write renders s in the given format.
func Write(w io.Writer, s *roulette.Schedule, f Format) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, s)
	case FormatMarkdown:
		return WriteMarkdown(w, s)
	case FormatJSON:
		return WriteJSON(w, s)
	case FormatText:
		return WriteText(w, s)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// WriteFiles renders one artifact per format into dir (schedule.csv,
// schedule.md, ...) and returns the written paths.
func WriteFiles(dir string, formats []Format, s *roulette.Schedule) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		path := filepath.Join(dir, "schedule."+f.ext())
		fh, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return paths, fmt.Errorf("export %s: %w", f, err)
		}
		werr := Write(fh, s, f)
		cerr := fh.Close()
		if werr != nil {
			return paths, fmt.Errorf("export %s: %w", f, werr)
		}
		if cerr != nil {
			return paths, fmt.Errorf("export %s: %w", f, cerr)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
