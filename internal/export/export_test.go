package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"rondo/internal/roulette"
)

// testSchedule builds a schedule for named participants with synthetic
// contacts. Even rosters are fully deterministic; a 3 person roster is too,
// because its single candidate pair leaves the random draw no choice.
func testSchedule(t *testing.T, names ...string) *roulette.Schedule {
	t.Helper()
	var r roulette.Roster
	for _, n := range names {
		r.Add(roulette.Participant{Name: n, Contact: strings.ToLower(n) + "@test"})
	}
	s, err := roulette.Generate(r)
	if err != nil {
		t.Fatalf("Generate(%d people) = %v", len(names), err)
	}
	return s
}

func TestParseFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     []string
		want    []Format
		wantErr bool
	}{
		{name: "canonical", raw: []string{"csv", "markdown", "json", "text"}, want: []Format{FormatCSV, FormatMarkdown, FormatJSON, FormatText}},
		{name: "aliases", raw: []string{"md", "txt"}, want: []Format{FormatMarkdown, FormatText}},
		{name: "case and space", raw: []string{" CSV ", "Markdown"}, want: []Format{FormatCSV, FormatMarkdown}},
		{name: "blanks skipped", raw: []string{"", "json", ""}, want: []Format{FormatJSON}},
		{name: "unknown", raw: []string{"xml"}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseFormats(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFormat) {
					t.Fatalf("ParseFormats(%v) error = %v, want ErrUnknownFormat", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFormats(%v) = %v", tt.raw, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseFormats(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestWriteCSVPairs(t *testing.T) {
	t.Parallel()

	s := testSchedule(t, "Ann", "Ben", "Cat", "Dee")
	var buf bytes.Buffer
	if err := WriteCSV(&buf, s); err != nil {
		t.Fatalf("WriteCSV() = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() = %v", err)
	}
	if len(rows) != 1+4*2 {
		t.Fatalf("row count = %d, want %d", len(rows), 1+4*2)
	}
	if !reflect.DeepEqual(rows[0], csvHeader) {
		t.Fatalf("header = %v, want %v", rows[0], csvHeader)
	}
	wantFirst := []string{"1", "pair", "Ann", "ann@test", "Cat", "cat@test", "", ""}
	if !reflect.DeepEqual(rows[1], wantFirst) {
		t.Fatalf("first row = %v, want %v", rows[1], wantFirst)
	}
	for i, row := range rows[1:] {
		if row[1] != "pair" {
			t.Fatalf("row %d kind = %q, want pair", i+1, row[1])
		}
		if row[6] != "" || row[7] != "" {
			t.Fatalf("row %d member3 = %q/%q, want empty", i+1, row[6], row[7])
		}
	}
}

func TestWriteCSVTriples(t *testing.T) {
	t.Parallel()

	s := testSchedule(t, "Ann", "Ben", "Cat")
	var buf bytes.Buffer
	if err := WriteCSV(&buf, s); err != nil {
		t.Fatalf("WriteCSV() = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() = %v", err)
	}
	if len(rows) != 1+3 {
		t.Fatalf("row count = %d, want %d", len(rows), 1+3)
	}
	want := []string{"1", "triple", "Cat", "cat@test", "Ann", "ann@test", "Ben", "ben@test"}
	if !reflect.DeepEqual(rows[1], want) {
		t.Fatalf("first row = %v, want %v", rows[1], want)
	}
	for i, row := range rows[1:] {
		if row[1] != "triple" {
			t.Fatalf("row %d kind = %q, want triple", i+1, row[1])
		}
		if row[6] == "" {
			t.Fatalf("row %d member3 empty, want a name", i+1)
		}
	}
}

func TestWriteMarkdown(t *testing.T) {
	t.Parallel()

	s := testSchedule(t, "Ann", "Ben", "Cat", "Dee")
	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, s); err != nil {
		t.Fatalf("WriteMarkdown() = %v", err)
	}

	want := "# Pairing schedule\n" +
		"\n## Week 1\n\n- Ann & Cat\n- Ben & Dee\n" +
		"\n## Week 2\n\n- Ben & Dee\n- Cat & Ann\n" +
		"\n## Week 3\n\n- Cat & Ann\n- Dee & Ben\n" +
		"\n## Week 4\n\n- Dee & Ben\n- Ann & Cat\n"
	if got := buf.String(); got != want {
		t.Fatalf("WriteMarkdown() =\n%q\nwant\n%q", got, want)
	}
}

func TestWriteText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		names []string
		want  string
	}{
		{
			name:  "pairs",
			names: []string{"Ann", "Ben", "Cat", "Dee"},
			want: "Week 1:\nAnn is paired with Cat\nBen is paired with Dee\n" +
				"\nWeek 2:\nBen is paired with Dee\nCat is paired with Ann\n" +
				"\nWeek 3:\nCat is paired with Ann\nDee is paired with Ben\n" +
				"\nWeek 4:\nDee is paired with Ben\nAnn is paired with Cat\n",
		},
		{
			name:  "triples",
			names: []string{"Ann", "Ben", "Cat"},
			want: "Week 1:\nCat is paired with Ann and Ben\n" +
				"\nWeek 2:\nCat is paired with Ben and Ann\n" +
				"\nWeek 3:\nCat is paired with Ann and Ben\n",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := testSchedule(t, tt.names...)
			var buf bytes.Buffer
			if err := WriteText(&buf, s); err != nil {
				t.Fatalf("WriteText() = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Fatalf("WriteText() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestConnectionLine(t *testing.T) {
	t.Parallel()

	ann := roulette.Participant{Name: "Ann", Contact: "1"}
	ben := roulette.Participant{Name: "Ben", Contact: "2"}
	cat := roulette.Participant{Name: "Cat", Contact: "3"}

	if got, want := ConnectionLine(roulette.Pair(ann, ben)), "Ann is paired with Ben"; got != want {
		t.Fatalf("ConnectionLine(pair) = %q, want %q", got, want)
	}
	if got, want := ConnectionLine(roulette.Triple(ann, ben, cat)), "Ann is paired with Ben and Cat"; got != want {
		t.Fatalf("ConnectionLine(triple) = %q, want %q", got, want)
	}
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var r roulette.Roster
	r.Add(roulette.Participant{Name: "Ann", Contact: "ann@test", Team: roulette.Some("core"), Year: roulette.Some(2021)})
	r.Add(roulette.Participant{Name: "Ben", Contact: "ben@test"})
	r.Add(roulette.Participant{Name: "Cat", Contact: "cat@test"})
	r.Add(roulette.Participant{Name: "Dee", Contact: "dee@test"})
	s, err := roulette.Generate(r)
	if err != nil {
		t.Fatalf("Generate() = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, s); err != nil {
		t.Fatalf("WriteJSON() = %v", err)
	}

	var weeks []struct {
		Week        int `json:"week"`
		Connections []struct {
			Kind    string `json:"kind"`
			Members []struct {
				Name    string  `json:"name"`
				Contact string  `json:"contact"`
				Team    *string `json:"team"`
				Year    *int    `json:"year"`
			} `json:"members"`
		} `json:"connections"`
	}
	if err := json.Unmarshal(buf.Bytes(), &weeks); err != nil {
		t.Fatalf("Unmarshal() = %v", err)
	}
	if len(weeks) != 4 {
		t.Fatalf("weeks = %d, want 4", len(weeks))
	}
	if weeks[0].Week != 1 || weeks[3].Week != 4 {
		t.Fatalf("week numbers = %d..%d, want 1..4", weeks[0].Week, weeks[3].Week)
	}
	first := weeks[0].Connections
	if len(first) != 2 {
		t.Fatalf("week 1 connections = %d, want 2", len(first))
	}
	if first[0].Kind != "pair" || len(first[0].Members) != 2 {
		t.Fatalf("week 1 first = %q with %d members, want pair with 2", first[0].Kind, len(first[0].Members))
	}
	ann := first[0].Members[0]
	if ann.Name != "Ann" || ann.Contact != "ann@test" {
		t.Fatalf("first member = %s/%s, want Ann/ann@test", ann.Name, ann.Contact)
	}
	if ann.Team == nil || *ann.Team != "core" {
		t.Fatalf("Ann team = %v, want core", ann.Team)
	}
	if ann.Year == nil || *ann.Year != 2021 {
		t.Fatalf("Ann year = %v, want 2021", ann.Year)
	}
	if cat := first[0].Members[1]; cat.Team != nil || cat.Year != nil {
		t.Fatalf("Cat optionals = %v/%v, want absent", cat.Team, cat.Year)
	}
	if !strings.Contains(buf.String(), `"kind"`) || strings.Contains(buf.String(), `"team": null`) {
		t.Fatalf("unexpected JSON shape:\n%s", buf.String())
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	t.Parallel()

	s := testSchedule(t, "Ann", "Ben")
	err := Write(&bytes.Buffer{}, s, Format("xml"))
	if !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("Write(xml) = %v, want ErrUnknownFormat", err)
	}
}

func TestWriteFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := testSchedule(t, "Ann", "Ben", "Cat", "Dee")
	formats := []Format{FormatCSV, FormatMarkdown, FormatJSON, FormatText}

	paths, err := WriteFiles(filepath.Join(dir, "out"), formats, s)
	if err != nil {
		t.Fatalf("WriteFiles() = %v", err)
	}
	wantNames := []string{"schedule.csv", "schedule.md", "schedule.json", "schedule.txt"}
	if len(paths) != len(wantNames) {
		t.Fatalf("paths = %d, want %d", len(paths), len(wantNames))
	}
	for i, p := range paths {
		if got := filepath.Base(p); got != wantNames[i] {
			t.Fatalf("path %d = %s, want %s", i, got, wantNames[i])
		}
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("Stat(%s) = %v", p, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", p)
		}
	}
}
