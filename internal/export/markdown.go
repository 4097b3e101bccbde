package export

import (
	"fmt"
	"io"
	"strings"

	"rondo/internal/roulette"
)

// WriteMarkdown renders a human-readable document with one section per week.
func WriteMarkdown(w io.Writer, s *roulette.Schedule) error {
	var b strings.Builder
	b.WriteString("# Pairing schedule\n")
	for week := 1; week <= s.Weeks(); week++ {
		conns, err := s.Week(week)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "\n## Week %d\n\n", week)
		for _, c := range conns {
			b.WriteString("- ")
			b.WriteString(memberLine(c, " & "))
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteText renders the compact announcement form, one block per week:
//
//	Week 1:
//	Alice is paired with Bob
//	Cara is paired with Dan and Eve
func WriteText(w io.Writer, s *roulette.Schedule) error {
	var b strings.Builder
	for week := 1; week <= s.Weeks(); week++ {
		conns, err := s.Week(week)
		if err != nil {
			return err
		}
		if week > 1 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Week %d:\n", week)
		for _, c := range conns {
			b.WriteString(ConnectionLine(c))
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// ConnectionLine phrases one connection the way announcements do.
func ConnectionLine(c roulette.Connection) string {
	if t, ok := c.Third.Get(); ok {
		return fmt.Sprintf("%s is paired with %s and %s", c.First.Name, c.Second.Name, t.Name)
	}
	return fmt.Sprintf("%s is paired with %s", c.First.Name, c.Second.Name)
}

func memberLine(c roulette.Connection, sep string) string {
	names := make([]string, 0, 3)
	for _, m := range c.Members() {
		names = append(names, m.Name)
	}
	return strings.Join(names, sep)
}
