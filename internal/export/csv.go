package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"rondo/internal/roulette"
)

var csvHeader = []string{
	"week", "kind",
	"member1_name", "member1_contact",
	"member2_name", "member2_contact",
	"member3_name", "member3_contact",
}

// WriteCSV renders one row per connection. The member3 columns stay empty
// for pairs.
func WriteCSV(w io.Writer, s *roulette.Schedule) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for week := 1; week <= s.Weeks(); week++ {
		conns, err := s.Week(week)
		if err != nil {
			return err
		}
		for _, c := range conns {
			kind := "pair"
			third := roulette.Participant{}
			if t, ok := c.Third.Get(); ok {
				kind = "triple"
				third = t
			}
			rec := []string{
				strconv.Itoa(week), kind,
				c.First.Name, c.First.Contact,
				c.Second.Name, c.Second.Contact,
				third.Name, third.Contact,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
