package export

import (
	"encoding/json"
	"io"

	"rondo/internal/roulette"
)

type jsonParticipant struct {
	Name    string  `json:"name"`
	Contact string  `json:"contact"`
	Team    *string `json:"team,omitempty"`
	Year    *int    `json:"year,omitempty"`
}

type jsonConnection struct {
	Kind    string            `json:"kind"`
	Members []jsonParticipant `json:"members"`
}

type jsonWeek struct {
	Week        int              `json:"week"`
	Connections []jsonConnection `json:"connections"`
}

// WriteJSON renders the whole schedule as a week array.
func WriteJSON(w io.Writer, s *roulette.Schedule) error {
	weeks := make([]jsonWeek, 0, s.Weeks())
	for week := 1; week <= s.Weeks(); week++ {
		conns, err := s.Week(week)
		if err != nil {
			return err
		}
		jw := jsonWeek{Week: week, Connections: make([]jsonConnection, 0, len(conns))}
		for _, c := range conns {
			jc := jsonConnection{Kind: "pair"}
			if c.IsTriple() {
				jc.Kind = "triple"
			}
			for _, m := range c.Members() {
				jc.Members = append(jc.Members, toJSONParticipant(m))
			}
			jw.Connections = append(jw.Connections, jc)
		}
		weeks = append(weeks, jw)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(weeks)
}

func toJSONParticipant(p roulette.Participant) jsonParticipant {
	jp := jsonParticipant{Name: p.Name, Contact: p.Contact}
	if team, ok := p.Team.Get(); ok {
		jp.Team = &team
	}
	if year, ok := p.Year.Get(); ok {
		jp.Year = &year
	}
	return jp
}
