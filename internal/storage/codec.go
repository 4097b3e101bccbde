package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"rondo/internal/roulette"
)

// Serialized shapes shared by the file and sqlite backends. The json tags are
// a stable on-disk format; change them only with a migration.

type memberRec struct {
	Name    string  `json:"name"`
	Contact string  `json:"contact"`
	Team    *string `json:"team,omitempty"`
	Year    *int    `json:"year,omitempty"`
}

type connectionRec struct {
	Members []memberRec `json:"members"`
}

type scheduleRec struct {
	Weeks [][]connectionRec `json:"weeks"`
}

type runRec struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	Seed      *int64      `json:"seed,omitempty"`
	NextWeek  int         `json:"next_week"`
	Schedule  scheduleRec `json:"schedule"`
}

func toMemberRec(p roulette.Participant) memberRec {
	m := memberRec{Name: p.Name, Contact: p.Contact}
	if t, ok := p.Team.Get(); ok {
		m.Team = &t
	}
	if y, ok := p.Year.Get(); ok {
		m.Year = &y
	}
	return m
}

func (m memberRec) participant() roulette.Participant {
	p := roulette.Participant{Name: m.Name, Contact: m.Contact}
	if m.Team != nil {
		p.Team = roulette.Some(*m.Team)
	}
	if m.Year != nil {
		p.Year = roulette.Some(*m.Year)
	}
	return p
}

func toScheduleRec(weeks [][]roulette.Connection) scheduleRec {
	out := scheduleRec{Weeks: make([][]connectionRec, 0, len(weeks))}
	for _, conns := range weeks {
		wk := make([]connectionRec, 0, len(conns))
		for _, c := range conns {
			rec := connectionRec{}
			for _, m := range c.Members() {
				rec.Members = append(rec.Members, toMemberRec(m))
			}
			wk = append(wk, rec)
		}
		out.Weeks = append(out.Weeks, wk)
	}
	return out
}

func (s scheduleRec) connections() ([][]roulette.Connection, error) {
	out := make([][]roulette.Connection, 0, len(s.Weeks))
	for wi, wk := range s.Weeks {
		conns := make([]roulette.Connection, 0, len(wk))
		for _, rec := range wk {
			switch len(rec.Members) {
			case 2:
				conns = append(conns, roulette.Pair(rec.Members[0].participant(), rec.Members[1].participant()))
			case 3:
				conns = append(conns, roulette.Triple(rec.Members[0].participant(), rec.Members[1].participant(), rec.Members[2].participant()))
			default:
				return nil, fmt.Errorf("storage: week %d has a connection with %d members", wi+1, len(rec.Members))
			}
		}
		out = append(out, conns)
	}
	return out, nil
}

func toRunRec(r Run) runRec {
	return runRec{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Seed:      r.Seed,
		NextWeek:  r.NextWeek,
		Schedule:  toScheduleRec(r.Weeks),
	}
}

func (r runRec) run() (Run, error) {
	weeks, err := r.Schedule.connections()
	if err != nil {
		return Run{}, err
	}
	return Run{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Seed:      r.Seed,
		NextWeek:  r.NextWeek,
		Weeks:     weeks,
	}, nil
}

func weekOf(r Run, week int) ([]roulette.Connection, error) {
	if week < 1 || week > len(r.Weeks) {
		return nil, ErrNotFound
	}
	return r.Weeks[week-1], nil
}

func encodeSchedule(weeks [][]roulette.Connection) ([]byte, error) {
	return json.Marshal(toScheduleRec(weeks))
}

func decodeSchedule(b []byte) ([][]roulette.Connection, error) {
	var rec scheduleRec
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return rec.connections()
}
