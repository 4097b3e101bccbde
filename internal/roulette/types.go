package roulette

import (
	"errors"
	"fmt"
)

var (
	// ErrRosterTooSmall is returned by Generate for rosters with fewer than
	// two participants.
	ErrRosterTooSmall = errors.New("roulette: roster needs at least 2 participants")

	// ErrWeekOutOfRange is returned by Schedule.Week for week numbers outside
	// 1..Weeks().
	ErrWeekOutOfRange = errors.New("roulette: week out of range")
)

// Opt is an explicit optional value. The zero value is "absent".
//
// It keeps enclosing structs comparable, so participants can be matched by
// value even across copies (unlike pointer-based optionals).
type Opt[T comparable] struct {
	val T
	set bool
}

func Some[T comparable](v T) Opt[T] { return Opt[T]{val: v, set: true} }

func None[T comparable]() Opt[T] { return Opt[T]{} }

func (o Opt[T]) Get() (T, bool) { return o.val, o.set }

func (o Opt[T]) IsSet() bool { return o.set }

// Or returns the value when set, def otherwise.
func (o Opt[T]) Or(def T) T {
	if o.set {
		return o.val
	}
	return def
}

// Participant is one member of the roster.
//
// Name is a display label and not guaranteed unique. Contact is the address
// used for notification; its format is never inspected here. Team and Year
// are reporting-only classification and never influence pairing.
//
// Participants are plain comparable values: two participants are the same
// participant exactly when all fields match.
type Participant struct {
	Name    string
	Contact string
	Team    Opt[string]
	Year    Opt[int]
}

// Roster is the ordered participant list for one scheduling run. Order is
// caller-determined and preserved; it decides which week produces which
// pairing.
type Roster []Participant

// Add appends a participant. Each added participant also adds one week to
// the generated schedule.
func (r *Roster) Add(p Participant) { *r = append(*r, p) }

func (r Roster) Len() int { return len(r) }

// Connection is one week's grouping of two or three participants. The third
// slot is absent for a plain pair; consumers must branch on IsTriple rather
// than assume a fixed arity.
type Connection struct {
	First  Participant
	Second Participant
	Third  Opt[Participant]
}

func Pair(a, b Participant) Connection {
	return Connection{First: a, Second: b}
}

func Triple(a, b, c Participant) Connection {
	return Connection{First: a, Second: b, Third: Some(c)}
}

func (c Connection) IsTriple() bool { return c.Third.IsSet() }

// Members lists the 2 or 3 participants in slot order.
func (c Connection) Members() []Participant {
	out := []Participant{c.First, c.Second}
	if t, ok := c.Third.Get(); ok {
		out = append(out, t)
	}
	return out
}

// Has reports whether p is a member, matching by value.
func (c Connection) Has(p Participant) bool {
	if c.First == p || c.Second == p {
		return true
	}
	t, ok := c.Third.Get()
	return ok && t == p
}

// Others returns the member(s) of the connection other than p, or nil when
// p is not a member.
func (c Connection) Others(p Participant) []Participant {
	if !c.Has(p) {
		return nil
	}
	out := make([]Participant, 0, 2)
	for _, m := range c.Members() {
		if m != p {
			out = append(out, m)
		}
	}
	return out
}

// Schedule is the ordered sequence of weekly partitions produced by
// Generate. It is read-only after generation.
type Schedule struct {
	weeks [][]Connection
}

// Weeks returns the number of weeks, which always equals the roster size
// the schedule was generated from.
func (s *Schedule) Weeks() int { return len(s.weeks) }

// Week returns the connections of week n. Weeks are numbered from 1 on all
// external surfaces; n outside 1..Weeks() yields ErrWeekOutOfRange.
func (s *Schedule) Week(n int) ([]Connection, error) {
	if n < 1 || n > len(s.weeks) {
		return nil, fmt.Errorf("%w: week %d of %d", ErrWeekOutOfRange, n, len(s.weeks))
	}
	w := s.weeks[n-1]
	out := make([]Connection, len(w))
	copy(out, w)
	return out, nil
}
