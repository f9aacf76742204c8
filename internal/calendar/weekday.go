package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is the canonical day-of-week shared by the resolver and every rule set.
// Values match time.Weekday so conversion is free.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var weekdayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// AllDays lists the week in canonical order.
var AllDays = []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

func FromTime(d time.Weekday) Weekday { return Weekday(d) }

func (d Weekday) Valid() bool { return d >= Sunday && d <= Saturday }

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// Title returns the capitalized name, e.g. "Tuesday".
func (d Weekday) Title() string {
	s := d.String()
	if !d.Valid() {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Add moves n days forward (or backward when negative), wrapping around the week.
func (d Weekday) Add(n int) Weekday {
	v := (int(d) + n) % 7
	if v < 0 {
		v += 7
	}
	return Weekday(v)
}

func (d Weekday) Next() Weekday { return d.Add(1) }

func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(b []byte) error {
	v, err := ParseWeekday(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ParseWeekday accepts full names and three letter abbreviations in any case.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		for i, name := range weekdayNames {
			if s == name || s == name[:3] {
				return Weekday(i), nil
			}
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// DaySet is a set of weekdays stored as a bitmask.
type DaySet uint8

func NewDaySet(days ...Weekday) DaySet {
	var s DaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

func (s DaySet) With(d Weekday) DaySet {
	if !d.Valid() {
		return s
	}
	return s | 1<<uint(d)
}

func (s DaySet) Has(d Weekday) bool { return d.Valid() && s&(1<<uint(d)) != 0 }

func (s DaySet) Empty() bool { return s == 0 }

func (s DaySet) Len() int {
	n := 0
	for _, d := range AllDays {
		if s.Has(d) {
			n++
		}
	}
	return n
}

// Days returns the members in Sunday-first order.
func (s DaySet) Days() []Weekday {
	out := make([]Weekday, 0, 7)
	for _, d := range AllDays {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s DaySet) String() string {
	days := s.Days()
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()
	}
	return strings.Join(names, ",")
}

// ParseDays parses a list of day specs. Each entry is a single day ("mon") or an
// inclusive range ("wednesday-friday"); ranges may wrap ("fri-mon").
func ParseDays(specs []string) (DaySet, error) {
	var s DaySet
	for _, spec := range specs {
		from, to, isRange := strings.Cut(spec, "-")
		start, err := ParseWeekday(from)
		if err != nil {
			return 0, err
		}
		if !isRange {
			s = s.With(start)
			continue
		}
		end, err := ParseWeekday(to)
		if err != nil {
			return 0, err
		}
		for d := start; ; d = d.Next() {
			s = s.With(d)
			if d == end {
				break
			}
		}
	}
	return s, nil
}
