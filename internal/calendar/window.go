package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a local time of day in minutes after midnight.
type Clock int

func ClockOf(t time.Time) Clock { return Clock(t.Hour()*60 + t.Minute()) }

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock(h*60 + m), nil
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60) }

// Window is a daily [Start, End) interval. End before Start spans midnight and
// the overnight part belongs to the day the window started on.
type Window struct {
	Start Clock
	End   Clock
}

func (w Window) Overnight() bool { return w.End < w.Start }

// ActiveOn reports whether the window is open at clock c on day today, given
// the set of days the window may start on (empty means every day).
func (w Window) ActiveOn(days DaySet, today Weekday, c Clock) bool {
	allowed := func(d Weekday) bool { return days.Empty() || days.Has(d) }
	if w.Start == w.End {
		return allowed(today)
	}
	if !w.Overnight() {
		return allowed(today) && c >= w.Start && c < w.End
	}
	if c >= w.Start {
		return allowed(today)
	}
	if c < w.End {
		return allowed(today.Add(-1))
	}
	return false
}

func (w Window) String() string { return w.Start.String() + "-" + w.End.String() }
