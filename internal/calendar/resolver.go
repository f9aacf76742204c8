package calendar

import (
	"fmt"
	"time"
	// Embedded zone database so resolution does not depend on the host.
	_ "time/tzdata"
)

// Moment is one invocation instant resolved in a merchant's timezone.
type Moment struct {
	Instant  time.Time // in the merchant location
	Date     string    // local calendar date, YYYY-MM-DD
	Today    Weekday
	Tomorrow Weekday // next open day after Today
	Clock    Clock   // local time of day
}

// CurrentDay converts now into loc using the full zone rules and returns its weekday.
func CurrentDay(now time.Time, loc *time.Location) Weekday {
	if loc == nil {
		loc = time.UTC
	}
	return FromTime(now.In(loc).Weekday())
}

// NextOpenDay advances one day at a time until it lands outside closed. It
// looks at most seven days ahead; when every day is closed the plain next day
// is returned.
func NextOpenDay(day Weekday, closed DaySet) Weekday {
	for i := 1; i <= 7; i++ {
		d := day.Add(i)
		if !closed.Has(d) {
			return d
		}
	}
	return day.Next()
}

// Resolver binds the calendar rules of a single merchant.
type Resolver struct {
	Location *time.Location
	Closed   DaySet
}

func NewResolver(timezone string, closed DaySet) (Resolver, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Resolver{}, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return Resolver{Location: loc, Closed: closed}, nil
}

// Resolve computes today and tomorrow for now. Tomorrow is derived from the
// local calendar date, never from now+24h, so DST days resolve correctly.
func (r Resolver) Resolve(now time.Time) Moment {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := FromTime(local.Weekday())

	y, m, d := local.Date()
	naive := FromTime(time.Date(y, m, d+1, 12, 0, 0, 0, loc).Weekday())
	tomorrow := naive
	if r.Closed.Has(naive) {
		tomorrow = NextOpenDay(today, r.Closed)
	}

	return Moment{
		Instant:  local,
		Date:     local.Format("2006-01-02"),
		Today:    today,
		Tomorrow: tomorrow,
		Clock:    ClockOf(local),
	}
}
