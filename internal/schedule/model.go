package schedule

import (
	"sort"

	"github.com/example/menu-scheduler/internal/calendar"
)

type ViewType string

const (
	ViewList ViewType = "list"
	ViewGrid ViewType = "grid"
)

// Category is catalog reference data. The scheduler never mutates it; the
// display fields are carried because the catalog update also upserts them.
type Category struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	SortOrder int      `json:"sort_order"`
	ViewType  ViewType `json:"view_type"`
}

// Group binds categories to the days and hours they should be visible.
// A group is either a fixed list (Categories) or keyed by weekday (ByDay).
type Group struct {
	Name       string
	Categories []Category
	ByDay      map[calendar.Weekday]Category

	// Days restricts the days the group may be visible on. Empty means every day.
	Days calendar.DaySet
	// Window is the optional time of day the group is visible.
	Window *calendar.Window
}

func (g Group) DayKeyed() bool { return len(g.ByDay) > 0 }

// Scheduled reports whether the group carries enough rule data to derive its
// state from the clock alone.
func (g Group) Scheduled() bool { return !g.Days.Empty() || g.Window != nil }

// Entries returns the day-keyed categories in week order.
func (g Group) Entries() []DayEntry {
	out := make([]DayEntry, 0, len(g.ByDay))
	for _, d := range calendar.AllDays {
		if c, ok := g.ByDay[d]; ok {
			out = append(out, DayEntry{Day: d, Category: c})
		}
	}
	return out
}

type DayEntry struct {
	Day      calendar.Weekday
	Category Category
}

type Action string

const (
	ActionShow   Action = "show"
	ActionHide   Action = "hide"
	ActionRotate Action = "rotate"
	ActionSync   Action = "sync"
)

// DaySelector picks which day a step targets.
type DaySelector string

const (
	DayToday DaySelector = "today"
	DayNext  DaySelector = "next"
	DayAll   DaySelector = "all"
)

// AllGroups may be used as the group of a sync step.
const AllGroups = "*"

// Step is one labeled unit of an event.
type Step struct {
	Label  string
	Group  string
	Action Action
	Day    DaySelector
	// OnDays limits the days the step fires on. Empty means every day.
	OnDays calendar.DaySet
}

// Event is a named trigger mapped to a fixed procedure.
type Event struct {
	Name        string
	Description string
	Cron        string
	Steps       []Step
}

// RuleSet is the complete schedule data of one merchant.
type RuleSet struct {
	Timezone      string
	Closed        calendar.DaySet
	AlwaysVisible []Category
	Groups        map[string]Group
	Events        map[string]Event
}

// EventNames returns the recognized event names sorted.
func (rs RuleSet) EventNames() []string {
	out := make([]string, 0, len(rs.Events))
	for name := range rs.Events {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Event looks up an event by name.
func (rs RuleSet) Event(name string) (Event, error) {
	if ev, ok := rs.Events[name]; ok {
		return ev, nil
	}
	known := rs.EventNames()
	return Event{}, &UnknownEventError{Event: name, Known: known, Suggestion: closest(name, known)}
}

func (rs RuleSet) alwaysVisible(id string) bool {
	for _, c := range rs.AlwaysVisible {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (rs RuleSet) groupNames() []string {
	out := make([]string, 0, len(rs.Groups))
	for name := range rs.Groups {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Transition is one desired visibility for one category.
type Transition struct {
	Category Category `json:"category"`
	Visible  bool     `json:"visible"`
}

func (t Transition) State() string {
	if t.Visible {
		return "ON"
	}
	return "OFF"
}

// Batch is the labeled output of one step.
type Batch struct {
	Label         string       `json:"label"`
	Transitions   []Transition `json:"transitions"`
	NotApplicable bool         `json:"not_applicable,omitempty"`
	Reason        string       `json:"reason,omitempty"`
}

// Plan is the ordered set of batches an event resolved to.
type Plan struct {
	Event   string          `json:"event"`
	Moment  calendar.Moment `json:"-"`
	Batches []Batch         `json:"batches"`
}

func (p Plan) Len() int {
	n := 0
	for _, b := range p.Batches {
		n += len(b.Transitions)
	}
	return n
}
