package merchant

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/example/menu-scheduler/internal/calendar"
	"github.com/example/menu-scheduler/internal/config"
	"github.com/example/menu-scheduler/internal/schedule"
)

// Merchant is one validated merchant with its rule set.
type Merchant struct {
	Key           string
	Name          string
	MerchantID    string
	MerchantIDEnv string
	Resolver      calendar.Resolver
	Rules         schedule.RuleSet
}

// RequireMerchantID fails when the catalog merchant id could not be resolved.
func (m Merchant) RequireMerchantID() error {
	if m.MerchantID != "" {
		return nil
	}
	return &config.ConfigurationError{Key: m.MerchantIDEnv, Reason: fmt.Sprintf("merchant id for %s is not set", m.Key)}
}

// NextFire returns the next time event fires after t according to its cron
// expression, in the merchant timezone. ok is false for events without one.
func (m Merchant) NextFire(event string, t time.Time) (next time.Time, ok bool) {
	ev, found := m.Rules.Events[event]
	if !found || ev.Cron == "" {
		return time.Time{}, false
	}
	sched, err := cronParser.Parse(ev.Cron)
	if err != nil {
		return time.Time{}, false
	}
	loc := m.Resolver.Location
	if loc == nil {
		loc = time.UTC
	}
	return sched.Next(t.In(loc)), true
}

// Registry holds every merchant of a merchants file.
type Registry struct {
	merchants map[string]Merchant
}

func NewRegistry(ms ...Merchant) *Registry {
	r := &Registry{merchants: make(map[string]Merchant, len(ms))}
	for _, m := range ms {
		r.merchants[m.Key] = m
	}
	return r
}

// Keys returns the merchant keys sorted.
func (r *Registry) Keys() []string {
	out := make([]string, 0, len(r.merchants))
	for k := range r.merchants {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) All() []Merchant {
	out := make([]Merchant, 0, len(r.merchants))
	for _, k := range r.Keys() {
		out = append(out, r.merchants[k])
	}
	return out
}

// Get looks up a merchant by key.
func (r *Registry) Get(key string) (Merchant, error) {
	if m, ok := r.merchants[key]; ok {
		return m, nil
	}
	keys := r.Keys()
	msg := fmt.Sprintf("unknown merchant %q; use one of: %s", key, strings.Join(keys, ", "))
	if s := suggest(key, keys); s != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", s)
	}
	return Merchant{}, &config.ConfigurationError{Key: "merchant", Reason: msg}
}

func suggest(name string, known []string) string {
	best, bestDist := "", len(name)/2+1
	for _, k := range known {
		if d := levenshtein.ComputeDistance(name, k); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

func build(f file) (*Registry, error) {
	keys := make([]string, 0, len(f.Merchants))
	for k := range f.Merchants {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var problems []string
	reg := NewRegistry()
	for _, key := range keys {
		m, errs := buildMerchant(key, f.Merchants[key])
		if len(errs) > 0 {
			for _, e := range errs {
				problems = append(problems, fmt.Sprintf("merchants[%s]: %s", key, e))
			}
			continue
		}
		reg.merchants[key] = m
	}
	if len(problems) > 0 {
		return nil, &config.ConfigurationError{Key: "merchants", Reason: strings.Join(problems, "; ")}
	}
	return reg, nil
}

func buildMerchant(key string, spec merchantSpec) (Merchant, []string) {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	closed, err := calendar.ParseDays(spec.ClosedDays)
	if err != nil {
		fail("closed_days: %v", err)
	}
	if closed.Len() == len(calendar.AllDays) {
		fail("closed_days: every day is closed")
	}

	resolver, err := calendar.NewResolver(spec.Timezone, closed)
	if err != nil {
		fail("timezone: %v", err)
	}

	rs := schedule.RuleSet{
		Timezone: spec.Timezone,
		Closed:   closed,
		Groups:   make(map[string]schedule.Group, len(spec.Groups)),
		Events:   make(map[string]schedule.Event, len(spec.Events)),
	}

	always := make(map[string]bool, len(spec.AlwaysVisible))
	for _, c := range spec.AlwaysVisible {
		rs.AlwaysVisible = append(rs.AlwaysVisible, toCategory(c))
		always[c.ID] = true
	}

	for _, name := range sortedKeys(spec.Groups) {
		g, errs := buildGroup(name, spec.Groups[name], always)
		for _, e := range errs {
			fail("groups[%s]: %s", name, e)
		}
		rs.Groups[name] = g
	}

	for _, name := range sortedKeys(spec.Events) {
		ev, errs := buildEvent(name, spec.Events[name], rs.Groups)
		for _, e := range errs {
			fail("events[%s]: %s", name, e)
		}
		rs.Events[name] = ev
	}

	m := Merchant{
		Key:           key,
		Name:          spec.Name,
		MerchantID:    spec.MerchantID,
		MerchantIDEnv: spec.MerchantIDEnv,
		Resolver:      resolver,
		Rules:         rs,
	}
	if m.MerchantID == "" {
		m.MerchantID = strings.TrimSpace(os.Getenv(spec.MerchantIDEnv))
	}
	return m, problems
}

func buildGroup(name string, spec groupSpec, always map[string]bool) (schedule.Group, []string) {
	var problems []string
	g := schedule.Group{Name: name}

	switch {
	case len(spec.Categories) > 0 && len(spec.ByDay) > 0:
		problems = append(problems, "set either categories or by_day, not both")
	case len(spec.Categories) == 0 && len(spec.ByDay) == 0:
		problems = append(problems, "needs categories or by_day")
	}

	days, err := calendar.ParseDays(spec.Days)
	if err != nil {
		problems = append(problems, err.Error())
	}
	g.Days = days

	if spec.Window != nil {
		start, err1 := calendar.ParseClock(spec.Window.Start)
		end, err2 := calendar.ParseClock(spec.Window.End)
		if err1 != nil || err2 != nil {
			problems = append(problems, "window: invalid start or end")
		} else {
			g.Window = &calendar.Window{Start: start, End: end}
		}
	}

	seen := make(map[string]bool)
	check := func(c categorySpec) {
		if always[c.ID] {
			problems = append(problems, fmt.Sprintf("category %s (%s) is always visible and cannot be scheduled", c.ID, c.Name))
		}
		if seen[c.ID] {
			problems = append(problems, fmt.Sprintf("category %s (%s) is listed twice", c.ID, c.Name))
		}
		seen[c.ID] = true
	}

	for _, c := range spec.Categories {
		check(c)
		g.Categories = append(g.Categories, toCategory(c))
	}
	if len(spec.ByDay) > 0 {
		g.ByDay = make(map[calendar.Weekday]schedule.Category, len(spec.ByDay))
		for _, dayName := range sortedKeys(spec.ByDay) {
			d, err := calendar.ParseWeekday(dayName)
			if err != nil {
				problems = append(problems, err.Error())
				continue
			}
			if _, dup := g.ByDay[d]; dup {
				problems = append(problems, fmt.Sprintf("by_day: %s is listed twice", d))
				continue
			}
			c := spec.ByDay[dayName]
			if always[c.ID] {
				problems = append(problems, fmt.Sprintf("category %s (%s) is always visible and cannot be scheduled", c.ID, c.Name))
			}
			g.ByDay[d] = toCategory(c)
		}
	}
	return g, problems
}

func buildEvent(name string, spec eventSpec, groups map[string]schedule.Group) (schedule.Event, []string) {
	var problems []string
	ev := schedule.Event{Name: name, Description: spec.Description, Cron: spec.Cron}

	for i, s := range spec.Steps {
		step := schedule.Step{
			Label:  s.Label,
			Group:  s.Group,
			Action: schedule.Action(s.Action),
			Day:    schedule.DaySelector(s.Day),
		}
		if step.Day == "" {
			step.Day = schedule.DayToday
		}
		onDays, err := calendar.ParseDays(s.OnDays)
		if err != nil {
			problems = append(problems, fmt.Sprintf("steps[%d]: %v", i, err))
		}
		step.OnDays = onDays

		if s.Group == schedule.AllGroups {
			if step.Action != schedule.ActionSync {
				problems = append(problems, fmt.Sprintf("steps[%d]: group %q is only valid with action sync", i, s.Group))
			}
		} else if g, ok := groups[s.Group]; !ok {
			problems = append(problems, fmt.Sprintf("steps[%d]: unknown group %q", i, s.Group))
		} else if step.Action == schedule.ActionRotate && !g.DayKeyed() {
			problems = append(problems, fmt.Sprintf("steps[%d]: rotate needs a by_day group, %q has none", i, s.Group))
		}
		ev.Steps = append(ev.Steps, step)
	}
	return ev, problems
}

func toCategory(c categorySpec) schedule.Category {
	vt := schedule.ViewType(c.ViewType)
	if vt == "" {
		vt = schedule.ViewList
	}
	return schedule.Category{ID: c.ID, Name: c.Name, SortOrder: c.SortOrder, ViewType: vt}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
