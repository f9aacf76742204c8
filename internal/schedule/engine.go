package schedule

import (
	"fmt"

	"github.com/example/menu-scheduler/internal/calendar"
)

// Resolve turns ev into one labeled batch per step, in step order, for the
// resolved moment m. The result depends only on its inputs.
func Resolve(ev Event, rs RuleSet, m calendar.Moment) (Plan, error) {
	plan := Plan{Event: ev.Name, Moment: m, Batches: make([]Batch, 0, len(ev.Steps))}

	type decided struct {
		visible bool
		label   string
	}
	seen := make(map[string]decided)

	for i, step := range ev.Steps {
		b, err := resolveStep(step, rs, m)
		if err != nil {
			return Plan{}, fmt.Errorf("event %q step %d: %w", ev.Name, i+1, err)
		}

		kept := make([]Transition, 0, len(b.Transitions))
		for _, t := range b.Transitions {
			if rs.alwaysVisible(t.Category.ID) {
				continue
			}
			if prev, ok := seen[t.Category.ID]; ok {
				if prev.visible != t.Visible {
					return Plan{}, &ConflictError{Event: ev.Name, Category: t.Category, First: prev.label, Second: b.Label}
				}
				continue
			}
			seen[t.Category.ID] = decided{visible: t.Visible, label: b.Label}
			kept = append(kept, t)
		}
		b.Transitions = kept
		plan.Batches = append(plan.Batches, b)
	}
	return plan, nil
}

func resolveStep(step Step, rs RuleSet, m calendar.Moment) (Batch, error) {
	if step.Action == ActionSync && step.Group == AllGroups {
		b := Batch{Label: labelOr(step.Label, "sync scheduled groups")}
		if skip, reason := offDay(step, m); skip {
			return notApplicable(b, reason), nil
		}
		for _, name := range rs.groupNames() {
			g := rs.Groups[name]
			if !g.Scheduled() {
				continue
			}
			b.Transitions = append(b.Transitions, syncGroup(g, m)...)
		}
		return b, nil
	}

	g, ok := rs.Groups[step.Group]
	if !ok {
		return Batch{}, fmt.Errorf("unknown group %q", step.Group)
	}

	switch step.Action {
	case ActionRotate:
		return rotate(step, g, m)
	case ActionShow, ActionHide:
		return toggle(step, g, m), nil
	case ActionSync:
		b := Batch{Label: labelOr(step.Label, "sync "+g.Name)}
		if skip, reason := offDay(step, m); skip {
			return notApplicable(b, reason), nil
		}
		b.Transitions = syncGroup(g, m)
		return b, nil
	default:
		return Batch{}, fmt.Errorf("unknown action %q", step.Action)
	}
}

// rotate hides today's entry and shows the entry of the next open day.
func rotate(step Step, g Group, m calendar.Moment) (Batch, error) {
	if !g.DayKeyed() {
		return Batch{}, fmt.Errorf("rotate needs a day-keyed group, %q is a fixed list", g.Name)
	}
	b := Batch{Label: labelOr(step.Label, fmt.Sprintf("rotate %s %s -> %s", g.Name, m.Today, m.Tomorrow))}
	if skip, reason := offDay(step, m); skip {
		return notApplicable(b, reason), nil
	}

	today, hasToday := g.ByDay[m.Today]
	next, hasNext := g.ByDay[m.Tomorrow]

	var notes []string
	if hasToday && !(hasNext && next.ID == today.ID) {
		b.Transitions = append(b.Transitions, Transition{Category: today, Visible: false})
	} else if !hasToday {
		notes = append(notes, fmt.Sprintf("no %s entry for %s", g.Name, m.Today))
	}
	if hasNext {
		b.Transitions = append(b.Transitions, Transition{Category: next, Visible: true})
	} else {
		notes = append(notes, fmt.Sprintf("no %s entry for %s", g.Name, m.Tomorrow))
	}

	if len(b.Transitions) == 0 {
		return notApplicable(b, joinNotes(notes)), nil
	}
	b.Reason = joinNotes(notes)
	return b, nil
}

func toggle(step Step, g Group, m calendar.Moment) Batch {
	visible := step.Action == ActionShow
	target := m.Today
	if step.Day == DayNext {
		target = m.Tomorrow
	}

	if !g.DayKeyed() {
		b := Batch{Label: labelOr(step.Label, fmt.Sprintf("%s %s", step.Action, g.Name))}
		if skip, reason := offDay(step, m); skip {
			return notApplicable(b, reason)
		}
		if step.Day != DayAll && !g.Days.Empty() && !g.Days.Has(target) {
			return notApplicable(b, fmt.Sprintf("%s only applies on %s, not %s", g.Name, g.Days, target))
		}
		for _, c := range g.Categories {
			b.Transitions = append(b.Transitions, Transition{Category: c, Visible: visible})
		}
		return b
	}

	if step.Day == DayAll {
		b := Batch{Label: labelOr(step.Label, fmt.Sprintf("%s all %s", step.Action, g.Name))}
		if skip, reason := offDay(step, m); skip {
			return notApplicable(b, reason)
		}
		for _, e := range g.Entries() {
			b.Transitions = append(b.Transitions, Transition{Category: e.Category, Visible: visible})
		}
		return b
	}

	b := Batch{Label: labelOr(step.Label, fmt.Sprintf("%s %s[%s]", step.Action, g.Name, target))}
	if skip, reason := offDay(step, m); skip {
		return notApplicable(b, reason)
	}
	c, ok := g.ByDay[target]
	if !ok {
		return notApplicable(b, fmt.Sprintf("no %s entry for %s", g.Name, target))
	}
	b.Transitions = []Transition{{Category: c, Visible: visible}}
	return b
}

// syncGroup derives the state the group should have at m from its rule alone.
func syncGroup(g Group, m calendar.Moment) []Transition {
	if g.DayKeyed() {
		out := make([]Transition, 0, len(g.ByDay))
		for _, e := range g.Entries() {
			days := calendar.NewDaySet(e.Day)
			if !g.Days.Empty() && !g.Days.Has(e.Day) {
				days = 0
			}
			visible := !days.Empty() && activeAt(g.Window, days, m)
			out = append(out, Transition{Category: e.Category, Visible: visible})
		}
		return out
	}

	visible := activeAt(g.Window, g.Days, m)
	out := make([]Transition, 0, len(g.Categories))
	for _, c := range g.Categories {
		out = append(out, Transition{Category: c, Visible: visible})
	}
	return out
}

func activeAt(w *calendar.Window, days calendar.DaySet, m calendar.Moment) bool {
	if w == nil {
		return days.Empty() || days.Has(m.Today)
	}
	return w.ActiveOn(days, m.Today, m.Clock)
}

func offDay(step Step, m calendar.Moment) (bool, string) {
	if step.OnDays.Empty() || step.OnDays.Has(m.Today) {
		return false, ""
	}
	return true, fmt.Sprintf("not applicable today: runs on %s, today is %s", step.OnDays, m.Today)
}

func notApplicable(b Batch, reason string) Batch {
	b.NotApplicable = true
	b.Reason = reason
	b.Transitions = nil
	return b
}

func labelOr(label, def string) string {
	if label != "" {
		return label
	}
	return def
}

func joinNotes(notes []string) string {
	out := ""
	for i, n := range notes {
		if i > 0 {
			out += "; "
		}
		out += n
	}
	return out
}
