package merchant

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/menu-scheduler/internal/calendar"
	"github.com/example/menu-scheduler/internal/config"
	"github.com/example/menu-scheduler/internal/schedule"
)

const minimal = `
merchants:
  pappy-jacks:
    name: "Pappy Jack's"
    merchant_id: m-1
    timezone: America/Chicago
    closed_days: [monday]
    always_visible:
      - { id: tip, name: Tip }
    groups:
      daily_specials:
        by_day:
          tuesday: { id: a, name: Special A }
          wednesday: { id: b, name: Special B, view_type: grid, sort_order: 2 }
    events:
      evening-rotation:
        cron: "0 22 * * *"
        steps:
          - { group: daily_specials, action: rotate }
`

func TestParseMinimal(t *testing.T) {
	reg, err := Parse(strings.NewReader(minimal))
	require.NoError(t, err)
	assert.Equal(t, []string{"pappy-jacks"}, reg.Keys())

	m, err := reg.Get("pappy-jacks")
	require.NoError(t, err)
	assert.Equal(t, "m-1", m.MerchantID)
	assert.NoError(t, m.RequireMerchantID())
	assert.True(t, m.Rules.Closed.Has(calendar.Monday))
	assert.Equal(t, "America/Chicago", m.Resolver.Location.String())

	g := m.Rules.Groups["daily_specials"]
	assert.True(t, g.DayKeyed())
	assert.Equal(t, schedule.Category{ID: "b", Name: "Special B", SortOrder: 2, ViewType: schedule.ViewGrid}, g.ByDay[calendar.Wednesday])
	assert.Equal(t, schedule.ViewList, g.ByDay[calendar.Tuesday].ViewType)

	ev := m.Rules.Events["evening-rotation"]
	require.Len(t, ev.Steps, 1)
	assert.Equal(t, schedule.DayToday, ev.Steps[0].Day)
	assert.Equal(t, schedule.ActionRotate, ev.Steps[0].Action)
}

func TestParseRotationExample(t *testing.T) {
	reg, err := Parse(strings.NewReader(minimal))
	require.NoError(t, err)
	m, err := reg.Get("pappy-jacks")
	require.NoError(t, err)

	// Tuesday 2024-06-04 22:00 CDT.
	moment := m.Resolver.Resolve(time.Date(2024, 6, 5, 3, 0, 0, 0, time.UTC))
	ev, err := m.Rules.Event("evening-rotation")
	require.NoError(t, err)
	plan, err := schedule.Resolve(ev, m.Rules, moment)
	require.NoError(t, err)

	require.Len(t, plan.Batches, 1)
	tr := plan.Batches[0].Transitions
	require.Len(t, tr, 2)
	assert.Equal(t, "a", tr[0].Category.ID)
	assert.False(t, tr[0].Visible)
	assert.Equal(t, "b", tr[1].Category.ID)
	assert.True(t, tr[1].Visible)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want string
	}{
		{name: "Should reject unknown keys", from: "    timezone:", to: "    tz: x\n    timezone:", want: "field tz not found"},
		{name: "Should reject unknown action", from: "action: rotate", to: "action: flip", want: "action must be one of show, hide, rotate, sync"},
		{name: "Should reject bad weekday key", from: "tuesday: { id: a", to: "tuesdy: { id: a", want: "is not a weekday"},
		{name: "Should reject bad closed day", from: "[monday]", to: "[mondays]", want: "is not a weekday"},
		{name: "Should reject bad cron", from: `"0 22 * * *"`, to: `"every night"`, want: "is not a cron expression"},
		{name: "Should reject unknown timezone", from: "America/Chicago", to: "America/Gotham", want: "timezone"},
		{name: "Should reject unknown group", from: "group: daily_specials", to: "group: specials", want: `unknown group "specials"`},
		{name: "Should reject missing merchant id", from: "    merchant_id: m-1\n", to: "", want: "merchant_id is required"},
		{name: "Should reject every day closed", from: "[monday]", to: "[sunday-saturday]", want: "every day is closed"},
		{name: "Should reject scheduling an always visible category", from: "id: tip", to: "id: a", want: "always visible"},
		{name: "Should reject window with bad clock", from: "      daily_specials:\n", to: "      daily_specials:\n        window: { start: \"25:00\", end: \"11:00\" }\n", want: "is not a HH:MM time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := strings.Replace(minimal, tt.from, tt.to, 1)
			require.NotEqual(t, minimal, doc)

			_, err := Parse(strings.NewReader(doc))
			require.Error(t, err)
			var cerr *config.ConfigurationError
			assert.True(t, errors.As(err, &cerr))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseGroupShape(t *testing.T) {
	doc := `
merchants:
  tuscanys:
    name: "Tuscany's"
    merchant_id_env: TUSCANYS_MERCHANT_ID
    timezone: America/Chicago
    groups:
      lunch_specials:
        days: [monday-friday]
      weekday_special:
        categories:
          - { id: w, name: Weekday Special }
          - { id: w, name: Weekday Special }
    events:
      evening-prep:
        steps:
          - { group: weekday_special, action: rotate }
          - { group: "*", action: show }
`
	_, err := Parse(strings.NewReader(doc))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "groups[lunch_specials]: needs categories or by_day")
	assert.Contains(t, msg, "listed twice")
	assert.Contains(t, msg, "rotate needs a by_day group")
	assert.Contains(t, msg, `group "*" is only valid with action sync`)
}

func TestMerchantIDFromEnv(t *testing.T) {
	doc := strings.Replace(minimal, "merchant_id: m-1", "merchant_id_env: PAPPY_JACKS_MERCHANT_ID", 1)

	t.Setenv("PAPPY_JACKS_MERCHANT_ID", "")
	reg, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	m, _ := reg.Get("pappy-jacks")
	var cerr *config.ConfigurationError
	require.True(t, errors.As(m.RequireMerchantID(), &cerr))
	assert.Equal(t, "PAPPY_JACKS_MERCHANT_ID", cerr.Key)

	t.Setenv("PAPPY_JACKS_MERCHANT_ID", "6877e78a")
	reg, err = Parse(strings.NewReader(doc))
	require.NoError(t, err)
	m, _ = reg.Get("pappy-jacks")
	assert.Equal(t, "6877e78a", m.MerchantID)
}

func TestNextFire(t *testing.T) {
	reg, err := Parse(strings.NewReader(minimal))
	require.NoError(t, err)
	m, _ := reg.Get("pappy-jacks")

	// 2024-06-04 18:30 CDT; the next 22:00 local is the same evening.
	next, ok := m.NextFire("evening-rotation", time.Date(2024, 6, 4, 23, 30, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 5, 3, 0, 0, 0, time.UTC), next.UTC())

	_, ok = m.NextFire("missing", time.Now())
	assert.False(t, ok)
}

func TestRegistryGet(t *testing.T) {
	reg := NewRegistry(Merchant{Key: "howells"}, Merchant{Key: "tuscanys"})

	_, err := reg.Get("howels")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "howells"?`)
	assert.Contains(t, err.Error(), "use one of: howells, tuscanys")
}

func TestLoadExampleFile(t *testing.T) {
	for _, env := range []string{"HYPERZOD_MERCHANT_ID", "DOS_HERMANOS_MERCHANT_ID", "ALVIN_ORDS_MERCHANT_ID",
		"HOWELLS_MERCHANT_ID", "MCDONALDS_1_MERCHANT_ID", "PAPPY_JACKS_MERCHANT_ID", "TUSCANYS_MERCHANT_ID"} {
		t.Setenv(env, "id-"+env)
	}

	reg, err := Load("../../merchants.example.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"alvin-ords", "dos-hermanos", "howells", "mcdonalds-1", "pappy-jacks", "smoke-shack", "tuscanys",
	}, reg.Keys())

	for _, m := range reg.All() {
		assert.NoError(t, m.RequireMerchantID(), m.Key)
	}

	howells, err := reg.Get("howells")
	require.NoError(t, err)
	// Monday 2024-06-03 16:00 CDT: tonight's special only runs Wed-Fri.
	moment := howells.Resolver.Resolve(time.Date(2024, 6, 3, 21, 0, 0, 0, time.UTC))
	plan, err := schedule.Resolve(howells.Rules.Events["evening-special"], howells.Rules, moment)
	require.NoError(t, err)
	assert.True(t, plan.Batches[0].NotApplicable)
	assert.Equal(t, 0, plan.Len())

	tuscanys, err := reg.Get("tuscanys")
	require.NoError(t, err)
	// Sunday 2024-06-09 22:00 CDT.
	moment = tuscanys.Resolver.Resolve(time.Date(2024, 6, 10, 3, 0, 0, 0, time.UTC))
	plan, err = schedule.Resolve(tuscanys.Rules.Events["evening-prep"], tuscanys.Rules, moment)
	require.NoError(t, err)
	require.Len(t, plan.Batches, 3)
	assert.False(t, plan.Batches[0].NotApplicable)
	assert.False(t, plan.Batches[1].NotApplicable)
	assert.True(t, plan.Batches[2].NotApplicable)

	_, err = Load("does-not-exist.yaml")
	require.Error(t, err)
}
