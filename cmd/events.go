package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/menu-scheduler/internal/merchant"
)

// selectMerchants returns one merchant when key is set, otherwise all of them.
func (a *app) selectMerchants(key string) ([]merchant.Merchant, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	if key == "" {
		return reg.All(), nil
	}
	m, err := reg.Get(key)
	if err != nil {
		return nil, &usageError{err: err}
	}
	return []merchant.Merchant{m}, nil
}

func newEventsCmd(a *app) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List merchants, their events and when each event next fires",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := a.selectMerchants(key)
			if err != nil {
				return err
			}
			now := time.Now()
			out := cmd.OutOrStdout()
			for _, m := range ms {
				moment := m.Resolver.Resolve(now)
				fmt.Fprintf(out, "%s (%s) %s, today %s, tomorrow %s\n",
					m.Key, m.Name, m.Rules.Timezone, moment.Today.Title(), moment.Tomorrow.Title())
				for _, name := range m.Rules.EventNames() {
					ev := m.Rules.Events[name]
					next := "manual"
					if t, ok := m.NextFire(name, now); ok {
						next = t.Format("Mon 2006-01-02 15:04 MST")
					}
					fmt.Fprintf(out, "  %-24s %-30s %s\n", name, next, ev.Description)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "merchant", "", "only this merchant")
	return cmd
}
