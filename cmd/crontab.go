package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/menu-scheduler/internal/merchant"
)

func newCrontabCmd(a *app) *cobra.Command {
	var key, binary string

	cmd := &cobra.Command{
		Use:   "crontab",
		Short: "Print crontab entries that trigger each event at its cron time",
		Long: "Print crontab entries for an external invoker. Each merchant block sets CRON_TZ " +
			"so the times are read in the merchant timezone. Nothing is installed.",
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := a.selectMerchants(key)
			if err != nil {
				return err
			}
			if binary == "" {
				if binary, err = os.Executable(); err != nil {
					binary = "menusched"
				}
			}
			return writeCrontab(cmd.OutOrStdout(), ms, binary, a.cfg.MerchantsFile)
		},
	}
	cmd.Flags().StringVar(&key, "merchant", "", "only this merchant")
	cmd.Flags().StringVar(&binary, "binary", "", "path of the menusched binary (default: this executable)")
	return cmd
}

func writeCrontab(w io.Writer, ms []merchant.Merchant, binary, merchantsFile string) error {
	for i, m := range ms {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "# %s (%s)\n", m.Name, m.Key)
		fmt.Fprintf(w, "CRON_TZ=%s\n", m.Rules.Timezone)
		for _, name := range m.Rules.EventNames() {
			ev := m.Rules.Events[name]
			if ev.Cron == "" {
				fmt.Fprintf(w, "# %s has no cron expression; trigger it manually\n", name)
				continue
			}
			if _, err := fmt.Fprintf(w, "%s %s run --merchants %s --merchant %s %s\n",
				ev.Cron, binary, merchantsFile, m.Key, name); err != nil {
				return err
			}
		}
	}
	return nil
}
