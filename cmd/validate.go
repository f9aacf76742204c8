package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/menu-scheduler/internal/config"
)

func newValidateCmd(a *app) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the merchants file and the credentials a run needs",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}

			var problems []string
			if !offline {
				if err := a.cfg.RequireCatalog(); err != nil {
					problems = append(problems, err.Error())
				}
			}
			events := 0
			for _, m := range reg.All() {
				events += len(m.Rules.Events)
				if offline {
					continue
				}
				if err := m.RequireMerchantID(); err != nil {
					problems = append(problems, err.Error())
				}
			}
			if len(problems) > 0 {
				return &config.ConfigurationError{Reason: strings.Join(problems, "; ")}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d merchants, %d events ok\n", a.cfg.MerchantsFile, len(reg.Keys()), events)
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "only check the merchants file, not credentials or merchant ids")
	return cmd
}
