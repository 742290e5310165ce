package cli

import (
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var filter string
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available dissectors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := newOutput(cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			selected, err := selectDissectors(a.registry, filter)
			if err != nil {
				return err
			}
			return out.catalog(selected)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Dissector filter, ATTRIBUTE:VALUE[,VALUE...] (attributes: slug, tags)")
	cmd.Flags().StringVar(&format, "format", formatRich, "Display format (rich|json)")
	return cmd
}
