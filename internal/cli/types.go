package cli

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/rflorenc/arcfg/internal/models"
	"github.com/spf13/cobra"
)

func newTypesCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the object types that can be replicated",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := tablewriter.NewWriter(opts.Stdout)
			table.SetHeader([]string{"Object", "Description", "Endpoint", "Supported"})
			table.SetAutoWrapText(false)
			for _, ot := range models.ObjectTypes() {
				endpoint, supported := "-", "no: "+ot.Reason
				if ot.Supported() {
					endpoint, supported = fmt.Sprintf("%s/%s", ot.Namespace, ot.Version), "yes"
				}
				table.Append([]string{ot.Name, ot.Label, endpoint, supported})
			}
			table.Render()
			return nil
		},
	}
}
