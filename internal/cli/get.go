package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rflorenc/arcfg/internal/models"
	"github.com/rflorenc/arcfg/internal/replication"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newGetCommand(opts *Options) *cobra.Command {
	var (
		target targetFlags
		object string
		output string
	)
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print one configuration collection of an appliance as JSON",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ot, lookupErr := models.LookupObjectType(object)
			conn, err := target.resolve(lookupErr)
			if err != nil {
				return err
			}
			closer, err := setupLogging(target.log, opts.Stderr)
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := ensurePassword(opts.Prompter, conn, "target"); err != nil {
				return err
			}
			p, err := opts.NewPlatform(conn)
			if err != nil {
				return err
			}

			ctx, cancel := runContext(cmd.Context(), target.timeout)
			defer cancel()

			items, err := replication.Fetch(ctx, p, ot)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(items, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding %s: %w", ot.Name, err)
			}
			data = append(data, '\n')

			if output == "" || output == "-" {
				_, err = opts.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			log.WithFields(log.Fields{"object": ot.Name, "count": len(items)}).Infof("wrote %s", output)
			return nil
		},
	}
	target.bind(cmd)
	cmd.Flags().StringVar(&object, "object", "hostgroups", "object type to read")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}
