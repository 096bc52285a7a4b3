package cli

import (
	"fmt"

	"github.com/rflorenc/arcfg/internal/config"
	"github.com/rflorenc/arcfg/internal/models"
	"github.com/rflorenc/arcfg/internal/replication"
	"github.com/spf13/cobra"
)

func newRestoreCommand(opts *Options) *cobra.Command {
	var (
		target   targetFlags
		snapshot string
	)
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Push a saved snapshot back onto an appliance",
		Long: `Push a snapshot written before a replication back onto an appliance.

The collection on the appliance is cleared and replaced by the snapshot
contents. --host and --port default to the appliance the snapshot was
taken from.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				snap    *replication.Snapshot
				ot      models.ObjectType
				snapErr error
			)
			if snapshot == "" {
				snapErr = config.Missing("the snapshot to restore", "--snapshot")
			} else {
				snap, ot, snapErr = replication.ReadSnapshot(snapshot)
				if snapErr == nil && target.conn.Host == "" {
					target.conn.Host = snap.Host
					if !cmd.Flags().Changed("port") {
						target.conn.Port = snap.Port
					}
				}
			}
			conn, err := target.resolve(snapErr)
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

			run := models.NewRun(ot.Name, snap.Host, conn.Host)
			if err := replication.Restore(ctx, p, snap, ot, run); err != nil {
				return err
			}
			fmt.Fprintf(opts.Stdout, "Restored %d %s to %s (run %s)\n", len(snap.Items), ot.Name, conn.Label(), run.ShortID())
			return nil
		},
	}
	target.bind(cmd)
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "snapshot file written by a previous replication")
	return cmd
}
