package cli

import (
	"fmt"

	"github.com/rflorenc/arcfg/internal/config"
	"github.com/rflorenc/arcfg/internal/models"
	"github.com/rflorenc/arcfg/internal/replication"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func runReplicate(cmd *cobra.Command, cfg *config.Config, opts *Options) error {
	if err := cfg.Load(cmd.Flags()); err != nil {
		return config.Invalid(err)
	}
	closer, err := setupLogging(cfg.Log, opts.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	req, err := cfg.Validate()
	if err != nil {
		return err
	}
	if err := ensurePassword(opts.Prompter, req.Master, "master"); err != nil {
		return err
	}
	if err := ensurePassword(opts.Prompter, req.Slave, "slave"); err != nil {
		return err
	}
	if req.BackupDir == "" {
		log.Warn("snapshot disabled with --no-backup; a failed merge cannot be restored")
	}

	master, err := opts.NewPlatform(req.Master)
	if err != nil {
		return fmt.Errorf("master: %w", err)
	}
	slave, err := opts.NewPlatform(req.Slave)
	if err != nil {
		return fmt.Errorf("slave: %w", err)
	}

	ctx, cancel := runContext(cmd.Context(), req.Timeout)
	defer cancel()

	run := models.NewRun(req.Object.Name, req.Master.Host, req.Slave.Host)
	err = replication.Run(ctx, master, slave, replication.Options{
		Object:    req.Object,
		BackupDir: req.BackupDir,
	}, run)
	if err != nil {
		return err
	}

	fmt.Fprintf(opts.Stdout, "Replicated %s from %s to %s (run %s)\n",
		req.Object.Name, req.Master.Label(), req.Slave.Label(), run.ShortID())
	return nil
}
