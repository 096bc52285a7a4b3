// Package replication copies one configuration collection from a master
// appliance to a slave: authenticate both, read the master, snapshot the
// slave, then clear and merge on the slave.
//
// The replace is destructive and not coordinated: two runs against the same
// slave can interleave their delete and merge calls.
package replication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rflorenc/arcfg/internal/models"
	"github.com/rflorenc/arcfg/internal/platform"
	log "github.com/sirupsen/logrus"
)

// Options controls a replication run.
type Options struct {
	Object models.ObjectType

	// BackupDir receives the pre-replace snapshot of the slave collection.
	// Empty disables the snapshot.
	BackupDir string
}

// progress returns a logger that records lines on the run and in the log.
func progress(run *models.Run) func(string) {
	entry := log.WithField("run", run.ShortID())
	return func(line string) {
		run.AppendLog(line)
		entry.Info(line)
	}
}

func fail(run *models.Run, e *Error) error {
	run.Fail(string(e.Stage), e.Err.Error())
	return e
}

// Run replicates opts.Object from master to slave. Authentication failure on
// either side stops the run before anything is read or written.
func Run(ctx context.Context, master, slave platform.Platform, opts Options, run *models.Run) error {
	logger := progress(run)
	ot := opts.Object
	src, dst := master.Connection(), slave.Connection()

	logger(fmt.Sprintf("=== Replicating %s from %s to %s ===", ot.Label, src.Label(), dst.Label()))

	logger("Authenticating to master...")
	if err := master.Authenticate(ctx); err != nil {
		return fail(run, &Error{Stage: StageAuth, Host: src.Host, Err: err})
	}
	logger("Authenticating to slave...")
	if err := slave.Authenticate(ctx); err != nil {
		return fail(run, &Error{Stage: StageAuth, Host: dst.Host, Err: err})
	}

	srcInfo, dstInfo := master.Info(ctx), slave.Info(ctx)
	if srcInfo.SWVersion != "" || dstInfo.SWVersion != "" {
		logger(fmt.Sprintf("  master %s, slave %s", versionOrUnknown(srcInfo), versionOrUnknown(dstInfo)))
	}
	if !platform.SameRelease(srcInfo.SWVersion, dstInfo.SWVersion) {
		log.WithFields(log.Fields{"master": srcInfo.SWVersion, "slave": dstInfo.SWVersion}).
			Warn("master and slave run different releases; object schemas may differ")
	}

	logger("")
	logger(fmt.Sprintf("Reading %s from master...", ot.Name))
	items, err := master.ListObjects(ctx, ot)
	if err != nil {
		return fail(run, &Error{Stage: StageRead, Host: src.Host, Err: err})
	}
	logger(fmt.Sprintf("  %d %s", len(items), ot.Name))
	if len(items) > 0 {
		log.WithField("run", run.ShortID()).Debugf("  %s", summarize(items, 10))
	}

	var snapshotPath string
	if opts.BackupDir != "" {
		logger("Saving current slave configuration...")
		snapshotPath, err = takeSnapshot(ctx, slave, ot, opts.BackupDir, run)
		if err != nil {
			return fail(run, &Error{Stage: StageSnapshot, Host: dst.Host, Err: err})
		}
		logger("  SAVED: " + snapshotPath)
	}

	logger("")
	logger(fmt.Sprintf("Replacing %s on slave...", ot.Name))
	if err := replace(ctx, slave, ot, items, snapshotPath, logger); err != nil {
		var re *Error
		errors.As(err, &re)
		return fail(run, re)
	}

	logger("")
	logger(fmt.Sprintf("Replication complete: %d %s copied in %s", len(items), ot.Name, run.Duration().Round(time.Millisecond)))
	run.Complete()
	return nil
}

// Restore pushes a snapshot back onto target with the same clear-and-merge
// replace used by Run.
func Restore(ctx context.Context, target platform.Platform, snap *Snapshot, ot models.ObjectType, run *models.Run) error {
	logger := progress(run)
	dst := target.Connection()

	logger(fmt.Sprintf("=== Restoring %d %s to %s from run %s ===", len(snap.Items), ot.Name, dst.Label(), snap.RunID))
	if snap.Host != "" && snap.Host != dst.Host {
		log.WithFields(log.Fields{"snapshot": snap.Host, "target": dst.Host}).Warn("snapshot was taken on a different appliance")
	}

	if err := target.Authenticate(ctx); err != nil {
		return fail(run, &Error{Stage: StageAuth, Host: dst.Host, Err: err})
	}
	if err := replace(ctx, target, ot, snap.Items, "", logger); err != nil {
		var re *Error
		errors.As(err, &re)
		return fail(run, re)
	}
	logger(fmt.Sprintf("Restore complete: %d %s", len(snap.Items), ot.Name))
	run.Complete()
	return nil
}

// Fetch authenticates to p and reads one collection.
func Fetch(ctx context.Context, p platform.Platform, ot models.ObjectType) (models.Collection, error) {
	host := p.Connection().Host
	if err := p.Authenticate(ctx); err != nil {
		return nil, &Error{Stage: StageAuth, Host: host, Err: err}
	}
	items, err := p.ListObjects(ctx, ot)
	if err != nil {
		return nil, &Error{Stage: StageRead, Host: host, Err: err}
	}
	return items, nil
}

// replace runs the platform replace and classifies its failure by phase.
func replace(ctx context.Context, p platform.Platform, ot models.ObjectType, items models.Collection, snapshotPath string, logger func(string)) error {
	conn := p.Connection()
	host := conn.Host
	err := p.ReplaceObjects(ctx, ot, items)
	switch {
	case err == nil:
		logger(fmt.Sprintf("  MERGED: %d %s", len(items), ot.Name))
		return nil
	case errors.Is(err, platform.ErrMerge):
		logger("  FAIL: merge: " + err.Error())
		return &Error{Stage: StageMerge, Host: host, User: conn.Username, Snapshot: snapshotPath, Err: err}
	default:
		logger("  FAIL: bulk delete: " + err.Error())
		return &Error{Stage: StageDelete, Host: host, User: conn.Username, Snapshot: snapshotPath, Err: err}
	}
}

func takeSnapshot(ctx context.Context, p platform.Platform, ot models.ObjectType, dir string, run *models.Run) (string, error) {
	conn := p.Connection()
	host := conn.Host
	current, err := p.ListObjects(ctx, ot)
	if err != nil {
		return "", fmt.Errorf("reading current %s: %w", ot.Name, err)
	}
	path := SnapshotPath(dir, host, ot.Name, run.ShortID())
	snap := &Snapshot{
		RunID:   run.ID,
		Host:    host,
		Port:    conn.Port,
		Object:  ot.Name,
		BodyKey: ot.BodyKey,
		TakenAt: time.Now().UTC(),
		Items:   current,
	}
	if err := WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	return path, nil
}

func versionOrUnknown(info *platform.InfoResponse) string {
	if info.SWVersion == "" {
		return "version unknown"
	}
	return info.SWVersion
}
