package replication

import (
	"errors"
	"fmt"
)

// Stage names the step of a replication that failed.
type Stage string

const (
	StageAuth     Stage = "auth"
	StageRead     Stage = "read"
	StageSnapshot Stage = "snapshot"
	StageDelete   Stage = "delete"
	StageMerge    Stage = "merge"
)

// Error is returned by Run and Restore. Stage tells the caller how far the
// destructive replace got: after StageDelete nothing was merged, after
// StageMerge the slave collection is empty.
type Error struct {
	Stage    Stage
	Host     string
	User     string // account used on Host, for the restore hint
	Snapshot string // pre-replace snapshot of the slave, if one was taken
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s failed on %s: %v", e.Stage, e.Host, e.Err)
	switch e.Stage {
	case StageDelete:
		msg += " (merge not attempted)"
	case StageMerge:
		msg += " (target collection left empty)"
	}
	if e.Snapshot != "" && (e.Stage == StageDelete || e.Stage == StageMerge) {
		msg += fmt.Sprintf("; previous configuration saved to %s, push it back with: arcfg restore --snapshot %s", e.Snapshot, e.Snapshot)
		if e.User != "" {
			msg += " --username " + e.User
		}
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StageOf returns the failed stage of err, or "" if err is not a replication Error.
func StageOf(err error) Stage {
	var re *Error
	if errors.As(err, &re) {
		return re.Stage
	}
	return ""
}
