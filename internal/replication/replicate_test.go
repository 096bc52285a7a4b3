package replication

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rflorenc/arcfg/internal/appliancetest"
	"github.com/rflorenc/arcfg/internal/models"
	"github.com/rflorenc/arcfg/internal/platform"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct {
	master, slave *appliancetest.Server
	src, dst      platform.Platform
	ot            models.ObjectType
}

func newPair(t *testing.T, object string) *pair {
	t.Helper()
	ot, err := models.LookupObjectType(object)
	require.NoError(t, err)

	p := &pair{
		master: appliancetest.New(t, "madmin", "mpass"),
		slave:  appliancetest.New(t, "sadmin", "spass"),
		ot:     ot,
	}
	p.src, err = platform.NewPlatform(p.master.Connection("madmin", "mpass"))
	require.NoError(t, err)
	p.dst, err = platform.NewPlatform(p.slave.Connection("sadmin", "spass"))
	require.NoError(t, err)
	return p
}

func (p *pair) run(t *testing.T, backupDir string) (*models.Run, error) {
	t.Helper()
	run := models.NewRun(p.ot.Name, p.src.Connection().Host, p.dst.Connection().Host)
	err := Run(context.Background(), p.src, p.dst, Options{Object: p.ot, BackupDir: backupDir}, run)
	return run, err
}

func TestRun_EndToEnd(t *testing.T) {
	p := newPair(t, "hostgroups")
	p.master.Seed(p.ot, `{"name":"DataCenter","hosts":["10.1.0.0/16"],"enabled":true}`, `{"name":"Branch","hosts":["10.2.0.0/16"],"enabled":true}`)
	p.slave.Seed(p.ot, `{"name":"Stale","hosts":["172.16.0.0/12"]}`)

	run, err := p.run(t, "")
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, run.Status)

	var body struct {
		Items []json.RawMessage `json:"items"`
	}
	require.NoError(t, json.Unmarshal(p.slave.LastBody(http.MethodPost, p.ot.MergePath()), &body))
	require.Len(t, body.Items, 2)
	assert.JSONEq(t, `{"name":"DataCenter","hosts":["10.1.0.0/16"],"enabled":true}`, string(body.Items[0]))
	assert.JSONEq(t, `{"name":"Branch","hosts":["10.2.0.0/16"],"enabled":true}`, string(body.Items[1]))

	stored := p.slave.Items(p.ot)
	require.Len(t, stored, 2)
	assert.JSONEq(t, `{"name":"DataCenter","hosts":["10.1.0.0/16"],"enabled":true}`, string(stored[0]))
}

func TestRun_CallOrder(t *testing.T) {
	p := newPair(t, "urls")
	p.master.Seed(p.ot, `{"name":"intranet"}`)

	_, err := p.run(t, t.TempDir())
	require.NoError(t, err)

	var slaveCalls []string
	for _, c := range p.slave.Paths() {
		if !strings.Contains(c, platform.InfoPath) {
			slaveCalls = append(slaveCalls, c)
		}
	}
	assert.Equal(t, []string{
		"POST " + platform.TokenPath,
		"GET " + p.ot.CollectionPath(),
		"POST " + p.ot.BulkDeletePath(),
		"POST " + p.ot.MergePath(),
	}, slaveCalls)
}

func TestRun_WebappsMergeUnderRules(t *testing.T) {
	p := newPair(t, "webapps")
	p.master.Seed(p.ot, `{"name":"portal","match":"host = portal.example.com"}`)

	_, err := p.run(t, "")
	require.NoError(t, err)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(p.slave.LastBody(http.MethodPost, "/api/npm.wta_config/1.0/wta_webapps/merge"), &body))
	assert.Contains(t, body, "rules")
	assert.NotContains(t, body, "items")
	assert.Len(t, p.slave.Items(p.ot), 1)
}

func TestRun_ReleaseMismatchWarns(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	p := newPair(t, "hostgroups")
	p.master.SetVersion("11.13.0")
	p.slave.SetVersion("12.0.1")
	p.master.Seed(p.ot, `{"name":"dc"}`)

	run, err := p.run(t, "")
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Contains(t, run.Lines(), "  master 11.13.0, slave 12.0.1")

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel && strings.Contains(e.Message, "different releases") {
			warned = true
			assert.Equal(t, "11.13.0", e.Data["master"])
			assert.Equal(t, "12.0.1", e.Data["slave"])
		}
	}
	assert.True(t, warned, "expected a release mismatch warning")
}

func TestRun_SameReleaseDoesNotWarn(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	p := newPair(t, "hostgroups")
	p.master.SetVersion("11.13.0")
	p.slave.SetVersion("11.13.2-b7")

	_, err := p.run(t, "")
	require.NoError(t, err)
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, log.WarnLevel, e.Level, e.Message)
	}
}

func TestRun_MasterAuthFailureIsFatal(t *testing.T) {
	p := newPair(t, "hostgroups")
	p.master.Fail(http.MethodPost, platform.TokenPath, http.StatusUnauthorized, `{"error_id":"AUTH_INVALID_CREDENTIALS"}`)

	run, err := p.run(t, "")
	require.Error(t, err)
	assert.Equal(t, StageAuth, StageOf(err))
	assert.Equal(t, 401, platform.StatusCode(err))
	assert.Equal(t, models.RunFailed, run.Status)
	assert.Empty(t, p.slave.Requests(), "slave must not be contacted after master auth failure")
}

func TestRun_SlaveAuthFailureIsFatal(t *testing.T) {
	p := newPair(t, "hostgroups")
	p.slave.Fail(http.MethodPost, platform.TokenPath, http.StatusForbidden, "")

	_, err := p.run(t, "")
	require.Error(t, err)
	assert.Equal(t, StageAuth, StageOf(err))
	for _, c := range p.master.Paths() {
		assert.False(t, strings.HasPrefix(c, "GET /api/npm."), "master read attempted: %s", c)
	}
	assert.Len(t, p.slave.Requests(), 1)
}

func TestRun_ReadFailure(t *testing.T) {
	p := newPair(t, "applications")
	p.master.Fail(http.MethodGet, p.ot.CollectionPath(), http.StatusInternalServerError, "boom")
	p.slave.Seed(p.ot, `{"name":"keep"}`)

	_, err := p.run(t, "")
	require.Error(t, err)
	assert.Equal(t, StageRead, StageOf(err))
	assert.Len(t, p.slave.Items(p.ot), 1, "slave must be untouched")
}

func TestRun_DeleteFailureSkipsMerge(t *testing.T) {
	p := newPair(t, "hostgroups")
	p.master.Seed(p.ot, `{"name":"A"}`)
	p.slave.Fail(http.MethodPost, p.ot.BulkDeletePath(), http.StatusInternalServerError, "")

	run, err := p.run(t, "")
	require.Error(t, err)
	assert.Equal(t, StageDelete, StageOf(err))
	assert.Equal(t, "delete", run.Stage)
	assert.Nil(t, p.slave.LastBody(http.MethodPost, p.ot.MergePath()))
}

func TestRun_MergeFailureLeavesTargetEmpty(t *testing.T) {
	p := newPair(t, "hostgroups")
	p.master.Seed(p.ot, `{"name":"A"}`, `{"name":"B"}`)
	p.slave.Seed(p.ot, `{"name":"Old"}`)
	p.slave.Fail(http.MethodPost, p.ot.MergePath(), http.StatusBadRequest, `{"error_text":"invalid"}`)
	dir := t.TempDir()

	run, err := p.run(t, dir)
	require.Error(t, err)
	assert.Equal(t, StageMerge, StageOf(err))
	assert.Equal(t, models.RunFailed, run.Status)
	assert.Empty(t, p.slave.Items(p.ot))
	assert.Contains(t, err.Error(), "left empty")

	var re *Error
	require.ErrorAs(t, err, &re)
	require.NotEmpty(t, re.Snapshot)
	assert.Contains(t, err.Error(), re.Snapshot)
	assert.Equal(t, "sadmin", re.User)
	assert.Contains(t, err.Error(), "--username sadmin")

	snap, ot, err := ReadSnapshot(re.Snapshot)
	require.NoError(t, err)
	assert.Equal(t, "hostgroups", ot.Name)
	assert.Equal(t, p.dst.Connection().Host, snap.Host)
	assert.Equal(t, p.dst.Connection().Port, snap.Port)
	assert.NotZero(t, snap.Port)
	require.Len(t, snap.Items, 1)
	assert.JSONEq(t, `{"name":"Old"}`, string(snap.Items[0]))
}

func TestRun_SnapshotFailureAbortsBeforeDelete(t *testing.T) {
	p := newPair(t, "hostgroups")
	p.master.Seed(p.ot, `{"name":"A"}`)
	p.slave.Seed(p.ot, `{"name":"Old"}`)

	// A file where the backup directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := p.run(t, filepath.Join(blocker, "backups"))
	require.Error(t, err)
	assert.Equal(t, StageSnapshot, StageOf(err))
	assert.Nil(t, p.slave.LastBody(http.MethodPost, p.ot.BulkDeletePath()))
	assert.Len(t, p.slave.Items(p.ot), 1)
}

func TestRun_RecordsOutput(t *testing.T) {
	p := newPair(t, "hostgroups")
	p.master.Seed(p.ot, `{"name":"A"}`)

	run, err := p.run(t, "")
	require.NoError(t, err)
	out := strings.Join(run.Lines(), "\n")
	assert.Contains(t, out, "Replicating Host Groups")
	assert.Contains(t, out, "MERGED: 1 hostgroups")
}

func TestRestore(t *testing.T) {
	p := newPair(t, "urls")
	p.slave.Seed(p.ot, `{"name":"new"}`)
	snap := &Snapshot{
		RunID:  "abc",
		Host:   p.dst.Connection().Host,
		Object: "urls",
		Items:  models.Collection{json.RawMessage(`{"name":"old-1"}`), json.RawMessage(`{"name":"old-2"}`)},
	}

	run := models.NewRun("urls", "", p.dst.Connection().Host)
	require.NoError(t, Restore(context.Background(), p.dst, snap, p.ot, run))
	got := p.slave.Items(p.ot)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"name":"old-1"}`, string(got[0]))
	assert.Equal(t, models.RunCompleted, run.Status)
}

func TestRestore_MergeFailure(t *testing.T) {
	p := newPair(t, "urls")
	p.slave.Fail(http.MethodPost, p.ot.MergePath(), http.StatusInternalServerError, "")
	snap := &Snapshot{Object: "urls", Items: models.Collection{}}

	err := Restore(context.Background(), p.dst, snap, p.ot, models.NewRun("urls", "", "x"))
	assert.Equal(t, StageMerge, StageOf(err))
}

func TestFetch(t *testing.T) {
	p := newPair(t, "applications")
	p.master.Seed(p.ot, `{"name":"ERP"}`, `{"name":"CRM"}`)

	items, err := Fetch(context.Background(), p.src, p.ot)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.JSONEq(t, `{"name":"ERP"}`, string(items[0]))
	assert.JSONEq(t, `{"name":"CRM"}`, string(items[1]))
}

func TestFetch_AuthFailure(t *testing.T) {
	p := newPair(t, "applications")
	p.master.Fail(http.MethodPost, platform.TokenPath, http.StatusInternalServerError, "")

	_, err := Fetch(context.Background(), p.src, p.ot)
	assert.Equal(t, StageAuth, StageOf(err))
}
