package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rflorenc/arcfg/internal/models"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (*Config, *pflag.FlagSet) {
	t.Helper()
	c := &Config{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	require.NoError(t, c.Load(fs))
	return c, fs
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidate_Complete(t *testing.T) {
	c, _ := parse(t, "--master", "ar-a", "--slave", "ar-b", "--musername", "admin", "--susername", "admin2",
		"--mpassword", "p1", "--object", "webapps")

	r, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, "ar-a", r.Master.Host)
	assert.Equal(t, "master", r.Master.Name)
	assert.Equal(t, "p1", r.Master.Password)
	assert.Equal(t, "", r.Slave.Password)
	assert.Equal(t, "wta_webapps", r.Object.Resource)
	assert.Equal(t, ".", r.BackupDir)
	assert.False(t, r.Master.Insecure, "TLS verification must default to on")
}

func TestValidate_DefaultObjectIsHostgroups(t *testing.T) {
	c, _ := parse(t, "--master", "a", "--slave", "b", "--musername", "u", "--susername", "u")
	r, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, "hostgroups", r.Object.Name)
}

func TestValidate_ReportsEveryMissingArgument(t *testing.T) {
	c, _ := parse(t)
	_, err := c.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	for _, flag := range []string{"--master", "--slave", "--musername", "--susername"} {
		assert.Contains(t, err.Error(), flag)
	}
}

func TestValidate_MissingMasterOnly(t *testing.T) {
	c, _ := parse(t, "--slave", "b", "--musername", "u", "--susername", "u")
	_, err := c.Validate()
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "--master")
	assert.NotContains(t, err.Error(), "--slave")
}

func TestValidate_UnsupportedObject(t *testing.T) {
	c, _ := parse(t, "--master", "a", "--slave", "b", "--musername", "u", "--susername", "u", "--object", "policies")
	_, err := c.Validate()
	require.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, models.ErrUnsupportedObject)
	assert.Contains(t, err.Error(), "policies")
}

func TestValidate_UnknownObject(t *testing.T) {
	c, _ := parse(t, "--master", "a", "--slave", "b", "--musername", "u", "--susername", "u", "--object", "tags")
	_, err := c.Validate()
	assert.ErrorIs(t, err, models.ErrUnknownObject)
}

func TestValidate_NoBackup(t *testing.T) {
	c, _ := parse(t, "--master", "a", "--slave", "b", "--musername", "u", "--susername", "u", "--no-backup")
	r, err := c.Validate()
	require.NoError(t, err)
	assert.Empty(t, r.BackupDir)
}

func TestValidate_Insecure(t *testing.T) {
	c, _ := parse(t, "--master", "a", "--slave", "b", "--musername", "u", "--susername", "u", "--insecure")
	r, err := c.Validate()
	require.NoError(t, err)
	assert.True(t, r.Master.Insecure)
	assert.True(t, r.Slave.Insecure)
}

func TestValidate_NegativeTimeout(t *testing.T) {
	c, _ := parse(t, "--master", "a", "--slave", "b", "--musername", "u", "--susername", "u", "--timeout", "-1s")
	_, err := c.Validate()
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeFile(t, "arcfg.yaml", `
master:
  name: dc1
  host: ar-dc1.example.com
  username: admin
  password: from-file
slave:
  host: ar-dc2.example.com
  port: 8443
  username: admin
  insecure: true
object: urls
backup_dir: /var/backups/arcfg
timeout: 90s
log:
  level: debug
`)
	c, _ := parse(t, "--config", path, "--mpassword", "from-flag")
	r, err := c.Validate()
	require.NoError(t, err)

	assert.Equal(t, "dc1", r.Master.Name)
	assert.Equal(t, "ar-dc1.example.com", r.Master.Host)
	assert.Equal(t, "from-flag", r.Master.Password, "flags take precedence over the file")
	assert.Equal(t, 8443, r.Slave.Port)
	assert.True(t, r.Slave.Insecure)
	assert.False(t, r.Master.Insecure)
	assert.Equal(t, "urls", r.Object.Name)
	assert.Equal(t, "/var/backups/arcfg", r.BackupDir)
	assert.Equal(t, 90*time.Second, r.Timeout)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoad_FlagBeatsFileObject(t *testing.T) {
	path := writeFile(t, "arcfg.yaml", "object: urls\n")
	c, _ := parse(t, "--config", path, "--object", "applications")
	assert.Equal(t, "applications", c.Object)
}

func TestLoad_MissingFile(t *testing.T) {
	c := &Config{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}))
	err := c.Load(fs)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "master: [unclosed\n")
	c := &Config{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path}))
	err := c.Load(fs)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parsing "))
}

func TestResolve_CACert(t *testing.T) {
	path := writeFile(t, "ca.pem", "-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----\n")
	conn, err := ConnectionConfig{Host: "ar", CACert: path}.Resolve("slave", false)
	require.NoError(t, err)
	assert.Contains(t, conn.CACert, "BEGIN CERTIFICATE")

	_, err = ConnectionConfig{Host: "ar", CACert: path + ".missing"}.Resolve("slave", false)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolve_BadPort(t *testing.T) {
	_, err := ConnectionConfig{Host: "ar", Port: 70000}.Resolve("master", false)
	assert.Error(t, err)
}

func TestCombine(t *testing.T) {
	assert.NoError(t, Combine())
	assert.NoError(t, Combine(nil, nil))

	err := Combine(errors.New("first"), nil, errors.New("second"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second")
}

func TestMissing_Wording(t *testing.T) {
	err := Missing("a hostname for the master appliance", "--master")
	assert.Equal(t, "missing a hostname for the master appliance (--master)", err.Error())

	single := Combine(err)
	assert.Equal(t, "Please specify a hostname for the master appliance using --master", single.Error())

	c, _ := parse(t, "--slave", "b", "--susername", "u")
	_, verr := c.Validate()
	require.ErrorIs(t, verr, ErrValidation)
	assert.Contains(t, verr.Error(), "2 problems with the arguments")
	assert.Contains(t, verr.Error(), "* Please specify a hostname for the master appliance using --master")
	assert.Contains(t, verr.Error(), "* Please specify a username for the master appliance using --musername")

	var missing *MissingError
	require.ErrorAs(t, verr, &missing)
	assert.Equal(t, "--master", missing.Flag)
}
