package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rflorenc/arcfg/internal/logging"
	"github.com/rflorenc/arcfg/internal/models"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// ErrValidation marks configuration problems found before any appliance is contacted.
var ErrValidation = errors.New("invalid arguments")

// ConnectionConfig represents one appliance in the config file or on the command line.
type ConnectionConfig struct {
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Insecure bool   `yaml:"insecure"`
	CACert   string `yaml:"ca_cert"` // path to a PEM bundle
}

// Config holds all configuration (CLI flags + config file).
type Config struct {
	Master    ConnectionConfig `yaml:"master"`
	Slave     ConnectionConfig `yaml:"slave"`
	Object    string           `yaml:"object"`
	BackupDir string           `yaml:"backup_dir"`
	NoBackup  bool             `yaml:"no_backup"`
	Insecure  bool             `yaml:"insecure"`
	Timeout   time.Duration    `yaml:"timeout"`
	Log       logging.Config   `yaml:"log"`

	// internal: path to config file (from CLI flag)
	configFile string
}

// Replication is a validated replication request.
type Replication struct {
	Master    *models.Connection
	Slave     *models.Connection
	Object    models.ObjectType
	BackupDir string // empty when backups are disabled
	Timeout   time.Duration
}

// BindFlags registers the replication flags on fs.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.configFile, "config", "", "Path to config file (YAML)")
	fs.StringVar(&c.Master.Host, "master", "", "the master AppResponse and source of the config data")
	fs.StringVar(&c.Slave.Host, "slave", "", "the slave AppResponse and target for the config data")
	fs.StringVar(&c.Master.Username, "musername", "", "username on the master appliance")
	fs.StringVar(&c.Slave.Username, "susername", "", "username on the slave appliance")
	fs.StringVar(&c.Master.Password, "mpassword", "", "password on the master appliance (prompted if omitted)")
	fs.StringVar(&c.Slave.Password, "spassword", "", "password on the slave appliance (prompted if omitted)")
	fs.StringVar(&c.Object, "object", "hostgroups", "object type: "+strings.Join(models.SupportedObjectNames(), ", "))
	fs.StringVar(&c.BackupDir, "backup-dir", ".", "directory for the pre-replace snapshot of the slave")
	fs.BoolVar(&c.NoBackup, "no-backup", false, "do not snapshot the slave before replacing its configuration")
	BindCommonFlags(fs, &c.Insecure, &c.Timeout, &c.Log)
}

// BindCommonFlags registers flags shared by every command.
func BindCommonFlags(fs *pflag.FlagSet, insecure *bool, timeout *time.Duration, log *logging.Config) {
	fs.BoolVar(insecure, "insecure", false, "skip TLS certificate verification (self-signed lab appliances only)")
	fs.DurationVar(timeout, "timeout", 0, "overall time limit for the run, 0 for none")
	fs.StringVar(&log.Level, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&log.File, "log-file", "", "also write logs to this file (rotated)")
}

// Load overlays the config file, if one was given, onto values not set on
// the command line. CLI flags take precedence over config file values.
func (c *Config) Load(fs *pflag.FlagSet) error {
	if c.configFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.configFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.configFile, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", c.configFile, err)
	}

	overlay := func(flag string, dst *string, val string) {
		if !fs.Changed(flag) && val != "" {
			*dst = val
		}
	}
	overlay("master", &c.Master.Host, file.Master.Host)
	overlay("slave", &c.Slave.Host, file.Slave.Host)
	overlay("musername", &c.Master.Username, file.Master.Username)
	overlay("susername", &c.Slave.Username, file.Slave.Username)
	overlay("mpassword", &c.Master.Password, file.Master.Password)
	overlay("spassword", &c.Slave.Password, file.Slave.Password)
	overlay("object", &c.Object, file.Object)
	overlay("backup-dir", &c.BackupDir, file.BackupDir)
	overlay("log-level", &c.Log.Level, file.Log.Level)
	overlay("log-file", &c.Log.File, file.Log.File)

	// Settings without a flag always come from the file
	c.Master.Name, c.Master.Port, c.Master.CACert = file.Master.Name, file.Master.Port, file.Master.CACert
	c.Slave.Name, c.Slave.Port, c.Slave.CACert = file.Slave.Name, file.Slave.Port, file.Slave.CACert
	c.Master.Insecure, c.Slave.Insecure = file.Master.Insecure, file.Slave.Insecure

	if !fs.Changed("insecure") && file.Insecure {
		c.Insecure = true
	}
	if !fs.Changed("no-backup") && file.NoBackup {
		c.NoBackup = true
	}
	if !fs.Changed("timeout") && file.Timeout != 0 {
		c.Timeout = file.Timeout
	}
	return nil
}

// Validate checks everything in one pass and reports every problem at once.
// Passwords may still be empty; the caller prompts for them.
func (c *Config) Validate() (*Replication, error) {
	var problems []error

	if c.Master.Host == "" {
		problems = append(problems, Missing("a hostname for the master appliance", "--master"))
	}
	if c.Slave.Host == "" {
		problems = append(problems, Missing("a hostname for the slave (target) appliance", "--slave"))
	}
	if c.Master.Username == "" {
		problems = append(problems, Missing("a username for the master appliance", "--musername"))
	}
	if c.Slave.Username == "" {
		problems = append(problems, Missing("a username for the slave appliance", "--susername"))
	}

	ot, err := models.LookupObjectType(c.Object)
	problems = append(problems, err)

	master, err := c.Master.Resolve("master", c.Insecure)
	problems = append(problems, err)
	slave, err := c.Slave.Resolve("slave", c.Insecure)
	problems = append(problems, err)

	if c.Timeout < 0 {
		problems = append(problems, fmt.Errorf("--timeout must not be negative, got %s", c.Timeout))
	}

	if err := Combine(problems...); err != nil {
		return nil, err
	}

	r := &Replication{Master: master, Slave: slave, Object: ot, Timeout: c.Timeout}
	if !c.NoBackup {
		r.BackupDir = c.BackupDir
		if r.BackupDir == "" {
			r.BackupDir = "."
		}
	}
	return r, nil
}

// Resolve turns the config into a Connection, reading the CA bundle if one
// is configured. insecure forces TLS verification off.
func (cc ConnectionConfig) Resolve(name string, insecure bool) (*models.Connection, error) {
	conn := &models.Connection{
		Name:     cc.Name,
		Host:     strings.TrimSpace(cc.Host),
		Port:     cc.Port,
		Username: cc.Username,
		Password: cc.Password,
		Insecure: cc.Insecure || insecure,
	}
	if conn.Name == "" {
		conn.Name = name
	}
	if cc.Port < 0 || cc.Port > 65535 {
		return nil, fmt.Errorf("%s: invalid port %d", name, cc.Port)
	}
	if cc.CACert != "" && !conn.Insecure {
		pemData, err := os.ReadFile(cc.CACert)
		if err != nil {
			return nil, fmt.Errorf("%s: reading CA bundle: %w", name, err)
		}
		conn.CACert = string(pemData)
	}
	return conn, nil
}

// MissingError reports a required setting that was not given.
type MissingError struct {
	What string // e.g. "a hostname for the master appliance"
	Flag string
}

// Missing returns a MissingError for what, settable with flag.
func Missing(what, flag string) error {
	return &MissingError{What: what, Flag: flag}
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing %s (%s)", e.What, e.Flag)
}

// Combine aggregates problems into one validation error, or nil if there are
// none. Nil entries are skipped.
func Combine(problems ...error) error {
	var errs *multierror.Error
	for _, p := range problems {
		if p != nil {
			errs = multierror.Append(errs, p)
		}
	}
	if errs.ErrorOrNil() == nil {
		return nil
	}
	errs.ErrorFormat = formatProblems
	return Invalid(errs)
}

// formatProblems renders missing settings as the operator-facing request
// "Please specify ... using --flag".
func formatProblems(es []error) string {
	lines := make([]string, 0, len(es))
	for _, err := range es {
		var missing *MissingError
		if errors.As(err, &missing) {
			lines = append(lines, fmt.Sprintf("Please specify %s using %s", missing.What, missing.Flag))
			continue
		}
		lines = append(lines, err.Error())
	}
	if len(lines) == 1 {
		return lines[0]
	}
	return fmt.Sprintf("%d problems with the arguments:\n\t* %s", len(lines), strings.Join(lines, "\n\t* "))
}

// Invalid wraps err so that errors.Is(err, ErrValidation) holds.
func Invalid(err error) error {
	return &validationError{err: err}
}

type validationError struct {
	err error
}

func (e *validationError) Error() string { return e.err.Error() }

func (e *validationError) Is(target error) bool { return target == ErrValidation }

func (e *validationError) Unwrap() error { return e.err }
