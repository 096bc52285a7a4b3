package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rflorenc/arcfg/internal/config"
	"github.com/rflorenc/arcfg/internal/logging"
	"github.com/rflorenc/arcfg/internal/models"
	"github.com/spf13/cobra"
)

// noArgs rejects positional arguments as a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return config.Invalid(err)
	}
	return nil
}

// setupLogging configures the logger from flags and returns its closer.
func setupLogging(lc logging.Config, stderr io.Writer) (io.Closer, error) {
	closer, err := logging.Setup(lc, stderr)
	if err != nil {
		return nil, config.Invalid(err)
	}
	return closer, nil
}

// runContext is cancelled on SIGINT/SIGTERM and, when timeout > 0, after timeout.
func runContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	return tctx, func() {
		cancel()
		stop()
	}
}

// ensurePassword prompts for conn's password when none was given.
func ensurePassword(p PasswordPrompter, conn *models.Connection, role string) error {
	if conn.Password != "" {
		return nil
	}
	secret, err := p.Password(fmt.Sprintf("Please provide the password for the %s appliance for account %s", role, conn.Username))
	if err != nil {
		return config.Invalid(fmt.Errorf("no password for %s appliance: %w", role, err))
	}
	conn.Password = secret
	return nil
}

// targetFlags are the single-appliance flags of get and restore.
type targetFlags struct {
	conn     config.ConnectionConfig
	insecure bool
	timeout  time.Duration
	log      logging.Config
}

func (t *targetFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&t.conn.Host, "host", "", "AppResponse hostname or address")
	fs.IntVar(&t.conn.Port, "port", 0, "HTTPS port (default 443)")
	fs.StringVarP(&t.conn.Username, "username", "u", "", "username on the appliance")
	fs.StringVarP(&t.conn.Password, "password", "p", "", "password on the appliance (prompted if omitted)")
	fs.StringVar(&t.conn.CACert, "ca-cert", "", "PEM bundle used to verify the appliance certificate")
	config.BindCommonFlags(fs, &t.insecure, &t.timeout, &t.log)
}

// resolve validates the target flags in one pass.
func (t *targetFlags) resolve(extra ...error) (*models.Connection, error) {
	var problems []error
	if t.conn.Host == "" {
		problems = append(problems, config.Missing("a hostname for the appliance", "--host"))
	}
	if t.conn.Username == "" {
		problems = append(problems, config.Missing("a username for the appliance", "--username"))
	}
	if t.timeout < 0 {
		problems = append(problems, fmt.Errorf("--timeout must not be negative, got %s", t.timeout))
	}
	problems = append(problems, extra...)
	conn, err := t.conn.Resolve("target", t.insecure)
	if err != nil {
		problems = append(problems, err)
	}
	if err := config.Combine(problems...); err != nil {
		return nil, err
	}
	conn.Name = conn.Host
	return conn, nil
}
