// Package cli wires the arcfg commands together.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rflorenc/arcfg/internal/config"
	"github.com/rflorenc/arcfg/internal/models"
	"github.com/rflorenc/arcfg/internal/platform"
	"github.com/rflorenc/arcfg/internal/prompt"
	"github.com/rflorenc/arcfg/internal/replication"
	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitFailure      = 1 // authentication, read, snapshot or I/O failure
	ExitUsage        = 2 // invalid or missing arguments, unsupported object type
	ExitDeleteFailed = 3 // bulk_delete failed, merge not attempted
	ExitMergeFailed  = 4 // merge failed, target collection left empty
)

// BuildInfo is stamped in by the linker.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// PasswordPrompter reads a password interactively.
type PasswordPrompter interface {
	Password(message string) (string, error)
}

// Options carries the process dependencies of the commands.
type Options struct {
	Stdout      io.Writer
	Stderr      io.Writer
	Prompter    PasswordPrompter
	NewPlatform func(*models.Connection) (platform.Platform, error)
	Build       BuildInfo
}

func (o *Options) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Prompter == nil {
		o.Prompter = prompt.New(os.Stdin, o.Stderr)
	}
	if o.NewPlatform == nil {
		o.NewPlatform = platform.NewPlatform
	}
}

// NewRootCommand builds the command tree. Running the root command itself
// performs a replication.
func NewRootCommand(opts Options) *cobra.Command {
	opts.defaults()

	cfg := &config.Config{}
	root := &cobra.Command{
		Use:   "arcfg",
		Short: "Replicate AppResponse configuration from a master to a slave",
		Long: `Automated replication of AppResponse configuration items from a master to a slave.

The slave's collection of the selected object type is deleted and replaced by
the master's. Policies are not supported: they carry appliance-specific
identifiers and can only be imported one at a time.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", opts.Build.Version, opts.Build.Commit, opts.Build.Date),
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplicate(cmd, cfg, &opts)
		},
	}
	cfg.BindFlags(root.Flags())
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return config.Invalid(err)
	})
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newGetCommand(&opts))
	root.AddCommand(newRestoreCommand(&opts))
	root.AddCommand(newTypesCommand(&opts))
	root.AddCommand(newVersionCommand(&opts))
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(build BuildInfo, args []string) int {
	root := NewRootCommand(Options{Build: build})
	root.SetArgs(args)
	err := root.Execute()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	}
	return ExitCode(err)
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, config.ErrValidation) {
		return ExitUsage
	}
	switch replication.StageOf(err) {
	case replication.StageDelete:
		return ExitDeleteFailed
	case replication.StageMerge:
		return ExitMergeFailed
	}
	return ExitFailure
}
