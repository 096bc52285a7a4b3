// Package prompt reads secrets from the controlling terminal without echo.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoTerminal is returned when a password is needed but stdin is not a terminal.
var ErrNoTerminal = errors.New("stdin is not a terminal")

// Prompter asks for passwords on a terminal.
type Prompter struct {
	in  *os.File
	out io.Writer

	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)
}

// New creates a Prompter reading from in and writing prompts to out.
func New(in *os.File, out io.Writer) *Prompter {
	return &Prompter{
		in:           in,
		out:          out,
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
	}
}

// Password prints message and reads one masked line.
func (p *Prompter) Password(message string) (string, error) {
	fd := int(p.in.Fd())
	if !p.isTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for password: %w", ErrNoTerminal)
	}
	fmt.Fprintf(p.out, "%s\nPassword: ", message)
	secret, err := p.readPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(string(secret), "\r\n"), nil
}
