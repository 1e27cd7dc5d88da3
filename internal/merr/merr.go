// Package merr defines the toolchain's diagnostic error kinds (§7) and
// the exit-code mapping the CLI uses (§6.1).
package merr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies which stage of the pipeline raised an error.
type Kind int

const (
	FileErr Kind = iota
	ParseErr
	ScopeErr
	TypeErr
	EmitErr
	RuntimeErr
)

// ExitCode returns the process exit code for k, per spec.md §6.1.
func (k Kind) ExitCode() int {
	switch k {
	case FileErr:
		return 1
	case ParseErr:
		return 2
	case TypeErr:
		return 3
	case ScopeErr:
		return 4
	case EmitErr:
		return 5
	case RuntimeErr:
		return 6
	default:
		return 6
	}
}

func (k Kind) String() string {
	switch k {
	case FileErr:
		return "FileError"
	case ParseErr:
		return "ParseError"
	case ScopeErr:
		return "ScopeError"
	case TypeErr:
		return "TypeError"
	case EmitErr:
		return "EmitError"
	case RuntimeErr:
		return "RuntimeError"
	default:
		return "Error"
	}
}

// Diagnostic is one reported mistake: its Kind, source position, and
// message. It implements error.
type Diagnostic struct {
	Kind    Kind
	Line    int
	Column  int
	Message string
	cause   error
}

func (d *Diagnostic) Error() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s: %d:%d: %s", d.Kind, d.Line, d.Column, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (d *Diagnostic) Unwrap() error { return d.cause }

// New builds a Diagnostic at line/column with a formatted message,
// wrapped with github.com/pkg/errors so a stack trace is attached.
func New(kind Kind, line, column int, format string, args ...interface{}) error {
	d := &Diagnostic{Kind: kind, Line: line, Column: column, Message: fmt.Sprintf(format, args...)}
	d.cause = errors.New(d.Error())
	return d
}

// Wrap annotates an existing error as belonging to kind, preserving the
// original error as the cause via github.com/pkg/errors.Wrap.
func Wrap(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return &Diagnostic{Kind: kind, Message: msg, cause: errors.Wrap(err, msg)}
}

// As reports whether err (or something it wraps) is a *Diagnostic,
// writing it to *d on success.
func As(err error, d **Diagnostic) bool {
	return errors.As(err, d)
}

// KindOf extracts the Kind of a diagnostic error, defaulting to
// RuntimeErr for errors with no attached Kind (an unexpected panic, for
// instance).
func KindOf(err error) Kind {
	var d *Diagnostic
	if As(err, &d) {
		return d.Kind
	}
	return RuntimeErr
}
