package invoker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedCommand is returned by ParseCommand when argv is too short to
// carry both a program token and a source path.
var ErrMalformedCommand = errors.New("malformed command")

// CommandSpec is the structured form of a compiler invocation:
//
//	[Program, Options..., Source]
//
// Program is argv[0] for the external strategy and ignored by the embedded
// one. Options are passed through untouched. Source names exactly one file.
type CommandSpec struct {
	Program string
	Options []string
	Source  string
}

// ParseCommand builds a CommandSpec from a raw argument vector.
func ParseCommand(argv []string) (CommandSpec, error) {
	if len(argv) < 2 {
		return CommandSpec{}, fmt.Errorf("%w: need program and source, got %d argument(s)", ErrMalformedCommand, len(argv))
	}
	opts := make([]string, len(argv)-2)
	copy(opts, argv[1:len(argv)-1])
	return CommandSpec{
		Program: argv[0],
		Options: opts,
		Source:  argv[len(argv)-1],
	}, nil
}

// Argv returns the verbatim argument vector.
func (c CommandSpec) Argv() []string {
	out := make([]string, 0, len(c.Options)+2)
	out = append(out, c.Program)
	out = append(out, c.Options...)
	return append(out, c.Source)
}

// String reconstructs the command line for diagnostics.
func (c CommandSpec) String() string {
	return strings.Join(c.Argv(), " ")
}
