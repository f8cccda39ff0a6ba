// Package embedded is an in-process Go compiler front end for the invoker.
//
// A Task parses and type-checks one Go source file with go/parser and
// go/types, prints diagnostics in file:line:col form and, on success,
// produces an API summary of the package's exported declarations. Summaries
// are buffered in the FileManager and only reach disk on Flush.
//
// Supported options:
//
//	-d dir     directory for summaries (default: next to the source)
//	-verbose   trace the phases on the diagnostic writer
package embedded

import (
	"errors"
	"fmt"
	"go/build"
	"io"
	"os"
	"path/filepath"

	"hackohio/invoker/pkg/invoker"
)

// ErrUnavailable is returned by Provider.SystemCompiler when no Go source
// tree is present to resolve standard library imports.
var ErrUnavailable = errors.New("embedded compiler unavailable")

// Provider implements invoker.ToolProvider.
type Provider struct {
	// GOROOT overrides the root searched for standard library sources.
	GOROOT string
}

// SystemCompiler returns the in-process compiler when a Go source tree is
// reachable.
func (p Provider) SystemCompiler() (invoker.Compiler, error) {
	root := p.GOROOT
	if root == "" {
		root = build.Default.GOROOT
	}
	if root == "" {
		return nil, fmt.Errorf("%w: GOROOT not set", ErrUnavailable)
	}
	fi, err := os.Stat(filepath.Join(root, "src"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s/src is not a directory", ErrUnavailable, root)
	}
	return &Compiler{}, nil
}

// Compiler implements invoker.Compiler.
type Compiler struct{}

func (c *Compiler) StandardFileManager() (invoker.FileManager, error) {
	return NewFileManager(), nil
}

// Task prepares a compilation of units. files must be the manager returned
// by StandardFileManager for summaries to be written.
func (c *Compiler) Task(diag io.Writer, files invoker.FileManager, options []string, units []invoker.Unit) invoker.Task {
	if diag == nil {
		diag = io.Discard
	}
	sink, _ := files.(*FileManager)
	return &task{
		diag:    diag,
		files:   sink,
		options: options,
		units:   units,
	}
}
