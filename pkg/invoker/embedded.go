package invoker

import (
	"fmt"
	"io"
	"sync"
)

// embeddedAdapter drives an in-process Compiler. The file manager is shared
// across calls, so compilations are serialized.
type embeddedAdapter struct {
	mu       sync.Mutex
	compiler Compiler
	files    FileManager
}

func (a *embeddedAdapter) run(diag io.Writer, spec CommandSpec) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	units := a.files.Units(spec.Source)
	fmt.Fprintf(diag, "calling: %s\n", spec)
	task := a.compiler.Task(diag, a.files, spec.Options, units)

	ok := task.Call()
	if err := a.files.Flush(); err != nil {
		fmt.Fprintf(diag, "%v while flushing compiler file manager.\n", err)
		return ExitFailure
	}
	if !ok {
		return ExitFailure
	}
	return ExitSuccess
}
