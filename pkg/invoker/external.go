package invoker

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
)

// externalAdapter runs the compiler as a child process and relays its
// standard error.
type externalAdapter struct {
	stdout io.Writer
}

func (a *externalAdapter) run(diag io.Writer, spec CommandSpec) int {
	argv := spec.Argv()
	fmt.Fprintf(diag, "running: %s\n", spec)

	cmd := exec.Command(argv[0], argv[1:]...)
	// nil leaves the child's stdout on the null device.
	cmd.Stdout = a.stdout
	stderr, err := cmd.StderrPipe()
	if err != nil {
		fmt.Fprintf(diag, "can't run %s (%v)\n", spec.Program, err)
		return ExitFailure
	}
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(diag, "can't run %s (%v)\n", spec.Program, err)
		return ExitFailure
	}

	// Wait closes the pipe, so stderr must reach EOF first. A child blocked
	// on a full pipe would otherwise never exit.
	drain(stderr, diag)

	code, err := exitStatus(cmd.Wait())
	if err != nil {
		fmt.Fprintf(diag, "can't run %s (%v)\n", spec.Program, err)
		return ExitFailure
	}
	if code != 0 {
		fmt.Fprintf(diag, "%s terminated with exit code %d\n", spec.Program, code)
	}
	return code
}

// drain copies r to w until EOF. If w fails the rest of r is discarded so the
// child can still run to completion.
func drain(r io.Reader, w io.Writer) {
	br := bufio.NewReader(r)
	buf := make([]byte, 32<<10)
	for {
		n, err := br.Read(buf)
		if n > 0 && w != nil {
			if _, werr := w.Write(buf[:n]); werr != nil {
				w = nil
			}
		}
		if err != nil {
			return
		}
	}
}

// exitStatus maps the result of Cmd.Wait to an exit code. Errors other than
// a non-zero exit are returned as-is.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ExitFailure, err
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
		if status.Signaled() {
			return 128 + int(status.Signal()), nil
		}
		return status.ExitStatus(), nil
	}
	if code := exitErr.ExitCode(); code > 0 {
		return code, nil
	}
	return ExitFailure, nil
}
