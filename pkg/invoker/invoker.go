// Package invoker runs a compiler on a single source file, either through an
// in-process compiler API or as a child process, and reduces the result to
// one exit code.
package invoker

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Outcome codes returned by Run and Compile. Any non-zero value is a
// failure; the external strategy passes the child's own exit status through.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Unit is one compilation unit handed to a Task.
type Unit interface {
	Path() string
}

// FileManager creates compilation units and buffers compiler output until
// Flush.
type FileManager interface {
	Units(paths ...string) []Unit
	Flush() error
}

// Task is a prepared compilation. Call blocks until it finishes and reports
// success; failures are described on the diagnostic writer given to
// Compiler.Task.
type Task interface {
	Call() bool
}

// Compiler is an in-process compiler API.
type Compiler interface {
	StandardFileManager() (FileManager, error)
	Task(diag io.Writer, files FileManager, options []string, units []Unit) Task
}

// ToolProvider locates the in-process compiler, if any.
type ToolProvider interface {
	SystemCompiler() (Compiler, error)
}

// Logger is the structured logger used for operational events. Compiler
// diagnostics never go through it.
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
}

// Config controls strategy selection and output routing.
type Config struct {
	// Compiler selects the strategy. Empty, or a value starting with
	// "internal", requests the in-process compiler; anything else forces
	// external execution.
	Compiler string

	// Diag receives the command line, compiler errors and invoker failures.
	// Defaults to os.Stderr.
	Diag io.Writer

	// Stdout receives the external compiler's standard output. When nil the
	// child's stdout is attached to the null device.
	Stdout io.Writer
}

// Option customizes an Invoker.
type Option func(*Invoker)

// WithToolProvider sets where the in-process compiler is looked up.
// Without it the invoker always runs external processes.
func WithToolProvider(p ToolProvider) Option {
	return func(inv *Invoker) { inv.provider = p }
}

// WithLogger sets the operational logger.
func WithLogger(l Logger) Option {
	return func(inv *Invoker) {
		if l != nil {
			inv.log = l
		}
	}
}

// Invoker owns the selected strategy. Create one per process at the
// composition root and share it; the mode never changes after New.
type Invoker struct {
	cfg      Config
	log      Logger
	provider ToolProvider

	mode     Mode
	embedded *embeddedAdapter
	external *externalAdapter

	// metrics
	mActive   int64
	mSuccess  uint64
	mFailure  uint64
	mDuration struct {
		sumMicros uint64
		count     uint64
	}
}

// New creates an Invoker and selects its execution mode.
func New(cfg Config, opts ...Option) *Invoker {
	if cfg.Diag == nil {
		cfg.Diag = os.Stderr
	}
	inv := &Invoker{cfg: cfg, log: nopLogger{}}
	for _, o := range opts {
		o(inv)
	}
	inv.external = &externalAdapter{stdout: cfg.Stdout}

	mode, compiler, files := selectMode(cfg.Compiler, inv.provider, inv.log)
	inv.mode = mode
	if mode == ModeEmbedded {
		inv.embedded = &embeddedAdapter{compiler: compiler, files: files}
	}
	inv.log.Info("compiler invoker ready", "mode", mode.String(), "setting", cfg.Compiler)
	return inv
}

// Mode reports the strategy chosen at construction.
func (inv *Invoker) Mode() Mode { return inv.mode }

// Run compiles argv, writing diagnostics to the configured Diag writer.
func (inv *Invoker) Run(argv []string) int {
	return inv.RunTo(inv.cfg.Diag, argv)
}

// RunTo is Run with an explicit diagnostic writer. An argv shorter than two
// elements is reported and yields ExitFailure.
func (inv *Invoker) RunTo(diag io.Writer, argv []string) int {
	spec, err := ParseCommand(argv)
	if err != nil {
		fmt.Fprintln(diag, err)
		atomic.AddUint64(&inv.mFailure, 1)
		return ExitFailure
	}
	return inv.Compile(diag, spec)
}

// Compile runs one compilation with the selected strategy.
func (inv *Invoker) Compile(diag io.Writer, spec CommandSpec) int {
	if diag == nil {
		diag = inv.cfg.Diag
	}
	id := uuid.NewString()
	start := time.Now()
	atomic.AddInt64(&inv.mActive, 1)
	defer atomic.AddInt64(&inv.mActive, -1)

	inv.log.Debug("compile.start",
		"invocation_id", id,
		"mode", inv.mode.String(),
		"program", spec.Program,
		"options", len(spec.Options),
		"source", spec.Source,
	)

	var code int
	if inv.mode == ModeEmbedded {
		code = inv.embedded.run(diag, spec)
	} else {
		code = inv.external.run(diag, spec)
	}

	dur := time.Since(start)
	atomic.AddUint64(&inv.mDuration.count, 1)
	atomic.AddUint64(&inv.mDuration.sumMicros, uint64(dur/time.Microsecond))
	if code == ExitSuccess {
		atomic.AddUint64(&inv.mSuccess, 1)
	} else {
		atomic.AddUint64(&inv.mFailure, 1)
	}

	inv.log.Info("compile.finish",
		"invocation_id", id,
		"mode", inv.mode.String(),
		"source", spec.Source,
		"exit_code", code,
		"duration_ms", int(dur/time.Millisecond),
	)
	return code
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}
