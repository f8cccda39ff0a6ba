package embedded

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/scanner"
	"go/token"
	"go/types"
	"io"
	"os"
	"path/filepath"
	"strings"

	"hackohio/invoker/pkg/invoker"
)

type task struct {
	diag    io.Writer
	files   *FileManager
	options []string
	units   []invoker.Unit
}

func (t *task) Call() bool {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	fs.SetOutput(t.diag)
	outDir := fs.String("d", "", "directory for API summaries")
	verbose := fs.Bool("verbose", false, "trace compilation phases")
	if err := fs.Parse(t.options); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(t.diag, "error: unexpected argument: %s\n", fs.Arg(0))
		return false
	}
	if len(t.units) == 0 {
		fmt.Fprintln(t.diag, "error: no source files")
		return false
	}

	errs := 0
	for _, u := range t.units {
		errs += t.compile(u.Path(), *outDir, *verbose)
	}
	switch {
	case errs == 1:
		fmt.Fprintln(t.diag, "1 error")
	case errs > 1:
		fmt.Fprintf(t.diag, "%d errors\n", errs)
	}
	return errs == 0
}

// compile checks one file and returns the number of errors reported.
func (t *task) compile(path, outDir string, verbose bool) int {
	if filepath.Ext(path) != ".go" {
		fmt.Fprintf(t.diag, "error: not a Go source file: %s\n", path)
		return 1
	}
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(t.diag, "error: %v\n", err)
		return 1
	}

	fset := token.NewFileSet()
	if verbose {
		fmt.Fprintf(t.diag, "[parsing %s]\n", path)
	}
	file, err := parser.ParseFile(fset, path, src, parser.AllErrors)
	if err != nil {
		var list scanner.ErrorList
		if errors.As(err, &list) {
			for _, e := range list {
				fmt.Fprintln(t.diag, e)
			}
			return len(list)
		}
		fmt.Fprintln(t.diag, err)
		return 1
	}

	if verbose {
		fmt.Fprintf(t.diag, "[checking %s]\n", file.Name.Name)
	}
	errs := 0
	conf := types.Config{
		Importer: importer.ForCompiler(fset, "source", nil),
		Error: func(err error) {
			fmt.Fprintln(t.diag, err)
			errs++
		},
	}
	pkg, _ := conf.Check(file.Name.Name, fset, []*ast.File{file}, nil)
	if errs > 0 {
		return errs
	}

	if t.files == nil {
		return 0
	}
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	out := filepath.Join(dir, strings.TrimSuffix(filepath.Base(path), ".go")+".api")
	t.files.put(out, summarize(pkg))
	if verbose {
		fmt.Fprintf(t.diag, "[buffered %s]\n", out)
	}
	return 0
}

// summarize lists the exported package-level declarations of pkg, one per
// line, in scope order.
func summarize(pkg *types.Package) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "package %s\n", pkg.Name())
	qf := types.RelativeTo(pkg)
	scope := pkg.Scope()
	for _, name := range scope.Names() {
		obj := scope.Lookup(name)
		if !obj.Exported() {
			continue
		}
		fmt.Fprintln(&buf, types.ObjectString(obj, qf))
	}
	return buf.Bytes()
}
