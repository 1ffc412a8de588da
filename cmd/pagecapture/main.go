// pagecapture exports rendered web pages to paginated PDF files.
//
// Usage:
//
//	pagecapture export [options] <url|file.html|->
//	pagecapture inspect [options] <file.pdf>
//	pagecapture serve [options]
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/automaxprocs/maxprocs"

	pagecapture "github.com/porticus-lab/go-page-capture"
)

// Exit codes: 0 success, 1 general failure, 2 usage, 3 capture, empty
// target or assembly failure.
const (
	exitOK      = 0
	exitGeneral = 1
	exitUsage   = 2
	exitCapture = 3
)

var errUsage = errors.New("usage")

func main() {
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	var err error
	switch args[0] {
	case "export":
		err = runExport(args[1:], stdin, stdout, stderr)
	case "inspect":
		err = runInspect(args[1:], stdout)
	case "serve":
		err = runServe(args[1:], stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return exitUsage
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return exitCodeFor(err)
}

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage),
		errors.Is(err, pagecapture.ErrInvalidOption),
		errors.Is(err, pagecapture.ErrConfig):
		return exitUsage
	case errors.Is(err, pagecapture.ErrCapture),
		errors.Is(err, pagecapture.ErrEmptyCapture),
		errors.Is(err, pagecapture.ErrAssembly):
		return exitCapture
	}
	return exitGeneral
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `pagecapture - export rendered web pages to paginated PDF

Usage:
  pagecapture export [options] <url|file.html|->
  pagecapture inspect [options] <file.pdf>
  pagecapture serve [options]

Commands:
  export    Capture a page and write <name>.pdf
  inspect   Show page boxes and image placements of a PDF
  serve     Run the HTTP export API

Run "pagecapture <command> --help" for the options of a command.

Examples:
  pagecapture export https://example.com/report -n report
  pagecapture export --selector '#dashboard' --size letter dashboard.html
  pagecapture inspect -f json report.pdf
  pagecapture serve --addr :8080 --no-sandbox
`)
}

// newLogger builds the handler selected by level and format.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := pagecapture.ParseLogLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level %q", errUsage, level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("%w: log format %q", errUsage, format)
}

// loadConfig reads path, or returns an empty configuration.
func loadConfig(path string) (*pagecapture.Config, error) {
	if path == "" {
		return &pagecapture.Config{}, nil
	}
	return pagecapture.LoadConfig(path)
}
