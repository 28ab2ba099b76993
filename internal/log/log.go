// Package log provides the console messages printed by vtds-mock.
// Output is colorized when the destination is a terminal.
package log

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ANSI escape codes.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	cyan   = "\033[36m"
	green  = "\033[32m"
	yellow = "\033[33m"
	red    = "\033[31m"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects messages; Error goes to errOut, everything else to out.
// It returns a function restoring the previous writers.
func SetOutput(out, errOut io.Writer) (restore func()) {
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	return func() { stdout, stderr = prevOut, prevErr }
}

// colorize wraps msg in an ANSI color sequence only when w is a TTY.
func colorize(w io.Writer, color, msg string) string {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return color + bold + msg + reset
	}
	return msg
}

func Info(msg string)  { fmt.Fprintf(stdout, "%s %s\n", colorize(stdout, cyan, "[+]"), msg) }
func Ok(msg string)    { fmt.Fprintf(stdout, "%s %s\n", colorize(stdout, green, "[✓]"), msg) }
func Skip(msg string)  { fmt.Fprintf(stdout, "%s %s\n", colorize(stdout, yellow, "[=]"), msg) }
func Error(msg string) { fmt.Fprintf(stderr, "%s %s\n", colorize(stderr, red, "[!]"), msg) }
