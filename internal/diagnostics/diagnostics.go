// Package diagnostics renders evaluator/parser errors (the
// "STATIC ERROR:"/"RUNTIME ERROR:" banners) to a terminal, colorizing the
// banner line and falling back to plain text when the destination isn't a
// real terminal (piped output, redirected to a file, CI logs).
package diagnostics

import (
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Stderr wraps os.Stderr so ANSI escapes survive on Windows consoles
// (cmd/jsonnet writes every diagnostic through this, not os.Stderr
// directly).
func Stderr() io.Writer { return colorable.NewColorableStderr() }

// Stdout is the Stdout counterpart, used for normal program output so a
// `-o -` style redirect behaves consistently with Stderr.
func Stdout() io.Writer { return colorable.NewColorableStdout() }

// isTerminal reports whether w is a file descriptor attached to a real
// terminal (as opposed to a pipe, a regular file, or /dev/null) -- color
// codes in a redirected log file are just noise.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// PrintError writes err to w, in red, when w is a terminal; otherwise
// plain. Only the banner line ("STATIC ERROR: ..."/"RUNTIME ERROR: ...")
// is colorized -- the stack-trace lines that follow stay default-colored,
// matching how the reference CLI highlights just the headline.
func PrintError(w io.Writer, err error) {
	msg := err.Error()
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	if !isTerminal(w) {
		io.WriteString(w, msg)
		return
	}
	banner, rest, found := strings.Cut(msg, "\n")
	red := color.New(color.FgRed, color.Bold)
	red.Fprint(w, banner)
	if found {
		io.WriteString(w, "\n"+rest)
	} else {
		io.WriteString(w, "\n")
	}
}
