// Package pr is a thin wrapper around the interactive console's output.
// It initializes readline with a cancelable stdin, redirects stdout/
// stderr onto readline's own buffers, and offers convenience print
// functions for normal and debug output.
// Concurrency: the mutex protects only swapping the target writers;
// the writes themselves aren't serialized here and must be safe on
// the target writer's own side.
package pr

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/chzyer/readline"
	"github.com/kr/pretty"
)

var (
	// rl is the active readline instance. Set by Init(); nil before that.
	rl *readline.Instance
	// out is the current stdout target. Before Init() it's os.Stdout;
	// after Init() it's rl.Stdout().
	out io.Writer = os.Stdout
	// errOut is the current stderr target, mirroring out.
	errOut io.Writer = os.Stderr
	// mu guards swapping out/errOut/cancelableIn. It does not serialize
	// the writes themselves.
	mu sync.Mutex

	// cancelableIn is the stdin handle that can be closed to interrupt a
	// pending Readline() call (surfaces as io.EOF). Set in Init() via
	// readline.NewCancelableStdin.
	cancelableIn interface{ Close() error }
)

// Init sets up readline and redirects the package's output streams onto
// its stdout/stderr buffers. Uses a cancelable stdin so a pending read
// can be interrupted cleanly during shutdown. Not meant to be called
// more than once.
func Init() error {
	cs := readline.NewCancelableStdin(os.Stdin)
	newRl, err := readline.NewEx(&readline.Config{Stdin: cs})
	if err != nil {
		_ = cs.Close()
		return err
	}
	rl = newRl

	mu.Lock()
	cancelableIn = cs
	out = rl.Stdout()
	errOut = rl.Stderr()
	mu.Unlock()

	return nil
}

// InterruptReadline closes the cancelable stdin: a pending Readline()
// call returns with io.EOF. Idempotent — a second close is a no-op in
// the underlying implementation.
func InterruptReadline() {
	if cancelableIn != nil {
		_ = cancelableIn.Close()
	}
}

// SetPrompt sets the prompt string. Assumes Init() has already run.
func SetPrompt(prompt string) {
	if rl == nil {
		return
	}
	rl.SetPrompt(prompt)
}

// Rl returns the current readline instance, or nil if Init() hasn't run.
func Rl() *readline.Instance {
	return rl
}

// Stdout returns the current stdout writer. The lock only protects the
// reference read; the writer's own thread-safety (rl.Stdout is safe for
// concurrent use) covers the actual write.
func Stdout() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return out
}

// Stderr returns the current stderr writer, mirroring Stdout.
func Stderr() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return errOut
}

// Print writes to Stdout with no trailing newline.
func Print(a ...any) {
	fmt.Fprint(Stdout(), a...)
}

// Println writes to Stdout with a trailing newline. Works before Init()
// too, falling back to os.Stdout.
func Println(a ...any) {
	fmt.Fprintln(Stdout(), a...)
}

// Printf formats and writes to Stdout.
func Printf(format string, a ...any) {
	fmt.Fprintf(Stdout(), format, a...)
}

// ErrPrint writes to Stderr with no trailing newline.
func ErrPrint(a ...any) {
	fmt.Fprint(Stderr(), a...)
}

// ErrPrintln writes to Stderr with a trailing newline.
func ErrPrintln(a ...any) {
	fmt.Fprintln(Stderr(), a...)
}

// ErrPrintf formats and writes to Stderr.
func ErrPrintf(format string, a ...any) {
	fmt.Fprintf(Stderr(), format, a...)
}

// PP pretty-prints a value to Stdout. Handy for debugging; avoid on hot
// paths given the allocations involved.
func PP(v any) {
	fmt.Fprintf(Stdout(), "%# v\n", pretty.Formatter(v))
}

// Pf returns the pretty-printed form of a value.
func Pf(v any) string {
	return fmt.Sprintf("%# v\n", pretty.Formatter(v))
}
