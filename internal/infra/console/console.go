// Package console is the interactive operator console shared by both
// binaries: it starts a readline loop in the background, dispatches
// typed commands to handlers the caller supplies, and integrates with
// the lifecycle manager's Start/Stop contract.
package console

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"

	"telegram-userbot/internal/infra/logger"
	"telegram-userbot/internal/infra/pr"
)

var (
	bannerColor  = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)
	unknownColor = color.New(color.FgRed)
)

// Handler runs one console command and writes its own output via pr.
type Handler func()

// Command describes one console verb for dispatch and for help text.
type Command struct {
	Name        string
	Description string
	Run         Handler
}

// Service runs the readline loop and owns the command table. Start/Stop
// are idempotent, mirroring the teacher's lifecycle-managed services.
type Service struct {
	name     string
	stopApp  context.CancelFunc
	commands []Command

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	onceStart sync.Once
	onceStop  sync.Once
}

// NewService builds a console for the given process name (shown in the
// banner), with stopApp wired to the "exit" command. A readline error,
// Ctrl-C included, ends only the console loop.
func NewService(name string, stopApp context.CancelFunc, commands []Command) *Service {
	return &Service{name: name, stopApp: stopApp, commands: commands}
}

// IsInteractive reports whether stdin is attached to a terminal. A
// daemonized process (e.g. started with --daemon, stdin redirected from
// /dev/null) has no one to read commands from, so Start skips the
// readline loop entirely rather than blocking forever on a dead stdin.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Start launches the read loop in the background. Safe to call more
// than once; only the first call takes effect. A no-op when stdin isn't
// a terminal.
func (s *Service) Start(ctx context.Context) {
	if !IsInteractive() {
		logger.Debugf("%s console: stdin is not a terminal, skipping interactive console", s.name)
		return
	}
	s.onceStart.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(runCtx)
		}()
	})
}

// Stop interrupts the pending read and waits for the loop to exit.
func (s *Service) Stop() {
	s.onceStop.Do(func() {
		if rl := pr.Rl(); rl != nil {
			pr.InterruptReadline()
		}
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
	})
}

func (s *Service) run(ctx context.Context) {
	pr.SetPrompt(s.name + "> ")
	pr.Println(bannerColor.Sprint(s.name+" console ready."), "Commands:", s.commandNames())
	pr.Println("Type 'help' for descriptions, 'exit' to stop.")

	defer func() {
		if rl := pr.Rl(); rl != nil {
			_ = rl.Close()
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		line, err := pr.Rl().Readline()
		if err != nil {
			logger.Debugf("%s console: readline closed: %v", s.name, err)
			return
		}

		if s.handle(strings.TrimSpace(line)) {
			return
		}
	}
}

func (s *Service) handle(cmd string) (exit bool) {
	switch cmd {
	case "":
		return false
	case "help":
		s.printHelp()
		return false
	case "exit":
		if s.stopApp != nil {
			s.stopApp()
		}
		return true
	}

	for _, c := range s.commands {
		if c.Name == cmd {
			c.Run()
			return false
		}
	}
	pr.Println(unknownColor.Sprint("unknown command:"), cmd)
	return false
}

func (s *Service) printHelp() {
	pr.Println("Available commands:")
	pr.Printf("  %-10s - %s\n", "help", "Show this list")
	pr.Printf("  %-10s - %s\n", "exit", "Stop the console and the process")
	for _, c := range s.commands {
		pr.Printf("  %-10s - %s\n", c.Name, c.Description)
	}
}

func (s *Service) commandNames() string {
	names := make([]string, 0, len(s.commands)+2)
	names = append(names, "help", "exit")
	for _, c := range s.commands {
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}

// Printf is a small passthrough so callers building Handlers don't need
// to import pr directly for simple formatted output.
func Printf(format string, a ...any) {
	pr.Printf(format, a...)
}

// Warn prints an operator-facing warning line in the console's warn
// color. Used by handlers that need to surface a non-fatal problem.
func Warn(a ...any) {
	pr.Println(warnColor.Sprint(fmt.Sprint(a...)))
}
