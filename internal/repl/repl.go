// Package repl implements the interactive perfguard shell.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/dshills/perfguard/internal/source"
)

// Handler runs one command against its path argument.
type Handler func(ctx context.Context, path string) error

// Handlers are the operations the shell dispatches to. A nil handler
// disables its command.
type Handlers struct {
	Analyze Handler
	Quick   Handler
	Simple  Handler
	Fix     Handler
	Bulk    Handler
	Health  Handler
}

// Config holds REPL configuration.
type Config struct {
	Handlers    Handlers
	Out         io.Writer
	Color       bool
	HistoryFile string
}

type command struct {
	name  string
	usage string
	desc  string
	dir   bool
	run   Handler
}

// REPL is the interactive shell.
type REPL struct {
	out      io.Writer
	color    bool
	history  string
	commands []command
	byName   map[string]command
}

// errExit ends the loop.
var errExit = errors.New("exit")

// New creates a REPL with the given handlers.
func New(cfg Config) *REPL {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	r := &REPL{out: out, color: cfg.Color, history: cfg.HistoryFile, byName: map[string]command{}}
	h := cfg.Handlers
	for _, c := range []command{
		{"analyze", "analyze <file>", "Analyze a file with every rule", false, h.Analyze},
		{"quick", "quick <file>", "Check a file for high severity issues only", false, h.Quick},
		{"simple", "simple <file>", "Analyze a file with the common rules", false, h.Simple},
		{"fix", "fix <file>", "Show a fix plan for a file", false, h.Fix},
		{"bulk", "bulk <dir>", "Analyze every file under a directory", true, h.Bulk},
		{"health", "health <dir>", "Summarize the health of a directory", true, h.Health},
	} {
		if c.run == nil {
			continue
		}
		r.commands = append(r.commands, c)
		r.byName[c.name] = c
	}
	return r
}

func (r *REPL) paint(attrs ...color.Attribute) func(a ...any) string {
	c := color.New(attrs...)
	if r.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.SprintFunc()
}

// Run starts the loop. It returns when the user exits, input ends, or ctx
// is cancelled.
func (r *REPL) Run(ctx context.Context) error {
	prompt := r.paint(color.FgCyan)("perfguard> ")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       r.history,
		AutoComplete:      r.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdout:            r.out,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	r.printWelcome()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return nil
			}
			return err
		}
		if err := r.Execute(ctx, line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			fmt.Fprintf(r.out, "%s %v\n", r.paint(color.FgRed)("Error:"), err)
		}
	}
}

// Execute runs one input line.
func (r *REPL) Execute(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	name, args := parts[0], parts[1:]
	switch name {
	case "help", "?":
		r.printHelp()
		return nil
	case "exit", "quit":
		fmt.Fprintf(r.out, "%s Goodbye!\n", r.paint(color.FgGreen)("✓"))
		return errExit
	}

	c, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("unknown command %q, type 'help' for the list", name)
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.usage)
	}
	return c.run(ctx, args[0])
}

func (r *REPL) printWelcome() {
	fmt.Fprintf(r.out, "\n%s\n", r.paint(color.FgCyan, color.Bold)("perfguard interactive mode"))
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'exit' to quit")
	fmt.Fprintln(r.out)
}

func (r *REPL) printHelp() {
	fmt.Fprintf(r.out, "\n%s\n\n", r.paint(color.FgCyan, color.Bold)("Available Commands:"))
	green := r.paint(color.FgGreen)
	for _, c := range r.commands {
		fmt.Fprintf(r.out, "  %-16s %s\n", green(c.usage), c.desc)
	}
	fmt.Fprintf(r.out, "  %-16s %s\n", green("help, ?"), "Show this help message")
	fmt.Fprintf(r.out, "  %-16s %s\n", green("exit, quit"), "Exit the shell")
	fmt.Fprintln(r.out)
}

func (r *REPL) completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(r.commands)+2)
	for _, c := range r.commands {
		items = append(items, readline.PcItem(c.name, readline.PcItemDynamic(pathCompleter(c.dir))))
	}
	items = append(items, readline.PcItem("help"), readline.PcItem("exit"))
	return readline.NewPrefixCompleter(items...)
}

// pathCompleter lists entries of the directory named by the partial
// argument of line. Files are offered only when they can be analyzed.
func pathCompleter(dirsOnly bool) func(string) []string {
	return func(line string) []string {
		fields := strings.Fields(line)
		partial := ""
		if len(fields) > 1 && !strings.HasSuffix(line, " ") {
			partial = fields[len(fields)-1]
		}
		return completePath(partial, dirsOnly)
	}
}

func completePath(partial string, dirsOnly bool) []string {
	dir := filepath.Dir(partial)
	if partial == "" || strings.HasSuffix(partial, string(filepath.Separator)) {
		dir = partial
	}
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name := e.Name()
		if dir != "." || strings.HasPrefix(partial, "."+string(filepath.Separator)) {
			name = filepath.Join(dir, name)
		}
		switch {
		case e.IsDir():
			out = append(out, name+string(filepath.Separator))
		case !dirsOnly && source.Supported(name):
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
