package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Process exit codes.
const (
	exitOK          = 0
	exitRegression  = 1
	exitConfig      = 2
	exitInput       = 3
	exitStorage     = 4
	exitInterrupted = 130
)

type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func exitError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "perfguard",
		Short:         "Detect React and JavaScript performance anti-patterns and gate regressions in CI",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.BoolVar(&a.flags.verbose, "verbose", false, "Print processing steps to stderr")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "Disable colored output")
	pf.StringVarP(&a.flags.output, "output", "o", "", "Write the report to a file (.json, .md, or text)")
	pf.StringVar(&a.flags.configPath, "config", "", "Config file (default: .perfguard.json when present)")
	pf.IntVar(&a.flags.workers, "workers", 0, "Number of files analyzed in parallel")

	root.AddCommand(
		newFileCmd(a, "analyze", "full", "Analyze a file with every rule"),
		newFileCmd(a, "quick", "quick", "Check a file for high severity issues only"),
		newFileCmd(a, "simple", "simple", "Analyze a file with the most common rules"),
		newFixCmd(a),
		newBulkCmd(a),
		newHealthCmd(a),
		newCICmd(a),
		newInteractiveCmd(a),
		newSnapshotsCmd(a),
		newRulesCmd(a),
	)
	return root
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(stderr, ee.msg)
			return ee.code
		}
		fmt.Fprintln(stderr, err)
		return exitConfig
	}
	return exitOK
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
