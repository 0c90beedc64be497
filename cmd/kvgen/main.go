// Command kvgen checks schema files, prints their shape plans and
// generates Go code from them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
)

var version = "dev"

// CLI defines the command-line interface of kvgen.
type CLI struct {
	// Global flags
	Config  string `name:"config" short:"c" help:"Config file path." default:"${config}"`
	Verbose bool   `short:"v" help:"Log stage progress."`

	Check    CheckCmd    `cmd:"" help:"Report the diagnostics of schema files"`
	Inspect  InspectCmd  `cmd:"" help:"Print the shape plans of schema files"`
	Generate GenerateCmd `cmd:"" help:"Generate Go code from schema files"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// Env is passed to the Run method of every command.
type Env struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	Config *FileConfig
}

// errDiagnostics reports a failed compilation whose diagnostics have
// already been printed.
var errDiagnostics = errors.New("schema has errors")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line args and returns the exit code: 0 on
// success, 1 when the schema has errors or the command failed, 2 for
// invalid usage.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("kvgen"),
		kong.Description("Compile key-value store schemas into typed Go"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Writers(stdout, stderr),
		kong.Vars{"config": DefaultConfigFile},
	)
	if err != nil {
		fmt.Fprintln(stderr, "kvgen:", err)
		return 2
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintln(stderr, "kvgen:", err)
		return 2
	}

	cfg, err := LoadConfig(cli.Config, cli.Config == DefaultConfigFile)
	if err != nil {
		fmt.Fprintln(stderr, "kvgen:", err)
		return 1
	}
	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	env := &Env{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
		Logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
		Config: cfg,
	}
	if err := kctx.Run(env); err != nil {
		if !errors.Is(err, errDiagnostics) {
			fmt.Fprintln(stderr, "kvgen:", err)
		}
		return 1
	}
	return 0
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(env *Env) error {
	_, err := fmt.Fprintf(env.Stdout, "kvgen %s\n", version)
	return err
}
