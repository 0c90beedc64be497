package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"go/token"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/syssam/kvgen/compiler"
	"github.com/syssam/kvgen/compiler/diag"
	"github.com/syssam/kvgen/compiler/gen"
	"github.com/syssam/kvgen/compiler/load"
	"github.com/syssam/kvgen/compiler/plan"
)

// SchemaFlags select and configure the compiled schemas.
type SchemaFlags struct {
	Paths     []string `arg:"" optional:"" name:"path" help:"Schema files or directories (default: config schemas or .)"`
	Mode      string   `help:"Error reporting: fail-fast or collect-all"`
	Lenient   bool     `help:"Skip unknown annotations with a warning"`
	JoinDepth *int     `name:"join-depth" help:"Join levels expanded in item shapes"`
	Workers   int      `help:"Files compiled in parallel (default: GOMAXPROCS)"`
}

// paths returns the flag paths, the config file paths or ".".
func (f *SchemaFlags) paths(cfg *FileConfig) []string {
	switch {
	case len(f.Paths) > 0:
		return f.Paths
	case len(cfg.Schemas) > 0:
		return cfg.Schemas
	}
	return []string{"."}
}

// options merges the flags over the config file into compiler options.
func (f *SchemaFlags) options(env *Env) ([]compiler.Option, error) {
	name := env.Config.Mode
	if f.Mode != "" {
		name = f.Mode
	}
	mode, err := diag.ParseMode(name)
	if err != nil {
		return nil, err
	}
	opts := []compiler.Option{
		compiler.WithMode(mode),
		compiler.WithLogger(env.Logger),
		compiler.WithLenientAnnotations(f.Lenient || env.Config.LenientAnnotations),
	}
	if f.JoinDepth != nil {
		opts = append(opts, compiler.WithJoinDepth(*f.JoinDepth))
	} else if env.Config.JoinDepth != nil {
		opts = append(opts, compiler.WithJoinDepth(*env.Config.JoinDepth))
	}
	return opts, nil
}

func (f *SchemaFlags) workers(cfg *FileConfig) int {
	switch {
	case f.Workers > 0:
		return f.Workers
	case cfg.Workers > 0:
		return cfg.Workers
	}
	return 0
}

func (f *SchemaFlags) cache(env *Env) (*compiler.Cache, error) {
	opts, err := f.options(env)
	if err != nil {
		return nil, err
	}
	return compiler.NewCache(opts...)
}

// compileAll loads and compiles the schemas in parallel. The results are
// in file order; diags holds the diagnostics of every file.
func compileAll(cache *compiler.Cache, paths []string, workers int) (results []*compiler.Result, diags diag.List, err error) {
	files, err := load.Load(paths...)
	if err != nil {
		return nil, nil, err
	}
	results = make([]*compiler.Result, len(files))
	g := new(errgroup.Group)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, f := range files {
		g.Go(func() error {
			res, err := cache.Compile(f.Path, f.Source)
			if res == nil || (err != nil && len(res.Diagnostics) == 0) {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	for _, res := range results {
		diags.Add(res.Diagnostics...)
	}
	return results, diags, nil
}

func printDiagnostics(w io.Writer, l diag.List) {
	for _, d := range l {
		fmt.Fprintln(w, d)
		for _, loc := range d.Related {
			fmt.Fprintf(w, "\t%s: see also\n", loc)
		}
	}
}

// CheckCmd reports the diagnostics of schema files.
type CheckCmd struct {
	SchemaFlags `embed:""`
}

func (c *CheckCmd) Run(env *Env) error {
	cache, err := c.cache(env)
	if err != nil {
		return err
	}
	results, diags, err := compileAll(cache, c.paths(env.Config), c.workers(env.Config))
	if err != nil {
		return err
	}
	printDiagnostics(env.Stdout, diags)
	if len(diags) > 0 {
		fmt.Fprintf(env.Stderr, "%d error(s) in %d file(s)\n", len(diags), len(results))
		return errDiagnostics
	}
	for _, res := range results {
		fmt.Fprintf(env.Stdout, "%s: ok (%d tables)\n", res.Filename, len(res.Plan.Tables()))
	}
	return nil
}

// InspectCmd prints the shape plans of schema files.
type InspectCmd struct {
	SchemaFlags `embed:""`
	Format      string `short:"f" help:"Output format: yaml, json or msgpack" enum:"yaml,json,msgpack" default:"yaml"`
}

// inspected is the plan of one schema file.
type inspected struct {
	File string       `json:"file" yaml:"file" msgpack:"file"`
	Plan *plan.Schema `json:"plan" yaml:"plan" msgpack:"plan"`
}

func (c *InspectCmd) Run(env *Env) error {
	cache, err := c.cache(env)
	if err != nil {
		return err
	}
	results, diags, err := compileAll(cache, c.paths(env.Config), c.workers(env.Config))
	if err != nil {
		return err
	}
	if len(diags) > 0 {
		printDiagnostics(env.Stderr, diags)
		return errDiagnostics
	}
	out := make([]inspected, len(results))
	for i, res := range results {
		out[i] = inspected{File: res.Filename, Plan: res.Plan}
	}
	return encode(env.Stdout, c.Format, out)
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "msgpack":
		return msgpack.NewEncoder(w).Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q", format)
}

// GenerateCmd generates Go code from schema files.
type GenerateCmd struct {
	SchemaFlags `embed:""`
	Out         string        `short:"o" help:"Output directory (default: config out or ./kv)"`
	Package     string        `short:"p" help:"Go package name (default: config package or the output directory name)"`
	Watch       bool          `short:"w" help:"Regenerate when schema files change"`
	Debounce    time.Duration `help:"Quiet period before regenerating in watch mode" default:"100ms"`
}

func (c *GenerateCmd) Run(env *Env) error {
	cache, err := c.cache(env)
	if err != nil {
		return err
	}
	g, err := gen.New(c.genOptions(env)...)
	if err != nil {
		return err
	}
	paths := c.paths(env.Config)
	err = c.generate(env, cache, g, paths)
	if !c.Watch {
		return err
	}
	if err != nil && !errors.Is(err, errDiagnostics) {
		return err
	}
	env.Logger.Info("watching schemas", "paths", paths)
	return load.Watch(env.Ctx, paths, func(changed []string) error {
		env.Logger.Info("schemas changed", "files", changed)
		if err := c.generate(env, cache, g, paths); err != nil && !errors.Is(err, errDiagnostics) {
			env.Logger.Error("generate", "error", err)
		}
		return nil
	}, load.WithDebounce(c.Debounce), load.WithLogger(env.Logger))
}

func (c *GenerateCmd) genOptions(env *Env) []gen.Option {
	out := firstNonEmpty(c.Out, env.Config.Out, "kv")
	pkg := firstNonEmpty(c.Package, env.Config.Package, packageName(out))
	opts := []gen.Option{gen.WithTarget(out), gen.WithPackage(pkg), gen.WithLogger(env.Logger)}
	if n := c.workers(env.Config); n > 0 {
		opts = append(opts, gen.WithWorkers(n))
	}
	return opts
}

// generate compiles paths and writes the merged plan of all files.
func (c *GenerateCmd) generate(env *Env, cache *compiler.Cache, g *gen.Generator, paths []string) error {
	results, diags, err := compileAll(cache, paths, c.workers(env.Config))
	if err != nil {
		return err
	}
	if len(diags) > 0 {
		printDiagnostics(env.Stderr, diags)
		return errDiagnostics
	}
	plans := make([]*plan.Schema, len(results))
	for i, res := range results {
		plans[i] = res.Plan
	}
	_, err = g.Generate(env.Ctx, merge(plans))
	return err
}

// merge combines the plans of several files into one. Name clashes are
// reported by the generator.
func merge(plans []*plan.Schema) *plan.Schema {
	out := &plan.Schema{}
	for _, p := range plans {
		out.Aliases = append(out.Aliases, p.Aliases...)
		out.Databases = append(out.Databases, p.Databases...)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	i := slices.IndexFunc(values, func(s string) bool { return s != "" })
	if i < 0 {
		return ""
	}
	return values[i]
}

// packageName derives a Go package name from the output directory.
func packageName(dir string) string {
	name := strings.ToLower(filepath.Base(dir))
	name = strings.Map(func(r rune) rune {
		if r == '-' || r == '.' || r == ' ' {
			return '_'
		}
		return r
	}, name)
	if !token.IsIdentifier(name) {
		return "kv"
	}
	return name
}
