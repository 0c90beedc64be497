// Package compiler runs the schema pipeline: lexing, parsing, resolution
// of annotations, indexes, joins and defaults, and shape planning.
//
// A compilation either succeeds with a complete plan or fails with a
// sorted, deduplicated list of diagnostics:
//
//	res, err := compiler.Compile("blog.schema", src, compiler.WithMode(diag.CollectAll))
//	if err != nil {
//		for _, d := range res.Diagnostics {
//			fmt.Println(d)
//		}
//	}
//
// Every compilation owns its state, so separate compilations may run
// concurrently.
package compiler

import (
	"errors"
	"fmt"
	"os"

	"github.com/syssam/kvgen/compiler/ast"
	"github.com/syssam/kvgen/compiler/diag"
	"github.com/syssam/kvgen/compiler/lexer"
	"github.com/syssam/kvgen/compiler/parser"
	"github.com/syssam/kvgen/compiler/plan"
	"github.com/syssam/kvgen/compiler/resolve"
)

// Result is the outcome of a compilation. Stages that did not run leave
// their field nil.
type Result struct {
	Filename string
	AST      *ast.Schema
	Schema   *resolve.Schema
	// Plan is set when the compilation succeeded.
	Plan        *plan.Schema
	Diagnostics diag.List
}

// Err returns the diagnostics as an error, or nil.
func (r *Result) Err() error { return r.Diagnostics.Err() }

// Compile compiles one schema source. The returned error is a *ConfigError
// for invalid options, or the diag.List of a failed compilation, in which
// case the result holds the stages that ran.
func Compile(filename, src string, opts ...Option) (*Result, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	return cfg.Compile(filename, src)
}

// Compile compiles one schema source with the configuration c.
func (c *Config) Compile(filename, src string) (*Result, error) {
	res := &Result{Filename: filename}
	if err := c.compile(res, src); err != nil {
		return res, err
	}
	res.Diagnostics.Sort()
	res.Diagnostics = res.Diagnostics.Dedupe()
	return res, res.Err()
}

// CompileFile reads and compiles a schema file.
func CompileFile(path string, opts ...Option) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Compile(path, string(src), opts...)
}

func (c *Config) compile(res *Result, src string) error {
	log := c.Logger.With("file", res.Filename, "mode", c.Mode.String())

	var toks []lexer.Token
	if c.Mode == diag.FailFast {
		var err error
		if toks, err = lexer.Tokenize(res.Filename, src); err != nil {
			var d *diag.Diagnostic
			if !errors.As(err, &d) {
				return err
			}
			res.Diagnostics.Add(d)
			return nil
		}
	} else {
		var errs diag.List
		toks, errs = lexer.TokenizeAll(res.Filename, src)
		res.Diagnostics.Add(errs...)
	}
	log.Debug("tokenized", "tokens", len(toks), "errors", len(res.Diagnostics))

	tree, errs := parser.Parse(toks, c.Mode)
	res.AST = tree
	res.Diagnostics.Add(errs...)
	log.Debug("parsed", "definitions", len(tree.Definitions), "errors", len(errs))
	if c.Mode == diag.FailFast && len(res.Diagnostics) > 0 {
		return nil
	}

	s := resolve.Resolve(tree, resolve.Options{Mode: c.Mode, LenientAnnotations: c.LenientAnnotations})
	res.Schema = s
	for _, a := range s.Ignored {
		log.Warn("ignoring unknown annotation", "annotation", "@"+a.Name.Value, "location", a.Loc.String())
	}
	errs = s.AllDiagnostics()
	res.Diagnostics.Add(errs...)
	log.Debug("resolved", "databases", len(s.Databases), "tables", len(s.Tables), "errors", len(errs))
	if len(res.Diagnostics) > 0 {
		return nil
	}

	p, err := plan.Build(s, plan.Options{JoinDepth: c.JoinDepth})
	if err != nil {
		return fmt.Errorf("compiler: plan resolved schema: %w", err)
	}
	res.Plan = p
	log.Debug("planned", "tables", len(p.Tables()), "joinDepth", c.JoinDepth)
	return nil
}
