package gen

import (
	"context"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/kvgen/compiler"
	"github.com/syssam/kvgen/compiler/plan"
)

// Generator renders schema plans to Go source.
type Generator struct {
	cfg *Config
}

// New creates a Generator.
func New(opts ...Option) (*Generator, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg}, nil
}

// Config returns the configuration of the generator.
func (g *Generator) Config() *Config {
	return g.cfg
}

// Files renders p without writing it.
func (g *Generator) Files(p *plan.Schema) (map[string]*jen.File, error) {
	return Files(p, g.cfg)
}

// Generate renders p into the target directory.
func (g *Generator) Generate(ctx context.Context, p *plan.Schema) (WriterMetrics, error) {
	if g.cfg.Target == "" {
		return WriterMetrics{}, compiler.NewConfigError("Target", nil, "missing target directory in config")
	}
	files, err := g.Files(p)
	if err != nil {
		return WriterMetrics{}, err
	}
	w := NewWriter(g.cfg.Target).WithWorkers(g.cfg.Workers).WithLogger(g.cfg.Logger)
	if err := w.WriteAll(ctx, files); err != nil {
		return w.Metrics(), err
	}
	m := w.Metrics()
	g.cfg.Logger.Info("generated", "target", g.cfg.Target, "files", m.FilesGenerated, "bytes", m.TotalBytes)
	return m, nil
}

// Generate is a convenience function that renders p with the given
// options.
func Generate(ctx context.Context, p *plan.Schema, opts ...Option) error {
	g, err := New(opts...)
	if err != nil {
		return err
	}
	_, err = g.Generate(ctx, p)
	return err
}
