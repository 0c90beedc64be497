package gen

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"
)

// Writer renders jennifer files into a directory in parallel.
type Writer struct {
	dir     string
	workers int
	logger  *slog.Logger

	// Metrics for performance monitoring
	mu      sync.Mutex
	metrics WriterMetrics
}

// WriterMetrics tracks generation performance.
type WriterMetrics struct {
	FilesGenerated int
	TotalBytes     int64
	RenderTime     time.Duration
	WriteTime      time.Duration
}

// NewWriter creates a writer of the directory dir.
func NewWriter(dir string) *Writer {
	return &Writer{
		dir:     dir,
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithWorkers sets the number of parallel workers.
func (w *Writer) WithWorkers(n int) *Writer {
	if n > 0 {
		w.workers = n
	}
	return w
}

// WithLogger sets the logger reporting written files.
func (w *Writer) WithLogger(l *slog.Logger) *Writer {
	if l != nil {
		w.logger = l
	}
	return w
}

// Metrics returns the generation metrics.
func (w *Writer) Metrics() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// WriteAll writes all files, keyed by their name relative to the
// directory of the writer.
func (w *Writer) WriteAll(ctx context.Context, files map[string]*jen.File) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return NewGenerationError("write", w.dir, "create output directory", err)
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(w.workers)
	for _, name := range names {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return w.writeFile(name, files[name])
			}
		})
	}
	return eg.Wait()
}

// writeFile renders f before creating the file, so that a render error
// leaves no partial output.
func (w *Writer) writeFile(name string, f *jen.File) error {
	start := time.Now()
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return NewGenerationError("render", name, "render Go source", err)
	}
	rendered := time.Now()

	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return NewGenerationError("write", name, "write file", err)
	}
	w.logger.Debug("wrote file", "path", path, "bytes", buf.Len())

	w.mu.Lock()
	w.metrics.FilesGenerated++
	w.metrics.TotalBytes += int64(buf.Len())
	w.metrics.RenderTime += rendered.Sub(start)
	w.metrics.WriteTime += time.Since(rendered)
	w.mu.Unlock()
	return nil
}
