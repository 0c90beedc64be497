package compiler

import (
	"errors"
	"io"
	"log/slog"

	"github.com/syssam/kvgen/compiler/diag"
	"github.com/syssam/kvgen/compiler/plan"
)

// Config holds the settings of a compilation.
type Config struct {
	// Mode selects fail-fast or collect-all error reporting.
	Mode diag.Mode
	// Logger receives stage progress at debug level and skipped
	// annotations at warn level.
	Logger *slog.Logger
	// LenientAnnotations skips unknown annotations instead of failing.
	LenientAnnotations bool
	// JoinDepth is the number of join levels expanded in item shapes.
	JoinDepth int
}

// Option configures a compilation.
type Option func(*Config) error

// WithMode sets the error reporting mode.
func WithMode(m diag.Mode) Option {
	return func(c *Config) error {
		switch m {
		case diag.FailFast, diag.CollectAll:
			c.Mode = m
			return nil
		}
		return NewConfigError("Mode", m, "unknown mode; use fail-fast or collect-all")
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) error {
		if l == nil {
			return NewConfigError("Logger", nil, "logger cannot be nil")
		}
		c.Logger = l
		return nil
	}
}

// WithLenientAnnotations makes unknown annotations warnings instead of
// errors.
func WithLenientAnnotations(lenient bool) Option {
	return func(c *Config) error {
		c.LenientAnnotations = lenient
		return nil
	}
}

// WithJoinDepth sets how many join levels item shapes expand.
func WithJoinDepth(n int) Option {
	return func(c *Config) error {
		if n < 0 {
			return NewConfigError("JoinDepth", n, "join depth cannot be negative")
		}
		c.JoinDepth = n
		return nil
	}
}

// Apply applies options to the config.
// It returns the first error encountered.
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAll applies options and collects all errors.
func (c *Config) ApplyAll(opts ...Option) error {
	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewConfig creates a Config with defaults and the given options: fail-fast
// mode, a discarding logger and one level of join expansion.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{
		Mode:      diag.FailFast,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		JoinDepth: plan.DefaultJoinDepth,
	}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNewConfig is like NewConfig but panics on error.
func MustNewConfig(opts ...Option) *Config {
	c, err := NewConfig(opts...)
	if err != nil {
		panic(err)
	}
	return c
}
