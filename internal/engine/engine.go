package engine

import (
	"io"
	"log/slog"

	"github.com/ahrav/go-cooke/internal/ports"
)

// Engine runs classical model calculations with one distribution family.
// It holds no per-run data and is safe for concurrent use.
type Engine struct {
	factory ports.DistributionFactory
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for warnings and progress details.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an Engine that builds expert distributions with factory.
func New(factory ports.DistributionFactory, opts ...Option) *Engine {
	e := &Engine{
		factory: factory,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Factory returns the distribution family of the engine.
func (e *Engine) Factory() ports.DistributionFactory { return e.factory }
