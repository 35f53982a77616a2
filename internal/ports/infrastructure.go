package ports

import (
	"io"
	"time"

	"github.com/ahrav/go-cooke/internal/domain"
)

// ProjectReader decodes a project from a file format.
type ProjectReader interface {
	// Read decodes one project from r.
	Read(r io.Reader) (*domain.Project, error)

	// Format names the file format, such as "json" or "excalibur".
	Format() string
}

// ProjectWriter encodes a project into a file format.
type ProjectWriter interface {
	// Write encodes p into w. Only actual experts are written.
	Write(w io.Writer, p *domain.Project) error

	// Format names the file format.
	Format() string
}

// ProgressFunc reports how many of total robustness combinations are done.
// It is called once per combination from the calculating goroutine.
type ProgressFunc func(done, total int)

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations integrate with observability platforms like Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric, such as evaluated
	// robustness combinations or unit errors.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram, such as the
	// calibration score of a decision maker.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
