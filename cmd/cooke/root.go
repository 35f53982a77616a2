package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/ahrav/go-cooke/infrastructure/distribution"
	"github.com/ahrav/go-cooke/infrastructure/middleware"
	"github.com/ahrav/go-cooke/internal/logging"
	"github.com/ahrav/go-cooke/internal/ports"
)

const shutdownTimeout = 5 * time.Second

// app holds the global flags and the process wide collaborators that the
// subcommands share.
type app struct {
	logLevel    string
	logFormat   string
	metricsAddr string
	trace       bool

	registry      *prometheus.Registry
	metrics       *middleware.PrometheusMetrics
	distributions *distribution.Registry
	logger        *slog.Logger
	shutdown      []func(context.Context) error
}

// newRootCmd builds the command tree. The caller must call a.close once the
// command has returned, successful or not.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "cooke",
		Short: "Structured expert judgment with Cooke's classical model",
		Long: "cooke scores experts on seed questions, combines their assessments into a\n" +
			"decision maker and measures how robust the result is to leaving out items\n" +
			"or experts.",
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	f.StringVar(&a.logFormat, "log-format", "text", "Log format: text or json")
	f.StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	f.BoolVar(&a.trace, "trace", false, "Write OpenTelemetry spans to stderr")

	root.AddCommand(newCalculateCmd(a))
	root.AddCommand(newRobustnessCmd(a))
	root.AddCommand(newRunCmd(a))
	root.AddCommand(newScoresCmd(a))
	root.AddCommand(newConvertCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return ports.NewConfigError("log-level", err)
	}
	if a.logFormat != "text" && a.logFormat != "json" {
		return ports.NewConfigError("log-format", fmt.Errorf("invalid log format %q, expected text or json", a.logFormat))
	}
	logging.Init(level, a.logFormat, cmd.ErrOrStderr())
	a.logger = logging.New("cli")

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector())
	a.metrics = middleware.NewPrometheusMetrics(a.registry)
	a.distributions = distribution.NewRegistry()

	if a.metricsAddr != "" {
		if err := a.serveMetrics(); err != nil {
			return err
		}
	}
	if a.trace {
		if err := a.setupTracing(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) serveMetrics() error {
	ln, err := net.Listen("tcp", a.metricsAddr)
	if err != nil {
		return ports.NewMetricsError("/metrics", "listen", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", ln.Addr().String())
	a.shutdown = append(a.shutdown, srv.Shutdown)
	return nil
}

func (a *app) setupTracing(cmd *cobra.Command) error {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(cmd.ErrOrStderr()),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	a.shutdown = append(a.shutdown, tp.Shutdown)
	return nil
}

// close stops the metrics server and flushes the tracer provider started by
// setup. It is safe to call more than once.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		errs = append(errs, a.shutdown[i](ctx))
	}
	a.shutdown = nil
	return errors.Join(errs...)
}
