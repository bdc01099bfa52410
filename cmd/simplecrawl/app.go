package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nao1215/simplecrawl/internal/cleaner"
	"github.com/nao1215/simplecrawl/internal/config"
	"github.com/nao1215/simplecrawl/internal/history"
	"github.com/nao1215/simplecrawl/internal/log"
	"github.com/nao1215/simplecrawl/pkg/firecrawl"
	"github.com/nao1215/simplecrawl/pkg/schema"
	"github.com/nao1215/simplecrawl/pkg/transport"
)

// app is the state shared by the commands that talk to the service.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	// logFile receives a copy of the log when --log-file is set.
	logFile *lumberjack.Logger

	// registry and metricsFile are set when --metrics-file is given.
	registry    *prometheus.Registry
	metrics     *transport.Metrics
	metricsFile string

	// tracer records request spans when --trace is set. They are written
	// to traceFile, or to stderr when no --trace-file is given.
	tracer    *sdktrace.TracerProvider
	traceFile *os.File
}

// newApp builds the configuration and logger for cmd.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}

	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return nil, err
	}
	logFormat, err := log.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	var logOutput io.Writer = cmd.ErrOrStderr()
	if path, _ := cmd.Flags().GetString("log-file"); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		a.logFile = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		}
		logOutput = io.MultiWriter(logOutput, a.logFile)
	}
	a.logger, err = log.New(logOutput, logFormat, cfg.Verbose)
	if err != nil {
		a.close()
		return nil, err
	}

	if path, _ := cmd.Flags().GetString("metrics-file"); path != "" {
		a.registry = prometheus.NewRegistry()
		a.metrics, err = transport.NewMetrics(a.registry)
		if err != nil {
			a.close()
			return nil, err
		}
		a.metricsFile = path
	}

	if cfg.Tracing {
		if err := a.startTracing(cmd); err != nil {
			a.close()
			return nil, err
		}
	}

	if cfg.File != nil {
		a.logger.Debug("loaded configuration file", "sites", len(cfg.File.Sites))
	}
	return a, nil
}

// startTracing installs a tracer provider that exports spans as JSON.
func (a *app) startTracing(cmd *cobra.Command) error {
	var w io.Writer = cmd.ErrOrStderr()
	if path, _ := cmd.Flags().GetString("trace-file"); path != "" {
		f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("failed to open trace file: %w", err)
		}
		a.traceFile = f
		w = f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}
	a.tracer = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", config.AppName),
			attribute.String("service.version", getVersion()),
		)),
	)
	return nil
}

// close flushes spans, writes the request metrics and releases the log
// file. Failures are logged because the command result has already been
// produced.
func (a *app) close() {
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("failed to flush traces", "error", err)
		}
		cancel()
	}
	if a.traceFile != nil {
		_ = a.traceFile.Close()
	}
	if a.registry != nil && a.metricsFile != "" {
		if err := prometheus.WriteToTextfile(a.metricsFile, a.registry); err != nil {
			a.logger.Warn("failed to write metrics", "path", a.metricsFile, "error", err)
		}
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// client creates a service client from the configuration. opts are applied
// after the configured ones.
func (a *app) client(opts ...firecrawl.Option) (*firecrawl.Client, error) {
	cfg := a.cfg
	transportOpts := []transport.Option{
		transport.WithLogger(a.logger),
		transport.WithProxy(cfg.ProxyAddress),
		transport.WithRateLimit(cfg.RateLimit, 1),
		transport.WithMetrics(a.metrics),
	}
	if a.tracer != nil {
		transportOpts = append(transportOpts, transport.WithTracerProvider(a.tracer))
	}

	all := []firecrawl.Option{
		firecrawl.WithBaseURL(cfg.APIURL),
		firecrawl.WithAPIKey(cfg.APIKey),
		firecrawl.WithLookup(firecrawl.ChainLookup(os.LookupEnv, cfg.File.Lookup())),
		firecrawl.WithHTTPTimeout(cfg.Timeout),
		firecrawl.WithPollInterval(cfg.PollInterval),
		firecrawl.WithMaxWait(cfg.MaxWait),
		firecrawl.WithTransportOptions(transportOpts...),
	}
	client, err := firecrawl.NewClient(append(all, opts...)...)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("client configured",
		"base_url", client.BaseURL(),
		"authenticated", client.HasAPIKey(),
		"proxy", cfg.ProxyAddress != "",
		"tracing", a.tracer != nil,
	)
	return client, nil
}

// cleaningNoise returns the selectors the cleaner can apply, warning about
// the ones it cannot parse.
func (a *app) cleaningNoise(selectors []string) []string {
	out := make([]string, 0, len(selectors))
	for _, s := range selectors {
		if !cleaner.ValidSelector(s) {
			a.logger.Warn("ignoring invalid exclude tag for cleaned output", "selector", s)
			continue
		}
		out = append(out, s)
	}
	return out
}

// openHistory opens the job history. A history that cannot be opened is
// logged and reported as nil so that the command itself still runs.
func (a *app) openHistory() *history.Store {
	store, err := history.Open(a.cfg.DBDir, history.DefaultOptions())
	if err != nil {
		a.logger.Warn("job history is unavailable", "dir", a.cfg.DBDir, "error", err)
		return nil
	}
	return store
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// buildConfig creates a Config from the flags of cmd and the configuration
// file. Flags that were set explicitly win over the file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	r := &flagReader{flags: cmd.Flags()}

	cfg.Verbose = r.boolean("verbose")
	cfg.APIURL = r.str("api-url")
	cfg.APIKey = r.str("api-key")
	cfg.ConfigFilePath = r.str("config")
	cfg.ProxyAddress = r.str("proxy")
	cfg.RateLimit = r.float("rate-limit")
	cfg.Tracing = r.boolean("trace")

	if r.has("timeout") {
		cfg.Timeout = r.duration("timeout")
	}
	if r.has("data-dir") {
		if dir := r.str("data-dir"); dir != "" {
			cfg.DBDir = dir
			cfg.OutputDir = filepath.Join(dir, "output")
		}
	}
	if r.has("interval") {
		cfg.PollInterval = r.duration("interval")
	}
	if r.has("max-wait") {
		cfg.MaxWait = r.duration("max-wait")
	}
	if r.has("batch") {
		cfg.BatchSize = r.integer("batch")
	}
	if r.has("threshold") {
		cfg.CleanThreshold = r.integer("threshold")
	}
	if r.has("output") {
		if dir := r.str("output"); dir != "" {
			cfg.OutputDir = dir
		}
	}
	if r.err != nil {
		return nil, r.err
	}

	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file, r.changed)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// flagReader reads flags that may not be defined on every command. The first
// error is kept and later reads return zero values.
type flagReader struct {
	flags *pflag.FlagSet
	err   error
}

func (r *flagReader) has(name string) bool {
	return r.flags.Lookup(name) != nil
}

func (r *flagReader) changed(name string) bool {
	return r.has(name) && r.flags.Changed(name)
}

func (r *flagReader) str(name string) string {
	if r.err != nil || !r.has(name) {
		return ""
	}
	v, err := r.flags.GetString(name)
	r.err = err
	return v
}

func (r *flagReader) boolean(name string) bool {
	if r.err != nil || !r.has(name) {
		return false
	}
	v, err := r.flags.GetBool(name)
	r.err = err
	return v
}

func (r *flagReader) integer(name string) int {
	if r.err != nil || !r.has(name) {
		return 0
	}
	v, err := r.flags.GetInt(name)
	r.err = err
	return v
}

func (r *flagReader) float(name string) float64 {
	if r.err != nil || !r.has(name) {
		return 0
	}
	v, err := r.flags.GetFloat64(name)
	r.err = err
	return v
}

func (r *flagReader) duration(name string) time.Duration {
	if r.err != nil || !r.has(name) {
		return 0
	}
	v, err := r.flags.GetDuration(name)
	r.err = err
	return v
}

func (r *flagReader) strings(name string) []string {
	if r.err != nil || !r.has(name) {
		return nil
	}
	v, err := r.flags.GetStringSlice(name)
	r.err = err
	return v
}

// parseFormats converts format names given on the command line or in the
// configuration file.
func parseFormats(names []string) ([]schema.OutputFormat, error) {
	formats := make([]schema.OutputFormat, 0, len(names))
	for _, name := range names {
		f, err := schema.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// parseHeaders converts "Name: value" pairs into a header map. Entries
// override the base map, which is not modified.
func parseHeaders(base map[string]string, pairs []string) (map[string]string, error) {
	if len(base) == 0 && len(pairs) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(base)+len(pairs))
	for k, v := range base {
		headers[k] = v
	}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", pair)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// firstNonEmpty returns a when it has elements, b otherwise.
func firstNonEmpty(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}
