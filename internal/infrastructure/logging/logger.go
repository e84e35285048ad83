package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

type contextKey string

const (
	// RequestIDKey is the context key for request IDs
	RequestIDKey contextKey = "request_id"
	// ChartKey is the context key for the chart being computed
	ChartKey contextKey = "chart"
	// GranularityKey is the context key for the requested time granularity
	GranularityKey contextKey = "granularity"
)

// contextAttrs lists the context values copied onto every record, in output order.
var contextAttrs = []contextKey{RequestIDKey, ChartKey, GranularityKey}

// Config holds logger configuration
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // json, text
	Output      io.Writer
	AddSource   bool
	ServiceName string
	Environment string
}

// ParseLevel maps a configured level name onto a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// NewLogger creates a structured logger that stamps service metadata and
// request-scoped context values onto each record. Unknown levels fall back to info.
func NewLogger(cfg Config) *slog.Logger {
	level, _ := ParseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(a.Key, a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	var meta []slog.Attr
	if cfg.ServiceName != "" {
		meta = append(meta, slog.String("service", cfg.ServiceName))
	}
	if cfg.Environment != "" {
		meta = append(meta, slog.String("environment", cfg.Environment))
	}

	return slog.New(contextHandler{Handler: handler.WithAttrs(meta)})
}

// contextHandler copies request-scoped values from the context onto each record.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range contextAttrs {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			r.AddAttrs(slog.String(string(key), v))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name)}
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithChart tags the context with the chart being computed
func WithChart(ctx context.Context, chart string) context.Context {
	return context.WithValue(ctx, ChartKey, chart)
}

// WithGranularity tags the context with the granularity a chart is bucketed by
func WithGranularity(ctx context.Context, granularity string) context.Context {
	return context.WithValue(ctx, GranularityKey, granularity)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(RequestIDKey).(string)
	return requestID
}

// LogPanic logs a recovered panic value together with the goroutine's stack.
// Context values such as the request ID are attached as for any other record.
func LogPanic(ctx context.Context, logger *slog.Logger, panicValue any) {
	logger.ErrorContext(ctx, "panic recovered",
		"panic", fmt.Sprint(panicValue),
		"stack_trace", string(debug.Stack()),
	)
}
