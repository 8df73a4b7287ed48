package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// InstrumentationName names the OTel logger scope.
const InstrumentationName = "posecore"

// Overridable for tests.
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// SlogManager owns the process logger and the zerolog loggers derived from
// the same destination.
type SlogManager struct {
	logger      *slog.Logger
	out         io.Writer
	level       slog.Level
	logProvider *sdklog.LoggerProvider // flushed on shutdown
}

// Option adds an output or decoration to Setup.
type Option func(*setupOptions)

type setupOptions struct {
	gelf    io.Writer
	context ContextProvider
}

// WithGELF additionally writes JSON records to a Graylog GELF writer.
func WithGELF(w io.Writer) Option {
	return func(o *setupOptions) { o.gelf = w }
}

// WithContext injects the attributes returned by p into every record.
func WithContext(p ContextProvider) Option {
	return func(o *setupOptions) { o.context = p }
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

var levelNames = map[string]slog.Level{
	"DEBUG": slog.LevelDebug,
	"INFO":  slog.LevelInfo,
	"WARN":  slog.LevelWarn,
	"ERROR": slog.LevelError,
}

// parseLevel maps a case-insensitive level name; unknown names mean info.
func parseLevel(level string) slog.Level {
	if lvl, ok := levelNames[strings.ToUpper(level)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// utcTime renders record timestamps as RFC3339 in UTC.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// Setup (re)builds the logger. Text records go to file, or to stdout when
// file is nil; GELF and OTel outputs are added when configured.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, opts ...Option) {
	var o setupOptions
	for _, opt := range opts {
		opt(&o)
	}

	m.level = parseLevel(level)
	m.logProvider = provider
	m.out = file
	if m.out == nil {
		m.out = osStdout
	}

	hopts := &slog.HandlerOptions{Level: m.level, ReplaceAttr: utcTime}
	outputs := []slog.Handler{slog.NewTextHandler(m.out, hopts)}
	if o.gelf != nil {
		outputs = append(outputs, slog.NewJSONHandler(o.gelf, hopts))
	}
	if provider != nil {
		outputs = append(outputs, otelslog.NewHandler(InstrumentationName, otelslog.WithLoggerProvider(provider)))
	}

	var h slog.Handler = NewMultiHandler(outputs...)
	if o.context != nil {
		h = NewContextHandler(h, o.context)
	}
	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Zerolog returns a zerolog.Logger writing to the same destination and level
// as the slog output, tagged with component.
func (m *SlogManager) Zerolog(component string) zerolog.Logger {
	out := m.out
	if out == nil {
		out = osStdout
	}
	return zerolog.New(out).
		Level(zerologLevel(m.level)).
		With().Timestamp().Str("component", component).Logger()
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l <= slog.LevelDebug:
		return zerolog.DebugLevel
	case l <= slog.LevelInfo:
		return zerolog.InfoLevel
	case l <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// WriteLog is the string-typed entry point used by the storage backends.
func (m *SlogManager) WriteLog(functionName, data, level string) {
	if m.logger == nil {
		return
	}
	m.logger.Log(context.Background(), parseLevel(level), data, "function", functionName)
}
