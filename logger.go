package fetchcache

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logger receives the client's structured events. Arguments after msg are
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}

// LogrusLogger adapts a logrus logger or entry to Logger.
type LogrusLogger struct {
	entry logrus.FieldLogger
}

// NewLogrusLogger wraps l. Key/value pairs become logrus fields.
func NewLogrusLogger(l logrus.FieldLogger) *LogrusLogger {
	return &LogrusLogger{entry: l}
}

// NewSimpleLogger returns a debug-level text logger on stderr.
func NewSimpleLogger() *LogrusLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return NewLogrusLogger(l.WithField("component", "fetchcache"))
}

func (l *LogrusLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).Debug(msg)
}

func (l *LogrusLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).Info(msg)
}

func (l *LogrusLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).Warn(msg)
}

func (l *LogrusLogger) Error(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).Error(msg)
}

// toFields pairs up keysAndValues. A trailing key without a value is kept
// under "EXTRA" so nothing is silently dropped.
func toFields(keysAndValues []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		if i+1 >= len(keysAndValues) {
			fields["EXTRA"] = key
			break
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}

// DebugConfig controls request IDs and debug event filtering. Request,
// retry and cache events are always sent to the logger at debug level;
// once Enabled is set, calls get request IDs and the Log* switches choose
// which of those categories are kept.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogRetries   bool
	LogCache     bool
	RequestIDGen func() string
}

// DefaultDebugConfig returns a disabled config that logs every category
// once enabled.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogRetries:   true,
		LogCache:     true,
		RequestIDGen: uuid.NewString,
	}
}
