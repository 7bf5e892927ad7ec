package errors

import (
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Fields returns the log fields an error carries: its code, whether it is
// retryable and its context. Plain errors carry none.
func Fields(err error) logrus.Fields {
	appErr, ok := As(err)
	if !ok {
		return logrus.Fields{}
	}
	fields := make(logrus.Fields, len(appErr.Context)+2)
	for k, v := range appErr.Context {
		fields[k] = v
	}
	fields["error_code"] = appErr.Code
	fields["retryable"] = appErr.Retryable
	return fields
}

// LevelFor picks the log level for a failed operation. Retryable errors and
// anything the caller can fix are warnings; server-side failures are errors.
func LevelFor(err error) logrus.Level {
	if IsRetryable(err) || HTTPStatusCode(err) < http.StatusInternalServerError {
		return logrus.WarnLevel
	}
	return logrus.ErrorLevel
}

// Logger logs errors together with their structured fields
type Logger struct {
	*logrus.Logger
}

// WrapLogger shares an existing logrus logger; nil yields a silent logger
func WrapLogger(logger *logrus.Logger) *Logger {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Logger{Logger: logger}
}

// WithError returns an entry carrying err and its fields
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithError(err).WithFields(Fields(err))
}

// Log writes message at level with err's fields plus any extra fields
func (l *Logger) Log(level logrus.Level, err error, message string, extra ...logrus.Fields) {
	entry := l.WithError(err)
	for _, fields := range extra {
		entry = entry.WithFields(fields)
	}
	entry.Log(level, message)
}

// LogError logs at error level
func (l *Logger) LogError(err error, message string, extra ...logrus.Fields) {
	l.Log(logrus.ErrorLevel, err, message, extra...)
}

// LogWarn logs at warn level
func (l *Logger) LogWarn(err error, message string, extra ...logrus.Fields) {
	l.Log(logrus.WarnLevel, err, message, extra...)
}
