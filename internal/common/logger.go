package common

import (
	"fmt"
	"log"
	"os"
	"time"
)

// Logger wraps a stdlib *log.Logger behind the "log" environment flag
// from spec.md §6: trace diagnostics are emitted only when the flag is
// set, while Error always reaches stderr so lock timeouts and I/O
// failures are never silently swallowed (the cache layer must never
// hide a problem that would make a build fail mysteriously).
type Logger struct {
	impl           *log.Logger // nil when tracing is disabled
	fileName       string
	alreadyStderr  bool
}

// NewLogger builds a Logger from the "log" environment value: empty
// disables tracing, "stderr" traces to stderr, anything else is treated
// as a file path opened in append mode.
func NewLogger(logEnv string) (*Logger, error) {
	if logEnv == "" {
		return &Logger{}, nil
	}
	if logEnv == "stderr" {
		return &Logger{impl: log.New(os.Stderr, "", 0), alreadyStderr: true}, nil
	}
	out, err := os.OpenFile(logEnv, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return nil, err
	}
	return &Logger{impl: log.New(out, "", 0), fileName: logEnv}, nil
}

func formatLine(prefix string, v ...interface{}) string {
	return fmt.Sprintf("%s %s %s", time.Now().Format("2006-01-02 15:04:05"), prefix, fmt.Sprintln(v...))
}

// Trace emits a diagnostic line when tracing is enabled; it is a no-op otherwise.
func (l *Logger) Trace(v ...interface{}) {
	if l != nil && l.impl != nil {
		_ = l.impl.Output(0, formatLine("TRACE", v...))
	}
}

// Error always writes to the trace destination if one is configured,
// and additionally duplicates to stderr so the invoking build never
// silently loses a cache-layer failure.
func (l *Logger) Error(v ...interface{}) {
	if l != nil && l.impl != nil {
		_ = l.impl.Output(0, formatLine("ERROR", v...))
	}
	if l == nil || !l.alreadyStderr {
		_, _ = fmt.Fprint(os.Stderr, formatLine("[clcache]", v...))
	}
}
