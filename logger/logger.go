package logger

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jsphweid/keyfall/util"
)

const flushTimeout = 2 * time.Second

// Fields represents structured log fields
type Fields map[string]interface{}

var debug atomic.Bool

// SetDebug turns Debug output on or off
func SetDebug(on bool) {
	debug.Store(on)
}

// Init configures Sentry. An empty dsn leaves Sentry off and only logs locally.
func Init(dsn, environment, release string) error {
	if dsn == "" {
		log.Println("Sentry not configured (SENTRY_DSN not set)")
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     "keyfall@" + release,
		Debug:       debug.Load(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	Info("Sentry initialized", Fields{"environment": environment, "release": release})
	return nil
}

// Flush waits for buffered Sentry events. Safe to call without Init.
func Flush() {
	if hub := sentry.CurrentHub(); hub.Client() != nil {
		sentry.Flush(flushTimeout)
	}
}

// Info logs an informational message with structured fields
func Info(msg string, fields Fields) {
	log.Printf("[INFO] %s %v", msg, formatFields(fields))
	breadcrumb("info", sentry.LevelInfo, msg, fields)
}

// Warn logs a warning message with structured fields
func Warn(msg string, fields Fields) {
	log.Printf("[WARN] %s %v", msg, formatFields(fields))
	breadcrumb("warning", sentry.LevelWarning, msg, fields)
}

// Debug logs a debug message when debug output is on
func Debug(msg string, fields Fields) {
	if !debug.Load() {
		return
	}
	log.Printf("[DEBUG] %s %v", msg, formatFields(fields))
	breadcrumb("debug", sentry.LevelDebug, msg, fields)
}

// Error logs an error message with structured fields and sends to Sentry
func Error(msg string, err error, fields Fields) {
	log.Printf("[ERROR] %s: %v %v", msg, err, formatFields(fields))

	if hub := sentry.CurrentHub(); hub.Client() != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			for key, value := range fields {
				scope.SetContext(key, map[string]interface{}{
					"value": value,
				})
			}
			if id, ok := fields["session_id"].(string); ok {
				scope.SetTag("session_id", id)
			}
			hub.CaptureException(err)
		})
	}
}

func breadcrumb(kind string, level sentry.Level, msg string, fields Fields) {
	if hub := sentry.CurrentHub(); hub.Client() != nil {
		sentry.AddBreadcrumb(&sentry.Breadcrumb{
			Type:     kind,
			Category: "log",
			Message:  msg,
			Data:     convertFieldsToMap(fields),
			Level:    level,
		})
	}
}

// formatFields renders fields as {k=v, ...} in key order
func formatFields(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}
	result := "{"
	for i, k := range util.SortedKeys(fields) {
		if i > 0 {
			result += ", "
		}
		result += k + "=" + formatValue(fields[k])
	}
	result += "}"
	return result
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%.2f", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func convertFieldsToMap(fields Fields) map[string]interface{} {
	result := make(map[string]interface{})
	for k, v := range fields {
		result[k] = v
	}
	return result
}
