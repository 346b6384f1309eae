// Package logging configures structured logging for the venue daemon.
package logging

import (
	"log"
	"log/slog"
	"os"
	"strings"
)

// Setup installs the process-wide logger. Local environments get readable
// text output; everything else emits JSON with the field names the log
// pipeline expects. The minimum level comes from LOCALEX_LOG_LEVEL.
func Setup(service, env string) *slog.Logger {
	env = strings.TrimSpace(env)
	opts := &slog.HandlerOptions{Level: levelFromEnv()}

	var handler slog.Handler
	if localEnv(env) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		opts.ReplaceAttr = renameForPipeline
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	if env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	handler = handler.WithAttrs(attrs)

	base := slog.New(handler)
	slog.SetDefault(base)

	// Route the standard library logger through the same handler.
	bridge := slog.NewLogLogger(handler, slog.LevelInfo)
	bridge.SetFlags(0)
	log.SetOutput(bridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOCALEX_LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func localEnv(env string) bool {
	switch strings.ToLower(env) {
	case "local", "dev", "development":
		return true
	}
	return false
}

func renameForPipeline(groups []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "timestamp"
	case slog.LevelKey:
		return slog.String("severity", strings.ToUpper(attr.Value.String()))
	case slog.MessageKey:
		attr.Key = "message"
	}
	return attr
}
