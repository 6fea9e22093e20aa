package logger

import (
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	mu   sync.RWMutex
	base = newZap(zapcore.AddSync(os.Stderr))
)

func newZap(out zapcore.WriteSyncer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), out, level)
	return zap.New(core)
}

// SetLevel changes the minimum level for every logger call.
func SetLevel(l LogLevel) {
	level.SetLevel(toZapLevel(l))
}

// ParseLevel maps "debug", "info", "warn" and "error" to a LogLevel; unknown values map to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// SetOutput redirects log output. Tests use it to capture entries.
func SetOutput(out zapcore.WriteSyncer) {
	mu.Lock()
	defer mu.Unlock()
	base = newZap(out)
}

// Sync flushes buffered entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

func toZapLevel(l LogLevel) zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func logf(l LogLevel, component, msg string, fields map[string]any) {
	mu.RLock()
	lg := base
	mu.RUnlock()

	zl := toZapLevel(l)
	ce := lg.Check(zl, msg)
	if ce == nil {
		return
	}

	zf := make([]zap.Field, 0, len(fields)+1)
	if component != "" {
		zf = append(zf, zap.String("component", component))
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	ce.Write(zf...)
}

func DebugC(component, msg string) { logf(DEBUG, component, msg, nil) }
func InfoC(component, msg string)  { logf(INFO, component, msg, nil) }
func WarnC(component, msg string)  { logf(WARN, component, msg, nil) }
func ErrorC(component, msg string) { logf(ERROR, component, msg, nil) }

func DebugCF(component, msg string, fields map[string]any) { logf(DEBUG, component, msg, fields) }
func InfoCF(component, msg string, fields map[string]any)  { logf(INFO, component, msg, fields) }
func WarnCF(component, msg string, fields map[string]any)  { logf(WARN, component, msg, fields) }
func ErrorCF(component, msg string, fields map[string]any) { logf(ERROR, component, msg, fields) }
