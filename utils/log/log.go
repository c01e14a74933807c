package log

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alpacahq/gofolio/utils/env"
	"github.com/fluent/fluent-logger-golang/fluent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const fluentTag = "gofolio.applog"

var (
	once      sync.Once
	appLogger AppLogger
)

type AppLogger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	AddCallback(key string, level zapcore.Level, handler func(msg interface{})) error
}

// NewLogger writes console formatted entries to stderr, so command
// output on stdout stays clean. Entries at info and above are also
// shipped to fluentd when FLUENTD_HOST and FLUENTD_PORT are set.
func NewLogger() (AppLogger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if debug, _ := strconv.ParseBool(env.GetVar("DEBUG")); debug {
		level.SetLevel(zap.DebugLevel)
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.StacktraceKey = "stack"
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stderr), level)

	l := &logger{
		zap: zap.New(core,
			zap.AddStacktrace(zapcore.ErrorLevel),
			zap.AddCaller(),
			zap.AddCallerSkip(3),
		).Sugar(),
		callbacks: map[string]logCallback{},
	}

	host, port := env.GetVar("FLUENTD_HOST"), env.GetVar("FLUENTD_PORT")
	if host == "" || port == "" {
		return l, nil
	}

	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger : invalid fluentd port %q", port)
	}

	if l.fluent, err = fluent.New(fluent.Config{FluentHost: host, FluentPort: p}); err != nil {
		return nil, fmt.Errorf("failed to init logger : %v", err)
	}

	return l, nil
}

type logCallback struct {
	level   zapcore.Level
	handler func(msg interface{})
}

type logger struct {
	zap    *zap.SugaredLogger
	fluent *fluent.Fluent

	mu        sync.RWMutex
	callbacks map[string]logCallback
}

func (l *logger) Debug(msg string, keysAndValues ...interface{}) {
	l.write(zapcore.DebugLevel, msg, keysAndValues)
}

func (l *logger) Info(msg string, keysAndValues ...interface{}) {
	l.write(zapcore.InfoLevel, msg, keysAndValues)
}

func (l *logger) Warn(msg string, keysAndValues ...interface{}) {
	l.write(zapcore.WarnLevel, msg, keysAndValues)
}

func (l *logger) Error(msg string, keysAndValues ...interface{}) {
	l.write(zapcore.ErrorLevel, msg, keysAndValues)
	l.zap.Sync()
}

// AddCallback registers a handler that runs for every log
// entry at or above level.
func (l *logger) AddCallback(key string, level zapcore.Level, handler func(msg interface{})) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.callbacks[key]; ok {
		return fmt.Errorf("callback already added with key: %s", key)
	}
	l.callbacks[key] = logCallback{level: level, handler: handler}
	return nil
}

func (l *logger) write(level zapcore.Level, msg string, keysAndValues []interface{}) {
	var entry map[string]interface{}

	if l.fluent != nil && level >= zapcore.InfoLevel {
		entry = toEntry(level, msg, keysAndValues)
		if err := l.fluent.PostWithTime(fluentTag, time.Now(), entry); err != nil {
			l.zap.Errorw("failed to send log to fluent", "message", msg, "error", err)
		}
	}

	l.mu.RLock()
	for _, cb := range l.callbacks {
		if cb.level > level {
			continue
		}
		if entry == nil {
			entry = toEntry(level, msg, keysAndValues)
		}
		cb.handler(entry)
	}
	l.mu.RUnlock()

	switch level {
	case zapcore.DebugLevel:
		l.zap.Debugw(msg, keysAndValues...)
	case zapcore.InfoLevel:
		l.zap.Infow(msg, keysAndValues...)
	case zapcore.WarnLevel:
		l.zap.Warnw(msg, keysAndValues...)
	default:
		l.zap.Errorw(msg, keysAndValues...)
	}
}

// toEntry flattens msg and its key value pairs into the map shipped
// to fluentd and handed to callbacks. Odd length pairs are dropped.
func toEntry(level zapcore.Level, msg string, keysAndValues []interface{}) map[string]interface{} {
	entry := map[string]interface{}{
		"level":   level.String(),
		"message": msg,
		"service": "gofolio",
		"caller":  getFilename(runtime.Caller(4)),
	}

	if len(keysAndValues)%2 != 0 {
		return entry
	}

	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		switch v := keysAndValues[i+1].(type) {
		case time.Time:
			entry[key] = v.Format(time.RFC3339)
		default:
			entry[key] = fmt.Sprint(v)
		}
	}

	return entry
}

// getFilename trims file to its last two path elements, the
// way zap reports callers.
func getFilename(_ uintptr, file string, no int, ok bool) string {
	if !ok {
		return "unknown"
	}

	idx := strings.LastIndexByte(file, '/')
	if idx == -1 {
		return file
	}
	if idx = strings.LastIndexByte(file[:idx], '/'); idx == -1 {
		return file
	}

	return fmt.Sprintf("%v:%v", file[idx+1:], no)
}

// Logger returns the process wide logger, building it on first use.
func Logger() AppLogger {
	once.Do(func() {
		var err error
		if appLogger, err = NewLogger(); err != nil {
			panic(err)
		}
	})
	return appLogger
}

// Debug only logs when DEBUG=true.
func Debug(msg string, keysAndValues ...interface{}) {
	Logger().Debug(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...interface{}) {
	Logger().Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...interface{}) {
	Logger().Warn(msg, keysAndValues...)
}

// Error also records a stack trace under "stack".
func Error(msg string, keysAndValues ...interface{}) {
	Logger().Error(msg, keysAndValues...)
}
