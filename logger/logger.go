package logger

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/jrick/logrotate/rotator"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// logRotateThresholdKB is the size a log file may reach before it is
	// rotated.
	logRotateThresholdKB = 100 * 1000

	// logRotateMaxRolls is the number of rotated log files to keep.
	logRotateMaxRolls = 8
)

// Logger is a leveled logger for one subsystem. Instances are cheap handles:
// the backend behind them can be swapped by InitBackend at any time, so
// packages may declare their logger in a package-level var before the main
// package configures logging.
type Logger struct {
	tag   string
	mtx   sync.RWMutex
	inner *zap.SugaredLogger
}

var (
	backendMtx sync.Mutex
	registered = make(map[string]*Logger)
	logRotator *rotator.Rotator
)

// Get returns the logger for the given subsystem tag, creating it if needed.
// Before InitBackend runs, returned loggers write nothing.
func Get(tag string) *Logger {
	backendMtx.Lock()
	defer backendMtx.Unlock()

	if logger, ok := registered[tag]; ok {
		return logger
	}
	logger := &Logger{tag: tag, inner: zap.NewNop().Sugar()}
	registered[tag] = logger
	return logger
}

// InitBackend configures all subsystem loggers to write to stderr and to a
// rotating log file under logDir at the given level. Levels follow zap's
// names: debug, info, warn, error.
func InitBackend(logDir string, logFile string, level string) error {
	backendMtx.Lock()
	defer backendMtx.Unlock()

	atomicLevel := zap.NewAtomicLevel()
	if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
		return errors.Wrapf(err, "failed parsing log level %q", level)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.Lock(os.Stderr), atomicLevel),
	}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return errors.Wrapf(err, "failed creating log directory %s", logDir)
		}
		r, err := rotator.New(filepath.Join(logDir, logFile),
			logRotateThresholdKB, false, logRotateMaxRolls)
		if err != nil {
			return errors.Wrap(err, "failed creating log rotator")
		}
		if logRotator != nil {
			logRotator.Close()
		}
		logRotator = r
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(r), atomicLevel))
	}

	base := zap.New(zapcore.NewTee(cores...)).Sugar()
	for tag, logger := range registered {
		logger.setInner(base.Named(tag))
	}
	return nil
}

// ValidLogLevel returns whether level names a supported logging level.
func ValidLogLevel(level string) bool {
	lvl := zap.NewAtomicLevel()
	return lvl.UnmarshalText([]byte(level)) == nil
}

// Close flushes and closes the rotating log file, if one was configured.
func Close() {
	backendMtx.Lock()
	defer backendMtx.Unlock()
	if logRotator != nil {
		logRotator.Close()
		logRotator = nil
	}
}

func (l *Logger) setInner(inner *zap.SugaredLogger) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.inner = inner
}

func (l *Logger) sugar() *zap.SugaredLogger {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	return l.inner
}

// Debugf formats message according to format specifier and writes it at debug
// level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.sugar().Debugf(format, args...)
}

// Infof formats message according to format specifier and writes it at info
// level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.sugar().Infof(format, args...)
}

// Warnf formats message according to format specifier and writes it at warn
// level.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.sugar().Warnf(format, args...)
}

// Errorf formats message according to format specifier and writes it at error
// level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.sugar().Errorf(format, args...)
}

// Debug writes args at debug level.
func (l *Logger) Debug(args ...interface{}) {
	l.sugar().Debug(args...)
}

// Info writes args at info level.
func (l *Logger) Info(args ...interface{}) {
	l.sugar().Info(args...)
}

// Warn writes args at warn level.
func (l *Logger) Warn(args ...interface{}) {
	l.sugar().Warn(args...)
}

// Error writes args at error level.
func (l *Logger) Error(args ...interface{}) {
	l.sugar().Error(args...)
}
