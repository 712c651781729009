package engine

import (
	"sync"

	"go.uber.org/zap"
)

var (
	loggerMu sync.RWMutex
	logger   = zap.NewNop()
)

// SetLogger installs the engine's logger. It defaults to a no-op logger;
// the runtime package wires this from its WithLogger option. The logger is
// process-global: the most recent call wins, across all runtimes.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// Logger returns the engine's logger instance.
func Logger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}
