package common

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger   *zap.Logger
	loggerMu sync.RWMutex
)

// Logger returns the engine-wide logger. It is a no-op logger until SetLogger is called,
// so the engine stays silent when embedded in a host that does not configure logging.
//
// Returns:
//   - *zap.Logger: the current logger, never nil
func Logger() *zap.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// SetLogger installs the logger used by every engine package. Passing nil restores the no-op logger.
//
// Parameters:
//   - l: the logger to install
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}
