package worker

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// The package logger records protocol anomalies (double-settled promises,
// discarded write failures) that have no caller to return an error to.
// It defaults to a no-op logger.
var pkgLogger atomic.Pointer[zap.Logger]

func init() {
	pkgLogger.Store(zap.NewNop())
}

// SetLogger installs the logger used for anomalies that cannot be surfaced
// as error returns. Passing nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	pkgLogger.Store(l)
}

func logger() *zap.Logger { return pkgLogger.Load() }
