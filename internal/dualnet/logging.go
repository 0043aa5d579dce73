package dualnet

import "go.uber.org/zap"

// orNop returns log, or a no-op SugaredLogger if log is nil. Every
// long-lived component in this package accepts a *zap.SugaredLogger and
// falls back to this rather than requiring callers to wire up logging
// just to exercise the scheduler or an Engine in tests.
func orNop(log *zap.SugaredLogger) *zap.SugaredLogger {
	if log != nil {
		return log
	}
	return zap.NewNop().Sugar()
}
