// Package zaplog adapts a zap logger to the memq.Logger interface.
package zaplog

import (
	"go.uber.org/zap"

	"github.com/ahmedboeni/memq"
)

type logger struct {
	l *zap.SugaredLogger
}

// NewLogger wraps the given zap logger so it can be passed to
// memq.WithLogger and friends. Args are interpreted as alternating
// key/value pairs, matching zap's sugared logging.
func NewLogger(l *zap.Logger) memq.Logger {
	return &logger{l: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (z *logger) Debug(msg string, args ...any) { z.l.Debugw(msg, args...) }
func (z *logger) Info(msg string, args ...any)  { z.l.Infow(msg, args...) }
func (z *logger) Warn(msg string, args ...any)  { z.l.Warnw(msg, args...) }
func (z *logger) Error(msg string, args ...any) { z.l.Errorw(msg, args...) }
