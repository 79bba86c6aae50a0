// Package logging holds the logger shared by the optimizer components.
package logging

import "go.uber.org/zap"

// Logger encapsulates a Logger and module which it belongs to.
// Use this through SetLogger() of a component.
type Logger struct {
	*zap.SugaredLogger
	module string
}

// LogSetter is a component that accepts a logger.
type LogSetter interface {
	SetLogger(*Logger)
}

// New wraps l. A nil l gives a logger that discards everything.
func New(l *zap.SugaredLogger) *Logger {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	return &Logger{SugaredLogger: l}
}

// Nop returns a logger that discards everything.
func Nop() *Logger { return New(nil) }

// Tagged returns a copy of l for module, which should be stylised already
// (e.g. color.GreenString("licm")).
func (l *Logger) Tagged(module string) *Logger {
	if l == nil {
		l = Nop()
	}
	return &Logger{SugaredLogger: l.SugaredLogger, module: module}
}

// Module returns (stylised) module name.
func (l *Logger) Module() string {
	return l.module
}
