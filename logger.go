package rembed

import (
	"fmt"
	"log"
	"os"

	"github.com/mattn/go-colorable"
)

// Logger is the minimal surface a host can satisfy to receive
// diagnostics; the core interpreter never logs on its own (it returns
// values and errors). An Interp holds one (see SetLogger); no code in
// this module calls it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// defaultLogger writes through go-colorable so ANSI color codes render
// correctly on Windows consoles too, falling back to plain stdlib log
// elsewhere.
type defaultLogger struct {
	*log.Logger
}

// NewDefaultLogger returns the Logger an Interp holds when a host
// doesn't supply its own.
func NewDefaultLogger() Logger {
	return &defaultLogger{Logger: log.New(colorable.NewColorable(os.Stderr), "", log.LstdFlags)}
}

func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	l.Output(2, "DEBUG "+fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	l.Output(2, "WARN "+fmt.Sprintf(format, args...))
}
