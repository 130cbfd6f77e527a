// Package notify delivers user-visible (title, message, severity) notifications.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

// Severity of a notification.
type Severity string

const (
	Success Severity = "success"
	Danger  Severity = "danger"
	Warning Severity = "warning"
	Info    Severity = "info"
)

// Sink receives notifications. Fire-and-forget; implementations must be safe for concurrent use.
type Sink interface {
	Notify(title, message string, sev Severity)
}

// Func adapts a function to Sink.
type Func func(title, message string, sev Severity)

// Notify implements Sink.
func (f Func) Notify(title, message string, sev Severity) { f(title, message, sev) }

// Console prints colored notifications to a writer.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole returns a console sink writing to w.
func NewConsole(w io.Writer) *Console { return &Console{w: w} }

var palette = map[Severity]*color.Color{
	Success: color.New(color.FgGreen, color.Bold),
	Danger:  color.New(color.FgRed, color.Bold),
	Warning: color.New(color.FgYellow, color.Bold),
	Info:    color.New(color.FgCyan),
}

// Notify implements Sink.
func (c *Console) Notify(title, message string, sev Severity) {
	col, ok := palette[sev]
	if !ok {
		col = palette[Info]
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s %s\n", col.Sprintf("[%s] %s:", sev, title), message)
}

// Log records notifications through zap; useful for daemons with no terminal.
type Log struct{ log *zap.Logger }

// NewLog returns a zap-backed sink.
func NewLog(log *zap.Logger) *Log { return &Log{log: log} }

// Notify implements Sink.
func (l *Log) Notify(title, message string, sev Severity) {
	fields := []zap.Field{zap.String("title", title), zap.String("message", message)}
	switch sev {
	case Danger:
		l.log.Error("notification", fields...)
	case Warning:
		l.log.Warn("notification", fields...)
	default:
		l.log.Info("notification", append(fields, zap.String("severity", string(sev)))...)
	}
}

// Multi fans a notification out to several sinks in order.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(title, message string, sev Severity) {
	for _, s := range m {
		s.Notify(title, message, sev)
	}
}
