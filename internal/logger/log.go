package logger

import (
	"fmt"
	"strings"

	"github.com/logrusorgru/aurora/v3"
)

const prefix = "Tide"

type Printer interface {
	Output(calldepth int, s string) error
}

type Logger interface {
	Successf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Error(err error)
	SQL(query string, args ...interface{})
}

type level int

const (
	levelSuccess level = iota
	levelDebug
	levelWarn
	levelError
	levelSQL
)

type palette interface {
	paint(l level, msg string) string
}

type colorPalette struct{ au aurora.Aurora }

func (p colorPalette) paint(l level, msg string) string {
	switch l {
	case levelSuccess:
		return p.au.Green(msg).String()
	case levelDebug:
		return p.au.Yellow(msg).String()
	case levelWarn:
		return p.au.Magenta(msg).String()
	case levelError:
		return p.au.Red(msg).String()
	default:
		return p.au.Gray(15, msg).String()
	}
}

type plainPalette struct{}

func (plainPalette) paint(_ level, msg string) string { return msg }

// PrinterLogger writes every message to a Printer such as *log.Logger
type PrinterLogger struct {
	printer Printer
	palette palette
	debug   bool
	sql     bool
}

var _ Logger = (*PrinterLogger)(nil)

func NewColorLogger(p Printer, sql, debug bool) *PrinterLogger {
	return &PrinterLogger{
		printer: p,
		palette: colorPalette{au: aurora.NewAurora(true)},
		debug:   debug,
		sql:     sql,
	}
}

func NewBWLogger(p Printer, sql, debug bool) *PrinterLogger {
	return &PrinterLogger{
		printer: p,
		palette: plainPalette{},
		debug:   debug,
		sql:     sql,
	}
}

func (pl *PrinterLogger) Successf(format string, args ...interface{}) {
	pl.output(levelSuccess, fmt.Sprintf(prefix+": "+format, args...))
}

func (pl *PrinterLogger) Debugf(format string, args ...interface{}) {
	if pl.debug {
		pl.output(levelDebug, fmt.Sprintf(prefix+" debug: "+format, args...))
	}
}

func (pl *PrinterLogger) Warnf(format string, args ...interface{}) {
	pl.output(levelWarn, fmt.Sprintf(prefix+" warning: "+format, args...))
}

func (pl *PrinterLogger) Error(err error) {
	if err == nil {
		return
	}

	pl.output(levelError, fmt.Sprintf("%s error: %s", prefix, err.Error()))
}

func (pl *PrinterLogger) SQL(query string, args ...interface{}) {
	if !pl.sql {
		return
	}

	var buf strings.Builder
	buf.WriteString(prefix + " running sql: ")
	buf.WriteString(strings.TrimSpace(query))

	if len(args) > 0 {
		buf.WriteString("\nquery parameters: ")
		for i := range args {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(fmt.Sprintf("{%#v}", args[i]))
		}
	}

	pl.output(levelSQL, buf.String())
}

func (pl *PrinterLogger) output(l level, msg string) {
	_ = pl.printer.Output(3, pl.palette.paint(l, msg))
}
