// High level log wrapper, so it can output different log based on level.
//
// There are five levels in total: FATAL, ERROR, WARNING, INFO, DEBUG.
// The default log output level is INFO, you can change it by:
// - call log.SetLevel()
// - set environment variable `LOG_LEVEL`
//
// A Logger can carry context fields (see With). Every line it writes is prefixed with
// those fields in `key=value` form, which is how push and pull requests tag their output
// with the request id, space and client.

package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
)

const (
	Ldate         = log.Ldate
	Llongfile     = log.Llongfile
	Lmicroseconds = log.Lmicroseconds
	Lshortfile    = log.Lshortfile
	LstdFlags     = log.LstdFlags
	Ltime         = log.Ltime
)

type (
	LogLevel int
	LogType  int
)

const (
	LOG_FATAL   = LogType(0x1)
	LOG_ERROR   = LogType(0x2)
	LOG_WARNING = LogType(0x4)
	LOG_INFO    = LogType(0x8)
	LOG_DEBUG   = LogType(0x10)
)

const (
	LOG_LEVEL_NONE  = LogLevel(0x0)
	LOG_LEVEL_FATAL = LOG_LEVEL_NONE | LogLevel(LOG_FATAL)
	LOG_LEVEL_ERROR = LOG_LEVEL_FATAL | LogLevel(LOG_ERROR)
	LOG_LEVEL_WARN  = LOG_LEVEL_ERROR | LogLevel(LOG_WARNING)
	LOG_LEVEL_INFO  = LOG_LEVEL_WARN | LogLevel(LOG_INFO)
	LOG_LEVEL_DEBUG = LOG_LEVEL_INFO | LogLevel(LOG_DEBUG)
	LOG_LEVEL_ALL   = LOG_LEVEL_DEBUG
)

// callDepth skips logf and the exported function that called it.
const callDepth = 3

var _log *Logger = New()

func init() {
	SetFlags(Ldate | Ltime | Lshortfile)
	SetHighlighting(runtime.GOOS != "windows")
}

func GlobalLogger() *Logger {
	return _log
}

func SetLevel(level LogLevel) {
	_log.SetLevel(level)
}

func GetLogLevel() LogLevel {
	return _log.Level()
}

func SetFlags(flags int) {
	_log._log.SetFlags(flags)
}

func SetLevelByString(level string) {
	_log.SetLevelByString(level)
}

func SetHighlighting(highlighting bool) {
	_log.SetHighlighting(highlighting)
}

// With returns a child of the global logger carrying key=value.
func With(key string, value interface{}) *Logger {
	return _log.With(key, value)
}

func Info(v ...interface{}) {
	_log.logf(callDepth, LOG_INFO, "%v", fmt.Sprint(v...))
}

func Infof(format string, v ...interface{}) {
	_log.logf(callDepth, LOG_INFO, format, v...)
}

func Debug(v ...interface{}) {
	_log.logf(callDepth, LOG_DEBUG, "%v", fmt.Sprint(v...))
}

func Debugf(format string, v ...interface{}) {
	_log.logf(callDepth, LOG_DEBUG, format, v...)
}

func Warn(v ...interface{}) {
	_log.logf(callDepth, LOG_WARNING, "%v", fmt.Sprint(v...))
}

func Warnf(format string, v ...interface{}) {
	_log.logf(callDepth, LOG_WARNING, format, v...)
}

func Error(v ...interface{}) {
	_log.logf(callDepth, LOG_ERROR, "%v", fmt.Sprint(v...))
}

func Errorf(format string, v ...interface{}) {
	_log.logf(callDepth, LOG_ERROR, format, v...)
}

func Fatal(v ...interface{}) {
	_log.logf(callDepth, LOG_FATAL, "%v", fmt.Sprint(v...))
	os.Exit(-1)
}

func Fatalf(format string, v ...interface{}) {
	_log.logf(callDepth, LOG_FATAL, format, v...)
	os.Exit(-1)
}

// levelHolder is shared between a logger and all of its children so SetLevel on the
// root is seen by request-scoped loggers created earlier.
type levelHolder struct {
	level LogLevel
}

type Logger struct {
	_log         *log.Logger
	lvl          *levelHolder
	highlighting bool
	fields       string
}

func (l *Logger) SetHighlighting(highlighting bool) {
	l.highlighting = highlighting
}

func (l *Logger) SetFlags(flags int) {
	l._log.SetFlags(flags)
}

func (l *Logger) Flags() int {
	return l._log.Flags()
}

func (l *Logger) SetLevel(level LogLevel) {
	l.lvl.level = level
}

func (l *Logger) Level() LogLevel {
	return l.lvl.level
}

func (l *Logger) SetLevelByString(level string) {
	l.SetLevel(StringToLogLevel(level))
}

// Enabled reports whether lines of type t are written.
func (l *Logger) Enabled(t LogType) bool {
	return l.lvl.level|LogLevel(t) == l.lvl.level
}

// With returns a child logger which prefixes every line with key=value in addition to
// the fields of l. The child shares l's output and level.
func (l *Logger) With(key string, value interface{}) *Logger {
	field := fmt.Sprintf("%s=%v", key, value)
	fields := field
	if l.fields != "" {
		fields = l.fields + " " + field
	}
	return &Logger{
		_log:         l._log,
		lvl:          l.lvl,
		highlighting: l.highlighting,
		fields:       fields,
	}
}

// Fields returns the context fields carried by l, space separated.
func (l *Logger) Fields() string {
	return l.fields
}

func (l *Logger) logf(depth int, t LogType, format string, v ...interface{}) {
	if !l.Enabled(t) {
		return
	}

	logStr, logColor := LogTypeToString(t)
	var sb strings.Builder
	sb.WriteString("[" + logStr + "] ")
	if l.fields != "" {
		sb.WriteString("[" + l.fields + "] ")
	}
	sb.WriteString(fmt.Sprintf(format, v...))
	s := sb.String()
	if l.highlighting {
		s = "\033" + logColor + "m" + s + "\033[0m"
	}
	l._log.Output(depth, s)
}

func (l *Logger) Fatal(v ...interface{}) {
	l.logf(callDepth, LOG_FATAL, "%v", fmt.Sprint(v...))
	os.Exit(-1)
}

func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.logf(callDepth, LOG_FATAL, format, v...)
	os.Exit(-1)
}

func (l *Logger) Error(v ...interface{}) {
	l.logf(callDepth, LOG_ERROR, "%v", fmt.Sprint(v...))
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.logf(callDepth, LOG_ERROR, format, v...)
}

func (l *Logger) Warning(v ...interface{}) {
	l.logf(callDepth, LOG_WARNING, "%v", fmt.Sprint(v...))
}

func (l *Logger) Warningf(format string, v ...interface{}) {
	l.logf(callDepth, LOG_WARNING, format, v...)
}

func (l *Logger) Debug(v ...interface{}) {
	l.logf(callDepth, LOG_DEBUG, "%v", fmt.Sprint(v...))
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.logf(callDepth, LOG_DEBUG, format, v...)
}

func (l *Logger) Info(v ...interface{}) {
	l.logf(callDepth, LOG_INFO, "%v", fmt.Sprint(v...))
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.logf(callDepth, LOG_INFO, format, v...)
}

func StringToLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "fatal":
		return LOG_LEVEL_FATAL
	case "error":
		return LOG_LEVEL_ERROR
	case "warn", "warning":
		return LOG_LEVEL_WARN
	case "debug":
		return LOG_LEVEL_DEBUG
	case "info":
		return LOG_LEVEL_INFO
	}
	return LOG_LEVEL_ALL
}

func LogTypeToString(t LogType) (string, string) {
	switch t {
	case LOG_FATAL:
		return "fatal", "[0;31"
	case LOG_ERROR:
		return "error", "[0;31"
	case LOG_WARNING:
		return "warning", "[0;33"
	case LOG_DEBUG:
		return "debug", "[0;36"
	case LOG_INFO:
		return "info", "[0;37"
	}
	return "unknown", "[0;37"
}

func New() *Logger {
	return NewLogger(os.Stderr, "")
}

func NewLogger(w io.Writer, prefix string) *Logger {
	var level LogLevel
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		level = StringToLogLevel(l)
	} else {
		level = LOG_LEVEL_INFO
	}
	return &Logger{_log: log.New(w, prefix, LstdFlags), lvl: &levelHolder{level}, highlighting: true}
}
