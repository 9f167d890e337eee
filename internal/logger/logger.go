package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

type Logger struct {
	mu           sync.Mutex
	out          io.Writer
	logFile      io.WriteCloser
	colorEnabled bool
	minLevel     LogLevel
}

// Options controls where a Logger writes. File output is rotated by size.
type Options struct {
	Level      string
	Dir        string
	ToFile     bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewLogger writes coloured output to stdout and, when enabled, JSON lines
// to a rotating file under opts.Dir.
func NewLogger(opts Options) *Logger {
	logger := &Logger{
		out:          os.Stdout,
		colorEnabled: true,
		minLevel:     ParseLevel(opts.Level),
	}

	if opts.ToFile {
		dir := opts.Dir
		if dir == "" {
			dir = "logs"
		}
		logFileName := filepath.Join(dir, "order-crm.log")
		logger.logFile = &lumberjack.Logger{
			Filename:   logFileName,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		logger.Info("LOGGER", fmt.Sprintf("Log file: %s", logFileName))
	}

	return logger
}

// NewWriterLogger writes plain, uncoloured lines to w. Used by tools and tests.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{out: w, minLevel: DEBUG}
}

// Nop discards everything.
func Nop() *Logger {
	return NewWriterLogger(io.Discard)
}

func ParseLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

func (l *Logger) log(level LogLevel, category, message string) {
	if level < l.minLevel {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     l.levelToString(level),
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprint(l.out, l.formatTerminalOutput(entry))

	if l.logFile != nil {
		io.WriteString(l.logFile, l.formatJSONOutput(entry)+"\n")
	}
}

type palette struct {
	level    *color.Color
	category *color.Color
}

var levelPalettes = map[string]palette{
	"DEBUG": {color.New(color.FgCyan), color.New(color.FgCyan, color.Bold)},
	"INFO":  {color.New(color.FgGreen), color.New(color.FgGreen, color.Bold)},
	"WARN":  {color.New(color.FgYellow), color.New(color.FgYellow, color.Bold)},
	"ERROR": {color.New(color.FgRed), color.New(color.FgRed, color.Bold)},
	"FATAL": {color.New(color.FgRed, color.Bold), color.New(color.FgRed, color.Bold)},
}

var (
	timeColor = color.New(color.FgBlue)
	fileColor = color.New(color.FgMagenta)
)

func (l *Logger) formatTerminalOutput(entry LogEntry) string {
	clock := entry.Timestamp[11:19]

	if !l.colorEnabled {
		return fmt.Sprintf("%s %-5s [%-10s] %s\n", clock, entry.Level, entry.Category, entry.Message)
	}

	p, ok := levelPalettes[entry.Level]
	if !ok {
		p = palette{color.New(color.FgWhite), color.New(color.FgWhite, color.Bold)}
	}

	line := fmt.Sprintf("%s %s %s %s",
		timeColor.Sprint(clock),
		p.level.Sprintf("%-5s", entry.Level),
		p.category.Sprintf("[%-10s]", entry.Category),
		entry.Message)
	if entry.File != "" && entry.Line > 0 {
		line += fileColor.Sprintf(" (%s:%d)", entry.File, entry.Line)
	}
	return line + "\n"
}

func (l *Logger) formatJSONOutput(entry LogEntry) string {
	jsonBytes, _ := json.Marshal(entry)
	return string(jsonBytes)
}

var levelNames = [...]string{DEBUG: "DEBUG", INFO: "INFO", WARN: "WARN", ERROR: "ERROR", FATAL: "FATAL"}

func (l *Logger) levelToString(level LogLevel) string {
	if level < DEBUG || level > FATAL {
		return "INFO"
	}
	return levelNames[level]
}

func (l *Logger) Debug(category, message string) {
	l.log(DEBUG, category, message)
}

func (l *Logger) Info(category, message string) {
	l.log(INFO, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.log(WARN, category, message)
}

func (l *Logger) Error(category, message string) {
	l.log(ERROR, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.log(FATAL, category, message)
	os.Exit(1)
}

// Specialized logging methods for different components
func (l *Logger) LogOrder(action string, orderID int64, message string) {
	l.Info("ORDER", fmt.Sprintf("[%s] #%d - %s", action, orderID, message))
}

func (l *Logger) LogAPI(method, path string, status int, duration time.Duration) {
	l.Info("API", fmt.Sprintf("%s %s - %d (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.Info("KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.Info("DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.Warn("SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) LogRenumber(trigger, message string) {
	l.Info("RENUMBER", fmt.Sprintf("[%s] %s", trigger, message))
}

func (l *Logger) Close() {
	if l.logFile != nil {
		l.Info("LOGGER", "Closing log file")
		l.logFile.Close()
	}
}
