package eventlog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is the console/file log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// EventType classifies structured events.
type EventType string

const (
	EventTransition EventType = "LEVEL_TRANSITION"
	EventCycle      EventType = "CYCLE_CLOSED"
	EventDecision   EventType = "RISK_DECISION"
	EventRegrid     EventType = "REGRID"
	EventHalt       EventType = "HALT"
	EventResume     EventType = "RESUME"
	EventAlert      EventType = "ALERT"
	EventOrder      EventType = "ORDER"
)

// Event is one structured record in the session log.
type Event struct {
	Time    time.Time              `json:"time"`
	Type    EventType              `json:"type"`
	Symbol  string                 `json:"symbol"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// Logger writes leveled text to a session log file plus structured
// events to append-only CSV and JSON-lines files. Safe for concurrent
// use.
type Logger struct {
	mu       sync.Mutex
	minLevel Level
	logFile  *os.File
	csvFile  *os.File
	csvW     *csv.Writer
	jsonFile *os.File
}

// New creates the session log files under dir. A nil return with error
// means the directory could not be prepared.
func New(dir string, minLevel Level) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	stamp := time.Now().Format("20060102_150405")

	logFile, err := os.OpenFile(filepath.Join(dir, fmt.Sprintf("session_%s.log", stamp)),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}
	csvFile, err := os.OpenFile(filepath.Join(dir, fmt.Sprintf("events_%s.csv", stamp)),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to open event csv: %w", err)
	}
	jsonFile, err := os.OpenFile(filepath.Join(dir, fmt.Sprintf("events_%s.jsonl", stamp)),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logFile.Close()
		csvFile.Close()
		return nil, fmt.Errorf("failed to open event jsonl: %w", err)
	}

	l := &Logger{
		minLevel: minLevel,
		logFile:  logFile,
		csvFile:  csvFile,
		csvW:     csv.NewWriter(csvFile),
		jsonFile: jsonFile,
	}
	l.csvW.Write([]string{"timestamp", "type", "symbol", "message", "fields"})
	l.csvW.Flush()
	return l, nil
}

// NewDiscard returns a logger that keeps no files, for tests and demos.
func NewDiscard() *Logger {
	return &Logger{minLevel: LevelError}
}

// Close flushes and closes the session files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.csvW != nil {
		l.csvW.Flush()
	}
	var firstErr error
	for _, f := range []*os.File{l.logFile, l.csvFile, l.jsonFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *Logger) write(level Level, format string, args ...interface{}) {
	if level < l.minLevel && l.logFile == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%s [%s] %s", time.Now().Format(time.RFC3339), level, msg)

	if level >= l.minLevel {
		log.Println(line)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		fmt.Fprintln(l.logFile, line)
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.write(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.write(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.write(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.write(LevelError, format, args...) }

// Record appends a structured event to the CSV and JSONL files and
// mirrors it to the leveled log.
func (l *Logger) Record(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	level := LevelInfo
	if ev.Type == EventAlert || ev.Type == EventHalt {
		level = LevelWarn
	}
	l.write(level, "%s %s: %s", ev.Type, ev.Symbol, ev.Message)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.csvW != nil {
		fields := ""
		if len(ev.Fields) > 0 {
			if b, err := json.Marshal(ev.Fields); err == nil {
				fields = string(b)
			}
		}
		l.csvW.Write([]string{
			ev.Time.Format(time.RFC3339Nano),
			string(ev.Type),
			ev.Symbol,
			ev.Message,
			fields,
		})
		l.csvW.Flush()
	}
	if l.jsonFile != nil {
		if b, err := json.Marshal(ev); err == nil {
			l.jsonFile.Write(append(b, '\n'))
		}
	}
}

// Transition records a level state change.
func (l *Logger) Transition(symbol string, levelIndex int, from, to string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["level"] = levelIndex
	fields["from"] = from
	fields["to"] = to
	l.Record(Event{
		Type:    EventTransition,
		Symbol:  symbol,
		Message: fmt.Sprintf("level %d: %s -> %s", levelIndex, from, to),
		Fields:  fields,
	})
}

// Alert records an operator-facing warning.
func (l *Logger) Alert(symbol, message string, fields map[string]interface{}) {
	l.Record(Event{Type: EventAlert, Symbol: symbol, Message: message, Fields: fields})
}
