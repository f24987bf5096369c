// Copyright (c) 2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package logger

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level represents the level to log messages at.
type Level int

const (
	// LogDebug represents debug messages.
	LogDebug Level = iota
	// LogInfo represents informational messages.
	LogInfo
	// LogWarning represents warnings.
	LogWarning
	// LogError represents errors.
	LogError
)

var (
	// LogLevelNames takes a config name and gives the real log level.
	LogLevelNames = map[string]Level{
		"debug":    LogDebug,
		"info":     LogInfo,
		"warn":     LogWarning,
		"warning":  LogWarning,
		"warnings": LogWarning,
		"error":    LogError,
		"errors":   LogError,
	}
	// LogLevelDisplayNames gives the display name to use for our log levels.
	LogLevelDisplayNames = map[Level]string{
		LogDebug:   "debug",
		LogInfo:    "info",
		LogWarning: "warn",
		LogError:   "error",
	}
)

// Manager is the main interface used to log debug/info/error messages.
// A nil *Manager is valid and discards everything.
type Manager struct {
	configMutex sync.RWMutex
	loggers     []singleLogger
	// stdout and stderr share one lock, files share another
	stdLock  sync.Mutex
	fileLock sync.Mutex
	// for tests; replaces stdout when set
	stdout io.Writer
}

// LoggingConfig represents the configuration of a single logger.
type LoggingConfig struct {
	Method        string
	MethodStdout  bool     `yaml:"-"`
	MethodStderr  bool     `yaml:"-"`
	MethodFile    bool     `yaml:"-"`
	Filename      string
	TypeString    string   `yaml:"type"`
	Types         []string `yaml:"-"`
	ExcludedTypes []string `yaml:"-"`
	LevelString   string   `yaml:"level"`
	Level         Level    `yaml:"-"`
}

// NewManager returns a new log manager.
func NewManager(config []LoggingConfig) (*Manager, error) {
	var logger Manager

	if err := logger.ApplyConfig(config); err != nil {
		return nil, err
	}

	return &logger, nil
}

// NewWriterManager returns a manager that sends every message at or above
// level to w.
func NewWriterManager(w io.Writer, level Level) *Manager {
	logger := &Manager{stdout: w}
	logger.loggers = []singleLogger{{
		level:    level,
		types:    typeSet([]string{"*"}),
		excluded: typeSet(nil),
		outputs:  []output{{w: w, lock: &logger.stdLock}},
	}}
	return logger
}

func typeSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

// ApplyConfig applies the given config to this logger (rehashes the config, in other words).
// A log file that can't be opened disables that output and is reported,
// the rest of the config still applies.
func (logger *Manager) ApplyConfig(config []LoggingConfig) error {
	logger.configMutex.Lock()
	defer logger.configMutex.Unlock()

	for _, sLogger := range logger.loggers {
		sLogger.Close()
	}
	logger.loggers = nil

	stdout := logger.stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	var lastErr error
	for _, logConfig := range config {
		sLogger := singleLogger{
			level:    logConfig.Level,
			types:    typeSet(logConfig.Types),
			excluded: typeSet(logConfig.ExcludedTypes),
		}
		if logConfig.MethodStdout {
			sLogger.outputs = append(sLogger.outputs, output{w: stdout, lock: &logger.stdLock})
		}
		if logConfig.MethodStderr {
			sLogger.outputs = append(sLogger.outputs, output{w: os.Stderr, lock: &logger.stdLock})
		}
		if logConfig.MethodFile {
			file, err := os.OpenFile(logConfig.Filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
			if err != nil {
				lastErr = fmt.Errorf("Could not open log file %s [%s]", logConfig.Filename, err.Error())
			} else {
				sLogger.file = file
				sLogger.buffered = bufio.NewWriter(file)
				sLogger.outputs = append(sLogger.outputs, output{w: sLogger.buffered, lock: &logger.fileLock, flush: true})
			}
		}
		logger.loggers = append(logger.loggers, sLogger)
	}

	return lastErr
}

// Close flushes and closes any open log files.
func (logger *Manager) Close() (err error) {
	if logger == nil {
		return nil
	}
	logger.configMutex.Lock()
	defer logger.configMutex.Unlock()
	for _, sLogger := range logger.loggers {
		if closeErr := sLogger.Close(); closeErr != nil {
			err = closeErr
		}
	}
	logger.loggers = nil
	return
}

// Log logs the given message with the given details.
func (logger *Manager) Log(level Level, logType string, messageParts ...string) {
	if logger == nil {
		return
	}
	logger.configMutex.RLock()
	defer logger.configMutex.RUnlock()

	var line []byte
	for i := range logger.loggers {
		sLogger := &logger.loggers[i]
		if !sLogger.capturing(level, logType) {
			continue
		}
		if line == nil {
			line = formatLine(level, logType, messageParts)
		}
		sLogger.write(line)
	}
}

// Debug logs the given message as a debug message.
func (logger *Manager) Debug(logType string, messageParts ...string) {
	logger.Log(LogDebug, logType, messageParts...)
}

// Info logs the given message as an info message.
func (logger *Manager) Info(logType string, messageParts ...string) {
	logger.Log(LogInfo, logType, messageParts...)
}

// Warning logs the given message as a warning message.
func (logger *Manager) Warning(logType string, messageParts ...string) {
	logger.Log(LogWarning, logType, messageParts...)
}

// Error logs the given message as an error message.
func (logger *Manager) Error(logType string, messageParts ...string) {
	logger.Log(LogError, logType, messageParts...)
}

// formatLine renders `time : level : type : part : part`.
func formatLine(level Level, logType string, messageParts []string) []byte {
	var buf bytes.Buffer
	// 13 is len("accesscontrol"), the longest log category name in use
	fmt.Fprintf(&buf, "%s : %-5s : %-13s : ", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"), LogLevelDisplayNames[level], logType)
	for i, p := range messageParts {
		if i > 0 {
			buf.WriteString(" : ")
		}
		buf.WriteString(p)
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

type output struct {
	w     io.Writer
	lock  *sync.Mutex
	flush bool
}

// singleLogger is one entry of the logging config.
type singleLogger struct {
	level    Level
	types    map[string]bool
	excluded map[string]bool
	outputs  []output

	file     *os.File
	buffered *bufio.Writer
}

func (logger *singleLogger) Close() error {
	if logger.file == nil {
		return nil
	}
	flushErr := logger.buffered.Flush()
	closeErr := logger.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (logger *singleLogger) capturing(level Level, logType string) bool {
	if len(logger.outputs) == 0 || level < logger.level {
		return false
	}
	return (logger.types["*"] || logger.types[logType]) && !logger.excluded["*"] && !logger.excluded[logType]
}

func (logger *singleLogger) write(line []byte) {
	for _, out := range logger.outputs {
		out.lock.Lock()
		out.w.Write(line)
		if out.flush {
			logger.buffered.Flush()
		}
		out.lock.Unlock()
	}
}
