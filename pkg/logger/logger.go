package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/antibyte/chayakada/pkg/configuration"
)

// LogLevel defines the log levels
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var logLevelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

var zapLevels = map[LogLevel]zapcore.Level{
	DEBUG: zapcore.DebugLevel,
	INFO:  zapcore.InfoLevel,
	WARN:  zapcore.WarnLevel,
	ERROR: zapcore.ErrorLevel,
	FATAL: zapcore.FatalLevel,
}

// LogArea defines the log areas that can be switched on and off
type LogArea string

const (
	AreaInterpreter LogArea = "interpreter"
	AreaStorage     LogArea = "storage"
	AreaAPI         LogArea = "api"
	AreaWebSocket   LogArea = "websocket"
	AreaAuth        LogArea = "auth"
	AreaSecurity    LogArea = "security"
	AreaConfig      LogArea = "config"
	AreaGeneral     LogArea = "general"
)

var allAreas = []LogArea{
	AreaInterpreter, AreaStorage, AreaAPI, AreaWebSocket,
	AreaAuth, AreaSecurity, AreaConfig, AreaGeneral,
}

// Logger is the main logging system
type Logger struct {
	enabled     int32              // atomic bool
	level       int32              // atomic LogLevel
	areaEnabled map[LogArea]*int32 // atomic bools per area
	out         *rotatingFile
	zap         *zap.Logger
}

var (
	globalLogger *Logger
	initOnce     sync.Once
)

// Initialize sets up the global logger from the [Debug] configuration section
func Initialize() error {
	var err error
	initOnce.Do(func() {
		globalLogger, err = newLogger(configuration.GetString("Debug", "log_file", "chayakada.log"))
	})
	return err
}

// newLogger creates a logger writing to logPath
func newLogger(logPath string) (*Logger, error) {
	l := &Logger{
		areaEnabled: make(map[LogArea]*int32),
	}
	for _, area := range allAreas {
		l.areaEnabled[area] = new(int32)
	}

	l.loadConfig()

	out, err := openRotatingFile(
		logPath,
		int64(configuration.GetInt("Debug", "max_log_size_mb", 10))*1024*1024,
		configuration.GetInt("Debug", "log_rotation_count", 3),
	)
	if err != nil {
		return nil, err
	}
	l.out = out

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	fileCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(out), zapcore.DebugLevel)
	// Important messages also go to stderr
	stderrCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), zapcore.WarnLevel)

	l.zap = zap.New(zapcore.NewTee(fileCore, stderrCore), zap.AddCaller(), zap.AddCallerSkip(2))
	return l, nil
}

// loadConfig loads the logging switches
func (l *Logger) loadConfig() {
	enabled := configuration.GetBool("Debug", "enable_debug_logging", true)
	atomic.StoreInt32(&l.enabled, boolToInt32(enabled))

	level := parseLogLevel(configuration.GetString("Debug", "log_level", "INFO"))
	atomic.StoreInt32(&l.level, int32(level))

	for area, atomicBool := range l.areaEnabled {
		configKey := fmt.Sprintf("log_%s", string(area))
		enabled := configuration.GetBool("Debug", configKey, defaultAreaEnabled(area))
		atomic.StoreInt32(atomicBool, boolToInt32(enabled))
	}
}

// defaultAreaEnabled keeps the chatty areas off unless configured
func defaultAreaEnabled(area LogArea) bool {
	switch area {
	case AreaInterpreter, AreaWebSocket:
		return false
	default:
		return true
	}
}

func (l *Logger) isEnabled() bool {
	return atomic.LoadInt32(&l.enabled) != 0
}

func (l *Logger) isAreaEnabled(area LogArea) bool {
	if atomicBool, exists := l.areaEnabled[area]; exists {
		return atomic.LoadInt32(atomicBool) != 0
	}
	return false
}

// shouldLog checks whether an entry passes the global, level and area switches
func (l *Logger) shouldLog(level LogLevel, area LogArea) bool {
	if !l.isEnabled() {
		return false
	}
	if atomic.LoadInt32(&l.level) > int32(level) {
		return false
	}
	return l.isAreaEnabled(area)
}

// writeLog hands the entry to zap
func (l *Logger) writeLog(level LogLevel, area LogArea, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	if ce := l.zap.Check(zapLevels[level], message); ce != nil {
		ce.Write(zap.String("area", strings.ToUpper(string(area))))
	}
}

// Debug writes debug logs
func Debug(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil && globalLogger.shouldLog(DEBUG, area) {
		globalLogger.writeLog(DEBUG, area, format, args...)
	}
}

// Info writes info logs
func Info(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil && globalLogger.shouldLog(INFO, area) {
		globalLogger.writeLog(INFO, area, format, args...)
	}
}

// Warn writes warning logs
func Warn(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil && globalLogger.shouldLog(WARN, area) {
		globalLogger.writeLog(WARN, area, format, args...)
	}
}

// Error writes error logs
func Error(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil && globalLogger.shouldLog(ERROR, area) {
		globalLogger.writeLog(ERROR, area, format, args...)
	}
}

// Fatal writes a fatal log entry and exits the program
func Fatal(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil {
		// zap exits after writing a fatal entry
		globalLogger.writeLog(FATAL, area, format, args...)
	}
	fmt.Fprintf(os.Stderr, "[FATAL] [%s] %s\n", strings.ToUpper(string(area)), fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Convenience functions for frequently used areas

// Auth Logging
func AuthDebug(format string, args ...interface{}) { Debug(AreaAuth, format, args...) }
func AuthInfo(format string, args ...interface{})  { Info(AreaAuth, format, args...) }
func AuthWarn(format string, args ...interface{})  { Warn(AreaAuth, format, args...) }
func AuthError(format string, args ...interface{}) { Error(AreaAuth, format, args...) }

// Security Logging
func SecurityDebug(format string, args ...interface{}) { Debug(AreaSecurity, format, args...) }
func SecurityWarn(format string, args ...interface{})  { Warn(AreaSecurity, format, args...) }

// Config Logging
func ConfigInfo(format string, args ...interface{}) { Info(AreaConfig, format, args...) }

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func parseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
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

// Close flushes and closes the logging system
func Close() {
	if globalLogger != nil {
		_ = globalLogger.zap.Sync()
		globalLogger.out.Close()
	}
}

// rotatingFile is a zap write syncer that rotates by size
type rotatingFile struct {
	mu            sync.Mutex
	file          *os.File
	path          string
	maxSize       int64
	rotationCount int
	currentSize   int64
}

func openRotatingFile(path string, maxSize int64, rotationCount int) (*rotatingFile, error) {
	rf := &rotatingFile{path: path, maxSize: maxSize, rotationCount: rotationCount}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

// open opens the log file for appending. Assumes lock is held or not shared yet.
func (rf *rotatingFile) open() error {
	if dir := filepath.Dir(rf.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	file, err := os.OpenFile(rf.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	rf.file = file
	rf.currentSize = 0
	if stat, err := file.Stat(); err == nil {
		rf.currentSize = stat.Size()
	}
	return nil
}

// rotate shifts log.N to log.N+1 and starts a fresh file. Assumes lock is held.
func (rf *rotatingFile) rotate() error {
	if rf.file != nil {
		rf.file.Close()
		rf.file = nil
	}

	for i := rf.rotationCount - 1; i >= 1; i-- {
		oldName := fmt.Sprintf("%s.%d", rf.path, i)
		newName := fmt.Sprintf("%s.%d", rf.path, i+1)
		if i == rf.rotationCount-1 {
			os.Remove(newName)
		}
		os.Rename(oldName, newName)
	}
	os.Rename(rf.path, rf.path+".1")

	file, err := os.OpenFile(rf.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	rf.file = file
	rf.currentSize = 0
	return nil
}

// Write implements zapcore.WriteSyncer
func (rf *rotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, os.ErrClosed
	}
	n, err := rf.file.Write(p)
	rf.currentSize += int64(n)
	if err == nil && rf.maxSize > 0 && rf.currentSize > rf.maxSize {
		err = rf.rotate()
	}
	return n, err
}

// Sync implements zapcore.WriteSyncer
func (rf *rotatingFile) Sync() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file == nil {
		return nil
	}
	return rf.file.Sync()
}

// Close closes the current file
func (rf *rotatingFile) Close() {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file != nil {
		rf.file.Close()
		rf.file = nil
	}
}
