package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

const maxLogSizeMB = 2

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var minLevel atomic.Int32

func init() {
	minLevel.Store(int32(LevelInfo))
}

// Setup tees the standard logger to stdout and a size-rotated file.
func Setup(logPath string) (io.Closer, error) {
	if logPath == "" {
		return nil, fmt.Errorf("empty log path")
	}

	// Fail early if the file can't be created; lumberjack only opens on first write.
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	f.Close()

	rw := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxLogSizeMB,
		MaxBackups: 1,
		Compress:   false,
	}

	multi := io.MultiWriter(os.Stdout, rw)
	log.SetOutput(multi)

	return rw, nil
}

func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func SetLevel(l Level) {
	minLevel.Store(int32(l))
}

func Enabled(l Level) bool {
	return int32(l) >= minLevel.Load()
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Levelf logs with a "[level]" prefix when l is at or above the configured level.
func Levelf(l Level, format string, args ...any) {
	if !Enabled(l) {
		return
	}
	log.Output(3, "["+l.String()+"] "+fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) { Levelf(LevelDebug, format, args...) }
func Infof(format string, args ...any)  { Levelf(LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { Levelf(LevelWarn, format, args...) }
func Errorf(format string, args ...any) { Levelf(LevelError, format, args...) }
