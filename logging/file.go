package logging

import (
	"io"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation settings of file appenders.
const (
	logFileMaxSizeMB  = 100
	logFileMaxBackups = 3
)

// NewFileAppender returns a core writing uncolored console lines to path, rotating the file once
// it grows past logFileMaxSizeMB. The returned closer closes the current file.
func NewFileAppender(path string) (zapcore.Core, io.Closer) {
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		Compress:   true,
	}
	config := NewEncoderConfig()
	config.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(config), zapcore.AddSync(writer), zapcore.DebugLevel), writer
}

// NewLoggerWithFile returns a logger at level that writes to stdout and to the file at path.
func NewLoggerWithFile(name string, level Level, path string) (Logger, io.Closer) {
	appender, closer := NewFileAppender(path)
	return newImpl(name, level, NewStdoutAppender(), appender), closer
}
