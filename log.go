// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LogLevelError string = "error"
	LogLevelWarn  string = "warn"
	LogLevelInfo  string = "info"
	LogLevelDebug string = "debug"
)

type LogFunc func(ts time.Time, level string, msg *Message, err error, log string)

var logFunc atomic.Value
var logLevel atomic.Int32
var zapLogger atomic.Pointer[zap.Logger]

func init() {
	logFunc.Store(LogFunc(defaultLogFunc))
	zapLogger.Store(zap.NewNop())
}

func SetLogFunc(lf LogFunc) {
	if lf == nil {
		lf = defaultLogFunc
	}
	logFunc.Store(lf)
}

func SetLogLevel(level string) {
	switch level {
	case LogLevelError:
		logLevel.Store(1)
	case LogLevelWarn:
		logLevel.Store(2)
	case LogLevelInfo:
		logLevel.Store(3)
	case LogLevelDebug:
		logLevel.Store(4)
	default:
		logLevel.Store(0)
	}
}

// SetZapLogger replaces the backend used by the default LogFunc.
func SetZapLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	zapLogger.Store(l)
}

// NewRotatingZapLogger builds a JSON zap logger writing to a size-rotated file.
func NewRotatingZapLogger(path string, maxSizeMB int, maxBackups int) *zap.Logger {
	ws := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	})
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), ws, zapcore.DebugLevel)
	return zap.New(core).Named("coap")
}

func defaultLogFunc(ts time.Time, level string, msg *Message, err error, l string) {
	zl := zapLogger.Load()
	fields := make([]zap.Field, 0, 3)
	if msg != nil {
		if len(msg.Meta.RemoteAddr) != 0 {
			fields = append(fields, zap.String("remote", msg.Meta.RemoteAddr))
		}
		fields = append(fields, zap.Uint16("mid", msg.MessageID))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	switch level {
	case LogLevelError:
		zl.Error(l, fields...)
	case LogLevelWarn:
		zl.Warn(l, fields...)
	case LogLevelInfo:
		zl.Info(l, fields...)
	default:
		zl.Debug(l, fields...)
	}
}

// PionLogFunc routes log entries to a pion leveled logger scoped "coap".
func PionLogFunc(factory logging.LoggerFactory) LogFunc {
	lg := factory.NewLogger("coap")
	return func(ts time.Time, level string, msg *Message, err error, l string) {
		if msg != nil && len(msg.Meta.RemoteAddr) != 0 {
			l = "[" + msg.Meta.RemoteAddr + "] " + l
		}
		if err != nil {
			l = l + " (err: " + err.Error() + ")"
		}
		switch level {
		case LogLevelError:
			lg.Error(l)
		case LogLevelWarn:
			lg.Warn(l)
		case LogLevelInfo:
			lg.Info(l)
		default:
			lg.Debug(l)
		}
	}
}

func logAt(lvl int32, level string, msg *Message, err error, f string, args ...interface{}) {
	if logLevel.Load() < lvl {
		return
	}
	logFunc.Load().(LogFunc)(time.Now(), level, msg, err, fmt.Sprintf(f, args...))
}

func logError(msg *Message, err error, f string, args ...interface{}) {
	logAt(1, LogLevelError, msg, err, f, args...)
}

func logWarn(msg *Message, err error, f string, args ...interface{}) {
	logAt(2, LogLevelWarn, msg, err, f, args...)
}

func logInfo(msg *Message, err error, f string, args ...interface{}) {
	logAt(3, LogLevelInfo, msg, err, f, args...)
}

func logDebug(msg *Message, err error, f string, args ...interface{}) {
	logAt(4, LogLevelDebug, msg, err, f, args...)
}
