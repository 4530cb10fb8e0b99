package logger

import (
	"os"

	"github.com/natefinch/lumberjack"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.SugaredLogger

func InitLogger() {
	writer := newWriter()

	var core zapcore.Core
	opts := make([]zap.Option, 0, 2)
	if viper.GetBool("server.develop_mode") {
		core = zapcore.NewCore(newEncoder(zap.NewDevelopmentEncoderConfig()), writer, zap.DebugLevel)
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	} else {
		level := zapcore.Level(viper.GetInt("logger.level"))
		core = zapcore.NewCore(newEncoder(zap.NewProductionEncoderConfig()), writer, level)
	}

	logger = zap.New(core, opts...).Sugar()
	Infof("Initializing logger successfully")
}

// Sync 刷掉缓冲的日志，进程退出前调用
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}

func Debugf(template string, args ...any) {
	logger.Debugf(template, args...)
}

func Infof(template string, args ...any) {
	logger.Infof(template, args...)
}

func Warnf(template string, args ...any) {
	logger.Warnf(template, args...)
}

func Errorf(template string, args ...any) {
	logger.Errorf(template, args...)
}

func ErrorWithStack(err error) {
	logger.Errorf("%T:\nstack trace:\n%+v", errors.Cause(err), err)
}

func newEncoder(config zapcore.EncoderConfig) zapcore.Encoder {
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeLevel = zapcore.CapitalLevelEncoder

	return zapcore.NewConsoleEncoder(config)
}

func newWriter() zapcore.WriteSyncer {
	rotated := &lumberjack.Logger{ // 按大小分片
		Filename:   viper.GetString("logger.path"),
		MaxSize:    viper.GetInt("logger.max_size"),
		MaxBackups: viper.GetInt("logger.max_backups"),
		MaxAge:     viper.GetInt("logger.max_age"),
		Compress:   viper.GetBool("logger.compress"),
	}
	out := []zapcore.WriteSyncer{zapcore.AddSync(rotated)}
	if viper.GetBool("logger.console") {
		out = append(out, os.Stdout)
	}
	return zapcore.NewMultiWriteSyncer(out...)
}
