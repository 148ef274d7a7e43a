package main

import (
	"errors"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/torosent/studybench/internal/dicomweb"
)

// newLogger builds a JSON logger on w. Verbosity 0 logs warnings and errors,
// 1 adds info, 2 and above add debug output with caller information.
func newLogger(verbosity int, w io.Writer) (*zap.Logger, error) {
	if w == nil {
		return nil, errors.New("log writer is nil")
	}

	var level zapcore.Level
	switch {
	case verbosity <= 0:
		level = zapcore.WarnLevel
	case verbosity == 1:
		level = zapcore.InfoLevel
	default:
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(w), level)

	opts := []zap.Option{}
	if verbosity >= 2 {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...).Named("studybench"), nil
}

// zapFailureLogger logs each failed frame request at warn level.
type zapFailureLogger struct {
	logger *zap.Logger
}

func (l *zapFailureLogger) LogFailure(err error) {
	if err == nil || l.logger == nil {
		return
	}
	fields := []zap.Field{zap.Error(err)}
	var statusErr *dicomweb.StatusError
	if errors.As(err, &statusErr) {
		fields = append(fields, zap.Int("status", statusErr.StatusCode), zap.String("url", statusErr.URL))
	}
	l.logger.Warn("frame request failed", fields...)
}
