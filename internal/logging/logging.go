package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

type Config struct {
	Format Format
	// Level is a zap level name such as debug or warn. Empty means info.
	Level string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// ConfigFromEnv reads the level from GO_LOG.
func ConfigFromEnv(format Format) Config {
	return Config{
		Format: format,
		Level:  os.Getenv("GO_LOG"),
	}
}

// New builds a logr logger backed by zap. The returned sync flushes buffered entries.
func New(c Config) (logr.Logger, func() error, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if c.Level != "" {
		if err := level.UnmarshalText([]byte(c.Level)); err != nil {
			return logr.Discard(), nil, fmt.Errorf("failed to parse log level %q: %w", c.Level, err)
		}
	}

	var encoder zapcore.Encoder
	switch c.Format {
	case "", FormatJSON:
		// https://opentelemetry.io/docs/specs/otel/logs/data-model/
		config := zap.NewProductionEncoderConfig()
		config.LevelKey = "severitytext"
		config.MessageKey = "body"
		config.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		encoder = zapcore.NewJSONEncoder(config)
	case FormatConsole:
		config := zap.NewDevelopmentEncoderConfig()
		config.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(config)
	default:
		return logr.Discard(), nil, fmt.Errorf("unknown log format: %s", c.Format)
	}

	out := c.Output
	if out == nil {
		out = os.Stderr
	}
	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), level)
	z := zap.New(core, zap.AddStacktrace(zap.ErrorLevel))
	return zapr.NewLogger(z), z.Sync, nil
}
