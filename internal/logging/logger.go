// Package logging builds the zap logger otpload components share.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level names accepted by OTPLOAD_LOG_LEVEL and --log-level.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Encoder names accepted by OTPLOAD_LOG_FORMAT and --log-format.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// LoggerConfig selects the level, encoder and sink of the CLI logger.
type LoggerConfig struct {
	Level  string    `json:"level"`
	Format string    `json:"format"`
	Output io.Writer `json:"-"`
}

// Validate rejects unknown level and format names.
func (c *LoggerConfig) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case "", FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("logging: invalid format: %s", c.Format)
	}
	return nil
}

// ApplyDefaults fills in default values. Logs go to stderr so stdout
// carries only the test summary.
func (c *LoggerConfig) ApplyDefaults() {
	if c.Level == "" {
		c.Level = LevelInfo
	}
	if c.Format == "" {
		c.Format = FormatConsole
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}
}

// ParseLevel maps a level name to its zap level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel, nil
	case "", LevelInfo:
		return zapcore.InfoLevel, nil
	case LevelWarn:
		return zapcore.WarnLevel, nil
	case LevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("logging: invalid level: %s", level)
	}
}

// New builds a zap logger from config. A nil config yields the defaults.
func New(config *LoggerConfig) (*zap.Logger, error) {
	if config == nil {
		config = &LoggerConfig{}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	level, _ := ParseLevel(config.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if config.Format == FormatJSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(config.Output), zap.NewAtomicLevelAt(level))
	return zap.New(core), nil
}
