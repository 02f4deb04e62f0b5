package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. Commands may replace it after flag parsing.
var Log *zap.Logger

// NullLog discards everything.
var NullLog = zap.NewNop()

func LoggerWithLevel(lvl zapcore.Level) *zap.Logger {
	cfg := DefaultLoggerConfig(lvl)
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zap.Must(cfg.Build())
}

// AdditionalComponentCallerEncoder keeps the last three path components of the caller.
func AdditionalComponentCallerEncoder(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
	path := caller.String()
	lastIndex := len(path) - 1
	for i := 0; i < 3; i++ {
		lastIndex = strings.LastIndex(path[0:lastIndex], "/")
		if lastIndex == -1 {
			break
		}
	}
	if lastIndex > 0 {
		path = path[lastIndex+1:]
	}
	enc.AppendString(path)
}

func LogLevel() zapcore.Level {
	if level, ok := os.LookupEnv("LOG_LEVEL"); ok {
		return ParseLevel(level)
	}
	return zapcore.InfoLevel
}

// ParseLevel falls back to info for unknown names.
func ParseLevel(level string) zapcore.Level {
	lvl := zapcore.InfoLevel
	if level == "" {
		return lvl
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err == nil {
		lvl = l
	}
	return lvl
}

func DefaultLoggerConfig(level zapcore.Level) zap.Config {
	encoder := zapcore.CapitalColorLevelEncoder
	if !isatty.IsTerminal(os.Stdout.Fd()) || !isatty.IsTerminal(os.Stderr.Fd()) {
		encoder = zapcore.CapitalLevelEncoder
	}

	return zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "msg",
			LevelKey:       "level",
			TimeKey:        "ts",
			CallerKey:      "caller",
			EncodeLevel:    encoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   AdditionalComponentCallerEncoder,
		},
	}
}

// JSONLoggerConfig is used when logs are shipped to a collector.
func JSONLoggerConfig(level zapcore.Level) zap.Config {
	cfg := DefaultLoggerConfig(level)
	cfg.Encoding = "json"
	cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	return cfg
}

func init() {
	level := LogLevel()
	cfg := DefaultLoggerConfig(level)

	if os.Getenv("LOG_FORMAT") == "json" {
		cfg = JSONLoggerConfig(level)
	}

	if os.Getenv("CI") == "1" || strings.HasSuffix(os.Args[0], ".test") {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	host, _ := os.Hostname()
	logger, err := cfg.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to build logger: %v\n", err)
		logger = zap.NewNop()
	}
	Log = logger.With(zap.String("host", host))
}
