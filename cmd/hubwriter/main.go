package main

import (
	"os"

	"github.com/doublecloud/hubwriter/cmd/hubwriter/write"
	"github.com/doublecloud/hubwriter/internal/logger"
	"github.com/doublecloud/hubwriter/pkg/cobraaux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/xerrors"
)

var (
	defaultLogLevel  = "info"
	defaultLogConfig = "console"
)

func main() {
	loggerConfig := newLoggerConfig()
	logger.Log = zap.Must(loggerConfig.Build())
	logLevel := defaultLogLevel
	logConfig := defaultLogConfig

	rootCommand := &cobra.Command{
		Use:          "hubwriter",
		Short:        "Batched document writer for bulk ingestion endpoints",
		Example:      "./hubwriter write --config hubwriter.yaml --input rows.jsonl",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch logConfig {
			case "console":
			case "json":
				loggerConfig = logger.JSONLoggerConfig(zapcore.InfoLevel)
			case "minimal":
				loggerConfig.EncoderConfig = zapcore.EncoderConfig{
					MessageKey: "message",
					LevelKey:   "level",
					// Disable the rest of the fields
					TimeKey:        "",
					NameKey:        "",
					CallerKey:      "",
					FunctionKey:    "",
					StacktraceKey:  "",
					LineEnding:     zapcore.DefaultLineEnding,
					EncodeLevel:    zapcore.CapitalColorLevelEncoder,
					EncodeName:     nil,
					EncodeDuration: nil,
				}
			default:
				return xerrors.Errorf("unsupported value \"%s\" for --log-config", logConfig)
			}
			switch logLevel {
			case "panic":
				loggerConfig.Level.SetLevel(zapcore.PanicLevel)
			case "fatal":
				loggerConfig.Level.SetLevel(zapcore.FatalLevel)
			case "error":
				loggerConfig.Level.SetLevel(zapcore.ErrorLevel)
			case "warning":
				loggerConfig.Level.SetLevel(zapcore.WarnLevel)
			case "info":
				loggerConfig.Level.SetLevel(zapcore.InfoLevel)
			case "debug":
				loggerConfig.Level.SetLevel(zapcore.DebugLevel)
			default:
				return xerrors.Errorf("unsupported value \"%s\" for --log-level", logLevel)
			}

			l, err := loggerConfig.Build()
			if err != nil {
				return xerrors.Errorf("unable to build logger: %w", err)
			}
			logger.Log = l
			return nil
		},
	}
	cobraaux.RegisterCommand(rootCommand, write.WriteCommand())

	rootCommand.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "Specifies logging level for output logs (\"panic\", \"fatal\", \"error\", \"warning\", \"info\", \"debug\")")
	rootCommand.PersistentFlags().StringVar(&logConfig, "log-config", defaultLogConfig, "Specifies logging config for output logs (\"console\", \"json\", \"minimal\")")

	err := rootCommand.Execute()
	_ = logger.Log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func newLoggerConfig() zap.Config {
	cfg := logger.DefaultLoggerConfig(logger.LogLevel())
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg
}
