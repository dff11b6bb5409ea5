package logger

import (
	"log/slog"
	"time"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultSampleInitial    = 100
	defaultSampleThereafter = 10
)

// newZapHandler writes JSON through zap. Lines below warn are sampled per
// second so a reconnect storm cannot flood the output; warnings and errors
// (overflow disconnects, kicks, store failures) always pass.
func newZapHandler(cfg Config) slog.Handler {
	floor := toZapLevel(cfg.level())
	enc := zapcore.NewJSONEncoder(encoderConfig(cfg))
	out := zapcore.AddSync(cfg.Output)

	chatty := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= floor && l < zapcore.WarnLevel })
	loud := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= floor && l >= zapcore.WarnLevel })

	initial, thereafter := cfg.SampleInitial, cfg.SampleThereafter
	if initial <= 0 {
		initial = defaultSampleInitial
	}
	if thereafter <= 0 {
		thereafter = defaultSampleThereafter
	}

	core := zapcore.NewTee(
		zapcore.NewSamplerWithOptions(zapcore.NewCore(enc, out, chatty), time.Second, initial, thereafter),
		zapcore.NewCore(enc.Clone(), out, loud),
	)
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Named(cfg.Service)

	return slogzap.Option{Level: cfg.level(), Logger: z}.NewZapHandler()
}

func encoderConfig(cfg Config) zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.NameKey = "logger"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	ec.EncodeDuration = zapcore.StringDurationEncoder
	if cfg.AddSource {
		ec.EncodeCaller = zapcore.ShortCallerEncoder
	} else {
		ec.CallerKey = zapcore.OmitKey
	}
	return ec
}

func toZapLevel(lvl slog.Level) zapcore.Level {
	switch {
	case lvl <= slog.LevelDebug:
		return zapcore.DebugLevel
	case lvl < slog.LevelWarn:
		return zapcore.InfoLevel
	case lvl < slog.LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
