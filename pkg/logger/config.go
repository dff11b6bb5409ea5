package logger

import (
	"io"
	"log/slog"
)

type Backend string

const (
	BackendStd Backend = "std" // text handler
	BackendZap Backend = "zap" // JSON through slog-zap
)

type Config struct {
	Service    string
	Version    string
	InstanceID string

	Level   slog.Level
	Env     Env
	Backend Backend // default: std for dev, zap otherwise
	Debug   bool

	// Zap sampling
	SampleInitial    int
	SampleThereafter int

	AddSource bool

	// Output defaults to os.Stdout.
	Output io.Writer
}

func (c Config) level() slog.Level {
	if c.Debug && c.Level == 0 {
		return slog.LevelDebug
	}
	return c.Level
}
