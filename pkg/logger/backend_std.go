package logger

import "log/slog"

// newStdHandler is the dev backend: plain text, timestamps trimmed to
// seconds and errors printed under KeyErr.
func newStdHandler(cfg Config) slog.Handler {
	return slog.NewTextHandler(cfg.Output, &slog.HandlerOptions{
		Level:     cfg.level(),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.String(slog.TimeKey, a.Value.Time().Format("15:04:05"))
			case KeyErr:
				if err, ok := a.Value.Any().(error); ok {
					return slog.String(KeyErr, err.Error())
				}
			}
			return a
		},
	})
}
