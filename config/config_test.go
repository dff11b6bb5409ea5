package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimal = `
postgres:
  dsn: "postgres://u:p@localhost:5432/db"
security:
  jwt:
    secret: "0123456789abcdef0123456789abcdef"
  adminToken: "admin"
`

func TestLoadFile_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := LoadFile(writeConfig(t, minimal))
	req.NoError(err)

	req.Equal(":8080", cfg.HTTP.Addr)
	req.Equal(HistoryPostgres, cfg.Storage.History)
	req.Equal(50, cfg.Chat.HistoryLimit)
	req.Equal(4000, cfg.Chat.MaxContentLength)
	req.Equal(256, cfg.Chat.SendBuffer)
	req.Equal(15*time.Second, cfg.Chat.PingEvery)
	req.Equal(2*time.Second, cfg.Chat.TypingThrottle)
	req.Equal(5*time.Second, cfg.Chat.StoreTimeout)
	req.Equal('*', cfg.Chat.CensorRune())
	req.Equal("talk-service", cfg.Logging.Service)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("TALK_POSTGRES_DSN", "postgres://env@db:5432/talk")
	t.Setenv("TALK_HTTP_ADDR", ":9999")
	t.Setenv("TALK_ADMIN_TOKEN", "from-env")

	cfg, err := LoadFile(writeConfig(t, minimal))
	req.NoError(err)

	req.Equal("postgres://env@db:5432/talk", cfg.Postgres.DSN)
	req.Equal(":9999", cfg.HTTP.Addr)
	req.Equal("from-env", cfg.Security.AdminToken)
}

func TestLoadFile_Invalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing dsn", `
security:
  jwt: {secret: "0123456789abcdef0123456789abcdef"}
  adminToken: a
`},
		{"short secret", `
postgres: {dsn: "postgres://x"}
security:
  jwt: {secret: "short"}
  adminToken: a
`},
		{"bad history backend", `
postgres: {dsn: "postgres://x"}
storage: {history: redis}
security:
  jwt: {secret: "0123456789abcdef0123456789abcdef"}
  adminToken: a
`},
		{"multi-char censor", `
postgres: {dsn: "postgres://x"}
chat: {censorChar: "##"}
security:
  jwt: {secret: "0123456789abcdef0123456789abcdef"}
  adminToken: a
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tc.body))
			require.Error(t, err)
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
