package postgres

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/foodfortalk/talk-service/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMapPgError(t *testing.T) {
	req := require.New(t)

	wrap := func(code string) error {
		return fmt.Errorf("insert: %w", &pgconn.PgError{Code: code})
	}
	req.ErrorIs(mapPgError(wrap("23505")), domain.ErrParticipantExists)
	req.ErrorIs(mapPgError(wrap("23503")), domain.ErrParticipantNotFound)
	req.ErrorIs(mapPgError(wrap("23514")), domain.ErrInvalidParticipantID)

	other := wrap("40001")
	req.Equal(other, mapPgError(other))

	plain := errors.New("conn reset")
	req.Equal(plain, mapPgError(plain))
}

func TestMigrationsEmbedded(t *testing.T) {
	req := require.New(t)

	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	req.NoError(err)
	req.NotEmpty(names)

	body, err := migrationsFS.ReadFile("migrations/0001_init.sql")
	req.NoError(err)
	for _, table := range []string{"participants", "chat_messages", "chat_conversations", "profile_views"} {
		req.True(strings.Contains(string(body), table), table)
	}

	body, err = migrationsFS.ReadFile("migrations/0002_participant_id_charset.sql")
	req.NoError(err)
	req.Contains(string(body), "participants_id_check")
	req.Equal([]string{"migrations/0001_init.sql", "migrations/0002_participant_id_charset.sql"}, names)
}
