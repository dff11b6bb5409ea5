package postgres

const (
	QueryCreateParticipant = `
		INSERT INTO participants (id, display_name, is_active, passkey_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5);
	`
	QueryGetParticipant = `
		SELECT id, display_name, is_active, assigned_agent_id, created_at, updated_at
		FROM participants
		WHERE id = $1;
	`
	QuerySetParticipantActive = `
		UPDATE participants
		SET is_active = $2, updated_at = $3
		WHERE id = $1;
	`
	QuerySetParticipantAgent = `
		UPDATE participants
		SET assigned_agent_id = $2, updated_at = $3
		WHERE id = $1;
	`
	QuerySetPasskeyHash = `
		UPDATE participants
		SET passkey_hash = $2, updated_at = $3
		WHERE id = $1;
	`
	QueryRecordProfileView = `
		INSERT INTO profile_views (viewer_id, viewed_id, viewed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (viewer_id, viewed_id) DO UPDATE SET viewed_at = EXCLUDED.viewed_at;
	`
)

const (
	QueryInsertMessage = `
		INSERT INTO chat_messages (kind, sender_id, recipient_id, conversation_id, content, is_read, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id;
	`
	// A conversation row exists once its first message has been written; the
	// conditional insert is what decides "first".
	QueryInsertConversation = `
		INSERT INTO chat_conversations (conversation_id, participant_a, participant_b, started_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (conversation_id) DO NOTHING;
	`
	queryMessageColumns = `
		SELECT m.id, m.kind,
		       COALESCE(m.sender_id, ''), COALESCE(s.display_name, ''),
		       COALESCE(m.recipient_id, ''), COALESCE(r.display_name, ''),
		       COALESCE(m.conversation_id, ''), m.content, m.is_read, m.read_at, m.created_at
		FROM chat_messages AS m
		LEFT JOIN participants AS s ON s.id = m.sender_id
		LEFT JOIN participants AS r ON r.id = m.recipient_id
	`
	QueryRecentPublic = queryMessageColumns + `
		WHERE m.kind IN ('public', 'system')
		  AND ($1::bigint = 0 OR m.id < $1)
		ORDER BY m.id DESC
		LIMIT $2;
	`
	QueryRecentPrivate = queryMessageColumns + `
		WHERE m.conversation_id = $1
		  AND ($2::bigint = 0 OR m.id < $2)
		ORDER BY m.id DESC
		LIMIT $3;
	`
	QueryMarkRead = `
		UPDATE chat_messages
		SET is_read = TRUE, read_at = GREATEST($3::timestamptz, created_at)
		WHERE conversation_id = $1 AND recipient_id = $2 AND NOT is_read;
	`
	QueryClearPublic = `DELETE FROM chat_messages WHERE kind IN ('public', 'system');`
)
