// Package badgerstore keeps chat history in an embedded Badger database.
//
// Key layout (ids are zero padded so lexicographic order is id order):
//
//	msg:room:{id}              public and system messages
//	msg:dm:{len}:{conv}:{id}   private messages of one conversation
//	conv:{conv}                first-message marker of a conversation
//
// {len} is the three digit byte length of the conversation id.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/pkg/logger"

	"github.com/dgraph-io/badger/v4"
)

const (
	roomPrefix     = "msg:room:"
	dmPrefix       = "msg:dm:"
	convPrefix     = "conv:"
	sequenceKey    = "seq:messages"
	maxConflictTry = 16
	markReadBatch  = 512
)

type Store struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

// Open opens (or creates) a store at path. An empty path opens an in-memory
// database.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	seq, err := db.GetSequence([]byte(sequenceKey), 1000)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &Store{db: db, seq: seq, log: log}, nil
}

func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		s.log.Warn("release message sequence", logger.Err(err))
	}
	return s.db.Close()
}

// record is the stored form of a message.
type record struct {
	ID             int64      `json:"id"`
	Kind           string     `json:"kind"`
	SenderID       string     `json:"sender_id,omitempty"`
	SenderName     string     `json:"sender_name,omitempty"`
	RecipientID    string     `json:"recipient_id,omitempty"`
	RecipientName  string     `json:"recipient_name,omitempty"`
	ConversationID string     `json:"conversation_id,omitempty"`
	Content        string     `json:"content"`
	IsRead         bool       `json:"is_read,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func fromMessage(m domain.Message) record {
	return record{
		ID:             m.ID,
		Kind:           string(m.Kind),
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		RecipientID:    m.RecipientID,
		RecipientName:  m.RecipientName,
		ConversationID: m.ConversationID,
		Content:        m.Content,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

func (r record) toMessage() domain.Message {
	return domain.Message{
		ID:             r.ID,
		Kind:           domain.MessageKind(r.Kind),
		SenderID:       r.SenderID,
		SenderName:     r.SenderName,
		RecipientID:    r.RecipientID,
		RecipientName:  r.RecipientName,
		ConversationID: r.ConversationID,
		Content:        r.Content,
		IsRead:         r.IsRead,
		ReadAt:         r.ReadAt,
		CreatedAt:      r.CreatedAt,
	}
}

func roomKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", roomPrefix, id))
}

// dmConvPrefix length-prefixes the conversation id so no conversation's
// prefix is a prefix of another's, whatever characters the ids hold.
func dmConvPrefix(conversationID string) []byte {
	return []byte(fmt.Sprintf("%s%03d:%s:", dmPrefix, len(conversationID), conversationID))
}

func dmKey(conversationID string, id int64) []byte {
	return fmt.Appendf(dmConvPrefix(conversationID), "%020d", id)
}

func convKey(conversationID string) []byte {
	return []byte(convPrefix + conversationID)
}

// nextID hands out ids starting at 1; 0 is reserved for unsaved messages.
func (s *Store) nextID() (int64, error) {
	n, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next message id: %w", err)
	}
	return int64(n) + 1, nil
}

func (s *Store) AppendPublic(ctx context.Context, m *domain.Message) error {
	if m.Kind != domain.KindPublic {
		return fmt.Errorf("append public: unexpected kind %q", m.Kind)
	}
	return s.appendRoom(ctx, m)
}

func (s *Store) AppendSystem(ctx context.Context, m *domain.Message) error {
	if m.Kind != domain.KindSystem {
		return fmt.Errorf("append system: unexpected kind %q", m.Kind)
	}
	return s.appendRoom(ctx, m)
}

func (s *Store) appendRoom(ctx context.Context, m *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := s.nextID()
	if err != nil {
		return err
	}
	m.ID = id
	val, err := json.Marshal(fromMessage(*m))
	if err != nil {
		m.ID = 0
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(id), val)
	}); err != nil {
		m.ID = 0
		return err
	}
	return nil
}

// AppendPrivate writes the message and, when the conversation has no marker
// yet, the marker, in one transaction. Badger's conflict detection aborts a
// concurrent transaction that also saw the marker missing; it is retried and
// then observes the marker, so exactly one append reports first.
func (s *Store) AppendPrivate(ctx context.Context, m *domain.Message) (bool, error) {
	if _, _, err := domain.ParseConversationID(m.ConversationID); err != nil {
		return false, err
	}
	id, err := s.nextID()
	if err != nil {
		return false, err
	}
	m.ID = id
	val, err := json.Marshal(fromMessage(*m))
	if err != nil {
		m.ID = 0
		return false, err
	}

	var first bool
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			m.ID = 0
			return false, err
		}
		first = false
		err = s.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(convKey(m.ConversationID))
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				first = true
				marker := []byte(m.CreatedAt.UTC().Format(time.RFC3339Nano))
				if err := txn.Set(convKey(m.ConversationID), marker); err != nil {
					return err
				}
			case err != nil:
				return err
			}
			return txn.Set(dmKey(m.ConversationID, id), val)
		})
		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictTry {
			s.log.Debug("private append conflict, retrying", logger.Conversation(m.ConversationID), "attempt", attempt)
			continue
		}
		break
	}
	if err != nil {
		m.ID = 0
		return false, err
	}
	return first, nil
}

// MarkRead marks the reader's unread messages in the conversation as read.
func (s *Store) MarkRead(ctx context.Context, conversationID, readerID string, at time.Time) (int64, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := dmConvPrefix(conversationID)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var r record
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &r) }); err != nil {
				return err
			}
			if r.RecipientID == readerID && !r.IsRead {
				keys = append(keys, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	var changed int64
	for chunk := range slices.Chunk(keys, markReadBatch) {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		var n int64
		err := s.db.Update(func(txn *badger.Txn) error {
			n = 0
			for _, k := range chunk {
				item, err := txn.Get(k)
				if err != nil {
					if errors.Is(err, badger.ErrKeyNotFound) {
						continue
					}
					return err
				}
				var r record
				if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &r) }); err != nil {
					return err
				}
				m := r.toMessage()
				if m.IsRead {
					continue
				}
				m.MarkRead(at)
				val, err := json.Marshal(fromMessage(m))
				if err != nil {
					return err
				}
				if err := txn.Set(k, val); err != nil {
					return err
				}
				n++
			}
			return nil
		})
		if err != nil {
			return changed, err
		}
		changed += n
	}
	return changed, nil
}

func (s *Store) RecentPublic(ctx context.Context, limit int, before int64) ([]domain.Message, error) {
	return s.recent(ctx, []byte(roomPrefix), limit, before)
}

func (s *Store) RecentPrivate(ctx context.Context, conversationID string, limit int, before int64) ([]domain.Message, error) {
	return s.recent(ctx, dmConvPrefix(conversationID), limit, before)
}

// recent walks the prefix backwards from before (exclusive; 0 means from the
// newest) and returns up to limit messages in ascending id order.
func (s *Store) recent(ctx context.Context, prefix []byte, limit int, before int64) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}
	out := make([]domain.Message, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// seek to the last key below before; "~" sorts after every digit
		seek := append(slices.Clone(prefix), '~')
		if before > 0 {
			seek = []byte(fmt.Sprintf("%s%020d", prefix, before-1))
		}
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r record
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &r) }); err != nil {
				return err
			}
			out = append(out, r.toMessage())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// ClearPublicHistory drops every room message. Private threads are kept.
func (s *Store) ClearPublicHistory(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(roomPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.db.DropPrefix([]byte(roomPrefix)); err != nil {
		return 0, fmt.Errorf("drop room messages: %w", err)
	}
	return n, nil
}
