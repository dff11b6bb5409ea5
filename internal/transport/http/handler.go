package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/internal/protocol"
	httpmw "github.com/foodfortalk/talk-service/internal/transport/http/middleware"
	"github.com/foodfortalk/talk-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

const maxBodyBytes = 1 << 16

var validate = validator.New(validator.WithRequiredStructEnabled())

type ChatSvc interface {
	RecentPublic(ctx context.Context, limit int, before int64) ([]domain.Message, error)
	ConversationHistory(ctx context.Context, viewer domain.Participant, conversationID string, limit int, before int64) ([]domain.Message, error)
	MarkRead(ctx context.Context, reader domain.Participant, conversationID string) (int64, error)
}

type DirectorySvc interface {
	Authenticate(ctx context.Context, token string) (domain.Participant, error)
	ViewProfile(ctx context.Context, viewer domain.Participant, viewedID string) (domain.Participant, error)
}

type PresenceSvc interface {
	IsOnline(participantID string) bool
	Snapshot() []domain.PresenceEntry
}

type Handler struct {
	chat      ChatSvc
	directory DirectorySvc
	presence  PresenceSvc
}

func NewHandler(chat ChatSvc, directory DirectorySvc, presence PresenceSvc) *Handler {
	return &Handler{chat: chat, directory: directory, presence: presence}
}

// GET /api/v1/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := httpmw.ParticipantFromCtx(r.Context())
	httputil.OK(w, MeResponse{
		ID:              p.ID,
		DisplayName:     p.Name(),
		AssignedAgentID: p.AssignedAgentID,
	})
}

// GET /api/v1/presence
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	entries := h.presence.Snapshot()
	httputil.OK(w, protocol.PresenceListPayload{
		Participants: lo.Map(entries, func(e domain.PresenceEntry, _ int) protocol.PresenceView {
			return protocol.PresenceView{ID: e.Participant.ID, DisplayName: e.Participant.Name(), Connections: e.Connections}
		}),
	})
}

// GET /api/v1/participants/{id}
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	viewer, _ := httpmw.ParticipantFromCtx(r.Context())
	p, err := h.directory.ViewProfile(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, ProfileResponse{
		ID:          p.ID,
		DisplayName: p.Name(),
		Online:      h.presence.IsOnline(p.ID),
	})
}

// GET /api/v1/messages/public?limit=&cursor=
func (h *Handler) PublicMessages(w http.ResponseWriter, r *http.Request) {
	limit, before, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	msgs, err := h.chat.RecentPublic(r.Context(), limit, before)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessages(w, msgs)
}

// GET /api/v1/conversations/{id}/messages?limit=&cursor=
func (h *Handler) ConversationMessages(w http.ResponseWriter, r *http.Request) {
	viewer, _ := httpmw.ParticipantFromCtx(r.Context())
	limit, before, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	msgs, err := h.chat.ConversationHistory(r.Context(), viewer, chi.URLParam(r, "id"), limit, before)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessages(w, msgs)
}

// POST /api/v1/conversations/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	reader, _ := httpmw.ParticipantFromCtx(r.Context())
	convID := chi.URLParam(r, "id")
	n, err := h.chat.MarkRead(r.Context(), reader, convID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, MarkReadResponse{ConversationID: convID, Marked: n})
}

// pageParams reads limit and the paging position. "cursor" is the opaque
// form; a raw "before" message id is accepted too.
func pageParams(r *http.Request) (limit int, before int64, err error) {
	q := r.URL.Query()
	if s := q.Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit < 0 {
			return 0, 0, fmt.Errorf("%w: limit", domain.ErrInvalidPayload)
		}
	}
	if s := q.Get("before"); s != "" {
		before, err = strconv.ParseInt(s, 10, 64)
		if err != nil || before < 0 {
			return 0, 0, fmt.Errorf("%w: before", domain.ErrInvalidPayload)
		}
	}
	c, err := DecodeCursor(q.Get("cursor"))
	if err != nil {
		return 0, 0, err
	}
	if c != nil {
		before = c.BeforeID
	}
	return limit, before, nil
}

// writeMessages answers with a page in id order. The cursor is omitted once
// the oldest message has been reached.
func writeMessages(w http.ResponseWriter, msgs []domain.Message) {
	resp := MessagesResponse{Items: protocol.NewMessageViews(msgs)}
	if len(msgs) > 0 && msgs[0].ID > 1 {
		next, err := EncodeCursor(Cursor{BeforeID: msgs[0].ID})
		if err != nil {
			writeError(w, err)
			return
		}
		resp.NextCursor = next
	}
	httputil.OK(w, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return nil
}
