package http

import (
	"context"
	"net/http"
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/internal/service"
	"github.com/foodfortalk/talk-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

type AdminSvc interface {
	CreateParticipant(ctx context.Context, id, displayName string) (*service.CreateParticipantResult, error)
	GetParticipant(ctx context.Context, id string) (*domain.Participant, error)
	ClearPublicHistory(ctx context.Context) (int64, error)
	AssignAgent(ctx context.Context, participantID, agentID string) error
	UnassignAgent(ctx context.Context, participantID string) error
	SetActive(ctx context.Context, participantID string, active bool) error
	RegeneratePasskey(ctx context.Context, participantID string) (string, error)
	IssueToken(ctx context.Context, participantID string) (string, time.Time, error)
}

type AdminHandler struct {
	admin AdminSvc
}

func NewAdminHandler(admin AdminSvc) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// POST /admin/v1/participants
func (h *AdminHandler) CreateParticipant(w http.ResponseWriter, r *http.Request) {
	var req CreateParticipantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.admin.CreateParticipant(r.Context(), req.ID, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, CreateParticipantResponse{
		Participant: newParticipantResponse(res.Participant),
		Passkey:     res.Passkey,
	})
}

// GET /admin/v1/participants/{id}
func (h *AdminHandler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	p, err := h.admin.GetParticipant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, newParticipantResponse(*p))
}

// PUT /admin/v1/participants/{id}/active
func (h *AdminHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.admin.SetActive(r.Context(), chi.URLParam(r, "id"), *req.Active); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /admin/v1/participants/{id}/agent
func (h *AdminHandler) AssignAgent(w http.ResponseWriter, r *http.Request) {
	var req AssignAgentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.admin.AssignAgent(r.Context(), chi.URLParam(r, "id"), req.AgentID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /admin/v1/participants/{id}/agent
func (h *AdminHandler) UnassignAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.UnassignAgent(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /admin/v1/participants/{id}/passkey
func (h *AdminHandler) RegeneratePasskey(w http.ResponseWriter, r *http.Request) {
	plain, err := h.admin.RegeneratePasskey(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, PasskeyResponse{Passkey: plain})
}

// POST /admin/v1/participants/{id}/token
func (h *AdminHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	tok, exp, err := h.admin.IssueToken(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, TokenResponse{AccessToken: tok, ExpiresAt: exp})
}

// POST /admin/v1/history/public/clear
func (h *AdminHandler) ClearPublicHistory(w http.ResponseWriter, r *http.Request) {
	n, err := h.admin.ClearPublicHistory(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, ClearHistoryResponse{Deleted: n})
}
