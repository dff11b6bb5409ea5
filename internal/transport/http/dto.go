package http

import (
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/internal/protocol"
)

type MeResponse struct {
	ID              string  `json:"id"`
	DisplayName     string  `json:"displayName"`
	AssignedAgentID *string `json:"assignedAgentId,omitempty"`
}

type ProfileResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Online      bool   `json:"online"`
}

type MessagesResponse struct {
	Items      []protocol.MessageView `json:"items"`
	NextCursor string                 `json:"nextCursor,omitempty"`
}

type MarkReadResponse struct {
	ConversationID string `json:"conversationId"`
	Marked         int64  `json:"marked"`
}

type CreateParticipantRequest struct {
	ID          string `json:"id" validate:"omitempty,max=64"`
	DisplayName string `json:"displayName" validate:"required,max=100"`
}

type ParticipantResponse struct {
	ID              string    `json:"id"`
	DisplayName     string    `json:"displayName"`
	Active          bool      `json:"active"`
	AssignedAgentID *string   `json:"assignedAgentId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

type CreateParticipantResponse struct {
	Participant ParticipantResponse `json:"participant"`
	Passkey     string              `json:"passkey"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type AssignAgentRequest struct {
	AgentID string `json:"agentId" validate:"required,max=64"`
}

type PasskeyResponse struct {
	Passkey string `json:"passkey"`
}

type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type ClearHistoryResponse struct {
	Deleted int64 `json:"deleted"`
}

func newParticipantResponse(p domain.Participant) ParticipantResponse {
	return ParticipantResponse{
		ID:              p.ID,
		DisplayName:     p.DisplayName,
		Active:          p.Active,
		AssignedAgentID: p.AssignedAgentID,
		CreatedAt:       p.CreatedAt,
	}
}
