package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/timepulse/timepulse-api/internal/models"
)

type CreateTeamRequest struct {
	RaceID       uuid.UUID `json:"race_id"`
	Name         string    `json:"name"`
	TeamType     string    `json:"team_type"`
	CaptainEmail string    `json:"captain_email"`
	CaptainPhone string    `json:"captain_phone"`
	PaymentMode  string    `json:"payment_mode"`
}

type CreateTeamResponse struct {
	Team                 *models.Team `json:"team"`
	InvitationCode       string       `json:"invitation_code"`
	InvitationExpiresAt  time.Time    `json:"invitation_expires_at"`
	RedirectAfterSeconds int          `json:"redirect_after_seconds"`
}

type JoinTeamRequest struct {
	Code string `json:"code"`
}

type JoinTeamResponse struct {
	Team                 *models.Team       `json:"team"`
	Member               *models.TeamMember `json:"member"`
	RedirectAfterSeconds int                `json:"redirect_after_seconds"`
}
