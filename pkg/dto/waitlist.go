package dto

import (
	"github.com/google/uuid"
	"github.com/timepulse/timepulse-api/internal/models"
)

type JoinWaitlistRequest struct {
	Email        string        `json:"email"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Phone        *string       `json:"phone"`
	SessionToken string        `json:"session_token"`
	BibAlert     bool          `json:"subscribe_to_bib_exchange"`
	Gender       models.Gender `json:"gender"`
}

type JoinWaitlistResponse struct {
	EntryID              uuid.UUID `json:"entry_id"`
	Position             int       `json:"position"`
	EstimatedWaitMinutes int       `json:"estimated_wait_minutes"`
}

type LeaveWaitlistRequest struct {
	SessionToken string `json:"session_token"`
}

type WaitlistSnapshotResponse struct {
	models.CapacitySnapshot
	Available int `json:"available"`
}
