package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	WaitlistStatusWaiting  = "waiting"
	WaitlistStatusPromoted = "promoted"
	WaitlistStatusLeft     = "left"
)

type WaitlistEntry struct {
	ID           uuid.UUID `json:"id"`
	RaceID       uuid.UUID `json:"race_id"`
	EventID      uuid.UUID `json:"event_id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Phone        *string   `json:"phone,omitempty"`
	SessionToken string    `json:"-"`
	Position     int       `json:"position"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// CapacitySnapshot is a point-in-time view of a race's spots.
type CapacitySnapshot struct {
	RaceID               uuid.UUID `json:"race_id"`
	Capacity             int       `json:"capacity"`
	Confirmed            int       `json:"confirmed"`
	Reserved             int       `json:"reserved"`
	Waiting              int       `json:"waiting"`
	EstimatedWaitMinutes int       `json:"estimated_wait_minutes"`
}

func (s CapacitySnapshot) Available() int {
	if left := s.Capacity - s.Confirmed - s.Reserved; left > 0 {
		return left
	}
	return 0
}
