package models

import (
	"time"

	"github.com/google/uuid"
)

type Organizer struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Email  *string   `json:"email,omitempty"`
}

type Event struct {
	ID          uuid.UUID `json:"id"`
	OrganizerID uuid.UUID `json:"organizer_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Location    string    `json:"location"`
	StartDate   time.Time `json:"start_date"`
	IsPublished bool      `json:"is_published"`
}

type Race struct {
	ID                     uuid.UUID  `json:"id"`
	EventID                uuid.UUID  `json:"event_id"`
	Name                   string     `json:"name"`
	DistanceKm             float64    `json:"distance_km"`
	StartsAt               time.Time  `json:"starts_at"`
	MaxParticipants        int        `json:"max_participants"`
	TeamMinMembers         int        `json:"team_min_members"`
	TeamMaxMembers         int        `json:"team_max_members"`
	TeamModifyDeadlineDays int        `json:"team_modify_deadline_days"`
	WaiverTemplateID       *uuid.UUID `json:"waiver_template_id,omitempty"`
}

// RaceContext is the race -> event -> organizer chain.
type RaceContext struct {
	Race      Race
	Event     Event
	Organizer Organizer
}

const (
	RegistrationStatusConfirmed   = "confirmed"
	RegistrationStatusTransferred = "transferred"
	RegistrationStatusCancelled   = "cancelled"
)

type Registration struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	EventID        uuid.UUID `json:"event_id"`
	RaceID         uuid.UUID `json:"race_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Gender         Gender    `json:"gender"`
	BibNumber      *int      `json:"bib_number,omitempty"`
	PricePaidCents int64     `json:"price_paid_cents"`
	Status         string    `json:"status"`
	RaceStartsAt   time.Time `json:"race_starts_at"`
}
