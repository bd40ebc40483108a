package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/timepulse/timepulse-api/internal/database"
	"github.com/timepulse/timepulse-api/internal/models"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrRaceNotFound  = errors.New("race not found")
)

type EventService struct {
	db *database.DB
}

func NewEventService(db *database.DB) *EventService {
	return &EventService{db: db}
}

func (s *EventService) ListPublished(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, organizer_id, name, slug, location, start_date, is_published
		FROM events
		WHERE is_published = TRUE
		ORDER BY start_date ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.OrganizerID, &e.Name, &e.Slug, &e.Location, &e.StartDate, &e.IsPublished); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetRaceContext loads the race together with its event and organizer.
func (s *EventService) GetRaceContext(ctx context.Context, raceID uuid.UUID) (*models.RaceContext, error) {
	var rc models.RaceContext
	err := s.db.Pool.QueryRow(ctx, `
		SELECT r.id, r.event_id, r.name, r.distance_km::float8, r.starts_at, r.max_participants,
		       r.team_min_members, r.team_max_members, r.team_modify_deadline_days, r.waiver_template_id,
		       e.id, e.organizer_id, e.name, e.slug, e.location, e.start_date, e.is_published,
		       o.id, o.user_id, o.name, o.email
		FROM races r
		JOIN events e ON e.id = r.event_id
		JOIN organizers o ON o.id = e.organizer_id
		WHERE r.id = $1
	`, raceID).Scan(
		&rc.Race.ID, &rc.Race.EventID, &rc.Race.Name, &rc.Race.DistanceKm, &rc.Race.StartsAt, &rc.Race.MaxParticipants,
		&rc.Race.TeamMinMembers, &rc.Race.TeamMaxMembers, &rc.Race.TeamModifyDeadlineDays, &rc.Race.WaiverTemplateID,
		&rc.Event.ID, &rc.Event.OrganizerID, &rc.Event.Name, &rc.Event.Slug, &rc.Event.Location, &rc.Event.StartDate, &rc.Event.IsPublished,
		&rc.Organizer.ID, &rc.Organizer.UserID, &rc.Organizer.Name, &rc.Organizer.Email,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load race context: %w", err)
	}
	return &rc, nil
}

// IsOrganizer reports whether userID owns the organizer account behind eventID.
func (s *EventService) IsOrganizer(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM events e
			JOIN organizers o ON o.id = e.organizer_id
			WHERE e.id = $1 AND o.user_id = $2
		)
	`, eventID, userID).Scan(&exists)
	return exists, err
}

// IsRaceOrganizer is IsOrganizer keyed by race.
func (s *EventService) IsRaceOrganizer(ctx context.Context, raceID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM races r
			JOIN events e ON e.id = r.event_id
			JOIN organizers o ON o.id = e.organizer_id
			WHERE r.id = $1 AND o.user_id = $2
		)
	`, raceID, userID).Scan(&exists)
	return exists, err
}
