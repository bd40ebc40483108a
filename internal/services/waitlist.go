package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/timepulse/timepulse-api/internal/database"
	"github.com/timepulse/timepulse-api/internal/logger"
	"github.com/timepulse/timepulse-api/internal/models"
)

var (
	ErrAlreadyOnWaitlist     = errors.New("email is already on the waitlist for this race")
	ErrWaitlistEntryNotFound = errors.New("waitlist entry not found")
)

// EstimateWaitMinutes: each pending cart reservation counts 10 minutes, each place in
// the queue up to and including the newcomer counts 5.
func EstimateWaitMinutes(reserved, waitlisted int) int {
	return reserved*10 + (waitlisted+1)*5
}

// CapacityCache caches snapshots between requests. Get returns (nil, nil) on a miss.
type CapacityCache interface {
	Get(ctx context.Context, raceID uuid.UUID) (*models.CapacitySnapshot, error)
	Set(ctx context.Context, snap *models.CapacitySnapshot) error
	Invalidate(ctx context.Context, raceID uuid.UUID) error
}

type WaitlistService struct {
	db    *database.DB
	cache CapacityCache
}

func NewWaitlistService(db *database.DB, cache CapacityCache) *WaitlistService {
	return &WaitlistService{db: db, cache: cache}
}

func (s *WaitlistService) Snapshot(ctx context.Context, raceID uuid.UUID, now time.Time) (*models.CapacitySnapshot, error) {
	if s.cache != nil {
		if snap, err := s.cache.Get(ctx, raceID); err != nil {
			logger.Log.Warn("waitlist snapshot cache read failed", "race_id", raceID, "error", err)
		} else if snap != nil {
			return snap, nil
		}
	}

	snap := models.CapacitySnapshot{RaceID: raceID}
	err := s.db.Pool.QueryRow(ctx, `
		SELECT r.max_participants,
			(SELECT COUNT(*) FROM registrations WHERE race_id = r.id AND status = 'confirmed'),
			(SELECT COUNT(*) FROM cart_reservations WHERE race_id = r.id AND expires_at > $2),
			(SELECT COUNT(*) FROM waitlist_entries WHERE race_id = r.id AND status = 'waiting')
		FROM races r WHERE r.id = $1
	`, raceID, now).Scan(&snap.Capacity, &snap.Confirmed, &snap.Reserved, &snap.Waiting)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load capacity: %w", err)
	}
	snap.EstimatedWaitMinutes = EstimateWaitMinutes(snap.Reserved, snap.Waiting)

	if s.cache != nil {
		if err := s.cache.Set(ctx, &snap); err != nil {
			logger.Log.Warn("waitlist snapshot cache write failed", "race_id", raceID, "error", err)
		}
	}
	return &snap, nil
}

type JoinWaitlistInput struct {
	RaceID       uuid.UUID     `json:"race_id"`
	Email        string        `json:"email" validate:"required,email"`
	FirstName    string        `json:"first_name" validate:"required"`
	LastName     string        `json:"last_name" validate:"required"`
	Phone        *string       `json:"phone,omitempty"`
	SessionToken string        `json:"session_token" validate:"required"`
	BibAlert     bool          `json:"bib_alert"`
	Gender       models.Gender `json:"gender"`
}

type JoinWaitlistResult struct {
	Entry                *models.WaitlistEntry `json:"entry"`
	Position             int                   `json:"position"`
	EstimatedWaitMinutes int                   `json:"estimated_wait_minutes"`
}

// Join appends the visitor to the race's waitlist. Joins on the same race are
// serialized by a row lock on the race so positions stay dense.
func (s *WaitlistService) Join(ctx context.Context, in JoinWaitlistInput, now time.Time) (*JoinWaitlistResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.Gender == "" {
		in.Gender = models.GenderAny
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var eventID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT event_id FROM races WHERE id = $1 FOR UPDATE`, in.RaceID).Scan(&eventID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock race: %w", err)
	}

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM waitlist_entries
			WHERE race_id = $1 AND lower(email) = lower($2) AND status = 'waiting'
		)
	`, in.RaceID, in.Email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check waitlist: %w", err)
	}
	if exists {
		return nil, ErrAlreadyOnWaitlist
	}

	var reserved, waiting int
	err = tx.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM cart_reservations WHERE race_id = $1 AND expires_at > $2),
			(SELECT COUNT(*) FROM waitlist_entries WHERE race_id = $1 AND status = 'waiting')
	`, in.RaceID, now).Scan(&reserved, &waiting)
	if err != nil {
		return nil, fmt.Errorf("failed to count waitlist: %w", err)
	}

	entry := models.WaitlistEntry{
		RaceID:       in.RaceID,
		EventID:      eventID,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		SessionToken: in.SessionToken,
		Position:     waiting + 1,
		Status:       models.WaitlistStatusWaiting,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO waitlist_entries (race_id, event_id, email, first_name, last_name, phone, session_token, position, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, entry.RaceID, entry.EventID, entry.Email, entry.FirstName, entry.LastName, entry.Phone,
		entry.SessionToken, entry.Position, entry.Status).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrAlreadyOnWaitlist
		}
		return nil, fmt.Errorf("failed to insert waitlist entry: %w", err)
	}

	if in.BibAlert {
		_, err = tx.Exec(ctx, `
			INSERT INTO bib_exchange_alerts (event_id, race_id, email, gender)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (event_id, race_id, email) DO UPDATE SET is_active = TRUE, gender = EXCLUDED.gender
		`, eventID, in.RaceID, in.Email, string(in.Gender))
		if err != nil {
			return nil, fmt.Errorf("failed to register bib alert: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.invalidate(ctx, in.RaceID)

	return &JoinWaitlistResult{
		Entry:                &entry,
		Position:             entry.Position,
		EstimatedWaitMinutes: EstimateWaitMinutes(reserved, waiting),
	}, nil
}

// Leave removes an entry; sessionToken must match the one used to join.
func (s *WaitlistService) Leave(ctx context.Context, entryID uuid.UUID, sessionToken string) error {
	var raceID uuid.UUID
	err := s.db.Pool.QueryRow(ctx, `
		UPDATE waitlist_entries SET status = $1
		WHERE id = $2 AND session_token = $3 AND status = $4
		RETURNING race_id
	`, models.WaitlistStatusLeft, entryID, sessionToken, models.WaitlistStatusWaiting).Scan(&raceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrWaitlistEntryNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to leave waitlist: %w", err)
	}

	s.invalidate(ctx, raceID)
	return nil
}

func (s *WaitlistService) invalidate(ctx context.Context, raceID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, raceID); err != nil {
		logger.Log.Warn("waitlist snapshot cache invalidation failed", "race_id", raceID, "error", err)
	}
}
