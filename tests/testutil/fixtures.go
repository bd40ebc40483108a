package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/timepulse/timepulse-api/internal/database"
	"github.com/timepulse/timepulse-api/internal/models"
	"github.com/timepulse/timepulse-api/internal/oauth"
)

// Fixtures provides factory methods for creating test data
type Fixtures struct {
	db      *database.DB
	counter int
}

// NewFixtures creates a new fixtures factory
func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db}
}

// CreateUser creates a test user with default values
func (f *Fixtures) CreateUser(t *testing.T, opts ...UserOption) *models.User {
	t.Helper()
	f.counter++

	user := &models.User{
		Email:      fmt.Sprintf("user%d@example.com", f.counter),
		Name:       fmt.Sprintf("Test User %d", f.counter),
		Provider:   "google",
		ProviderID: fmt.Sprintf("provider-%d", f.counter),
	}

	for _, opt := range opts {
		opt(user)
	}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO users (email, name, avatar_url, provider, provider_id, global_role)
		VALUES ($1, $2, $3, $4, $5, COALESCE(NULLIF($6, ''), 'user'))
		RETURNING id, email, name, avatar_url, provider, provider_id, global_role, created_at, updated_at
	`, user.Email, user.Name, user.AvatarURL, user.Provider, user.ProviderID, user.GlobalRole).Scan(
		&user.ID, &user.Email, &user.Name, &user.AvatarURL,
		&user.Provider, &user.ProviderID, &user.GlobalRole, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user
}

// UserOption configures a test user
type UserOption func(*models.User)

// WithEmail sets the user's email
func WithEmail(email string) UserOption {
	return func(u *models.User) {
		u.Email = email
	}
}

// WithName sets the user's name
func WithName(name string) UserOption {
	return func(u *models.User) {
		u.Name = name
	}
}

// WithProvider sets the user's OAuth provider
func WithProvider(provider, providerID string) UserOption {
	return func(u *models.User) {
		u.Provider = provider
		u.ProviderID = providerID
	}
}

// WithAvatar sets the user's avatar URL
func WithAvatar(url string) UserOption {
	return func(u *models.User) {
		u.AvatarURL = &url
	}
}

// WithGlobalRole sets the user's platform role
func WithGlobalRole(role string) UserOption {
	return func(u *models.User) {
		u.GlobalRole = role
	}
}

// CreateRace creates an organizer owned by owner, a published event and one race
// starting 60 days out.
func (f *Fixtures) CreateRace(t *testing.T, owner *models.User, opts ...RaceOption) *models.RaceContext {
	t.Helper()
	f.counter++

	rc := &models.RaceContext{
		Organizer: models.Organizer{UserID: owner.ID, Name: fmt.Sprintf("Organizer %d", f.counter)},
		Event: models.Event{
			Name:        fmt.Sprintf("Trail Event %d", f.counter),
			Slug:        fmt.Sprintf("trail-event-%d", f.counter),
			Location:    "Annecy",
			StartDate:   time.Now().AddDate(0, 0, 60).Truncate(24 * time.Hour),
			IsPublished: true,
		},
		Race: models.Race{
			Name:                   fmt.Sprintf("Race %d", f.counter),
			DistanceKm:             21.1,
			StartsAt:               time.Now().AddDate(0, 0, 60).Truncate(time.Second),
			MaxParticipants:        100,
			TeamMinMembers:         2,
			TeamMaxMembers:         4,
			TeamModifyDeadlineDays: 7,
		},
	}

	for _, opt := range opts {
		opt(rc)
	}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO organizers (user_id, name) VALUES ($1, $2) RETURNING id
	`, rc.Organizer.UserID, rc.Organizer.Name).Scan(&rc.Organizer.ID)
	if err != nil {
		t.Fatalf("failed to create organizer: %v", err)
	}

	rc.Event.OrganizerID = rc.Organizer.ID
	err = f.db.Pool.QueryRow(ctx, `
		INSERT INTO events (organizer_id, name, slug, location, start_date, is_published)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id
	`, rc.Event.OrganizerID, rc.Event.Name, rc.Event.Slug, rc.Event.Location, rc.Event.StartDate, rc.Event.IsPublished).Scan(&rc.Event.ID)
	if err != nil {
		t.Fatalf("failed to create event: %v", err)
	}

	rc.Race.EventID = rc.Event.ID
	err = f.db.Pool.QueryRow(ctx, `
		INSERT INTO races (event_id, name, distance_km, starts_at, max_participants,
			team_min_members, team_max_members, team_modify_deadline_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id
	`, rc.Race.EventID, rc.Race.Name, rc.Race.DistanceKm, rc.Race.StartsAt, rc.Race.MaxParticipants,
		rc.Race.TeamMinMembers, rc.Race.TeamMaxMembers, rc.Race.TeamModifyDeadlineDays).Scan(&rc.Race.ID)
	if err != nil {
		t.Fatalf("failed to create race: %v", err)
	}

	return rc
}

// RaceOption configures a test race chain
type RaceOption func(*models.RaceContext)

// WithCapacity sets the race's participant cap
func WithCapacity(n int) RaceOption {
	return func(rc *models.RaceContext) {
		rc.Race.MaxParticipants = n
	}
}

// WithTeamSize sets the race's team bounds
func WithTeamSize(minMembers, maxMembers int) RaceOption {
	return func(rc *models.RaceContext) {
		rc.Race.TeamMinMembers = minMembers
		rc.Race.TeamMaxMembers = maxMembers
	}
}

// CreateRegistration registers user on the race with a confirmed entry
func (f *Fixtures) CreateRegistration(t *testing.T, rc *models.RaceContext, user *models.User, gender models.Gender, priceCents int64) *models.Registration {
	t.Helper()
	f.counter++

	bib := 100 + f.counter
	reg := &models.Registration{
		UserID:         user.ID,
		EventID:        rc.Event.ID,
		RaceID:         rc.Race.ID,
		FirstName:      "Camille",
		LastName:       fmt.Sprintf("Runner%d", f.counter),
		Gender:         gender,
		BibNumber:      &bib,
		PricePaidCents: priceCents,
		Status:         models.RegistrationStatusConfirmed,
		RaceStartsAt:   rc.Race.StartsAt,
	}

	err := f.db.Pool.QueryRow(context.Background(), `
		INSERT INTO registrations (user_id, event_id, race_id, first_name, last_name, gender, bib_number, price_paid_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id
	`, reg.UserID, reg.EventID, reg.RaceID, reg.FirstName, reg.LastName, string(reg.Gender),
		reg.BibNumber, reg.PricePaidCents, reg.Status).Scan(&reg.ID)
	if err != nil {
		t.Fatalf("failed to create registration: %v", err)
	}

	return reg
}

// EnableBibExchange opens the event's bib exchange with the given fee
func (f *Fixtures) EnableBibExchange(t *testing.T, eventID uuid.UUID, feeCents int64) {
	t.Helper()

	_, err := f.db.Pool.Exec(context.Background(), `
		INSERT INTO bib_exchange_settings (event_id, is_enabled, timepulse_fee_cents)
		VALUES ($1, TRUE, $2)
		ON CONFLICT (event_id) DO UPDATE SET is_enabled = TRUE, timepulse_fee_cents = EXCLUDED.timepulse_fee_cents
	`, eventID, feeCents)
	if err != nil {
		t.Fatalf("failed to enable bib exchange: %v", err)
	}
}

// CreateReservation holds a cart spot on the race until expiresAt
func (f *Fixtures) CreateReservation(t *testing.T, raceID uuid.UUID, expiresAt time.Time) {
	t.Helper()

	_, err := f.db.Pool.Exec(context.Background(), `
		INSERT INTO cart_reservations (race_id, session_token, expires_at) VALUES ($1, $2, $3)
	`, raceID, uuid.NewString(), expiresAt)
	if err != nil {
		t.Fatalf("failed to create reservation: %v", err)
	}
}

// CreateLoginSession stores a refresh token hash for userID
func (f *Fixtures) CreateLoginSession(t *testing.T, userID uuid.UUID, tokenHash string, expiresAt time.Time) {
	t.Helper()

	_, err := f.db.Pool.Exec(context.Background(), `
		INSERT INTO login_sessions (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, userID, tokenHash, expiresAt)
	if err != nil {
		t.Fatalf("failed to create login session: %v", err)
	}
}

// OAuthUserInfo creates test OAuth user info
func OAuthUserInfo(email, name, provider, id string) *oauth.UserInfo {
	return &oauth.UserInfo{
		Email:     email,
		Name:      name,
		AvatarURL: "https://example.com/avatar.png",
		ID:        id,
		Provider:  provider,
	}
}
