package handlers

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/timepulse/timepulse-api/internal/models"
	"github.com/timepulse/timepulse-api/internal/oauth"
	"github.com/timepulse/timepulse-api/internal/services"
	"github.com/timepulse/timepulse-api/internal/sse"
	"github.com/timepulse/timepulse-api/internal/storage"
)

// UserServiceInterface defines the methods used by handlers from UserService
type UserServiceInterface interface {
	FindOrCreateFromOAuth(ctx context.Context, info *oauth.UserInfo) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, name string) (*models.User, error)
}

// SessionServiceInterface defines the methods used by handlers from SessionService
type SessionServiceInterface interface {
	Store(ctx context.Context, userID uuid.UUID, tokenHash string, meta services.SessionMeta, expiresAt time.Time) error
	Validate(ctx context.Context, tokenHash string) (uuid.UUID, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAll(ctx context.Context, userID uuid.UUID) error
	List(ctx context.Context, limit int, userID *uuid.UUID) ([]models.LoginSession, error)
}

// JWTServiceInterface defines the methods used by handlers from JWTService
type JWTServiceInterface interface {
	GenerateTokenPair(userID uuid.UUID, email, globalRole string) (*services.TokenPair, error)
	ValidateRefreshToken(token string) (uuid.UUID, error)
	RefreshExpiry() time.Duration
}

// EventServiceInterface defines the methods used by handlers from EventService
type EventServiceInterface interface {
	ListPublished(ctx context.Context, limit int) ([]models.Event, error)
	IsOrganizer(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
	IsRaceOrganizer(ctx context.Context, raceID, userID uuid.UUID) (bool, error)
}

// BibExchangeServiceInterface defines the methods used by handlers from BibExchangeService
type BibExchangeServiceInterface interface {
	GetSettings(ctx context.Context, eventID uuid.UUID) (*models.BibExchangeSettings, error)
	UpsertSettings(ctx context.Context, st *models.BibExchangeSettings) (*models.BibExchangeSettings, error)
	CreateListing(ctx context.Context, sellerID, registrationID uuid.UUID, now time.Time) (*models.BibListing, error)
	GetListing(ctx context.Context, listingID uuid.UUID) (*models.BibListing, error)
	CancelListing(ctx context.Context, listingID uuid.UUID, now time.Time) (*models.BibListing, error)
	CompleteTransfer(ctx context.Context, in services.CompleteTransferInput, now time.Time) (*models.BibExchangeTransfer, error)
	ListListings(ctx context.Context, eventID uuid.UUID, status string) ([]models.BibListing, error)
	ListTransfers(ctx context.Context, eventID uuid.UUID) ([]models.BibExchangeTransfer, error)
	Stats(ctx context.Context, eventID uuid.UUID) (*services.ExchangeStats, error)
}

// AlertRetrierInterface defines the methods used by handlers from AlertDispatcher
type AlertRetrierInterface interface {
	RetryFailed(ctx context.Context, listing *models.BibListing) (*services.DispatchResult, error)
	Deliveries(ctx context.Context, listingID uuid.UUID) ([]models.AlertDelivery, error)
}

// WaitlistServiceInterface defines the methods used by handlers from WaitlistService
type WaitlistServiceInterface interface {
	Snapshot(ctx context.Context, raceID uuid.UUID, now time.Time) (*models.CapacitySnapshot, error)
	Join(ctx context.Context, in services.JoinWaitlistInput, now time.Time) (*services.JoinWaitlistResult, error)
	Leave(ctx context.Context, entryID uuid.UUID, sessionToken string) error
}

// TeamServiceInterface defines the methods used by handlers from TeamService
type TeamServiceInterface interface {
	Create(ctx context.Context, in services.CreateTeamInput, now time.Time) (*services.CreateTeamResult, error)
	JoinByCode(ctx context.Context, code string, userID uuid.UUID, now time.Time) (*services.JoinTeamResult, error)
	Dashboard(ctx context.Context, teamID, viewerID uuid.UUID, now time.Time) (*services.TeamDashboard, error)
	IsMember(ctx context.Context, teamID, userID uuid.UUID) (bool, error)
	RemoveMember(ctx context.Context, teamID, memberID, actorID uuid.UUID, now time.Time) error
}

// InvitationMailerInterface defines the methods used by handlers from InvitationMailer
type InvitationMailerInterface interface {
	SendTeamInvitation(ctx context.Context, team *models.Team, inv *models.TeamInvitation) error
}

// WaiverServiceInterface defines the methods used by handlers from WaiverService
type WaiverServiceInterface interface {
	Preview(ctx context.Context, raceID uuid.UUID, content string) (string, error)
	Save(ctx context.Context, raceID uuid.UUID, draft services.WaiverDraft, authorID uuid.UUID) (*models.WaiverTemplate, error)
	GetActive(ctx context.Context, raceID uuid.UUID) (*models.WaiverTemplate, error)
	Accept(ctx context.Context, in services.AcceptWaiverInput, now time.Time) (*models.WaiverAcceptance, error)
}

// EmailTemplateServiceInterface defines the methods used by handlers from EmailTemplateService
type EmailTemplateServiceInterface interface {
	List(ctx context.Context) ([]models.EmailTemplate, error)
	Update(ctx context.Context, id uuid.UUID, in services.UpdateEmailTemplateInput, updatedBy uuid.UUID) (*models.EmailTemplate, error)
	Duplicate(ctx context.Context, id uuid.UUID, updatedBy uuid.UUID) (*models.EmailTemplate, error)
}

// ActivityServiceInterface defines the methods used by handlers from ActivityService
type ActivityServiceInterface interface {
	Log(ctx context.Context, userID *uuid.UUID, module, action string, details any)
	List(ctx context.Context, f services.ActivityFilter) ([]models.ActivityLog, error)
}

// AssetServiceInterface defines the methods used by handlers from AssetService
type AssetServiceInterface interface {
	Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (*storage.Object, error)
	List(ctx context.Context) ([]storage.Object, error)
	Delete(ctx context.Context, key string) error
}

// HubInterface defines the methods used by handlers from the Hub
type HubInterface interface {
	Register(client *sse.Client)
	Unregister(client *sse.Client)
}
