package testutil

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/timepulse/timepulse-api/internal/models"
	"github.com/timepulse/timepulse-api/internal/oauth"
	"github.com/timepulse/timepulse-api/internal/services"
	"github.com/timepulse/timepulse-api/internal/sse"
	"github.com/timepulse/timepulse-api/internal/storage"
)

// MockUserService mocks the UserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) FindOrCreateFromOAuth(ctx context.Context, info *oauth.UserInfo) (*models.User, error) {
	args := m.Called(ctx, info)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Update(ctx context.Context, id uuid.UUID, name string) (*models.User, error) {
	args := m.Called(ctx, id, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockSessionService mocks the SessionService
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Store(ctx context.Context, userID uuid.UUID, tokenHash string, meta services.SessionMeta, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tokenHash, meta, expiresAt)
	return args.Error(0)
}

func (m *MockSessionService) Validate(ctx context.Context, tokenHash string) (uuid.UUID, error) {
	args := m.Called(ctx, tokenHash)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockSessionService) Revoke(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *MockSessionService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSessionService) List(ctx context.Context, limit int, userID *uuid.UUID) ([]models.LoginSession, error) {
	args := m.Called(ctx, limit, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LoginSession), args.Error(1)
}

// MockJWTService mocks the JWTService
type MockJWTService struct {
	mock.Mock
}

func (m *MockJWTService) GenerateTokenPair(userID uuid.UUID, email, globalRole string) (*services.TokenPair, error) {
	args := m.Called(userID, email, globalRole)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TokenPair), args.Error(1)
}

func (m *MockJWTService) ValidateRefreshToken(token string) (uuid.UUID, error) {
	args := m.Called(token)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockJWTService) RefreshExpiry() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

// MockEventService mocks the EventService
type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) ListPublished(ctx context.Context, limit int) ([]models.Event, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockEventService) IsOrganizer(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEventService) IsRaceOrganizer(ctx context.Context, raceID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, raceID, userID)
	return args.Bool(0), args.Error(1)
}

// MockBibExchangeService mocks the BibExchangeService
type MockBibExchangeService struct {
	mock.Mock
}

func (m *MockBibExchangeService) GetSettings(ctx context.Context, eventID uuid.UUID) (*models.BibExchangeSettings, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BibExchangeSettings), args.Error(1)
}

func (m *MockBibExchangeService) UpsertSettings(ctx context.Context, st *models.BibExchangeSettings) (*models.BibExchangeSettings, error) {
	args := m.Called(ctx, st)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BibExchangeSettings), args.Error(1)
}

func (m *MockBibExchangeService) CreateListing(ctx context.Context, sellerID, registrationID uuid.UUID, now time.Time) (*models.BibListing, error) {
	args := m.Called(ctx, sellerID, registrationID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BibListing), args.Error(1)
}

func (m *MockBibExchangeService) GetListing(ctx context.Context, listingID uuid.UUID) (*models.BibListing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BibListing), args.Error(1)
}

func (m *MockBibExchangeService) CancelListing(ctx context.Context, listingID uuid.UUID, now time.Time) (*models.BibListing, error) {
	args := m.Called(ctx, listingID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BibListing), args.Error(1)
}

func (m *MockBibExchangeService) CompleteTransfer(ctx context.Context, in services.CompleteTransferInput, now time.Time) (*models.BibExchangeTransfer, error) {
	args := m.Called(ctx, in, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BibExchangeTransfer), args.Error(1)
}

func (m *MockBibExchangeService) ListListings(ctx context.Context, eventID uuid.UUID, status string) ([]models.BibListing, error) {
	args := m.Called(ctx, eventID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BibListing), args.Error(1)
}

func (m *MockBibExchangeService) ListTransfers(ctx context.Context, eventID uuid.UUID) ([]models.BibExchangeTransfer, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BibExchangeTransfer), args.Error(1)
}

func (m *MockBibExchangeService) Stats(ctx context.Context, eventID uuid.UUID) (*services.ExchangeStats, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ExchangeStats), args.Error(1)
}

// MockAlertRetrier mocks the AlertDispatcher retry path
type MockAlertRetrier struct {
	mock.Mock
}

func (m *MockAlertRetrier) RetryFailed(ctx context.Context, listing *models.BibListing) (*services.DispatchResult, error) {
	args := m.Called(ctx, listing)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DispatchResult), args.Error(1)
}

func (m *MockAlertRetrier) Deliveries(ctx context.Context, listingID uuid.UUID) ([]models.AlertDelivery, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AlertDelivery), args.Error(1)
}

// MockWaitlistService mocks the WaitlistService
type MockWaitlistService struct {
	mock.Mock
}

func (m *MockWaitlistService) Snapshot(ctx context.Context, raceID uuid.UUID, now time.Time) (*models.CapacitySnapshot, error) {
	args := m.Called(ctx, raceID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CapacitySnapshot), args.Error(1)
}

func (m *MockWaitlistService) Join(ctx context.Context, in services.JoinWaitlistInput, now time.Time) (*services.JoinWaitlistResult, error) {
	args := m.Called(ctx, in, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.JoinWaitlistResult), args.Error(1)
}

func (m *MockWaitlistService) Leave(ctx context.Context, entryID uuid.UUID, sessionToken string) error {
	args := m.Called(ctx, entryID, sessionToken)
	return args.Error(0)
}

// MockTeamService mocks the TeamService
type MockTeamService struct {
	mock.Mock
}

func (m *MockTeamService) Create(ctx context.Context, in services.CreateTeamInput, now time.Time) (*services.CreateTeamResult, error) {
	args := m.Called(ctx, in, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CreateTeamResult), args.Error(1)
}

func (m *MockTeamService) JoinByCode(ctx context.Context, code string, userID uuid.UUID, now time.Time) (*services.JoinTeamResult, error) {
	args := m.Called(ctx, code, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.JoinTeamResult), args.Error(1)
}

func (m *MockTeamService) Dashboard(ctx context.Context, teamID, viewerID uuid.UUID, now time.Time) (*services.TeamDashboard, error) {
	args := m.Called(ctx, teamID, viewerID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TeamDashboard), args.Error(1)
}

func (m *MockTeamService) IsMember(ctx context.Context, teamID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, teamID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTeamService) RemoveMember(ctx context.Context, teamID, memberID, actorID uuid.UUID, now time.Time) error {
	args := m.Called(ctx, teamID, memberID, actorID, now)
	return args.Error(0)
}

// MockInvitationMailer mocks the InvitationMailer
type MockInvitationMailer struct {
	mock.Mock
}

func (m *MockInvitationMailer) SendTeamInvitation(ctx context.Context, team *models.Team, inv *models.TeamInvitation) error {
	args := m.Called(ctx, team, inv)
	return args.Error(0)
}

// MockWaiverService mocks the WaiverService
type MockWaiverService struct {
	mock.Mock
}

func (m *MockWaiverService) Preview(ctx context.Context, raceID uuid.UUID, content string) (string, error) {
	args := m.Called(ctx, raceID, content)
	return args.String(0), args.Error(1)
}

func (m *MockWaiverService) Save(ctx context.Context, raceID uuid.UUID, draft services.WaiverDraft, authorID uuid.UUID) (*models.WaiverTemplate, error) {
	args := m.Called(ctx, raceID, draft, authorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WaiverTemplate), args.Error(1)
}

func (m *MockWaiverService) GetActive(ctx context.Context, raceID uuid.UUID) (*models.WaiverTemplate, error) {
	args := m.Called(ctx, raceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WaiverTemplate), args.Error(1)
}

func (m *MockWaiverService) Accept(ctx context.Context, in services.AcceptWaiverInput, now time.Time) (*models.WaiverAcceptance, error) {
	args := m.Called(ctx, in, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WaiverAcceptance), args.Error(1)
}

// MockEmailTemplateService mocks the EmailTemplateService
type MockEmailTemplateService struct {
	mock.Mock
}

func (m *MockEmailTemplateService) List(ctx context.Context) ([]models.EmailTemplate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EmailTemplate), args.Error(1)
}

func (m *MockEmailTemplateService) Update(ctx context.Context, id uuid.UUID, in services.UpdateEmailTemplateInput, updatedBy uuid.UUID) (*models.EmailTemplate, error) {
	args := m.Called(ctx, id, in, updatedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailTemplate), args.Error(1)
}

func (m *MockEmailTemplateService) Duplicate(ctx context.Context, id uuid.UUID, updatedBy uuid.UUID) (*models.EmailTemplate, error) {
	args := m.Called(ctx, id, updatedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailTemplate), args.Error(1)
}

// MockActivityService mocks the ActivityService. Log is recorded but never
// needs an expectation.
type MockActivityService struct {
	mock.Mock
	Logged []string
}

func (m *MockActivityService) Log(ctx context.Context, userID *uuid.UUID, module, action string, details any) {
	m.Logged = append(m.Logged, module+"."+action)
}

func (m *MockActivityService) List(ctx context.Context, f services.ActivityFilter) ([]models.ActivityLog, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ActivityLog), args.Error(1)
}

// MockAssetService mocks the AssetService
type MockAssetService struct {
	mock.Mock
}

func (m *MockAssetService) Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (*storage.Object, error) {
	args := m.Called(ctx, filename, contentType, size, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Object), args.Error(1)
}

func (m *MockAssetService) List(ctx context.Context) ([]storage.Object, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Object), args.Error(1)
}

func (m *MockAssetService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockSSEHub mocks the realtime Hub
type MockSSEHub struct {
	mock.Mock
}

func (m *MockSSEHub) Register(client *sse.Client) {
	m.Called(client)
}

func (m *MockSSEHub) Unregister(client *sse.Client) {
	m.Called(client)
}
