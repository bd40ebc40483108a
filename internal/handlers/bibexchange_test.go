package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	driftmw "github.com/m1z23r/drift/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/timepulse/timepulse-api/internal/middleware"
	"github.com/timepulse/timepulse-api/internal/models"
	"github.com/timepulse/timepulse-api/internal/services"
	"github.com/timepulse/timepulse-api/pkg/dto"
	"github.com/timepulse/timepulse-api/tests/testutil"
)

type bibTest struct {
	bib      *testutil.MockBibExchangeService
	alerts   *testutil.MockAlertRetrier
	events   *testutil.MockEventService
	activity *testutil.MockActivityService
	jwtSvc   *services.JWTService
	app      http.Handler
}

func setupBibExchangeTest(t *testing.T) *bibTest {
	t.Helper()
	bt := &bibTest{
		bib:      new(testutil.MockBibExchangeService),
		alerts:   new(testutil.MockAlertRetrier),
		events:   new(testutil.MockEventService),
		activity: new(testutil.MockActivityService),
		jwtSvc:   newTestJWTService(),
	}
	handler := NewBibExchangeHandler(bt.bib, bt.alerts, bt.events, bt.activity)
	handler.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Post("/internal/bib-exchange/transfers", handler.CompleteTransfer)

	authed := drift.New()
	authed.Use(driftmw.BodyParser())
	authed.Use(middleware.Auth(bt.jwtSvc))
	authed.Post("/bib-exchange/listings", handler.CreateListing)
	authed.Delete("/bib-exchange/listings/:listingId", handler.CancelListing)
	authed.Get("/organizer/events/:eventId/bib-exchange/settings", handler.GetSettings)
	authed.Put("/organizer/events/:eventId/bib-exchange/settings", handler.UpdateSettings)
	authed.Get("/organizer/events/:eventId/bib-exchange/listings", handler.ListListings)
	authed.Get("/organizer/events/:eventId/bib-exchange/transfers", handler.ListTransfers)
	authed.Get("/organizer/events/:eventId/bib-exchange/stats", handler.Stats)
	authed.Get("/organizer/events/:eventId/bib-exchange/listings/:listingId/alerts", handler.AlertDeliveries)
	authed.Post("/organizer/events/:eventId/bib-exchange/listings/:listingId/alerts/retry", handler.RetryAlerts)

	bt.app = &splitApp{public: app, authed: authed}
	return bt
}

// splitApp sends the internal route to the unauthenticated app.
type splitApp struct {
	public http.Handler
	authed http.Handler
}

func (s *splitApp) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/internal/bib-exchange/transfers" {
		s.public.ServeHTTP(w, r)
		return
	}
	s.authed.ServeHTTP(w, r)
}

func TestBibExchangeHandler_CreateListing_Success(t *testing.T) {
	bt := setupBibExchangeTest(t)
	sellerID, regID := uuid.New(), uuid.New()
	bib := 1042

	bt.bib.On("CreateListing", mock.Anything, sellerID, regID, time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)).Return(&models.BibListing{
		ID:                 uuid.New(),
		RegistrationID:     regID,
		SellerUserID:       sellerID,
		BibNumber:          &bib,
		OriginalPriceCents: 4500,
		SalePriceCents:     4500,
		SellerRefundCents:  4000,
		Status:             models.ListingStatusAvailable,
	}, nil)

	rec := doJSON(bt.app, http.MethodPost, "/bib-exchange/listings", dto.CreateListingRequest{RegistrationID: regID},
		generateTestToken(t, bt.jwtSvc, sellerID, "seller@example.com"))

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp dto.ListingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1042", resp.BibLabel)
	assert.Equal(t, "45.00 €", resp.SalePriceLabel)
	assert.Equal(t, "40.00 €", resp.SellerRefundLabel)
	bt.bib.AssertExpectations(t)
}

func TestBibExchangeHandler_CreateListing_UnassignedBib(t *testing.T) {
	bt := setupBibExchangeTest(t)

	bt.bib.On("CreateListing", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&models.BibListing{ID: uuid.New(), SalePriceCents: 3000}, nil)

	rec := doJSON(bt.app, http.MethodPost, "/bib-exchange/listings", dto.CreateListingRequest{RegistrationID: uuid.New()},
		generateTestToken(t, bt.jwtSvc, uuid.New(), "seller@example.com"))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), services.UnassignedBibLabel)
}

func TestBibExchangeHandler_CreateListing_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"already listed", services.ErrListingAlreadyExists, http.StatusConflict, "listing_exists"},
		{"disabled", services.ErrBibExchangeDisabled, http.StatusUnprocessableEntity, "not_transferable"},
		{"not open", services.ErrTransferNotOpen, http.StatusUnprocessableEntity, "not_transferable"},
		{"deadline", services.ErrTransferDeadlinePassed, http.StatusUnprocessableEntity, "not_transferable"},
		{"not transferable", services.ErrRegistrationNotTransferable, http.StatusUnprocessableEntity, "not_transferable"},
		{"unknown registration", services.ErrRegistrationNotFound, http.StatusNotFound, ""},
		{"database", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bt := setupBibExchangeTest(t)
			bt.bib.On("CreateListing", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := doJSON(bt.app, http.MethodPost, "/bib-exchange/listings", dto.CreateListingRequest{RegistrationID: uuid.New()},
				generateTestToken(t, bt.jwtSvc, uuid.New(), "seller@example.com"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				var resp dto.ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantCode, resp.Error)
			}
		})
	}
}

func TestBibExchangeHandler_CreateListing_MissingRegistration(t *testing.T) {
	bt := setupBibExchangeTest(t)

	rec := doJSON(bt.app, http.MethodPost, "/bib-exchange/listings", map[string]string{},
		generateTestToken(t, bt.jwtSvc, uuid.New(), "seller@example.com"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "registration_id is required")
}

func TestBibExchangeHandler_CancelListing(t *testing.T) {
	bt := setupBibExchangeTest(t)
	sellerID, listingID := uuid.New(), uuid.New()
	listing := &models.BibListing{ID: listingID, SellerUserID: sellerID, Status: models.ListingStatusAvailable}
	cancelled := *listing
	cancelled.Status = models.ListingStatusCancelled

	bt.bib.On("GetListing", mock.Anything, listingID).Return(listing, nil)
	bt.bib.On("CancelListing", mock.Anything, listingID, mock.Anything).Return(&cancelled, nil)

	rec := doJSON(bt.app, http.MethodDelete, "/bib-exchange/listings/"+listingID.String(), nil,
		generateTestToken(t, bt.jwtSvc, sellerID, "seller@example.com"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)
	bt.bib.AssertExpectations(t)
}

func TestBibExchangeHandler_CancelListing_ByOrganizer(t *testing.T) {
	bt := setupBibExchangeTest(t)
	orgID, eventID, listingID := uuid.New(), uuid.New(), uuid.New()
	listing := &models.BibListing{ID: listingID, EventID: eventID, SellerUserID: uuid.New(), Status: models.ListingStatusAvailable}
	cancelled := *listing
	cancelled.Status = models.ListingStatusCancelled

	bt.bib.On("GetListing", mock.Anything, listingID).Return(listing, nil)
	bt.events.On("IsOrganizer", mock.Anything, eventID, orgID).Return(true, nil)
	bt.bib.On("CancelListing", mock.Anything, listingID, mock.Anything).Return(&cancelled, nil)

	rec := doJSON(bt.app, http.MethodDelete, "/bib-exchange/listings/"+listingID.String(), nil,
		generateTestToken(t, bt.jwtSvc, orgID, "orga@example.com"))

	require.Equal(t, http.StatusOK, rec.Code)
	bt.events.AssertExpectations(t)
}

func TestBibExchangeHandler_CancelListing_NotSeller(t *testing.T) {
	bt := setupBibExchangeTest(t)
	userID, eventID, listingID := uuid.New(), uuid.New(), uuid.New()

	bt.bib.On("GetListing", mock.Anything, listingID).Return(&models.BibListing{ID: listingID, EventID: eventID, SellerUserID: uuid.New()}, nil)
	bt.events.On("IsOrganizer", mock.Anything, eventID, userID).Return(false, nil)

	rec := doJSON(bt.app, http.MethodDelete, "/bib-exchange/listings/"+listingID.String(), nil,
		generateTestToken(t, bt.jwtSvc, userID, "someone@example.com"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	bt.bib.AssertNotCalled(t, "CancelListing", mock.Anything, mock.Anything, mock.Anything)
}

func TestBibExchangeHandler_CancelListing_AlreadySold(t *testing.T) {
	bt := setupBibExchangeTest(t)
	sellerID, listingID := uuid.New(), uuid.New()

	bt.bib.On("GetListing", mock.Anything, listingID).Return(&models.BibListing{ID: listingID, SellerUserID: sellerID}, nil)
	bt.bib.On("CancelListing", mock.Anything, listingID, mock.Anything).Return(nil, services.ErrListingNotAvailable)

	rec := doJSON(bt.app, http.MethodDelete, "/bib-exchange/listings/"+listingID.String(), nil,
		generateTestToken(t, bt.jwtSvc, sellerID, "seller@example.com"))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBibExchangeHandler_GetSettings_Defaults(t *testing.T) {
	bt := setupBibExchangeTest(t)
	orgID, eventID := uuid.New(), uuid.New()

	bt.events.On("IsOrganizer", mock.Anything, eventID, orgID).Return(true, nil)
	bt.bib.On("GetSettings", mock.Anything, eventID).Return(nil, services.ErrSettingsNotFound)

	rec := doJSON(bt.app, http.MethodGet, "/organizer/events/"+eventID.String()+"/bib-exchange/settings", nil,
		generateTestToken(t, bt.jwtSvc, orgID, "org@example.com"))

	require.Equal(t, http.StatusOK, rec.Code)
	var settings models.BibExchangeSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, eventID, settings.EventID)
	assert.False(t, settings.IsEnabled)
}

func TestBibExchangeHandler_UpdateSettings(t *testing.T) {
	bt := setupBibExchangeTest(t)
	orgID, eventID := uuid.New(), uuid.New()
	opens := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	deadline := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	bt.events.On("IsOrganizer", mock.Anything, eventID, orgID).Return(true, nil)
	bt.bib.On("UpsertSettings", mock.Anything, mock.MatchedBy(func(s *models.BibExchangeSettings) bool {
		return s.EventID == eventID && s.IsEnabled && s.TimepulseFeeCents == 500 && s.RulesText == "Pas de revente au-dessus du prix."
	})).Return(&models.BibExchangeSettings{EventID: eventID, IsEnabled: true, TimepulseFeeCents: 500}, nil)

	rec := doJSON(bt.app, http.MethodPut, "/organizer/events/"+eventID.String()+"/bib-exchange/settings", dto.SettingsRequest{
		IsEnabled:         true,
		TransferOpensAt:   &opens,
		TransferDeadline:  &deadline,
		TimepulseFeeCents: 500,
		RulesText:         "  Pas de revente au-dessus du prix.  ",
	}, generateTestToken(t, bt.jwtSvc, orgID, "org@example.com"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"bib_exchange.settings_updated"}, bt.activity.Logged)
	bt.bib.AssertExpectations(t)
}

func TestBibExchangeHandler_UpdateSettings_Invalid(t *testing.T) {
	opens := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	before := opens.Add(-time.Hour)

	tests := []struct {
		name string
		req  dto.SettingsRequest
		want string
	}{
		{"negative fee", dto.SettingsRequest{TimepulseFeeCents: -1}, "cannot be negative"},
		{"deadline before opening", dto.SettingsRequest{TransferOpensAt: &opens, TransferDeadline: &before}, "must be after"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bt := setupBibExchangeTest(t)
			orgID, eventID := uuid.New(), uuid.New()
			bt.events.On("IsOrganizer", mock.Anything, eventID, orgID).Return(true, nil)

			rec := doJSON(bt.app, http.MethodPut, "/organizer/events/"+eventID.String()+"/bib-exchange/settings", tt.req,
				generateTestToken(t, bt.jwtSvc, orgID, "org@example.com"))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			bt.bib.AssertNotCalled(t, "UpsertSettings", mock.Anything, mock.Anything)
		})
	}
}

func TestBibExchangeHandler_ListListings(t *testing.T) {
	bt := setupBibExchangeTest(t)
	adminID, eventID := uuid.New(), uuid.New()

	bt.bib.On("ListListings", mock.Anything, eventID, models.ListingStatusSold).Return([]models.BibListing{
		{ID: uuid.New(), Status: models.ListingStatusSold, SalePriceCents: 2550},
	}, nil)

	rec := doJSON(bt.app, http.MethodGet, "/organizer/events/"+eventID.String()+"/bib-exchange/listings?status=sold", nil,
		generateAdminToken(t, bt.jwtSvc, adminID))

	require.Equal(t, http.StatusOK, rec.Code)
	var listings []dto.ListingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listings))
	require.Len(t, listings, 1)
	assert.Equal(t, "25.50 €", listings[0].SalePriceLabel)
	bt.events.AssertNotCalled(t, "IsOrganizer", mock.Anything, mock.Anything, mock.Anything)
}

func TestBibExchangeHandler_ListListings_BadStatus(t *testing.T) {
	bt := setupBibExchangeTest(t)

	rec := doJSON(bt.app, http.MethodGet, "/organizer/events/"+uuid.NewString()+"/bib-exchange/listings?status=refunded", nil,
		generateAdminToken(t, bt.jwtSvc, uuid.New()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBibExchangeHandler_TransfersAndStats(t *testing.T) {
	bt := setupBibExchangeTest(t)
	eventID := uuid.New()
	token := generateAdminToken(t, bt.jwtSvc, uuid.New())

	bt.bib.On("ListTransfers", mock.Anything, eventID).Return([]models.BibExchangeTransfer{{ID: uuid.New(), BuyerEmail: "buyer@example.com"}}, nil)
	bt.bib.On("Stats", mock.Anything, eventID).Return(&services.ExchangeStats{TotalListings: 4, Sold: 1, Transfers: 1}, nil)

	rec := doJSON(bt.app, http.MethodGet, "/organizer/events/"+eventID.String()+"/bib-exchange/transfers", nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "buyer@example.com")

	rec = doJSON(bt.app, http.MethodGet, "/organizer/events/"+eventID.String()+"/bib-exchange/stats", nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_listings":4`)
}

func TestBibExchangeHandler_RetryAlerts(t *testing.T) {
	bt := setupBibExchangeTest(t)
	eventID, listingID := uuid.New(), uuid.New()
	listing := &models.BibListing{ID: listingID, EventID: eventID, Status: models.ListingStatusAvailable}

	bt.bib.On("GetListing", mock.Anything, listingID).Return(listing, nil)
	bt.alerts.On("RetryFailed", mock.Anything, listing).Return(&services.DispatchResult{Recipients: 3, Sent: 2, Failed: 1}, nil)

	rec := doJSON(bt.app, http.MethodPost, "/organizer/events/"+eventID.String()+"/bib-exchange/listings/"+listingID.String()+"/alerts/retry", nil,
		generateAdminToken(t, bt.jwtSvc, uuid.New()))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.DispatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, dto.DispatchResponse{Recipients: 3, Sent: 2, Failed: 1}, resp)
}

func TestBibExchangeHandler_RetryAlerts_Rejections(t *testing.T) {
	eventID := uuid.New()

	tests := []struct {
		name       string
		listing    *models.BibListing
		wantStatus int
	}{
		{"other event", &models.BibListing{EventID: uuid.New(), Status: models.ListingStatusAvailable}, http.StatusNotFound},
		{"already sold", &models.BibListing{EventID: eventID, Status: models.ListingStatusSold}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bt := setupBibExchangeTest(t)
			listingID := uuid.New()
			bt.bib.On("GetListing", mock.Anything, listingID).Return(tt.listing, nil)

			rec := doJSON(bt.app, http.MethodPost, "/organizer/events/"+eventID.String()+"/bib-exchange/listings/"+listingID.String()+"/alerts/retry", nil,
				generateAdminToken(t, bt.jwtSvc, uuid.New()))

			assert.Equal(t, tt.wantStatus, rec.Code)
			bt.alerts.AssertNotCalled(t, "RetryFailed", mock.Anything, mock.Anything)
		})
	}
}

func TestBibExchangeHandler_AlertDeliveries(t *testing.T) {
	bt := setupBibExchangeTest(t)
	eventID, listingID := uuid.New(), uuid.New()
	listing := &models.BibListing{ID: listingID, EventID: eventID, Status: models.ListingStatusSold}
	errText := "smtp timeout"

	bt.bib.On("GetListing", mock.Anything, listingID).Return(listing, nil)
	bt.alerts.On("Deliveries", mock.Anything, listingID).Return([]models.AlertDelivery{
		{ID: uuid.New(), ListingID: listingID, Email: "anna@example.com", Status: models.DeliveryStatusSent, Attempts: 1},
		{ID: uuid.New(), ListingID: listingID, Email: "chris@example.com", Status: models.DeliveryStatusFailed, Error: &errText, Attempts: 2},
	}, nil)

	rec := doJSON(bt.app, http.MethodGet, "/organizer/events/"+eventID.String()+"/bib-exchange/listings/"+listingID.String()+"/alerts", nil,
		generateAdminToken(t, bt.jwtSvc, uuid.New()))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []models.AlertDelivery
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "chris@example.com", resp[1].Email)
	assert.Equal(t, 2, resp[1].Attempts)
	require.NotNil(t, resp[1].Error)
	assert.Equal(t, errText, *resp[1].Error)
}

func TestBibExchangeHandler_AlertDeliveries_OtherEvent(t *testing.T) {
	bt := setupBibExchangeTest(t)
	listingID := uuid.New()
	bt.bib.On("GetListing", mock.Anything, listingID).Return(&models.BibListing{ID: listingID, EventID: uuid.New()}, nil)

	rec := doJSON(bt.app, http.MethodGet, "/organizer/events/"+uuid.New().String()+"/bib-exchange/listings/"+listingID.String()+"/alerts", nil,
		generateAdminToken(t, bt.jwtSvc, uuid.New()))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	bt.alerts.AssertNotCalled(t, "Deliveries", mock.Anything, mock.Anything)
}

func TestBibExchangeHandler_CompleteTransfer(t *testing.T) {
	bt := setupBibExchangeTest(t)
	listingID := uuid.New()

	bt.bib.On("CompleteTransfer", mock.Anything, services.CompleteTransferInput{ListingID: listingID, BuyerEmail: "buyer@example.com"}, mock.Anything).
		Return(&models.BibExchangeTransfer{ID: uuid.New(), ListingID: listingID, BuyerEmail: "buyer@example.com"}, nil)

	rec := doJSON(bt.app, http.MethodPost, "/internal/bib-exchange/transfers",
		dto.CompleteTransferRequest{ListingID: listingID, BuyerEmail: "  Buyer@Example.com "}, "")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"bib_exchange.transfer_completed"}, bt.activity.Logged)
	bt.bib.AssertExpectations(t)
}

func TestBibExchangeHandler_CompleteTransfer_Rejections(t *testing.T) {
	bt := setupBibExchangeTest(t)
	listingID := uuid.New()

	rec := doJSON(bt.app, http.MethodPost, "/internal/bib-exchange/transfers", dto.CompleteTransferRequest{ListingID: listingID}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bt.bib.On("CompleteTransfer", mock.Anything, mock.Anything, mock.Anything).Return(nil, services.ErrListingNotAvailable)
	rec = doJSON(bt.app, http.MethodPost, "/internal/bib-exchange/transfers",
		dto.CompleteTransferRequest{ListingID: listingID, BuyerEmail: "late@example.com"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, bt.activity.Logged)
}
