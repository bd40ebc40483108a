package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/timepulse/timepulse-api/internal/logger"
	"github.com/timepulse/timepulse-api/internal/middleware"
	"github.com/timepulse/timepulse-api/internal/models"
	"github.com/timepulse/timepulse-api/internal/services"
	"github.com/timepulse/timepulse-api/pkg/dto"
)

type BibExchangeHandler struct {
	bibService      BibExchangeServiceInterface
	alerts          AlertRetrierInterface
	activityService ActivityServiceInterface
	guard           organizerGuard
	now             func() time.Time
}

func NewBibExchangeHandler(
	bibService BibExchangeServiceInterface,
	alerts AlertRetrierInterface,
	eventService EventServiceInterface,
	activityService ActivityServiceInterface,
) *BibExchangeHandler {
	return &BibExchangeHandler{
		bibService:      bibService,
		alerts:          alerts,
		activityService: activityService,
		guard:           organizerGuard{events: eventService},
		now:             time.Now,
	}
}

func listingResponse(l *models.BibListing) dto.ListingResponse {
	return dto.ListingResponse{
		BibListing:        *l,
		BibLabel:          services.BibLabel(l.BibNumber),
		SalePriceLabel:    services.FormatEuros(l.SalePriceCents),
		SellerRefundLabel: services.FormatEuros(l.SellerRefundCents),
	}
}

// writeListingError maps bib exchange failures onto HTTP statuses.
func writeListingError(c *drift.Context, err error) {
	switch {
	case errors.Is(err, services.ErrListingAlreadyExists):
		conflict(c, "listing_exists", err.Error())
	case errors.Is(err, services.ErrListingNotAvailable):
		conflict(c, "listing_unavailable", err.Error())
	case errors.Is(err, services.ErrListingNotFound),
		errors.Is(err, services.ErrRegistrationNotFound):
		c.NotFound(err.Error())
	case errors.Is(err, services.ErrBibExchangeDisabled),
		errors.Is(err, services.ErrTransferNotOpen),
		errors.Is(err, services.ErrTransferDeadlinePassed),
		errors.Is(err, services.ErrRegistrationNotTransferable):
		unprocessable(c, "not_transferable", err.Error())
	default:
		logger.Log.Error("bib exchange request failed", "error", err)
		c.InternalServerError("bib exchange request failed")
	}
}

func (h *BibExchangeHandler) CreateListing(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.CreateListingRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.RegistrationID == uuid.Nil {
		c.BadRequest("registration_id is required")
		return
	}

	listing, err := h.bibService.CreateListing(c.Request.Context(), userID, req.RegistrationID, h.now())
	if err != nil {
		writeListingError(c, err)
		return
	}

	_ = c.JSON(201, listingResponse(listing))
}

func (h *BibExchangeHandler) CancelListing(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	listingID, ok := uuidParam(c, "listingId", "listing")
	if !ok {
		return
	}

	ctx := c.Request.Context()

	listing, err := h.bibService.GetListing(ctx, listingID)
	if err != nil {
		writeListingError(c, err)
		return
	}
	if listing.SellerUserID != userID && middleware.GetGlobalRole(c) != models.GlobalRoleSuperAdmin {
		isOrganizer, err := h.guard.events.IsOrganizer(ctx, listing.EventID, userID)
		if err != nil {
			c.InternalServerError("failed to check permissions")
			return
		}
		if !isOrganizer {
			c.Forbidden("only the seller or the organizer can cancel this listing")
			return
		}
	}

	listing, err = h.bibService.CancelListing(ctx, listingID, h.now())
	if err != nil {
		writeListingError(c, err)
		return
	}

	_ = c.JSON(200, listingResponse(listing))
}

func (h *BibExchangeHandler) GetSettings(c *drift.Context) {
	eventID, ok := h.guard.event(c)
	if !ok {
		return
	}

	settings, err := h.bibService.GetSettings(c.Request.Context(), eventID)
	if errors.Is(err, services.ErrSettingsNotFound) {
		_ = c.JSON(200, models.BibExchangeSettings{EventID: eventID})
		return
	}
	if err != nil {
		c.InternalServerError("failed to load settings")
		return
	}

	_ = c.JSON(200, settings)
}

func (h *BibExchangeHandler) UpdateSettings(c *drift.Context) {
	eventID, ok := h.guard.event(c)
	if !ok {
		return
	}

	var req dto.SettingsRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.TimepulseFeeCents < 0 {
		c.BadRequest("timepulse_fee_cents cannot be negative")
		return
	}
	if req.TransferOpensAt != nil && req.TransferDeadline != nil && req.TransferDeadline.Before(*req.TransferOpensAt) {
		c.BadRequest("transfer_deadline must be after transfer_opens_at")
		return
	}

	saved, err := h.bibService.UpsertSettings(c.Request.Context(), &models.BibExchangeSettings{
		EventID:             eventID,
		IsEnabled:           req.IsEnabled,
		TransferOpensAt:     req.TransferOpensAt,
		TransferDeadline:    req.TransferDeadline,
		TimepulseFeeCents:   req.TimepulseFeeCents,
		AllowGenderMismatch: req.AllowGenderMismatch,
		RulesText:           strings.TrimSpace(req.RulesText),
	})
	if err != nil {
		c.InternalServerError("failed to save settings")
		return
	}

	userID := middleware.GetUserID(c)
	h.activityService.Log(c.Request.Context(), &userID, services.ActivityModuleBibExchange, "settings_updated", saved)

	_ = c.JSON(200, saved)
}

func (h *BibExchangeHandler) ListListings(c *drift.Context) {
	eventID, ok := h.guard.event(c)
	if !ok {
		return
	}

	status := c.QueryParam("status")
	switch status {
	case "", models.ListingStatusAvailable, models.ListingStatusSold, models.ListingStatusCancelled:
	default:
		c.BadRequest("invalid status filter")
		return
	}

	listings, err := h.bibService.ListListings(c.Request.Context(), eventID, status)
	if err != nil {
		c.InternalServerError("failed to list listings")
		return
	}

	out := make([]dto.ListingResponse, len(listings))
	for i := range listings {
		out[i] = listingResponse(&listings[i])
	}
	_ = c.JSON(200, out)
}

func (h *BibExchangeHandler) ListTransfers(c *drift.Context) {
	eventID, ok := h.guard.event(c)
	if !ok {
		return
	}

	transfers, err := h.bibService.ListTransfers(c.Request.Context(), eventID)
	if err != nil {
		c.InternalServerError("failed to list transfers")
		return
	}

	_ = c.JSON(200, transfers)
}

func (h *BibExchangeHandler) Stats(c *drift.Context) {
	eventID, ok := h.guard.event(c)
	if !ok {
		return
	}

	stats, err := h.bibService.Stats(c.Request.Context(), eventID)
	if err != nil {
		c.InternalServerError("failed to compute stats")
		return
	}

	_ = c.JSON(200, stats)
}

// eventListing loads the listing named in the path and checks it belongs to the
// organizer's event.
func (h *BibExchangeHandler) eventListing(c *drift.Context) (*models.BibListing, bool) {
	eventID, ok := h.guard.event(c)
	if !ok {
		return nil, false
	}
	listingID, ok := uuidParam(c, "listingId", "listing")
	if !ok {
		return nil, false
	}

	listing, err := h.bibService.GetListing(c.Request.Context(), listingID)
	if err != nil {
		writeListingError(c, err)
		return nil, false
	}
	if listing.EventID != eventID {
		c.NotFound("listing not found")
		return nil, false
	}
	return listing, true
}

// AlertDeliveries lists who was alerted about a listing and how each send went.
func (h *BibExchangeHandler) AlertDeliveries(c *drift.Context) {
	listing, ok := h.eventListing(c)
	if !ok {
		return
	}

	deliveries, err := h.alerts.Deliveries(c.Request.Context(), listing.ID)
	if err != nil {
		logger.Log.Error("failed to list alert deliveries", "listing_id", listing.ID, "error", err)
		c.InternalServerError("failed to list alert deliveries")
		return
	}

	_ = c.JSON(200, deliveries)
}

func (h *BibExchangeHandler) RetryAlerts(c *drift.Context) {
	listing, ok := h.eventListing(c)
	if !ok {
		return
	}
	if listing.Status != models.ListingStatusAvailable {
		conflict(c, "listing_unavailable", services.ErrListingNotAvailable.Error())
		return
	}

	result, err := h.alerts.RetryFailed(c.Request.Context(), listing)
	if err != nil {
		logger.Log.Error("alert retry failed", "listing_id", listing.ID, "error", err)
		c.InternalServerError("failed to retry alerts")
		return
	}

	_ = c.JSON(200, dto.DispatchResponse{
		Recipients: result.Recipients,
		Sent:       result.Sent,
		Failed:     result.Failed,
	})
}

// CompleteTransfer is called by the payment webhook once the buyer has paid.
func (h *BibExchangeHandler) CompleteTransfer(c *drift.Context) {
	var req dto.CompleteTransferRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.BuyerEmail))
	if req.ListingID == uuid.Nil || email == "" {
		c.BadRequest("listing_id and buyer_email are required")
		return
	}

	transfer, err := h.bibService.CompleteTransfer(c.Request.Context(), services.CompleteTransferInput{
		ListingID:  req.ListingID,
		BuyerEmail: email,
	}, h.now())
	if err != nil {
		writeListingError(c, err)
		return
	}

	h.activityService.Log(c.Request.Context(), nil, services.ActivityModuleBibExchange, "transfer_completed", transfer)

	_ = c.JSON(201, transfer)
}
