package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/timepulse/timepulse-api/internal/database"
	"github.com/timepulse/timepulse-api/internal/logger"
	"github.com/timepulse/timepulse-api/internal/models"
)

var (
	ErrBibExchangeDisabled         = errors.New("bib exchange is not enabled for this event")
	ErrTransferNotOpen             = errors.New("bib transfers are not open yet")
	ErrTransferDeadlinePassed      = errors.New("bib transfer deadline has passed")
	ErrRegistrationNotFound        = errors.New("registration not found")
	ErrRegistrationNotTransferable = errors.New("registration cannot be put on the bib exchange")
	ErrListingAlreadyExists        = errors.New("registration is already listed")
	ErrListingNotFound             = errors.New("listing not found")
	ErrListingNotAvailable         = errors.New("listing is no longer available")
	ErrSettingsNotFound            = errors.New("bib exchange settings not found")
)

// UnassignedBibLabel is shown in place of a bib number that has not been attributed yet.
const UnassignedBibLabel = "non attribué"

// ComputeSellerRefund returns what the seller gets back: the original price minus the
// platform fee, never below zero.
func ComputeSellerRefund(originalPriceCents, feeCents int64) int64 {
	if refund := originalPriceCents - feeCents; refund > 0 {
		return refund
	}
	return 0
}

// RequiredGender is the gender a buyer must have for a listing created from a
// registration of registrantGender.
func RequiredGender(allowGenderMismatch bool, registrantGender models.Gender) models.Gender {
	if allowGenderMismatch || !registrantGender.IsSpecific() {
		return models.GenderAny
	}
	return registrantGender
}

// CheckListingWindow validates that a listing may be created at now under settings.
func CheckListingWindow(settings *models.BibExchangeSettings, now time.Time) error {
	if settings == nil || !settings.IsEnabled {
		return ErrBibExchangeDisabled
	}
	if settings.TransferOpensAt != nil && now.Before(*settings.TransferOpensAt) {
		return ErrTransferNotOpen
	}
	if settings.TransferDeadline != nil && now.After(*settings.TransferDeadline) {
		return ErrTransferDeadlinePassed
	}
	return nil
}

// FormatEuros renders cents as "40.00 €".
func FormatEuros(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d €", sign, cents/100, cents%100)
}

// BibLabel renders a possibly unassigned bib number.
func BibLabel(bib *int) string {
	if bib == nil {
		return UnassignedBibLabel
	}
	return fmt.Sprintf("%d", *bib)
}

// ExchangeStats aggregates an event's listings and transfers for the organizer ledger.
type ExchangeStats struct {
	TotalListings     int   `json:"total_listings"`
	Available         int   `json:"available"`
	Sold              int   `json:"sold"`
	Cancelled         int   `json:"cancelled"`
	Transfers         int   `json:"transfers"`
	TotalFeesCents    int64 `json:"total_fees_cents"`
	TotalRefundsCents int64 `json:"total_refunds_cents"`
}

func ComputeStats(listings []models.BibListing, transfers []models.BibExchangeTransfer) ExchangeStats {
	stats := ExchangeStats{TotalListings: len(listings), Transfers: len(transfers)}
	for _, l := range listings {
		switch l.Status {
		case models.ListingStatusAvailable:
			stats.Available++
		case models.ListingStatusSold:
			stats.Sold++
		case models.ListingStatusCancelled:
			stats.Cancelled++
		}
	}
	for _, t := range transfers {
		stats.TotalFeesCents += t.TimepulseFeeCents
		stats.TotalRefundsCents += t.SellerRefundCents
	}
	return stats
}

// ListingAlerter notifies watchers that a listing is on sale.
type ListingAlerter interface {
	Dispatch(ctx context.Context, listing *models.BibListing) (*DispatchResult, error)
}

type BibExchangeService struct {
	db        *database.DB
	alerter   ListingAlerter
	publisher Publisher
}

func NewBibExchangeService(db *database.DB, alerter ListingAlerter, publisher Publisher) *BibExchangeService {
	return &BibExchangeService{db: db, alerter: alerter, publisher: publisherOrNoop(publisher)}
}

const settingsColumns = `id, event_id, is_enabled, transfer_opens_at, transfer_deadline,
	timepulse_fee_cents, allow_gender_mismatch, rules_text, updated_at`

func scanSettings(row pgx.Row) (*models.BibExchangeSettings, error) {
	var st models.BibExchangeSettings
	err := row.Scan(&st.ID, &st.EventID, &st.IsEnabled, &st.TransferOpensAt, &st.TransferDeadline,
		&st.TimepulseFeeCents, &st.AllowGenderMismatch, &st.RulesText, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

const listingColumns = `id, event_id, race_id, registration_id, seller_user_id, bib_number,
	original_price_cents, sale_price_cents, seller_refund_cents, gender_required, status,
	listed_at, sold_at, cancelled_at`

func scanListing(row pgx.Row) (*models.BibListing, error) {
	var l models.BibListing
	var gender string
	err := row.Scan(&l.ID, &l.EventID, &l.RaceID, &l.RegistrationID, &l.SellerUserID, &l.BibNumber,
		&l.OriginalPriceCents, &l.SalePriceCents, &l.SellerRefundCents, &gender, &l.Status,
		&l.ListedAt, &l.SoldAt, &l.CancelledAt)
	if err != nil {
		return nil, err
	}
	l.GenderRequired = models.Gender(gender)
	return &l, nil
}

func (s *BibExchangeService) GetSettings(ctx context.Context, eventID uuid.UUID) (*models.BibExchangeSettings, error) {
	st, err := scanSettings(s.db.Pool.QueryRow(ctx, `
		SELECT `+settingsColumns+`
		FROM bib_exchange_settings WHERE event_id = $1
	`, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSettingsNotFound
	}
	return st, err
}

func (s *BibExchangeService) UpsertSettings(ctx context.Context, st *models.BibExchangeSettings) (*models.BibExchangeSettings, error) {
	if st.TimepulseFeeCents < 0 {
		return nil, fmt.Errorf("fee must not be negative")
	}

	saved, err := scanSettings(s.db.Pool.QueryRow(ctx, `
		INSERT INTO bib_exchange_settings (event_id, is_enabled, transfer_opens_at, transfer_deadline,
			timepulse_fee_cents, allow_gender_mismatch, rules_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO UPDATE SET
			is_enabled = EXCLUDED.is_enabled,
			transfer_opens_at = EXCLUDED.transfer_opens_at,
			transfer_deadline = EXCLUDED.transfer_deadline,
			timepulse_fee_cents = EXCLUDED.timepulse_fee_cents,
			allow_gender_mismatch = EXCLUDED.allow_gender_mismatch,
			rules_text = EXCLUDED.rules_text,
			updated_at = NOW()
		RETURNING `+settingsColumns,
		st.EventID, st.IsEnabled, st.TransferOpensAt, st.TransferDeadline,
		st.TimepulseFeeCents, st.AllowGenderMismatch, st.RulesText))
	if err != nil {
		return nil, fmt.Errorf("failed to save bib exchange settings: %w", err)
	}

	s.publisher.Publish(saved.EventID, EventSettingsUpdated, saved)
	return saved, nil
}

func (s *BibExchangeService) getRegistration(ctx context.Context, registrationID uuid.UUID) (*models.Registration, error) {
	var r models.Registration
	var gender string
	err := s.db.Pool.QueryRow(ctx, `
		SELECT r.id, r.user_id, r.event_id, r.race_id, r.first_name, r.last_name, r.gender,
		       r.bib_number, r.price_paid_cents, r.status, ra.starts_at
		FROM registrations r
		JOIN races ra ON ra.id = r.race_id
		WHERE r.id = $1
	`, registrationID).Scan(&r.ID, &r.UserID, &r.EventID, &r.RaceID, &r.FirstName, &r.LastName, &gender,
		&r.BibNumber, &r.PricePaidCents, &r.Status, &r.RaceStartsAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}
	r.Gender = models.Gender(gender)
	return &r, nil
}

// CreateListing puts sellerID's registration on the bib exchange, then alerts watchers.
// Alert failures are logged and recorded per recipient; they never fail the listing.
func (s *BibExchangeService) CreateListing(ctx context.Context, sellerID, registrationID uuid.UUID, now time.Time) (*models.BibListing, error) {
	reg, err := s.getRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.UserID != sellerID {
		return nil, ErrRegistrationNotFound
	}
	if reg.Status != models.RegistrationStatusConfirmed || !reg.RaceStartsAt.After(now) {
		return nil, ErrRegistrationNotTransferable
	}

	settings, err := s.GetSettings(ctx, reg.EventID)
	if err != nil && !errors.Is(err, ErrSettingsNotFound) {
		return nil, err
	}
	if err := CheckListingWindow(settings, now); err != nil {
		return nil, err
	}

	refund := ComputeSellerRefund(reg.PricePaidCents, settings.TimepulseFeeCents)
	gender := RequiredGender(settings.AllowGenderMismatch, reg.Gender)

	listing, err := scanListing(s.db.Pool.QueryRow(ctx, `
		INSERT INTO bib_exchange_listings (event_id, race_id, registration_id, seller_user_id, bib_number,
			original_price_cents, sale_price_cents, seller_refund_cents, gender_required, status, listed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+listingColumns,
		reg.EventID, reg.RaceID, reg.ID, sellerID, reg.BibNumber,
		reg.PricePaidCents, reg.PricePaidCents, refund, string(gender), models.ListingStatusAvailable, now))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrListingAlreadyExists
		}
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	s.publisher.Publish(listing.EventID, EventListingCreated, listing)

	if s.alerter != nil {
		result, err := s.alerter.Dispatch(ctx, listing)
		if err != nil {
			logger.Log.Error("bib exchange alert dispatch failed", "listing_id", listing.ID, "error", err)
		} else if result.Failed > 0 {
			logger.Log.Warn("some bib exchange alerts failed", "listing_id", listing.ID, "sent", result.Sent, "failed", result.Failed)
		}
	}

	return listing, nil
}

func (s *BibExchangeService) GetListing(ctx context.Context, listingID uuid.UUID) (*models.BibListing, error) {
	l, err := scanListing(s.db.Pool.QueryRow(ctx, `
		SELECT `+listingColumns+` FROM bib_exchange_listings WHERE id = $1
	`, listingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	return l, err
}

// CancelListing moves an available listing to cancelled. Sold and cancelled are terminal.
func (s *BibExchangeService) CancelListing(ctx context.Context, listingID uuid.UUID, now time.Time) (*models.BibListing, error) {
	l, err := scanListing(s.db.Pool.QueryRow(ctx, `
		UPDATE bib_exchange_listings SET status = $1, cancelled_at = $2
		WHERE id = $3 AND status = $4
		RETURNING `+listingColumns,
		models.ListingStatusCancelled, now, listingID, models.ListingStatusAvailable))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrListingNotAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel listing: %w", err)
	}

	s.publisher.Publish(l.EventID, EventListingCancelled, l)
	return l, nil
}

type CompleteTransferInput struct {
	ListingID  uuid.UUID
	BuyerEmail string
}

// CompleteTransfer records a purchase: the listing becomes sold and an immutable
// transfer row is written, atomically.
func (s *BibExchangeService) CompleteTransfer(ctx context.Context, in CompleteTransferInput, now time.Time) (*models.BibExchangeTransfer, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	listing, err := scanListing(tx.QueryRow(ctx, `
		SELECT `+listingColumns+` FROM bib_exchange_listings WHERE id = $1 FOR UPDATE
	`, in.ListingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock listing: %w", err)
	}
	if listing.Status != models.ListingStatusAvailable {
		return nil, ErrListingNotAvailable
	}

	var feeCents int64
	err = tx.QueryRow(ctx, `
		SELECT timepulse_fee_cents FROM bib_exchange_settings WHERE event_id = $1
	`, listing.EventID).Scan(&feeCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBibExchangeDisabled
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load fee: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE bib_exchange_listings SET status = $1, sold_at = $2 WHERE id = $3
	`, models.ListingStatusSold, now, listing.ID); err != nil {
		return nil, fmt.Errorf("failed to mark listing sold: %w", err)
	}

	var t models.BibExchangeTransfer
	err = tx.QueryRow(ctx, `
		INSERT INTO bib_exchange_transfers (listing_id, buyer_email, seller_refund_cents, seller_refund_status,
			buyer_payment_cents, buyer_payment_status, timepulse_fee_cents, transferred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, listing_id, buyer_email, seller_refund_cents, seller_refund_status,
			buyer_payment_cents, buyer_payment_status, timepulse_fee_cents, transferred_at, refund_completed_at
	`, listing.ID, in.BuyerEmail, listing.SellerRefundCents, models.RefundStatusPending,
		listing.SalePriceCents, models.PaymentStatusPaid, feeCents, now).Scan(
		&t.ID, &t.ListingID, &t.BuyerEmail, &t.SellerRefundCents, &t.SellerRefundStatus,
		&t.BuyerPaymentCents, &t.BuyerPaymentStatus, &t.TimepulseFeeCents, &t.TransferredAt, &t.RefundCompletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record transfer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	listing.Status = models.ListingStatusSold
	listing.SoldAt = &now
	s.publisher.Publish(listing.EventID, EventListingSold, listing)

	return &t, nil
}

// ListListings returns an event's listings, newest first, optionally filtered by status.
func (s *BibExchangeService) ListListings(ctx context.Context, eventID uuid.UUID, status string) ([]models.BibListing, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+listingColumns+`
		FROM bib_exchange_listings
		WHERE event_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY listed_at DESC
	`, eventID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []models.BibListing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (s *BibExchangeService) ListTransfers(ctx context.Context, eventID uuid.UUID) ([]models.BibExchangeTransfer, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT t.id, t.listing_id, t.buyer_email, t.seller_refund_cents, t.seller_refund_status,
		       t.buyer_payment_cents, t.buyer_payment_status, t.timepulse_fee_cents, t.transferred_at, t.refund_completed_at
		FROM bib_exchange_transfers t
		JOIN bib_exchange_listings l ON l.id = t.listing_id
		WHERE l.event_id = $1
		ORDER BY t.transferred_at DESC
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transfers := []models.BibExchangeTransfer{}
	for rows.Next() {
		var t models.BibExchangeTransfer
		if err := rows.Scan(&t.ID, &t.ListingID, &t.BuyerEmail, &t.SellerRefundCents, &t.SellerRefundStatus,
			&t.BuyerPaymentCents, &t.BuyerPaymentStatus, &t.TimepulseFeeCents, &t.TransferredAt, &t.RefundCompletedAt); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

func (s *BibExchangeService) Stats(ctx context.Context, eventID uuid.UUID) (*ExchangeStats, error) {
	listings, err := s.ListListings(ctx, eventID, "")
	if err != nil {
		return nil, err
	}
	transfers, err := s.ListTransfers(ctx, eventID)
	if err != nil {
		return nil, err
	}
	stats := ComputeStats(listings, transfers)
	return &stats, nil
}
