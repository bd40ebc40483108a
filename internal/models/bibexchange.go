package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ListingStatusAvailable = "available"
	ListingStatusSold      = "sold"
	ListingStatusCancelled = "cancelled"
)

const (
	RefundStatusPending   = "pending"
	RefundStatusCompleted = "completed"

	PaymentStatusPaid = "paid"
)

const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)

type BibExchangeSettings struct {
	ID                  uuid.UUID  `json:"id"`
	EventID             uuid.UUID  `json:"event_id"`
	IsEnabled           bool       `json:"is_enabled"`
	TransferOpensAt     *time.Time `json:"transfer_opens_at,omitempty"`
	TransferDeadline    *time.Time `json:"transfer_deadline,omitempty"`
	TimepulseFeeCents   int64      `json:"timepulse_fee_cents"`
	AllowGenderMismatch bool       `json:"allow_gender_mismatch"`
	RulesText           string     `json:"rules_text"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type BibListing struct {
	ID                 uuid.UUID  `json:"id"`
	EventID            uuid.UUID  `json:"event_id"`
	RaceID             uuid.UUID  `json:"race_id"`
	RegistrationID     uuid.UUID  `json:"registration_id"`
	SellerUserID       uuid.UUID  `json:"seller_user_id"`
	BibNumber          *int       `json:"bib_number,omitempty"`
	OriginalPriceCents int64      `json:"original_price_cents"`
	SalePriceCents     int64      `json:"sale_price_cents"`
	SellerRefundCents  int64      `json:"seller_refund_cents"`
	GenderRequired     Gender     `json:"gender_required"`
	Status             string     `json:"status"`
	ListedAt           time.Time  `json:"listed_at"`
	SoldAt             *time.Time `json:"sold_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
}

type BibExchangeTransfer struct {
	ID                 uuid.UUID  `json:"id"`
	ListingID          uuid.UUID  `json:"listing_id"`
	BuyerEmail         string     `json:"buyer_email"`
	SellerRefundCents  int64      `json:"seller_refund_cents"`
	SellerRefundStatus string     `json:"seller_refund_status"`
	BuyerPaymentCents  int64      `json:"buyer_payment_cents"`
	BuyerPaymentStatus string     `json:"buyer_payment_status"`
	TimepulseFeeCents  int64      `json:"timepulse_fee_cents"`
	TransferredAt      time.Time  `json:"transferred_at"`
	RefundCompletedAt  *time.Time `json:"refund_completed_at,omitempty"`
}

// BibAlertWatcher is someone asking to be told when a bib for a race goes on sale.
type BibAlertWatcher struct {
	ID      uuid.UUID  `json:"id"`
	EventID uuid.UUID  `json:"event_id"`
	RaceID  *uuid.UUID `json:"race_id,omitempty"`
	Email   string     `json:"email"`
	Gender  Gender     `json:"gender"`
}

type AlertDelivery struct {
	ID        uuid.UUID `json:"id"`
	ListingID uuid.UUID `json:"listing_id"`
	AlertID   uuid.UUID `json:"alert_id"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	Error     *string   `json:"error,omitempty"`
	Attempts  int       `json:"attempts"`
}
