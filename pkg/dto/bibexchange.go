package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/timepulse/timepulse-api/internal/models"
)

type CreateListingRequest struct {
	RegistrationID uuid.UUID `json:"registration_id"`
}

// ListingResponse is a listing plus the labels shown to runners.
type ListingResponse struct {
	models.BibListing
	BibLabel          string `json:"bib_label"`
	SalePriceLabel    string `json:"sale_price_label"`
	SellerRefundLabel string `json:"seller_refund_label"`
}

type SettingsRequest struct {
	IsEnabled           bool       `json:"is_enabled"`
	TransferOpensAt     *time.Time `json:"transfer_opens_at"`
	TransferDeadline    *time.Time `json:"transfer_deadline"`
	TimepulseFeeCents   int64      `json:"timepulse_fee_cents"`
	AllowGenderMismatch bool       `json:"allow_gender_mismatch"`
	RulesText           string     `json:"rules_text"`
}

type CompleteTransferRequest struct {
	ListingID  uuid.UUID `json:"listing_id"`
	BuyerEmail string    `json:"buyer_email"`
}

type DispatchResponse struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}
