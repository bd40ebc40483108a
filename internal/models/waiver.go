package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	FieldTypeCheckbox = "checkbox"
	FieldTypeYesNo    = "yes_no"
	FieldTypeRadio    = "radio"
	FieldTypeText     = "text"
)

type WaiverTemplate struct {
	ID         uuid.UUID        `json:"id"`
	RaceID     uuid.UUID        `json:"race_id"`
	Content    string           `json:"content"`
	IsActive   bool             `json:"is_active"`
	CreatedBy  *uuid.UUID       `json:"created_by,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	Checkboxes []WaiverCheckbox `json:"checkboxes"`
}

type WaiverCheckbox struct {
	ID              uuid.UUID `json:"id"`
	TemplateID      uuid.UUID `json:"template_id"`
	Label           string    `json:"label"`
	FieldType       string    `json:"field_type"`
	Options         []string  `json:"options"`
	IsRequired      bool      `json:"is_required"`
	IsBlocking      bool      `json:"is_blocking"`
	ExpectedValue   *string   `json:"expected_value,omitempty"`
	BlockingMessage *string   `json:"blocking_message,omitempty"`
	DisplayOrder    int       `json:"display_order"`
}

type WaiverAcceptance struct {
	ID         uuid.UUID         `json:"id"`
	TemplateID uuid.UUID         `json:"template_id"`
	RaceID     uuid.UUID         `json:"race_id"`
	UserID     uuid.UUID         `json:"user_id"`
	Answers    map[string]string `json:"answers"`
	AcceptedAt time.Time         `json:"accepted_at"`
}
