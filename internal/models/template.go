package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EmailTemplate struct {
	ID          uuid.UUID  `json:"id"`
	TemplateKey string     `json:"template_key"`
	Name        string     `json:"name"`
	Subject     string     `json:"subject"`
	HTMLBody    string     `json:"html_body"`
	TextBody    string     `json:"text_body"`
	IsActive    bool       `json:"is_active"`
	UpdatedBy   *uuid.UUID `json:"updated_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type ActivityLog struct {
	ID        uuid.UUID       `json:"id"`
	UserID    *uuid.UUID      `json:"user_id,omitempty"`
	Module    string          `json:"module"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details"`
	CreatedAt time.Time       `json:"created_at"`
}
