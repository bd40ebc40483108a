package dto

import (
	"github.com/google/uuid"
	"github.com/timepulse/timepulse-api/internal/models"
)

type WaiverPreviewRequest struct {
	Content string `json:"content"`
}

type WaiverPreviewResponse struct {
	Rendered string `json:"rendered"`
}

type SaveWaiverRequest struct {
	Content    string                  `json:"content"`
	Checkboxes []models.WaiverCheckbox `json:"checkboxes"`
}

type AcceptWaiverRequest struct {
	TemplateID uuid.UUID         `json:"template_id"`
	Answers    map[string]string `json:"answers"`
}

type WaiverRejectedResponse struct {
	Error            string      `json:"error"`
	Missing          []uuid.UUID `json:"missing"`
	BlockingMessages []string    `json:"blocking_messages"`
}
