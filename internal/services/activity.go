package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/timepulse/timepulse-api/internal/database"
	"github.com/timepulse/timepulse-api/internal/logger"
	"github.com/timepulse/timepulse-api/internal/models"
)

// Activity modules.
const (
	ActivityModuleEmailTemplates = "email_templates"
	ActivityModuleEmailAssets    = "email_assets"
	ActivityModuleBibExchange    = "bib_exchange"
	ActivityModuleWaivers        = "waivers"
	ActivityModuleTeams          = "teams"
)

type ActivityFilter struct {
	Limit  int
	Offset int
	UserID *uuid.UUID
	Module string
	Action string
}

type ActivityService struct {
	db *database.DB
}

func NewActivityService(db *database.DB) *ActivityService {
	return &ActivityService{db: db}
}

// Log records an audit entry. Failures are logged and swallowed so audit
// writes never fail the action being audited.
func (s *ActivityService) Log(ctx context.Context, userID *uuid.UUID, module, action string, details any) {
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		logger.Log.Warn("activity details not serializable", "module", module, "action", action, "error", err)
		payload = []byte("{}")
	}

	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO activity_logs (user_id, module, action, details)
		VALUES ($1, $2, $3, $4)
	`, userID, module, action, payload)
	if err != nil {
		logger.Log.Error("failed to record activity", "module", module, "action", action, "error", err)
	}
}

func (s *ActivityService) List(ctx context.Context, f ActivityFilter) ([]models.ActivityLog, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, user_id, module, action, details, created_at
		FROM activity_logs
		WHERE ($1::uuid IS NULL OR user_id = $1)
		  AND ($2 = '' OR module = $2)
		  AND ($3 = '' OR action = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`, f.UserID, f.Module, f.Action, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	logs := []models.ActivityLog{}
	for rows.Next() {
		var l models.ActivityLog
		var details []byte
		if err := rows.Scan(&l.ID, &l.UserID, &l.Module, &l.Action, &details, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Details = json.RawMessage(details)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
