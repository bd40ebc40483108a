package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/timepulse/timepulse-api/internal/database"
	"github.com/timepulse/timepulse-api/internal/models"
)

var ErrEmailTemplateNotFound = errors.New("email template not found")

const TemplateKeyTeamInvitation = "team_invitation"

// RenderTemplate replaces {{name}} placeholders with vars. Unknown placeholders stay as-is.
func RenderTemplate(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

type RenderedEmail struct {
	Subject  string
	HTMLBody string
	TextBody string
}

type EmailTemplateService struct {
	db *database.DB
}

func NewEmailTemplateService(db *database.DB) *EmailTemplateService {
	return &EmailTemplateService{db: db}
}

const emailTemplateColumns = `id, template_key, name, subject, html_body, text_body, is_active, updated_by, created_at, updated_at`

func scanEmailTemplate(row pgx.Row) (*models.EmailTemplate, error) {
	var t models.EmailTemplate
	err := row.Scan(&t.ID, &t.TemplateKey, &t.Name, &t.Subject, &t.HTMLBody, &t.TextBody, &t.IsActive, &t.UpdatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *EmailTemplateService) List(ctx context.Context) ([]models.EmailTemplate, error) {
	rows, err := s.db.Pool.Query(ctx, `SELECT `+emailTemplateColumns+` FROM email_templates ORDER BY template_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []models.EmailTemplate{}
	for rows.Next() {
		t, err := scanEmailTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

type UpdateEmailTemplateInput struct {
	Subject  string `json:"subject" validate:"required"`
	HTMLBody string `json:"html_body" validate:"required"`
	TextBody string `json:"text_body"`
	IsActive bool   `json:"is_active"`
}

func (s *EmailTemplateService) Update(ctx context.Context, id uuid.UUID, in UpdateEmailTemplateInput, updatedBy uuid.UUID) (*models.EmailTemplate, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	t, err := scanEmailTemplate(s.db.Pool.QueryRow(ctx, `
		UPDATE email_templates
		SET subject = $1, html_body = $2, text_body = $3, is_active = $4, updated_by = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING `+emailTemplateColumns,
		in.Subject, in.HTMLBody, in.TextBody, in.IsActive, updatedBy, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmailTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update email template: %w", err)
	}
	return t, nil
}

// Duplicate copies a template under "<key>_copy" (suffixed further on collision), inactive.
func (s *EmailTemplateService) Duplicate(ctx context.Context, id uuid.UUID, updatedBy uuid.UUID) (*models.EmailTemplate, error) {
	src, err := scanEmailTemplate(s.db.Pool.QueryRow(ctx, `SELECT `+emailTemplateColumns+` FROM email_templates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmailTemplateNotFound
	}
	if err != nil {
		return nil, err
	}

	key := src.TemplateKey + "_copy"
	for attempt := 2; ; attempt++ {
		t, err := scanEmailTemplate(s.db.Pool.QueryRow(ctx, `
			INSERT INTO email_templates (template_key, name, subject, html_body, text_body, is_active, updated_by)
			VALUES ($1, $2, $3, $4, $5, FALSE, $6)
			ON CONFLICT (template_key) DO NOTHING
			RETURNING `+emailTemplateColumns,
			key, src.Name+" (copie)", src.Subject, src.HTMLBody, src.TextBody, updatedBy))
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) || attempt > 10 {
			return nil, fmt.Errorf("failed to duplicate email template: %w", err)
		}
		key = fmt.Sprintf("%s_copy%d", src.TemplateKey, attempt)
	}
}

func (s *EmailTemplateService) GetActiveByKey(ctx context.Context, key string) (*models.EmailTemplate, error) {
	t, err := scanEmailTemplate(s.db.Pool.QueryRow(ctx, `
		SELECT `+emailTemplateColumns+` FROM email_templates WHERE template_key = $1 AND is_active = TRUE
	`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmailTemplateNotFound
	}
	return t, err
}

// Render loads the active template for key and fills it with vars.
func (s *EmailTemplateService) Render(ctx context.Context, key string, vars map[string]string) (*RenderedEmail, error) {
	t, err := s.GetActiveByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return &RenderedEmail{
		Subject:  RenderTemplate(t.Subject, vars),
		HTMLBody: RenderTemplate(t.HTMLBody, vars),
		TextBody: RenderTemplate(t.TextBody, vars),
	}, nil
}
