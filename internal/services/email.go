package services

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/timepulse/timepulse-api/internal/config"
	"github.com/timepulse/timepulse-api/internal/models"
)

type EmailService struct {
	cfg config.SMTPConfig
}

func NewEmailService(cfg config.SMTPConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

func (s *EmailService) IsConfigured() bool {
	return s.cfg.Host != "" && s.cfg.Username != "" && s.cfg.Password != "" && s.cfg.From != ""
}

// Send is a no-op when SMTP is not configured.
func (s *EmailService) Send(to, subject, body string) error {
	if !s.IsConfigured() {
		return nil
	}

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, BuildMessage(s.cfg.From, to, subject, body))
}

func BuildMessage(from, to, subject, htmlBody string) []byte {
	return fmt.Appendf(nil, "From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		from, to, subject, htmlBody)
}

type EmailSender interface {
	Send(to, subject, body string) error
}

// TemplateRenderer resolves a stored email template.
type TemplateRenderer interface {
	Render(ctx context.Context, key string, vars map[string]string) (*RenderedEmail, error)
}

// InvitationMailer emails a new team's captain the code to share.
type InvitationMailer struct {
	templates TemplateRenderer
	sender    EmailSender
}

func NewInvitationMailer(templates TemplateRenderer, sender EmailSender) *InvitationMailer {
	return &InvitationMailer{templates: templates, sender: sender}
}

func (m *InvitationMailer) SendTeamInvitation(ctx context.Context, team *models.Team, inv *models.TeamInvitation) error {
	msg, err := m.templates.Render(ctx, TemplateKeyTeamInvitation, map[string]string{
		"team_name":       team.Name,
		"invitation_code": inv.InvitationCode,
		"expires_at":      inv.ExpiresAt.Format("02/01/2006"),
	})
	if err != nil {
		return fmt.Errorf("failed to render invitation email: %w", err)
	}
	return m.sender.Send(team.CaptainEmail, msg.Subject, msg.HTMLBody)
}
