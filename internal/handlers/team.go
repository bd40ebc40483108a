package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/timepulse/timepulse-api/internal/logger"
	"github.com/timepulse/timepulse-api/internal/middleware"
	"github.com/timepulse/timepulse-api/internal/models"
	"github.com/timepulse/timepulse-api/internal/services"
	"github.com/timepulse/timepulse-api/pkg/dto"
)

const invitationMailTimeout = 30 * time.Second

type TeamHandler struct {
	teamService TeamServiceInterface
	mailer      InvitationMailerInterface
	now         func() time.Time
}

// NewTeamHandler builds the handler. mailer may be nil when SMTP is not configured.
func NewTeamHandler(teamService TeamServiceInterface, mailer InvitationMailerInterface) *TeamHandler {
	return &TeamHandler{teamService: teamService, mailer: mailer, now: time.Now}
}

func writeTeamError(c *drift.Context, err error) {
	switch {
	case badInput(c, err):
	case errors.Is(err, services.ErrTeamNotFound),
		errors.Is(err, services.ErrRaceNotFound),
		errors.Is(err, services.ErrMemberNotFound),
		errors.Is(err, services.ErrInvitationNotFound):
		c.NotFound(err.Error())
	case errors.Is(err, services.ErrInvitationCodeRequired):
		c.BadRequest(err.Error())
	case errors.Is(err, services.ErrTeamFull):
		conflict(c, "team_full", err.Error())
	case errors.Is(err, services.ErrAlreadyTeamMember):
		conflict(c, "already_member", err.Error())
	case errors.Is(err, services.ErrTeamClosed):
		conflict(c, "team_closed", err.Error())
	case errors.Is(err, services.ErrNotTeamMember),
		errors.Is(err, services.ErrNotTeamCaptain),
		errors.Is(err, services.ErrCannotRemoveCaptain):
		c.Forbidden(err.Error())
	case errors.Is(err, services.ErrModificationClosed):
		unprocessable(c, "modification_closed", err.Error())
	default:
		logger.Log.Error("team request failed", "error", err)
		c.InternalServerError("team request failed")
	}
}

func (h *TeamHandler) Create(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.CreateTeamRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.RaceID == uuid.Nil {
		c.BadRequest("race_id is required")
		return
	}

	res, err := h.teamService.Create(c.Request.Context(), services.CreateTeamInput{
		RaceID:        req.RaceID,
		CaptainUserID: userID,
		Name:          req.Name,
		TeamType:      req.TeamType,
		CaptainEmail:  req.CaptainEmail,
		CaptainPhone:  req.CaptainPhone,
		PaymentMode:   req.PaymentMode,
	}, h.now())
	if err != nil {
		writeTeamError(c, err)
		return
	}

	h.sendInvitation(res.Team, res.Invitation)

	_ = c.JSON(201, dto.CreateTeamResponse{
		Team:                 res.Team,
		InvitationCode:       res.Invitation.InvitationCode,
		InvitationExpiresAt:  res.Invitation.ExpiresAt,
		RedirectAfterSeconds: services.CreateRedirectSeconds,
	})
}

// sendInvitation mails the code to the captain in the background. A failure is
// logged only; the team already exists and the code is in the response.
func (h *TeamHandler) sendInvitation(team *models.Team, inv *models.TeamInvitation) {
	if h.mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), invitationMailTimeout)
		defer cancel()
		if err := h.mailer.SendTeamInvitation(ctx, team, inv); err != nil {
			logger.Log.Warn("failed to send team invitation", "team_id", team.ID, "error", err)
		}
	}()
}

func (h *TeamHandler) Join(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.JoinTeamRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	res, err := h.teamService.JoinByCode(c.Request.Context(), req.Code, userID, h.now())
	if err != nil {
		writeTeamError(c, err)
		return
	}

	_ = c.JSON(200, dto.JoinTeamResponse{
		Team:                 res.Team,
		Member:               res.Member,
		RedirectAfterSeconds: services.JoinRedirectSeconds,
	})
}

func (h *TeamHandler) Get(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	teamID, ok := uuidParam(c, "id", "team")
	if !ok {
		return
	}

	dash, err := h.teamService.Dashboard(c.Request.Context(), teamID, userID, h.now())
	if errors.Is(err, services.ErrNotTeamMember) {
		c.NotFound("team not found")
		return
	}
	if err != nil {
		writeTeamError(c, err)
		return
	}

	_ = c.JSON(200, dash)
}

func (h *TeamHandler) RemoveMember(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	teamID, ok := uuidParam(c, "id", "team")
	if !ok {
		return
	}
	memberID, ok := uuidParam(c, "memberId", "member")
	if !ok {
		return
	}

	if err := h.teamService.RemoveMember(c.Request.Context(), teamID, memberID, userID, h.now()); err != nil {
		writeTeamError(c, err)
		return
	}

	_ = c.JSON(200, dto.MessageResponse{Message: "member removed"})
}
