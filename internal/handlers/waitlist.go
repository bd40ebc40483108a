package handlers

import (
	"errors"
	"time"

	"github.com/m1z23r/drift/pkg/drift"
	"github.com/timepulse/timepulse-api/internal/logger"
	"github.com/timepulse/timepulse-api/internal/models"
	"github.com/timepulse/timepulse-api/internal/services"
	"github.com/timepulse/timepulse-api/pkg/dto"
)

type WaitlistHandler struct {
	waitlistService WaitlistServiceInterface
	now             func() time.Time
}

func NewWaitlistHandler(waitlistService WaitlistServiceInterface) *WaitlistHandler {
	return &WaitlistHandler{waitlistService: waitlistService, now: time.Now}
}

func (h *WaitlistHandler) Snapshot(c *drift.Context) {
	raceID, ok := uuidParam(c, "raceId", "race")
	if !ok {
		return
	}

	snap, err := h.waitlistService.Snapshot(c.Request.Context(), raceID, h.now())
	if errors.Is(err, services.ErrRaceNotFound) {
		c.NotFound("race not found")
		return
	}
	if err != nil {
		c.InternalServerError("failed to load waitlist")
		return
	}

	_ = c.JSON(200, dto.WaitlistSnapshotResponse{
		CapacitySnapshot: *snap,
		Available:        snap.Available(),
	})
}

func (h *WaitlistHandler) Join(c *drift.Context) {
	raceID, ok := uuidParam(c, "raceId", "race")
	if !ok {
		return
	}

	var req dto.JoinWaitlistRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	gender, err := models.ParseGender(string(req.Gender))
	if err != nil {
		c.BadRequest("invalid gender")
		return
	}

	res, err := h.waitlistService.Join(c.Request.Context(), services.JoinWaitlistInput{
		RaceID:       raceID,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		SessionToken: req.SessionToken,
		BibAlert:     req.BibAlert,
		Gender:       gender,
	}, h.now())
	if err != nil {
		switch {
		case badInput(c, err):
		case errors.Is(err, services.ErrAlreadyOnWaitlist):
			conflict(c, "already_waitlisted", err.Error())
		case errors.Is(err, services.ErrRaceNotFound):
			c.NotFound("race not found")
		default:
			logger.Log.Error("failed to join waitlist", "race_id", raceID, "error", err)
			c.InternalServerError("failed to join waitlist")
		}
		return
	}

	_ = c.JSON(201, dto.JoinWaitlistResponse{
		EntryID:              res.Entry.ID,
		Position:             res.Position,
		EstimatedWaitMinutes: res.EstimatedWaitMinutes,
	})
}

func (h *WaitlistHandler) Leave(c *drift.Context) {
	entryID, ok := uuidParam(c, "entryId", "entry")
	if !ok {
		return
	}

	var req dto.LeaveWaitlistRequest
	_ = c.BindJSON(&req)
	if req.SessionToken == "" {
		req.SessionToken = c.QueryParam("session_token")
	}
	if req.SessionToken == "" {
		c.BadRequest("session_token is required")
		return
	}

	err := h.waitlistService.Leave(c.Request.Context(), entryID, req.SessionToken)
	if errors.Is(err, services.ErrWaitlistEntryNotFound) {
		c.NotFound("waitlist entry not found")
		return
	}
	if err != nil {
		c.InternalServerError("failed to leave waitlist")
		return
	}

	_ = c.JSON(200, dto.MessageResponse{Message: "left waitlist"})
}
