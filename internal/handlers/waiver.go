package handlers

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/timepulse/timepulse-api/internal/logger"
	"github.com/timepulse/timepulse-api/internal/middleware"
	"github.com/timepulse/timepulse-api/internal/services"
	"github.com/timepulse/timepulse-api/pkg/dto"
)

var waiverDraftErrors = []error{
	services.ErrWaiverContentRequired,
	services.ErrWaiverLabelRequired,
	services.ErrWaiverFieldTypeInvalid,
	services.ErrWaiverOptionsRequired,
	services.ErrWaiverExpectedValueRequired,
	services.ErrWaiverQuestionIndex,
}

type WaiverHandler struct {
	waiverService   WaiverServiceInterface
	activityService ActivityServiceInterface
	guard           organizerGuard
	now             func() time.Time
}

func NewWaiverHandler(waiverService WaiverServiceInterface, eventService EventServiceInterface, activityService ActivityServiceInterface) *WaiverHandler {
	return &WaiverHandler{
		waiverService:   waiverService,
		activityService: activityService,
		guard:           organizerGuard{events: eventService},
		now:             time.Now,
	}
}

func (h *WaiverHandler) GetActive(c *drift.Context) {
	raceID, ok := uuidParam(c, "raceId", "race")
	if !ok {
		return
	}

	tmpl, err := h.waiverService.GetActive(c.Request.Context(), raceID)
	if errors.Is(err, services.ErrWaiverNotFound) {
		c.NotFound("no waiver for this race")
		return
	}
	if err != nil {
		c.InternalServerError("failed to load waiver")
		return
	}

	_ = c.JSON(200, tmpl)
}

func (h *WaiverHandler) Accept(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	raceID, ok := uuidParam(c, "raceId", "race")
	if !ok {
		return
	}

	var req dto.AcceptWaiverRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	acc, err := h.waiverService.Accept(c.Request.Context(), services.AcceptWaiverInput{
		RaceID:     raceID,
		UserID:     userID,
		TemplateID: req.TemplateID,
		Answers:    req.Answers,
	}, h.now())
	if err != nil {
		var rejection *services.WaiverRejectionError
		switch {
		case errors.As(err, &rejection):
			_ = c.JSON(422, dto.WaiverRejectedResponse{
				Error:            "waiver_rejected",
				Missing:          rejection.Evaluation.Missing,
				BlockingMessages: rejection.Evaluation.Blocking,
			})
		case badInput(c, err):
		case errors.Is(err, services.ErrWaiverNotFound):
			c.NotFound("no waiver for this race")
		case errors.Is(err, services.ErrWaiverOutdated):
			conflict(c, "waiver_outdated", err.Error())
		default:
			logger.Log.Error("failed to accept waiver", "race_id", raceID, "error", err)
			c.InternalServerError("failed to accept waiver")
		}
		return
	}

	_ = c.JSON(201, acc)
}

func (h *WaiverHandler) Preview(c *drift.Context) {
	raceID, ok := h.guard.race(c)
	if !ok {
		return
	}

	var req dto.WaiverPreviewRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	rendered, err := h.waiverService.Preview(c.Request.Context(), raceID, req.Content)
	if errors.Is(err, services.ErrRaceNotFound) {
		c.NotFound("race not found")
		return
	}
	if err != nil {
		c.InternalServerError("failed to render waiver")
		return
	}

	_ = c.JSON(200, dto.WaiverPreviewResponse{Rendered: rendered})
}

func (h *WaiverHandler) Save(c *drift.Context) {
	raceID, ok := h.guard.race(c)
	if !ok {
		return
	}

	var req dto.SaveWaiverRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	userID := middleware.GetUserID(c)
	tmpl, err := h.waiverService.Save(c.Request.Context(), raceID, services.WaiverDraft{
		Content:    req.Content,
		Checkboxes: req.Checkboxes,
	}, userID)
	if err != nil {
		for _, target := range waiverDraftErrors {
			if errors.Is(err, target) {
				c.BadRequest(err.Error())
				return
			}
		}
		if errors.Is(err, services.ErrRaceNotFound) {
			c.NotFound("race not found")
			return
		}
		logger.Log.Error("failed to save waiver", "race_id", raceID, "error", err)
		c.InternalServerError("failed to save waiver")
		return
	}

	h.activityService.Log(c.Request.Context(), &userID, services.ActivityModuleWaivers, "published", map[string]any{
		"race_id":     raceID,
		"template_id": tmpl.ID,
		"questions":   len(tmpl.Checkboxes),
	})

	_ = c.JSON(201, tmpl)
}
