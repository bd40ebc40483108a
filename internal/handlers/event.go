package handlers

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/timepulse/timepulse-api/internal/middleware"
	"github.com/timepulse/timepulse-api/internal/models"
)

type EventHandler struct {
	eventService EventServiceInterface
}

func NewEventHandler(eventService EventServiceInterface) *EventHandler {
	return &EventHandler{eventService: eventService}
}

func (h *EventHandler) List(c *drift.Context) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	events, err := h.eventService.ListPublished(c.Request.Context(), limit)
	if err != nil {
		c.InternalServerError("failed to list events")
		return
	}

	_ = c.JSON(200, events)
}

// organizerGuard answers for the organizer routes: the caller must own the
// event (or race) named in the path, or be a super admin.
type organizerGuard struct {
	events EventServiceInterface
}

func (g organizerGuard) event(c *drift.Context) (uuid.UUID, bool) {
	eventID, ok := uuidParam(c, "eventId", "event")
	if !ok {
		return uuid.Nil, false
	}
	return eventID, g.check(c, func(userID uuid.UUID) (bool, error) {
		return g.events.IsOrganizer(c.Request.Context(), eventID, userID)
	})
}

func (g organizerGuard) race(c *drift.Context) (uuid.UUID, bool) {
	raceID, ok := uuidParam(c, "raceId", "race")
	if !ok {
		return uuid.Nil, false
	}
	return raceID, g.check(c, func(userID uuid.UUID) (bool, error) {
		return g.events.IsRaceOrganizer(c.Request.Context(), raceID, userID)
	})
}

func (g organizerGuard) check(c *drift.Context, owns func(uuid.UUID) (bool, error)) bool {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return false
	}
	if middleware.GetGlobalRole(c) == models.GlobalRoleSuperAdmin {
		return true
	}

	ok, err := owns(userID)
	if err != nil {
		c.InternalServerError("failed to check permissions")
		return false
	}
	if !ok {
		c.Forbidden("you do not organize this event")
		return false
	}
	return true
}
