package handlers

import (
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/timepulse/timepulse-api/internal/middleware"
	"github.com/timepulse/timepulse-api/internal/sse"
)

// SSEHandler streams realtime events for one topic: a team, an event's bib
// exchange or a race's waiver.
type SSEHandler struct {
	hub         HubInterface
	teamService TeamServiceInterface
	guard       organizerGuard
}

func NewSSEHandler(hub HubInterface, teamService TeamServiceInterface, eventService EventServiceInterface) *SSEHandler {
	return &SSEHandler{
		hub:         hub,
		teamService: teamService,
		guard:       organizerGuard{events: eventService},
	}
}

func (h *SSEHandler) TeamEvents(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	teamID, ok := uuidParam(c, "id", "team")
	if !ok {
		return
	}

	isMember, err := h.teamService.IsMember(c.Request.Context(), teamID, userID)
	if err != nil || !isMember {
		c.NotFound("team not found")
		return
	}

	h.stream(c, userID, teamID)
}

func (h *SSEHandler) BibExchangeEvents(c *drift.Context) {
	eventID, ok := h.guard.event(c)
	if !ok {
		return
	}
	h.stream(c, middleware.GetUserID(c), eventID)
}

func (h *SSEHandler) WaiverEvents(c *drift.Context) {
	raceID, ok := h.guard.race(c)
	if !ok {
		return
	}
	h.stream(c, middleware.GetUserID(c), raceID)
}

func (h *SSEHandler) stream(c *drift.Context, userID, topic uuid.UUID) {
	sseCtx := c.SSE()

	clientID := uuid.New().String()
	client := &sse.Client{
		ID:     clientID,
		UserID: userID,
		Topics: map[uuid.UUID]bool{topic: true},
		Send:   make(chan []byte, 256),
	}

	h.hub.Register(client)
	defer h.hub.Unregister(client)

	if err := sseCtx.SendJSON(map[string]string{
		"type":      "connected",
		"client_id": clientID,
		"topic":     topic.String(),
	}, "system", ""); err != nil {
		return
	}

	done := c.Request.Context().Done()
	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if err := sseCtx.Send(string(msg), "message", ""); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
