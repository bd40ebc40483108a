package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/timepulse/timepulse-api/internal/middleware"
	"github.com/timepulse/timepulse-api/internal/models"
	"github.com/timepulse/timepulse-api/tests/testutil"
)

func TestEventHandler_List(t *testing.T) {
	mockEventService := new(testutil.MockEventService)
	handler := NewEventHandler(mockEventService)

	mockEventService.On("ListPublished", mock.Anything, 5).Return([]models.Event{
		{ID: uuid.New(), Name: "Festival Trail Vosges", Slug: "festival-trail-vosges", StartDate: time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC), IsPublished: true},
	}, nil)

	app := drift.New()
	app.Get("/events", handler.List)

	rec := doJSON(app, http.MethodGet, "/events?limit=5", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "festival-trail-vosges")
	mockEventService.AssertExpectations(t)
}

func TestEventHandler_List_Error(t *testing.T) {
	mockEventService := new(testutil.MockEventService)
	handler := NewEventHandler(mockEventService)

	mockEventService.On("ListPublished", mock.Anything, 0).Return(nil, errors.New("db down"))

	app := drift.New()
	app.Get("/events", handler.List)

	rec := doJSON(app, http.MethodGet, "/events", nil, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func guardedApp(guard organizerGuard, jwtAuth drift.HandlerFunc) http.Handler {
	app := drift.New()
	app.Use(jwtAuth)
	app.Get("/organizer/events/:eventId", func(c *drift.Context) {
		if id, ok := guard.event(c); ok {
			_ = c.JSON(http.StatusOK, map[string]string{"event_id": id.String()})
		}
	})
	app.Get("/organizer/races/:raceId", func(c *drift.Context) {
		if id, ok := guard.race(c); ok {
			_ = c.JSON(http.StatusOK, map[string]string{"race_id": id.String()})
		}
	})
	return app
}

func TestOrganizerGuard_Event(t *testing.T) {
	jwtSvc := newTestJWTService()
	eventID, ownerID, otherID := uuid.New(), uuid.New(), uuid.New()

	tests := []struct {
		name       string
		token      string
		setup      func(m *testutil.MockEventService)
		wantStatus int
	}{
		{
			name:  "owner",
			token: generateTestToken(t, jwtSvc, ownerID, "owner@example.com"),
			setup: func(m *testutil.MockEventService) {
				m.On("IsOrganizer", mock.Anything, eventID, ownerID).Return(true, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "someone else",
			token: generateTestToken(t, jwtSvc, otherID, "other@example.com"),
			setup: func(m *testutil.MockEventService) {
				m.On("IsOrganizer", mock.Anything, eventID, otherID).Return(false, nil)
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:  "lookup fails",
			token: generateTestToken(t, jwtSvc, otherID, "other@example.com"),
			setup: func(m *testutil.MockEventService) {
				m.On("IsOrganizer", mock.Anything, eventID, otherID).Return(false, errors.New("db down"))
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "super admin",
			token:      generateAdminToken(t, jwtSvc, otherID),
			setup:      func(m *testutil.MockEventService) {},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockEventService := new(testutil.MockEventService)
			tt.setup(mockEventService)
			app := guardedApp(organizerGuard{events: mockEventService}, middleware.Auth(jwtSvc))

			rec := doJSON(app, http.MethodGet, "/organizer/events/"+eventID.String(), nil, tt.token)

			assert.Equal(t, tt.wantStatus, rec.Code)
			mockEventService.AssertExpectations(t)
		})
	}
}

func TestOrganizerGuard_Race(t *testing.T) {
	jwtSvc := newTestJWTService()
	mockEventService := new(testutil.MockEventService)
	raceID, ownerID := uuid.New(), uuid.New()

	mockEventService.On("IsRaceOrganizer", mock.Anything, raceID, ownerID).Return(true, nil)
	app := guardedApp(organizerGuard{events: mockEventService}, middleware.Auth(jwtSvc))

	rec := doJSON(app, http.MethodGet, "/organizer/races/"+raceID.String(), nil, generateTestToken(t, jwtSvc, ownerID, "owner@example.com"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), raceID.String())

	rec = doJSON(app, http.MethodGet, "/organizer/races/not-a-uuid", nil, generateTestToken(t, jwtSvc, ownerID, "owner@example.com"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
