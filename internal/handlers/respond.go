package handlers

import (
	"errors"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/timepulse/timepulse-api/internal/services"
	"github.com/timepulse/timepulse-api/pkg/dto"
)

func conflict(c *drift.Context, code, message string) {
	_ = c.JSON(409, dto.ErrorResponse{Error: code, Message: message})
}

func unprocessable(c *drift.Context, code, message string) {
	_ = c.JSON(422, dto.ErrorResponse{Error: code, Message: message})
}

// badInput answers 400 when err is a field validation failure.
func badInput(c *drift.Context, err error) bool {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		c.BadRequest(verr.Error())
		return true
	}
	return false
}

func uuidParam(c *drift.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.BadRequest("invalid " + what + " id")
		return uuid.Nil, false
	}
	return id, true
}
