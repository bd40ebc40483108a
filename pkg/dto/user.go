package dto

import (
	"github.com/google/uuid"
	"github.com/timepulse/timepulse-api/internal/models"
)

type UserResponse struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	Provider   string    `json:"provider"`
	GlobalRole string    `json:"global_role"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		AvatarURL:  u.AvatarURL,
		Provider:   u.Provider,
		GlobalRole: u.GlobalRole,
	}
}

type UpdateUserRequest struct {
	Name string `json:"name"`
}
