package dto

type ConsentURLResponse struct {
	URL string `json:"url"`
}

type ExchangeCodeRequest struct {
	Code string `json:"code"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is used for statuses drift has no helper for (409, 422).
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
