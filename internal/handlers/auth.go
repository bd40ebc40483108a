package handlers

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/timepulse/timepulse-api/internal/config"
	"github.com/timepulse/timepulse-api/internal/logger"
	"github.com/timepulse/timepulse-api/internal/middleware"
	"github.com/timepulse/timepulse-api/internal/oauth"
	"github.com/timepulse/timepulse-api/internal/services"
	"github.com/timepulse/timepulse-api/pkg/dto"
)

const (
	stateTTL    = 10 * time.Minute
	authCodeTTL = 30 * time.Second
)

type AuthHandler struct {
	cfg            *config.Config
	providers      oauth.Registry
	userService    UserServiceInterface
	sessionService SessionServiceInterface
	jwtService     JWTServiceInterface
	states         sync.Map
	authCodes      sync.Map
}

type stateData struct {
	expiresAt time.Time
}

type authCodeData struct {
	userID    uuid.UUID
	expiresAt time.Time
}

func NewAuthHandler(
	cfg *config.Config,
	providers oauth.Registry,
	userService UserServiceInterface,
	sessionService SessionServiceInterface,
	jwtService JWTServiceInterface,
) *AuthHandler {
	h := &AuthHandler{
		cfg:            cfg,
		providers:      providers,
		userService:    userService,
		sessionService: sessionService,
		jwtService:     jwtService,
	}

	go h.cleanupStates()

	return h
}

func (h *AuthHandler) cleanupStates() {
	ticker := time.NewTicker(1 * time.Minute)
	for range ticker.C {
		now := time.Now()
		h.states.Range(func(key, value any) bool {
			if sd, ok := value.(stateData); ok && now.After(sd.expiresAt) {
				h.states.Delete(key)
			}
			return true
		})
		h.authCodes.Range(func(key, value any) bool {
			if acd, ok := value.(authCodeData); ok && now.After(acd.expiresAt) {
				h.authCodes.Delete(key)
			}
			return true
		})
	}
}

func (h *AuthHandler) GetConsentURL(c *drift.Context) {
	provider := c.Param("provider")

	p, err := h.providers.Get(provider)
	if err != nil {
		c.BadRequest("unsupported provider: " + provider)
		return
	}

	state, err := oauth.GenerateState()
	if err != nil {
		c.InternalServerError("failed to generate state")
		return
	}

	h.states.Store(state, stateData{expiresAt: time.Now().Add(stateTTL)})

	_ = c.JSON(200, dto.ConsentURLResponse{
		URL: p.GetConsentURL(state),
	})
}

func (h *AuthHandler) Callback(c *drift.Context) {
	p, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		h.redirectWithError(c, "unsupported provider")
		return
	}

	state := c.QueryParam("state")
	if state == "" {
		h.redirectWithError(c, "missing state parameter")
		return
	}

	sd, ok := h.states.LoadAndDelete(state)
	if !ok {
		h.redirectWithError(c, "invalid or expired state")
		return
	}

	sdTyped, ok := sd.(stateData)
	if !ok || time.Now().After(sdTyped.expiresAt) {
		h.redirectWithError(c, "state expired")
		return
	}

	code := c.QueryParam("code")
	if code == "" {
		h.redirectWithError(c, "missing authorization code")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	userInfo, err := p.ExchangeCode(ctx, code)
	if err != nil {
		logger.Log.Warn("oauth code exchange failed", "provider", p.Name(), "error", err)
		h.redirectWithError(c, "failed to exchange code")
		return
	}

	user, err := h.userService.FindOrCreateFromOAuth(ctx, userInfo)
	if err != nil {
		logger.Log.Error("failed to upsert oauth user", "email", userInfo.Email, "error", err)
		h.redirectWithError(c, "failed to create user")
		return
	}

	authCode, err := oauth.GenerateState()
	if err != nil {
		h.redirectWithError(c, "failed to generate auth code")
		return
	}

	h.authCodes.Store(authCode, authCodeData{
		userID:    user.ID,
		expiresAt: time.Now().Add(authCodeTTL),
	})

	redirectURL := fmt.Sprintf("%s?code=%s",
		h.cfg.FrontendCallbackURL,
		url.QueryEscape(authCode),
	)

	h.renderCallbackPage(c, redirectURL, "")
}

func (h *AuthHandler) ExchangeCode(c *drift.Context) {
	var req dto.ExchangeCodeRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.Code == "" {
		c.BadRequest("code is required")
		return
	}

	acd, ok := h.authCodes.LoadAndDelete(req.Code)
	if !ok {
		c.Unauthorized("invalid or expired code")
		return
	}

	codeData, ok := acd.(authCodeData)
	if !ok || time.Now().After(codeData.expiresAt) {
		c.Unauthorized("code expired")
		return
	}

	ctx := c.Request.Context()

	user, err := h.userService.GetByID(ctx, codeData.userID)
	if err != nil {
		c.Unauthorized("user not found")
		return
	}

	h.issueTokens(c, user.ID, user.Email, user.GlobalRole)
}

func (h *AuthHandler) RefreshToken(c *drift.Context) {
	var req dto.RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.RefreshToken == "" {
		c.BadRequest("refresh_token is required")
		return
	}

	userID, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		c.Unauthorized("invalid refresh token")
		return
	}

	tokenHash := services.HashToken(req.RefreshToken)
	ctx := c.Request.Context()

	storedUserID, err := h.sessionService.Validate(ctx, tokenHash)
	if err != nil || storedUserID != userID {
		c.Unauthorized("refresh token not found or expired")
		return
	}

	user, err := h.userService.GetByID(ctx, userID)
	if err != nil {
		c.Unauthorized("user not found")
		return
	}

	if err := h.sessionService.Revoke(ctx, tokenHash); err != nil {
		c.InternalServerError("failed to revoke old token")
		return
	}

	h.issueTokens(c, user.ID, user.Email, user.GlobalRole)
}

// issueTokens mints a token pair and records the refresh token as a login session.
func (h *AuthHandler) issueTokens(c *drift.Context, userID uuid.UUID, email, globalRole string) {
	tokenPair, err := h.jwtService.GenerateTokenPair(userID, email, globalRole)
	if err != nil {
		c.InternalServerError("failed to generate tokens")
		return
	}

	tokenHash := services.HashToken(tokenPair.RefreshToken)
	expiresAt := time.Now().Add(h.jwtService.RefreshExpiry())
	if err := h.sessionService.Store(c.Request.Context(), userID, tokenHash, sessionMeta(c), expiresAt); err != nil {
		c.InternalServerError("failed to store refresh token")
		return
	}

	_ = c.JSON(200, dto.TokenResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	})
}

func sessionMeta(c *drift.Context) services.SessionMeta {
	var meta services.SessionMeta

	ip := c.GetHeader("X-Forwarded-For")
	if ip != "" {
		ip = strings.TrimSpace(strings.Split(ip, ",")[0])
	} else if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		ip = host
	}
	if ip != "" {
		meta.IPAddress = &ip
	}
	if ua := c.GetHeader("User-Agent"); ua != "" {
		meta.UserAgent = &ua
	}
	return meta
}

func (h *AuthHandler) Logout(c *drift.Context) {
	var req dto.RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.RefreshToken != "" {
		tokenHash := services.HashToken(req.RefreshToken)
		_ = h.sessionService.Revoke(c.Request.Context(), tokenHash)
	}

	_ = c.JSON(200, dto.MessageResponse{Message: "logged out"})
}

func (h *AuthHandler) LogoutAll(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	if err := h.sessionService.RevokeAll(c.Request.Context(), userID); err != nil {
		c.InternalServerError("failed to revoke tokens")
		return
	}

	_ = c.JSON(200, dto.MessageResponse{Message: "all sessions logged out"})
}

func (h *AuthHandler) redirectWithError(c *drift.Context, errMsg string) {
	redirectURL := fmt.Sprintf("%s?error=%s",
		h.cfg.FrontendCallbackURL,
		url.QueryEscape(errMsg),
	)
	h.renderCallbackPage(c, redirectURL, errMsg)
}

func (h *AuthHandler) renderCallbackPage(c *drift.Context, redirectURL, errMsg string) {
	title := "Connexion réussie"
	heading := "Vous êtes connecté"
	subtitle := "Redirection vers Timepulse..."
	headingColor := "#0f172a"
	statusCode := 200

	if errMsg != "" {
		title = "Échec de la connexion"
		heading = "La connexion a échoué"
		subtitle = errMsg
		headingColor = "#b91c1c"
		statusCode = 400
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html lang="fr">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
    <style>
        body { font-family: system-ui, -apple-system, sans-serif; background: #f8fafc; color: #334155; margin: 0; padding: 40px 20px; }
        .card { max-width: 400px; margin: 0 auto; background: #fff; border: 1px solid #e2e8f0; border-radius: 8px; padding: 40px 32px; text-align: center; }
        h1 { font-size: 20px; font-weight: 600; color: %s; margin: 0 0 8px 0; }
        p { color: #64748b; font-size: 14px; margin: 0; }
        a { color: #ea580c; }
    </style>
</head>
<body>
    <div class="card">
        <h1>%s</h1>
        <p>%s</p>
        <p><a href=%q>Continuer</a></p>
    </div>
    <script>window.location.href = %q;</script>
</body>
</html>`, title, headingColor, heading, subtitle, redirectURL, redirectURL)

	_ = c.HTML(statusCode, html)
}
