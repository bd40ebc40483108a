package handlers

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/timepulse/timepulse-api/internal/logger"
	"github.com/timepulse/timepulse-api/internal/middleware"
	"github.com/timepulse/timepulse-api/internal/models"
	"github.com/timepulse/timepulse-api/internal/services"
	"github.com/timepulse/timepulse-api/internal/storage"
	"github.com/timepulse/timepulse-api/pkg/dto"
)

// AdminHandler serves the super-admin back office. Every mutation is written
// to the activity log.
type AdminHandler struct {
	templates EmailTemplateServiceInterface
	activity  ActivityServiceInterface
	sessions  SessionServiceInterface
	assets    AssetServiceInterface
	maxUpload int64
}

func NewAdminHandler(
	templates EmailTemplateServiceInterface,
	activity ActivityServiceInterface,
	sessions SessionServiceInterface,
	assets AssetServiceInterface,
	maxUpload int64,
) *AdminHandler {
	if maxUpload <= 0 {
		maxUpload = services.MaxAssetSize
	}
	return &AdminHandler{
		templates: templates,
		activity:  activity,
		sessions:  sessions,
		assets:    assets,
		maxUpload: maxUpload,
	}
}

func (h *AdminHandler) ListEmailTemplates(c *drift.Context) {
	templates, err := h.templates.List(c.Request.Context())
	if err != nil {
		c.InternalServerError("failed to list email templates")
		return
	}

	_ = c.JSON(200, templates)
}

func (h *AdminHandler) UpdateEmailTemplate(c *drift.Context) {
	id, ok := uuidParam(c, "id", "template")
	if !ok {
		return
	}

	var req dto.UpdateEmailTemplateRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	userID := middleware.GetUserID(c)
	tmpl, err := h.templates.Update(c.Request.Context(), id, services.UpdateEmailTemplateInput{
		Subject:  req.Subject,
		HTMLBody: req.HTMLBody,
		TextBody: req.TextBody,
		IsActive: req.IsActive,
	}, userID)
	if err != nil {
		switch {
		case badInput(c, err):
		case errors.Is(err, services.ErrEmailTemplateNotFound):
			c.NotFound("email template not found")
		default:
			c.InternalServerError("failed to update email template")
		}
		return
	}

	h.activity.Log(c.Request.Context(), &userID, services.ActivityModuleEmailTemplates, "updated", map[string]any{
		"template_id":  tmpl.ID,
		"template_key": tmpl.TemplateKey,
	})

	_ = c.JSON(200, tmpl)
}

func (h *AdminHandler) DuplicateEmailTemplate(c *drift.Context) {
	id, ok := uuidParam(c, "id", "template")
	if !ok {
		return
	}

	userID := middleware.GetUserID(c)
	tmpl, err := h.templates.Duplicate(c.Request.Context(), id, userID)
	if errors.Is(err, services.ErrEmailTemplateNotFound) {
		c.NotFound("email template not found")
		return
	}
	if err != nil {
		c.InternalServerError("failed to duplicate email template")
		return
	}

	h.activity.Log(c.Request.Context(), &userID, services.ActivityModuleEmailTemplates, "duplicated", map[string]any{
		"source_id":    id,
		"template_id":  tmpl.ID,
		"template_key": tmpl.TemplateKey,
	})

	_ = c.JSON(201, tmpl)
}

func (h *AdminHandler) ListActivityLogs(c *drift.Context) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	f := services.ActivityFilter{
		Limit:  limit,
		Offset: max(offset, 0),
		Module: c.QueryParam("module"),
		Action: c.QueryParam("action"),
	}
	if raw := c.QueryParam("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			c.BadRequest("invalid user id")
			return
		}
		f.UserID = &userID
	}

	logs, err := h.activity.List(c.Request.Context(), f)
	if err != nil {
		c.InternalServerError("failed to list activity logs")
		return
	}

	_ = c.JSON(200, dto.PageResponse[models.ActivityLog]{Items: logs, Limit: f.Limit, Offset: f.Offset})
}

func (h *AdminHandler) ListLoginSessions(c *drift.Context) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	var userID *uuid.UUID
	if raw := c.QueryParam("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.BadRequest("invalid user id")
			return
		}
		userID = &id
	}

	sessions, err := h.sessions.List(c.Request.Context(), limit, userID)
	if err != nil {
		c.InternalServerError("failed to list login sessions")
		return
	}

	_ = c.JSON(200, sessions)
}

func writeAssetError(c *drift.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		_ = c.JSON(503, dto.ErrorResponse{Error: "storage_unavailable", Message: err.Error()})
	case errors.Is(err, services.ErrAssetTooLarge):
		_ = c.JSON(413, dto.ErrorResponse{Error: "asset_too_large", Message: err.Error()})
	case errors.Is(err, services.ErrAssetTypeNotAllowed),
		errors.Is(err, services.ErrAssetKeyInvalid):
		c.BadRequest(err.Error())
	default:
		logger.Log.Error("email asset request failed", "error", err)
		c.InternalServerError("email asset request failed")
	}
}

func (h *AdminHandler) ListEmailAssets(c *drift.Context) {
	objects, err := h.assets.List(c.Request.Context())
	if err != nil {
		writeAssetError(c, err)
		return
	}

	_ = c.JSON(200, objects)
}

func (h *AdminHandler) UploadEmailAsset(c *drift.Context) {
	if err := c.Request.ParseMultipartForm(h.maxUpload); err != nil {
		c.BadRequest("invalid multipart form")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.BadRequest("file is required")
		return
	}
	defer file.Close()

	obj, err := h.assets.Upload(c.Request.Context(), header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		writeAssetError(c, err)
		return
	}

	userID := middleware.GetUserID(c)
	h.activity.Log(c.Request.Context(), &userID, services.ActivityModuleEmailAssets, "uploaded", map[string]any{
		"key":      obj.Key,
		"filename": header.Filename,
		"size":     obj.Size,
	})

	_ = c.JSON(201, obj)
}

func (h *AdminHandler) DeleteEmailAsset(c *drift.Context) {
	key, err := url.PathUnescape(c.Param("key"))
	if err != nil {
		c.BadRequest("invalid asset key")
		return
	}

	if err := h.assets.Delete(c.Request.Context(), key); err != nil {
		writeAssetError(c, err)
		return
	}

	userID := middleware.GetUserID(c)
	h.activity.Log(c.Request.Context(), &userID, services.ActivityModuleEmailAssets, "deleted", map[string]any{"key": key})

	_ = c.JSON(200, dto.MessageResponse{Message: "asset deleted"})
}
