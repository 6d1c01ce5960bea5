package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/kiddies/internal/database"
	"github.com/charlesng35/kiddies/internal/middleware"
	"github.com/charlesng35/kiddies/internal/services"
	appErrors "github.com/charlesng35/kiddies/pkg/errors"
	"github.com/charlesng35/kiddies/pkg/response"
)

// SettingsHandler exposes the organisation settings.
type SettingsHandler struct {
	settings *services.SettingsService
}

func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

type updateServicesRequest struct {
	Services []database.ServiceSlot `json:"services" validate:"required,min=1"`
}

type updateMottoRequest struct {
	Motto string `json:"motto" validate:"notblank"`
}

type updateLogoRequest struct {
	Logo string `json:"logo"`
}

type putSettingRequest struct {
	Value json.RawMessage `json:"value"`
}

// GET /api/settings/services
func (h *SettingsHandler) Services(c *gin.Context) {
	slots, err := h.settings.Services(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"services": slots})
}

// PUT /api/settings/services
func (h *SettingsHandler) UpdateServices(c *gin.Context) {
	var req updateServicesRequest
	if !bindAndValidate(c, &req) {
		return
	}

	slots, err := h.settings.UpdateServices(requestContext(c), req.Services, c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Services updated successfully", gin.H{"services": slots})
}

// GET /api/settings/motto
func (h *SettingsHandler) Motto(c *gin.Context) {
	motto, err := h.settings.Motto(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"motto": motto})
}

// PUT /api/settings/motto
func (h *SettingsHandler) UpdateMotto(c *gin.Context) {
	var req updateMottoRequest
	if !bindAndValidate(c, &req) {
		return
	}

	motto, err := h.settings.UpdateMotto(requestContext(c), req.Motto, c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Motto updated successfully", gin.H{"motto": motto})
}

// GET /api/settings/logo
func (h *SettingsHandler) Logo(c *gin.Context) {
	logo, err := h.settings.Logo(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"logo": logo})
}

// PUT /api/settings/logo
func (h *SettingsHandler) UpdateLogo(c *gin.Context) {
	var req updateLogoRequest
	if !bindAndValidate(c, &req) {
		return
	}

	logo, err := h.settings.UpdateLogo(requestContext(c), req.Logo, c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		response.Error(c, err)
		return
	}

	message := "Logo updated successfully"
	if logo == nil {
		message = "Logo removed successfully"
	}
	response.SuccessWithMessage(c, http.StatusOK, message, gin.H{"logo": logo})
}

// GET /api/settings/:key
func (h *SettingsHandler) Get(c *gin.Context) {
	setting, err := h.settings.Get(requestContext(c), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"key": setting.Key, "value": json.RawMessage(setting.Value)})
}

// PUT /api/settings/:key
func (h *SettingsHandler) Put(c *gin.Context) {
	var req putSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return
	}

	setting, err := h.settings.Put(requestContext(c), c.Param("key"), req.Value, c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Setting updated successfully", gin.H{
		"key":   setting.Key,
		"value": json.RawMessage(setting.Value),
	})
}
