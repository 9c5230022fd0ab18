package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-backend/internal/dtos"
)

type SettingsHandler struct {
	Settings SettingsStore
	Audit    Auditor
}

func NewSettingsHandler(s SettingsStore, a Auditor) *SettingsHandler {
	return &SettingsHandler{Settings: s, Audit: a}
}

// GetAI is GET /settings/ai. The API key is only ever returned masked.
func (h *SettingsHandler) GetAI(c *gin.Context) {
	resp, err := h.Settings.GetAI(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SettingsHandler) UpdateAI(c *gin.Context) {
	var req dtos.AISettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	resp, err := h.Settings.UpdateAI(c.Request.Context(), &req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.Audit, "settings.ai", "ai_provider_setting", 0, gin.H{
		"provider":    resp.Provider,
		"model":       resp.Model,
		"key_changed": req.APIKey != nil,
	})
	c.JSON(http.StatusOK, resp)
}

// TestAI is POST /settings/ai/test. A failing provider is reported in the
// body, not as an HTTP error.
func (h *SettingsHandler) TestAI(c *gin.Context) {
	c.JSON(http.StatusOK, h.Settings.TestAI(c.Request.Context()))
}

func (h *SettingsHandler) List(c *gin.Context) {
	list, err := h.Settings.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *SettingsHandler) Get(c *gin.Context) {
	st, err := h.Settings.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *SettingsHandler) Set(c *gin.Context) {
	var req dtos.SettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	key := c.Param("key")
	st, err := h.Settings.Set(c.Request.Context(), key, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.Audit, "settings.set", "system_setting", 0, gin.H{"key": key, "value": req.Value})
	c.JSON(http.StatusOK, st)
}
