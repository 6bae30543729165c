package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/services"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/transport/httpdto"
)

type SettingsHandler struct {
	service *services.PublicationService
}

func NewSettingsHandler(service *services.PublicationService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

func (h *SettingsHandler) TeamName(c *gin.Context) {
	doc, err := h.service.TeamNameDoc(c.Request.Context())
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(doc))
}

type setTeamNameRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *SettingsHandler) SetTeamName(c *gin.Context) {
	id, err := services.IdentityFromContext(c.Request.Context())
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	if !id.IsAdmin {
		status, body := httpdto.FromError(jr_errors.ErrForbidden)
		c.JSON(status, body)
		return
	}
	var req setTeamNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if err := h.service.SetTeamName(c.Request.Context(), req.Name); err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"name": req.Name}))
}

func (h *SettingsHandler) HasUsers(c *gin.Context) {
	doc, err := h.service.HasUsersDoc(c.Request.Context())
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(doc))
}
