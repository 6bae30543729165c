package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/services"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/transport/httpdto"
)

type APIKeyHandler struct {
	service *services.APIKeyService
}

func NewAPIKeyHandler(service *services.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{service: service}
}

// forUserParam reads the optional for_user query parameter. Only admins may
// operate on another user's key; the service enforces that.
func forUserParam(c *gin.Context) (*uuid.UUID, error) {
	raw := c.Query("for_user")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (h *APIKeyHandler) Fetch(c *gin.Context) {
	id, err := services.IdentityFromContext(c.Request.Context())
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	forUser, err := forUserParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid for_user", "INVALID_REQUEST"))
		return
	}
	key, err := h.service.FetchAPIKey(c.Request.Context(), id.UserID, forUser)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"key": key}))
}

func (h *APIKeyHandler) Roll(c *gin.Context) {
	id, err := services.IdentityFromContext(c.Request.Context())
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	forUser, err := forUserParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid for_user", "INVALID_REQUEST"))
		return
	}
	key, err := h.service.RollAPIKey(c.Request.Context(), id.UserID, forUser)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"key": key}))
}
