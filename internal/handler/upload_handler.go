package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/services"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/transport/httpdto"
)

type UploadHandler struct {
	service *services.UploadService
}

func NewUploadHandler(service *services.UploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

type createTokenRequest struct {
	Asset    string `json:"asset" binding:"required"`
	MimeType string `json:"mime_type" binding:"required"`
}

// CreateToken issues a short-lived single-use token authorizing one upload.
func (h *UploadHandler) CreateToken(c *gin.Context) {
	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	id, err := services.IdentityFromContext(c.Request.Context())
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	token, err := h.service.CreateToken(c.Request.Context(), id.UserID, req.Asset, req.MimeType)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(gin.H{"token": token.ID}))
}

// Upload consumes a token and stores the request body. The token route is
// unauthenticated; possession of the token is the authorization.
func (h *UploadHandler) Upload(c *gin.Context) {
	tokenID, err := uuid.Parse(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid token", "INVALID_REQUEST"))
		return
	}
	if err := h.service.Consume(c.Request.Context(), tokenID, c.Request.Body); err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"uploaded": true}))
}
