package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/services"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/transport/httpdto"
)

type AuthHandler struct {
	service *services.AuthService
}

func NewAuthHandler(service *services.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"display_name" binding:"required"`
	Password    string `json:"password" binding:"required,min=8"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	user, err := h.service.CreateUser(c.Request.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(gin.H{
		"id":           user.ID,
		"email":        user.Email,
		"display_name": user.DisplayName,
		"is_admin":     user.IsAdmin,
	}))
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	token, user, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{
		"access_token": token,
		"user": gin.H{
			"id":           user.ID,
			"email":        user.Email,
			"display_name": user.DisplayName,
			"is_admin":     user.IsAdmin,
		},
	}))
}

func (h *AuthHandler) Me(c *gin.Context) {
	id, err := services.IdentityFromContext(c.Request.Context())
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	user, err := h.service.GetUser(c.Request.Context(), id.UserID)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{
		"id":           user.ID,
		"email":        user.Email,
		"display_name": user.DisplayName,
		"is_admin":     user.IsAdmin,
	}))
}
