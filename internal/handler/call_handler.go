package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/services"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/transport/httpdto"
)

type CallHandler struct {
	service *services.CallService
}

func NewCallHandler(service *services.CallService) *CallHandler {
	return &CallHandler{service: service}
}

type createCallRequest struct {
	HuntID   uuid.UUID `json:"hunt_id" binding:"required"`
	PuzzleID uuid.UUID `json:"puzzle_id" binding:"required"`
}

func (h *CallHandler) Create(c *gin.Context) {
	var req createCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	item, err := h.service.CreateCall(c.Request.Context(), req.HuntID, req.PuzzleID)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(item))
}

func (h *CallHandler) GetByID(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid call id", "INVALID_REQUEST"))
		return
	}
	item, err := h.service.GetCall(c.Request.Context(), callID)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(item))
}

// EnsureRouter provisions the call's router if nobody has yet, or returns
// the existing one. Safe to call from every joining client.
func (h *CallHandler) EnsureRouter(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid call id", "INVALID_REQUEST"))
		return
	}
	router, err := h.service.EnsureRouter(c.Request.Context(), callID)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(router))
}

func (h *CallHandler) Close(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid call id", "INVALID_REQUEST"))
		return
	}
	if err := h.service.CloseCall(c.Request.Context(), callID); err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"closed": true}))
}

func (h *CallHandler) Join(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid call id", "INVALID_REQUEST"))
		return
	}
	id, err := services.IdentityFromContext(c.Request.Context())
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	peer, err := h.service.Join(c.Request.Context(), callID, id.UserID)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(peer))
}

func (h *CallHandler) Leave(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid call id", "INVALID_REQUEST"))
		return
	}
	id, err := services.IdentityFromContext(c.Request.Context())
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	if err := h.service.Leave(c.Request.Context(), callID, id.UserID); err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"left": true}))
}

func (h *CallHandler) ListPeers(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid call id", "INVALID_REQUEST"))
		return
	}
	peers, err := h.service.ListPeers(c.Request.Context(), callID)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"peers": peers}))
}

type muteRequest struct {
	Muted bool `json:"muted"`
}

func (h *CallHandler) SetMuted(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid call id", "INVALID_REQUEST"))
		return
	}
	var req muteRequest
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
	peer, err := h.service.SetMuted(c.Request.Context(), callID, id.UserID, req.Muted)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(peer))
}

type deafenRequest struct {
	Deafened bool `json:"deafened"`
}

func (h *CallHandler) SetDeafened(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid call id", "INVALID_REQUEST"))
		return
	}
	var req deafenRequest
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
	peer, err := h.service.SetDeafened(c.Request.Context(), callID, id.UserID, req.Deafened)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(peer))
}

type remoteMuteRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// RemoteMute force-mutes another peer. Admin only; the target keeps a record
// of who muted them.
func (h *CallHandler) RemoteMute(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid call id", "INVALID_REQUEST"))
		return
	}
	var req remoteMuteRequest
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
	peer, err := h.service.RemoteMute(c.Request.Context(), callID, req.UserID, id.UserID)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(peer))
}
