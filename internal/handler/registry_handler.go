package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/services"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/transport/httpdto"
)

type RegistryHandler struct {
	service   *services.RegistryService
	staleness time.Duration
}

func NewRegistryHandler(service *services.RegistryService, staleness time.Duration) *RegistryHandler {
	return &RegistryHandler{service: service, staleness: staleness}
}

func (h *RegistryHandler) ListLive(c *gin.Context) {
	servers, err := h.service.ListLiveServers(c.Request.Context(), h.staleness)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"servers": servers}))
}
