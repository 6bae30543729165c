package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/services"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/transport/httpdto"
)

type SignalingHandler struct {
	service      *services.SignalingService
	awaitTimeout time.Duration
}

func NewSignalingHandler(service *services.SignalingService, awaitTimeout time.Duration) *SignalingHandler {
	return &SignalingHandler{service: service, awaitTimeout: awaitTimeout}
}

type connectRequest struct {
	ReceivingServer uuid.UUID `json:"receiving_server" binding:"required"`
	TransportID     uuid.UUID `json:"transport_id" binding:"required"`
	CallID          uuid.UUID `json:"call_id" binding:"required"`
	PeerID          uuid.UUID `json:"peer_id" binding:"required"`
	TrackID         uuid.UUID `json:"track_id"`
	IP              string    `json:"ip" binding:"required"`
	Port            int       `json:"port" binding:"required"`
	SRTPParameters  string    `json:"srtp_parameters"`
	ProducerID      uuid.UUID `json:"producer_id"`
	ProducerSctp    string    `json:"producer_sctp_stream_parameters"`
	ProducerLabel   string    `json:"producer_label"`
	ProducerProto   string    `json:"producer_protocol"`
}

// Connect files a cross-server transport-connect request and waits for the
// owning server to complete it.
func (h *SignalingHandler) Connect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	record, err := h.service.RequestConnect(c.Request.Context(), services.RequestConnectParams{
		ReceivingServer: req.ReceivingServer,
		TransportID:     req.TransportID,
		CallID:          req.CallID,
		PeerID:          req.PeerID,
		TrackID:         req.TrackID,
		IP:              req.IP,
		Port:            req.Port,
		SRTPParameters:  req.SRTPParameters,
		ProducerID:      req.ProducerID,
		ProducerSctp:    req.ProducerSctp,
		ProducerLabel:   req.ProducerLabel,
		ProducerProto:   req.ProducerProto,
	})
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	if err := h.service.AwaitCompletion(c.Request.Context(), record, h.awaitTimeout); err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"request_id": record.ID, "connected": true}))
}

func (h *SignalingHandler) TeardownTransport(c *gin.Context) {
	transportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid transport id", "INVALID_REQUEST"))
		return
	}
	if err := h.service.TeardownTransport(c.Request.Context(), transportID); err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"torn_down": true}))
}
