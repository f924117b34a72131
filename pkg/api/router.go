package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pulsefit/checkin-sync/pkg/session"
	"github.com/pulsefit/checkin-sync/schema"
)

// SessionService is the part of the session service the HTTP surface needs.
type SessionService interface {
	CheckIn(ctx context.Context, memberID string, lat, lon *float64) (*schema.SessionRecord, error)
	CheckOut(ctx context.Context, memberID string) (*schema.SessionRecord, error)
}

type Handler struct {
	svc SessionService
}

// NewRouter builds the gin engine serving the check-in API.
func NewRouter(svc SessionService) *gin.Engine {
	h := &Handler{svc: svc}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		v1.POST("/checkin", h.CheckIn)
		v1.POST("/checkout", h.CheckOut)
	}

	return router
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type checkInRequest struct {
	MemberID  string   `json:"member_id" binding:"required"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *Handler) CheckIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.svc.CheckIn(c.Request.Context(), req.MemberID, req.Latitude, req.Longitude)
	if err != nil {
		logrus.WithError(err).WithField("member_id", req.MemberID).Error("check-in failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "check-in failed"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

type checkOutRequest struct {
	MemberID string `json:"member_id" binding:"required"`
}

func (h *Handler) CheckOut(c *gin.Context) {
	var req checkOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.svc.CheckOut(c.Request.Context(), req.MemberID)
	if err != nil {
		if err == session.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "no open session"})
			return
		}
		logrus.WithError(err).WithField("member_id", req.MemberID).Error("check-out failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "check-out failed"})
		return
	}

	c.JSON(http.StatusOK, rec)
}
