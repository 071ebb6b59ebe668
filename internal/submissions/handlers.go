package submissions

import (
	"errors"
	"net/http"

	"algojudge/internal/db"
	"algojudge/internal/middleware"
	"algojudge/internal/problems"
	"algojudge/internal/push"
	"algojudge/internal/ws"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the coordinator over HTTP.
type Handlers struct {
	svc *Service
	hub *ws.Hub
}

func NewHandlers(svc *Service, hub *ws.Hub) *Handlers {
	return &Handlers{svc: svc, hub: hub}
}

// Register mounts the submission routes. The internal push route is
// deliberately outside the authenticated group; it is reached only by
// workers on the private network.
func (h *Handlers) Register(router *gin.Engine, requireAuth gin.HandlerFunc) {
	api := router.Group("/api/submissions", requireAuth)
	api.POST("/create", h.create)
	api.GET("/user", h.listForUser)
	api.GET("/:id", h.get)

	router.POST("/internal/push", h.internalPush)
}

type createRequest struct {
	UserCode string `json:"userCode"`
	Language string `json:"language"`
}

func (h *Handlers) create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthenticated"})
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	sub, err := h.svc.Create(c.Request.Context(), userID, c.Query("problemId"), req.UserCode, req.Language)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, sub)
	case errors.Is(err, problems.ErrProblemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Problem not found"})
	case errors.Is(err, ErrStubNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"message": "stub not found"})
	case isValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
	}
}

func (h *Handlers) get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthenticated"})
		return
	}

	sub, err := h.svc.Get(c.Request.Context(), userID, c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, sub)
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Submission not found"})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"message": "forbidden"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
	}
}

func (h *Handlers) listForUser(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthenticated"})
		return
	}

	subs, err := h.svc.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}
	c.JSON(http.StatusOK, subs)
}

// internalPush accepts a progress event from a worker process and fans
// it out to the user's local sessions.
func (h *Handlers) internalPush(c *gin.Context) {
	var env push.Envelope
	if err := c.ShouldBindJSON(&env); err != nil || env.UserID == "" || env.SubmissionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid push body"})
		return
	}

	h.hub.SendSubmissionUpdate(env.UserID, env.SubmissionID, env.Data)
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func isValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
