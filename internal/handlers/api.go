package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pathway/internal/apperr"
	"pathway/internal/middleware"
	"pathway/internal/services"
	"pathway/internal/utils"
)

// Pinger reports whether the database is reachable.
type Pinger func(ctx context.Context) error

// APIHandler serves the JSON API used by the web client.
type APIHandler struct {
	engagement  *services.EngagementService
	discussions *services.DiscussionService
	ping        Pinger
	log         zerolog.Logger
}

func NewAPIHandler(engagement *services.EngagementService, discussions *services.DiscussionService, ping Pinger, log zerolog.Logger) *APIHandler {
	return &APIHandler{
		engagement:  engagement,
		discussions: discussions,
		ping:        ping,
		log:         log.With().Str("handler", "api").Logger(),
	}
}

func (h *APIHandler) ListDiscussions(c *gin.Context) {
	page, err := h.discussions.List(c.Request.Context(), services.ListParams{
		Category: c.Query("category"),
		Sort:     c.Query("sort"),
		Page:     utils.StringToInt(c.Query("page")),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *APIHandler) CreateDiscussion(c *gin.Context) {
	var in services.NewDiscussion
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, h.log, apperr.Validation("Invalid request body."))
		return
	}

	d, err := h.discussions.Create(c.Request.Context(), middleware.CurrentUserID(c), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *APIHandler) GetThread(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	thread, err := h.engagement.LoadThread(c.Request.Context(), id, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *APIHandler) LikeDiscussion(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res, err := h.engagement.ToggleDiscussionLike(c.Request.Context(), id, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *APIHandler) LikeComment(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res, err := h.engagement.ToggleCommentLike(c.Request.Context(), id, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type postCommentRequest struct {
	Content  string `json:"content"`
	ParentID *int64 `json:"parent_id"`
}

func (h *APIHandler) PostComment(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	var req postCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, apperr.Validation("Invalid request body."))
		return
	}

	posted, err := h.engagement.PostComment(c.Request.Context(), id, middleware.CurrentUserID(c), req.Content, req.ParentID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, posted)
}

func (h *APIHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if h.ping != nil {
		if err := h.ping(ctx); err != nil {
			h.log.Error().Err(err).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
