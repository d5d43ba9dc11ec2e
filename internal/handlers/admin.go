package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pathway/internal/middleware"
	"pathway/internal/services"
)

type AdminHandler struct {
	discussions *services.DiscussionService
	log         zerolog.Logger
}

func NewAdminHandler(discussions *services.DiscussionService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		discussions: discussions,
		log:         log.With().Str("handler", "admin").Logger(),
	}
}

// TogglePin pins or unpins a discussion. HTMX callers get the new button label.
func (h *AdminHandler) TogglePin(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	pinned, err := h.discussions.TogglePin(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	if isHTMX(c) {
		label := "Pin"
		if pinned {
			label = "Unpin"
		}
		c.String(http.StatusOK, label)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "pinned": pinned})
}

// Recount rewrites a discussion's counters from its like and comment rows.
func (h *AdminHandler) Recount(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	d, err := h.discussions.Recount(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      d.ID,
		"views":   d.Views,
		"likes":   d.Likes,
		"replies": d.Replies,
	})
}
