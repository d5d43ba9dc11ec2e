package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pathway/internal/apperr"
	"pathway/internal/middleware"
	"pathway/internal/services"
	"pathway/internal/utils"
)

// DiscussionHandler serves the community pages.
type DiscussionHandler struct {
	engagement  *services.EngagementService
	discussions *services.DiscussionService
	log         zerolog.Logger
}

func NewDiscussionHandler(engagement *services.EngagementService, discussions *services.DiscussionService, log zerolog.Logger) *DiscussionHandler {
	return &DiscussionHandler{
		engagement:  engagement,
		discussions: discussions,
		log:         log.With().Str("handler", "discussion").Logger(),
	}
}

// Index lists discussions, optionally filtered by ?category= and sorted by ?sort=.
func (h *DiscussionHandler) Index(c *gin.Context) {
	ctx := c.Request.Context()

	page, err := h.discussions.List(ctx, services.ListParams{
		Category: c.Query("category"),
		Sort:     c.Query("sort"),
		Page:     utils.StringToInt(c.Query("page")),
	})
	if err != nil {
		renderAppError(c, h.log, err)
		return
	}
	categories, err := h.discussions.Categories(ctx)
	if err != nil {
		renderAppError(c, h.log, err)
		return
	}

	Render(c, http.StatusOK, "community/index.html", gin.H{
		"Title":      "Community",
		"Page":       page,
		"Categories": categories,
		"PrevPage":   page.Page - 1,
		"NextPage":   page.Page + 1,
		"HasNext":    page.Page < page.TotalPages,
	})
}

func (h *DiscussionHandler) Detail(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		renderAppError(c, h.log, err)
		return
	}

	thread, err := h.engagement.LoadThread(c.Request.Context(), id, middleware.CurrentUserID(c))
	if err != nil {
		renderAppError(c, h.log, err)
		return
	}

	Render(c, http.StatusOK, "discussion/detail.html", gin.H{
		"Title":  thread.Discussion.Title,
		"Thread": thread,
	})
}

func (h *DiscussionHandler) ShowCreate(c *gin.Context) {
	h.renderCreate(c, http.StatusOK, services.NewDiscussion{}, "")
}

func (h *DiscussionHandler) renderCreate(c *gin.Context, code int, form services.NewDiscussion, message string) {
	categories, err := h.discussions.Categories(c.Request.Context())
	if err != nil {
		renderAppError(c, h.log, err)
		return
	}
	Render(c, code, "discussion/create.html", gin.H{
		"Title":      "Start a discussion",
		"Categories": categories,
		"Form":       form,
		"Error":      message,
	})
}

func (h *DiscussionHandler) Create(c *gin.Context) {
	var form services.NewDiscussion
	if err := c.ShouldBind(&form); err != nil {
		h.renderCreate(c, http.StatusBadRequest, form, "Please fill in the form.")
		return
	}

	d, err := h.discussions.Create(c.Request.Context(), middleware.CurrentUserID(c), form)
	if err != nil {
		if apperr.Is(err, apperr.KindValidation) {
			h.renderCreate(c, http.StatusBadRequest, form, apperr.Message(err))
			return
		}
		renderAppError(c, h.log, err)
		return
	}

	c.Redirect(http.StatusFound, fmt.Sprintf("/d/%d", d.ID))
}

// CreateComment handles the reply form. A rejected comment re-renders the
// thread with the message next to the form and the draft kept.
func (h *DiscussionHandler) CreateComment(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		renderAppError(c, h.log, err)
		return
	}
	userID := middleware.CurrentUserID(c)
	content := c.PostForm("content")

	var (
		parentID *int64
		posted   *services.PostedComment
	)
	if raw := c.PostForm("parent_id"); raw != "" {
		pid, ok := utils.ParseID(raw)
		if !ok {
			err = services.InvalidParent()
		}
		parentID = &pid
	}
	if err == nil {
		posted, err = h.engagement.PostComment(c.Request.Context(), id, userID, content, parentID)
	}
	if err != nil {
		if !apperr.Is(err, apperr.KindValidation) {
			renderAppError(c, h.log, err)
			return
		}
		thread, loadErr := h.engagement.Thread(c.Request.Context(), id, userID)
		if loadErr != nil {
			renderAppError(c, h.log, loadErr)
			return
		}
		Render(c, http.StatusBadRequest, "discussion/detail.html", gin.H{
			"Title":        thread.Discussion.Title,
			"Thread":       thread,
			"CommentError": apperr.Message(err),
			"Draft":        content,
		})
		return
	}

	target := fmt.Sprintf("/d/%d#c-%d", id, posted.Comment.ID)
	if isHTMX(c) {
		HtmxRedirect(c, target)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// LikeDiscussion toggles the viewer's like and answers with the new count
// for the HTMX button.
func (h *DiscussionHandler) LikeDiscussion(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	res, err := h.engagement.ToggleDiscussionLike(c.Request.Context(), id, middleware.CurrentUserID(c))
	h.likeResponse(c, res, err)
}

func (h *DiscussionHandler) LikeComment(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	res, err := h.engagement.ToggleCommentLike(c.Request.Context(), id, middleware.CurrentUserID(c))
	h.likeResponse(c, res, err)
}

func (h *DiscussionHandler) likeResponse(c *gin.Context, res services.LikeResult, err error) {
	if err != nil {
		if apperr.Is(err, apperr.KindUnauthenticated) {
			HtmxRedirect(c, "/login")
			return
		}
		logFailure(c, h.log, err)
		c.String(apperr.HTTPStatus(err), apperr.Message(err))
		return
	}
	c.Header("X-Liked", strconv.FormatBool(res.Liked))
	c.String(http.StatusOK, strconv.Itoa(res.Likes))
}
