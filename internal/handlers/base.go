package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pathway/internal/apperr"
	"pathway/internal/middleware"
	"pathway/internal/utils"
)

// Render helper to inject common variables like 'current user'
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	if user := middleware.CurrentUser(c); user != nil {
		obj["CurrentUser"] = user
	}
	obj["CurrentPath"] = c.Request.URL.Path
	obj["RequestID"] = c.GetString(middleware.RequestIDKey)

	c.HTML(code, name, obj)
}

// HTMX Redirect helper
func HtmxRedirect(c *gin.Context, path string) {
	c.Header("HX-Redirect", path)
	c.Status(http.StatusOK)
}

func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

func RenderError(c *gin.Context, code int, message string) {
	Render(c, code, "error.html", gin.H{"Error": message, "Code": code})
}

// logFailure records errors the user only sees as a generic message.
func logFailure(c *gin.Context, log zerolog.Logger, err error) {
	if apperr.HTTPStatus(err) < http.StatusInternalServerError {
		return
	}
	_ = c.Error(err)
	log.Error().Err(err).
		Str("request_id", c.GetString(middleware.RequestIDKey)).
		Str("path", c.Request.URL.Path).
		Msg("request failed")
}

// renderAppError renders an error page for a page request; unauthenticated
// visitors are sent to the login page instead.
func renderAppError(c *gin.Context, log zerolog.Logger, err error) {
	if apperr.Is(err, apperr.KindUnauthenticated) {
		if isHTMX(c) {
			HtmxRedirect(c, "/login")
			return
		}
		c.Redirect(http.StatusFound, "/login")
		return
	}
	logFailure(c, log, err)
	RenderError(c, apperr.HTTPStatus(err), apperr.Message(err))
}

// respondError writes the JSON error envelope used by the API.
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	logFailure(c, log, err)
	c.JSON(apperr.HTTPStatus(err), gin.H{
		"error": gin.H{
			"code":    apperr.KindOf(err),
			"message": apperr.Message(err),
		},
	})
}

// paramID parses an int64 path parameter; malformed ids read as not found.
func paramID(c *gin.Context, name string) (int64, error) {
	id, ok := utils.ParseID(c.Param(name))
	if !ok {
		return 0, apperr.NotFound("Page not found.")
	}
	return id, nil
}
