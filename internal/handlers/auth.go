package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pathway/internal/apperr"
	"pathway/internal/middleware"
)

// AuthHandler bridges the hosted auth provider and the cookie session. Sign
// up, passwords and recovery all live with the provider.
type AuthHandler struct {
	identity *middleware.Identity
	log      zerolog.Logger
}

func NewAuthHandler(identity *middleware.Identity, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		identity: identity,
		log:      log.With().Str("handler", "auth").Logger(),
	}
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	if middleware.CurrentUser(c) != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	Render(c, http.StatusOK, "auth/login.html", gin.H{
		"Title": "Sign in",
		"Next":  safeNext(c.Query("next")),
	})
}

// CreateSession exchanges a provider token for a session cookie.
func (h *AuthHandler) CreateSession(c *gin.Context) {
	token := strings.TrimSpace(c.PostForm("token"))
	if token == "" {
		respondError(c, h.log, apperr.Validation("Missing token."))
		return
	}

	user, err := h.identity.Resolve(c, token)
	if err != nil {
		h.log.Warn().Err(err).Msg("session token rejected")
		respondError(c, h.log, apperr.Unauthenticated())
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserID, user.ID)
	if err := session.Save(); err != nil {
		respondError(c, h.log, apperr.Store(err))
		return
	}

	h.log.Info().Int64("user_id", user.ID).Msg("session created")
	next := safeNext(c.PostForm("next"))
	if isHTMX(c) {
		HtmxRedirect(c, next)
		return
	}
	c.Redirect(http.StatusFound, next)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.Redirect(http.StatusFound, "/")
}

// safeNext only allows local paths as post-login targets.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	return next
}
