package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pathway/internal/apperr"
	"pathway/internal/auth"
	"pathway/internal/idgen"
	"pathway/internal/models"
	"pathway/internal/store"
	"pathway/internal/utils"
)

const (
	CheckUserKey  = "user"
	SessionUserID = "user_id"
)

// CurrentUser returns the user resolved by LoadUser, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(CheckUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// CurrentUserID is 0 for anonymous requests.
func CurrentUserID(c *gin.Context) int64 {
	if user := CurrentUser(c); user != nil {
		return user.ID
	}
	return 0
}

// Identity turns auth provider tokens into local users.
type Identity struct {
	users    store.UserStore
	verifier *auth.Verifier
	ids      *idgen.Generator
	log      zerolog.Logger
}

func NewIdentity(users store.UserStore, verifier *auth.Verifier, ids *idgen.Generator, log zerolog.Logger) *Identity {
	return &Identity{users: users, verifier: verifier, ids: ids, log: log}
}

// Resolve verifies a provider token and returns the matching user, creating
// the row the first time the subject is seen.
func (i *Identity) Resolve(c *gin.Context, token string) (*models.User, error) {
	claims, err := i.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := i.users.FindOrCreateUser(c.Request.Context(), &models.User{
		ID:       i.ids.Next(),
		AuthID:   claims.Subject,
		Email:    claims.Email,
		Username: utils.UsernameFromEmail(claims.Email),
		Avatar:   utils.GetRandomEmoji(),
		Role:     models.RoleMember,
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// LoadUser resolves the current user from a bearer token or the session
// cookie and stores it under CheckUserKey. Anonymous requests pass through.
func LoadUser(identity *Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			user, err := identity.Resolve(c, token)
			if err == nil {
				c.Set(CheckUserKey, user)
			} else if !errors.Is(err, auth.ErrInvalidToken) {
				identity.log.Error().Err(err).Msg("failed to resolve token user")
			}
			c.Next()
			return
		}

		session := sessions.Default(c)
		userID, ok := session.Get(SessionUserID).(int64)
		if ok && userID != 0 {
			user, err := identity.users.GetUser(c.Request.Context(), userID)
			switch {
			case err == nil:
				c.Set(CheckUserKey, user)
			case errors.Is(err, store.ErrNotFound):
				session.Delete(SessionUserID)
				_ = session.Save()
			default:
				identity.log.Error().Err(err).Int64("user_id", userID).Msg("failed to load session user")
			}
		}
		c.Next()
	}
}

func isAPI(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/")
}

func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// abortUnauthenticated answers the way each client expects: JSON for the API,
// an HX-Redirect header for HTMX fragments, a redirect for pages.
func abortUnauthenticated(c *gin.Context) {
	switch {
	case isAPI(c):
		err := apperr.Unauthenticated()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": err.Kind, "message": err.Message}})
	case isHTMX(c):
		c.Header("HX-Redirect", "/login")
		c.AbortWithStatus(http.StatusOK)
	default:
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
	}
}

// AuthRequired ensures a user is logged in.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			abortUnauthenticated(c)
			return
		}
		c.Next()
	}
}

// AdminRequired ensures the current user has the admin role.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortUnauthenticated(c)
			return
		}
		if !user.IsAdmin() {
			err := apperr.Forbidden("Only admins can do that.")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": gin.H{"code": err.Kind, "message": err.Message}})
			return
		}
		c.Next()
	}
}
