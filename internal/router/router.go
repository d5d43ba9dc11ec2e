package router

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pathway/internal/config"
	"pathway/internal/handlers"
	"pathway/internal/middleware"
	"pathway/internal/services"
)

const sessionName = "pathway_session"

// Deps is everything the routes need.
type Deps struct {
	Config      *config.Config
	Log         zerolog.Logger
	Identity    *middleware.Identity
	Engagement  *services.EngagementService
	Discussions *services.DiscussionService
	Ping        handlers.Pinger
}

func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/health"})))

	store := cookie.NewStore([]byte(d.Config.Auth.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		Secure:   d.Config.IsProduction(),
	})
	r.Use(sessions.Sessions(sessionName, store))

	if dir := d.Config.Server.TemplatesDir; dir != "" {
		r.HTMLRender = loadTemplates(dir)
	}
	if dir := d.Config.Server.StaticDir; dir != "" {
		r.Static("/static", dir)
	}

	r.Use(middleware.LoadUser(d.Identity))

	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	authHandler := handlers.NewAuthHandler(d.Identity, d.Log)
	discussionHandler := handlers.NewDiscussionHandler(d.Engagement, d.Discussions, d.Log)
	apiHandler := handlers.NewAPIHandler(d.Engagement, d.Discussions, d.Ping, d.Log)
	adminHandler := handlers.NewAdminHandler(d.Discussions, d.Log)

	r.GET("/health", apiHandler.Health)

	// Public Routes
	r.GET("/", discussionHandler.Index)
	r.GET("/d/:id", discussionHandler.Detail)
	r.GET("/login", authHandler.ShowLogin)
	r.POST("/session", authHandler.CreateSession)
	r.GET("/logout", authHandler.Logout)

	// Like buttons answer anonymous clicks with HX-Redirect themselves.
	r.POST("/d/:id/like", discussionHandler.LikeDiscussion)
	r.POST("/c/:id/like", discussionHandler.LikeComment)

	// Protected Routes
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/d/new", discussionHandler.ShowCreate)
		authorized.POST("/d/new", discussionHandler.Create)
		authorized.POST("/d/:id/comments", discussionHandler.CreateComment)
	}

	api := r.Group("/api")
	{
		api.GET("/discussions", apiHandler.ListDiscussions)
		api.GET("/discussions/:id", apiHandler.GetThread)
		api.POST("/discussions/:id/like", apiHandler.LikeDiscussion)
		api.POST("/comments/:id/like", apiHandler.LikeComment)

		authed := api.Group("")
		authed.Use(middleware.AuthRequired())
		authed.POST("/discussions", apiHandler.CreateDiscussion)
		authed.POST("/discussions/:id/comments", apiHandler.PostComment)
	}

	admin := r.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.POST("/d/:id/pin", adminHandler.TogglePin)
		admin.POST("/d/:id/recount", adminHandler.Recount)
	}
}
