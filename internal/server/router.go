package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"commandr-server/internal/auth"
	"commandr-server/internal/handler"
	"commandr-server/internal/hub"
	"commandr-server/internal/middleware"
	"commandr-server/internal/store"
)

type Deps struct {
	Store          *store.Store
	TokenConfig    auth.TokenConfig
	Hub            *hub.Hub
	Logger         logrus.FieldLogger
	MaxUploadBytes int64
}

func NewRouter(deps Deps) *gin.Engine {
	if deps.Hub == nil {
		deps.Hub = hub.New()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true, "accounts": deps.Store.Len()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	versionHandler := &handler.VersionHandler{}
	r.GET("/v1/version", versionHandler.Get)

	// minting and account creation are the only unauthenticated ways to grow
	// server state, so both are limited per client
	mintLimiter := middleware.NewRateLimiter(30, time.Minute)
	createLimiter := middleware.NewRateLimiter(10, time.Minute)

	sessionHandler := &handler.SessionHandler{TokenConfig: deps.TokenConfig}
	r.POST("/v1/session", middleware.RateLimitMiddleware(mintLimiter), sessionHandler.Mint)

	accountHandler := &handler.AccountHandler{Store: deps.Store}
	session := r.Group("/v1")
	session.Use(middleware.RequireSession(deps.TokenConfig))
	session.POST("/accounts", middleware.RateLimitBy(createLimiter, middleware.SessionKey), accountHandler.Create)
	session.POST("/account/login", accountHandler.Login)

	protected := r.Group("/v1")
	protected.Use(middleware.RequireSession(deps.TokenConfig), middleware.RequireAccount(deps.Store))
	protected.GET("/account", accountHandler.Get)

	schemaHandler := &handler.SchemaHandler{Store: deps.Store}
	protected.GET("/schemas", schemaHandler.List)
	protected.POST("/schemas", schemaHandler.Create)
	protected.GET("/schemas/:id", schemaHandler.Get)
	protected.DELETE("/schemas/:id", schemaHandler.Delete)
	protected.POST("/schemas/:id/tables", schemaHandler.AddTable)
	protected.GET("/tables/:id", schemaHandler.Table)
	protected.DELETE("/tables/:id", schemaHandler.DeleteTable)
	protected.GET("/columns/:id", schemaHandler.Column)
	protected.POST("/columns/:id/evaluate", schemaHandler.EvaluateColumn)

	assetHandler := &handler.AssetHandler{Store: deps.Store, MaxUploadBytes: deps.MaxUploadBytes}
	protected.GET("/assets", assetHandler.List)
	protected.POST("/assets", assetHandler.Upload)
	protected.GET("/assets/:id", assetHandler.Get)
	protected.DELETE("/assets/:id", assetHandler.Delete)

	unitHandler := &handler.UnitHandler{Store: deps.Store}
	protected.GET("/units", unitHandler.Builtins)
	protected.POST("/units/:name/evaluate", unitHandler.Evaluate)

	eventsHandler := &handler.EventsHandler{Hub: deps.Hub}
	protected.GET("/events", eventsHandler.Serve)

	return r
}
