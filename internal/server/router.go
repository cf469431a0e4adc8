// Package server wires services, handlers and middleware into the HTTP API.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/wllfaria/felbot/internal/config"
	_ "github.com/wllfaria/felbot/internal/docs" // Import swagger docs
	"github.com/wllfaria/felbot/internal/handlers"
	"github.com/wllfaria/felbot/internal/middleware"
	"github.com/wllfaria/felbot/internal/services"
)

// NewRouter builds the API. The internal group serves the bot runtimes and
// is guarded by the shared API key; the guild group serves guild admins and
// is guarded by operator JWTs.
func NewRouter(cfg *config.Config, db *gorm.DB) *gin.Engine {
	// Services
	guildService := services.NewGuildService(db)
	permissionService := services.NewPermissionService(db)
	groupService := services.NewGroupService(db)
	linkService := services.NewLinkService(db)
	linkingService := services.NewLinkingService(db, cfg.LinkTokenTTL)
	auditService := services.NewAuditService(db)

	// Handlers
	guildHandler := handlers.NewGuildHandler(guildService, permissionService, auditService)
	permissionHandler := handlers.NewPermissionHandler(permissionService, auditService)
	groupHandler := handlers.NewGroupHandler(groupService, auditService)
	linkHandler := handlers.NewLinkHandler(linkService, cfg.SubscriptionCheckInterval)
	tokenHandler := handlers.NewTokenHandler(linkingService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Bot runtime routes
	internal := api.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware(cfg.InternalAPIKey))

	internal.GET("/allowed-guilds", guildHandler.AllowedGuildIDs)

	guilds := internal.Group("/guilds")
	guilds.POST("", guildHandler.RegisterGuild)
	guilds.GET("", guildHandler.ListGuilds)
	guilds.GET("/:guild_id", guildHandler.GetGuild)
	guilds.PUT("/:guild_id/owner", guildHandler.UpdateOwner)
	guilds.DELETE("/:guild_id", guildHandler.DeleteGuild)
	guilds.GET("/:guild_id/authorize", guildHandler.Authorize)
	guilds.POST("/:guild_id/roles", permissionHandler.AllowRole)
	guilds.GET("/:guild_id/roles/:role_id", guildHandler.RoleStatus)

	internal.GET("/channels/:channel_id", guildHandler.ChannelStatus)
	internal.GET("/groups/:label", groupHandler.FindGroup)

	links := internal.Group("/links")
	links.POST("", linkHandler.CreateLink)
	links.GET("/due", linkHandler.ListDue)
	links.GET("/discord/:discord_id", linkHandler.GetByDiscord)
	links.DELETE("/discord/:discord_id", linkHandler.Unlink)
	links.POST("/discord/:discord_id/joined", linkHandler.MarkJoined)
	links.POST("/discord/:discord_id/checked", linkHandler.RecordCheck)
	links.GET("/telegram/:telegram_id", linkHandler.GetByTelegram)

	tokens := internal.Group("/tokens")
	tokens.POST("", tokenHandler.IssueToken)
	tokens.POST("/redeem", tokenHandler.RedeemToken)
	tokens.POST("/complete", tokenHandler.CompleteLink)

	// Guild admin routes
	operator := api.Group("/guilds/:guild_id")
	operator.Use(middleware.OperatorAuthMiddleware(cfg.JWTSecret, permissionService))

	operator.DELETE("", guildHandler.DeleteGuild)
	operator.GET("/audit", guildHandler.ListAudit)

	operator.GET("/roles", permissionHandler.ListRoles)
	operator.POST("/roles", permissionHandler.AllowRole)
	operator.DELETE("/roles/:role_id", permissionHandler.RemoveRole)

	operator.GET("/channels", permissionHandler.ListChannels)
	operator.POST("/channels", permissionHandler.AllowChannel)
	operator.DELETE("/channels/:channel_id", permissionHandler.RemoveChannel)

	operator.GET("/groups", groupHandler.ListGroups)
	operator.POST("/groups", groupHandler.PairGroup)
	operator.DELETE("/groups/:group_id", groupHandler.UnpairGroup)

	return router
}
