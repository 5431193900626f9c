package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/causeway-service/causeway_service/internal/api/handlers"
	"github.com/causeway-service/causeway_service/internal/api/middleware"
	"github.com/causeway-service/causeway_service/internal/infrastructure/di"
)

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()

	// Global middleware - order matters for security
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.CORS(container.Config.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(container.Config.Server.RateLimitPerMin))
	router.Use(middleware.SecurityHeaders())

	// Initialize handlers with services from DI container
	coreHandlers := handlers.NewCoreHandlers(container.DB, container.RedisClient, container.Logger)
	intentHandlers := handlers.NewIntentHandlers(
		container.GetStakingService(),
		container.GetAuctionService(),
		container.GetMetadataService(),
		container.Config.Validation.MaxBidsPerAuction,
		container.Logger,
	)
	bridgeHandlers := handlers.NewBridgeHandlers(container.GetBridgeService(), container.Logger)
	relayHandlers := handlers.NewRelayWebhookHandlers(
		container.GetBridgeService(),
		container.RedisClient,
		container.Config.Relay.WebhookSecret,
		container.Config.Relay.SkipSignatureVerify && container.Config.IsDevelopment(),
		time.Duration(container.Config.Relay.WebhookTimestampSkewSeconds)*time.Second,
		container.Logger,
	)

	// Health checks (no auth required)
	router.GET("/health", coreHandlers.Health)
	router.GET("/ready", coreHandlers.Ready)
	router.GET("/live", coreHandlers.Live)
	router.GET("/version", coreHandlers.Version)
	router.GET("/metrics", coreHandlers.Metrics)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Intent validation endpoints (auth required)
		intents := v1.Group("/intents")
		intents.Use(middleware.Authentication(container.Config, container.Logger))
		{
			intents.POST("/stake", intentHandlers.SubmitStake)
			intents.POST("/bids", intentHandlers.SubmitBids)
			intents.POST("/metadata", intentHandlers.SubmitMetadata)
		}

		// Bridge lock lifecycle (auth required)
		bridge := v1.Group("/bridge")
		bridge.Use(middleware.Authentication(container.Config, container.Logger))
		{
			bridge.POST("/locks", bridgeHandlers.CreateLock)
			bridge.GET("/locks/:lock_id", bridgeHandlers.GetLock)
			bridge.GET("/locks/:lock_id/events", bridgeHandlers.ListRelayEvents)
			bridge.POST("/locks/:lock_id/unlock", bridgeHandlers.Unlock)

			// Operator read model (admin role required)
			admin := bridge.Group("")
			admin.Use(middleware.AdminAuth())
			{
				admin.GET("/status", bridgeHandlers.StatusCounts)
			}
		}

		// Relay callbacks (external system; HMAC verified, no JWT)
		relay := v1.Group("/relay")
		{
			relay.POST("/events", relayHandlers.HandleRelayEvent)
			relay.POST("/mints/:lock_id/confirm", relayHandlers.HandleMintConfirmed)
		}
	}

	return router
}
