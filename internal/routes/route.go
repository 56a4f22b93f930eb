package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventhub/internal/container"
	"github.com/joshua-takyi/eventhub/internal/handlers"
	"github.com/joshua-takyi/eventhub/internal/middleware"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(container *container.Container) *gin.Engine {
	if container.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     container.Config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(container.Logger))
	r.Use(middleware.ErrorHandler(container.Logger))
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "OK",
				"service": "eventhub-api",
			})
		})

		// public routes
		v1.POST("/signup", handlers.CreateUser(container.UserService))
		v1.POST("/login", handlers.AuthenticateUser(container.UserService))
		v1.POST("/password-reset", handlers.RequestPasswordReset(container.UserService))
		v1.POST("/logout", handlers.Logout())
	}

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(container.TokenValidator, container.UserService, container.Logger))
	RegisterProtected(protected, container)

	return r
}

// RegisterProtected mounts the routes that need an authenticated caller.
func RegisterProtected(protected *gin.RouterGroup, container *container.Container) {
	protected.GET("/profile", handlers.Profile())
	protected.GET("/me/events", handlers.MyEvents(container.MembershipService))
	protected.GET("/recommendations", handlers.GetRecommendations(container.RecommendationService))

	userRoutes := protected.Group("/users")
	{
		userRoutes.GET("/:id", handlers.GetUser(container.UserService))
		userRoutes.PATCH("/:id", handlers.UpdateUser(container.UserService))
		userRoutes.POST("/:id/avatar", handlers.UploadAvatar(container.UserService))
	}

	eventRoutes := protected.Group("/events")
	{
		eventRoutes.GET("", handlers.ListEvents(container.EventService))
		eventRoutes.GET("/search", handlers.SearchEvents(container.EventService))
		eventRoutes.GET("/:id", handlers.GetEvent(container.EventService))
		eventRoutes.GET("/:id/count", handlers.EventAttendeeCount(container.MembershipService))
		eventRoutes.POST("/:id/join", handlers.JoinEvent(container.MembershipService))
		eventRoutes.DELETE("/:id/join", handlers.LeaveEvent(container.MembershipService))
	}

	adminRoutes := protected.Group("/events")
	adminRoutes.Use(middleware.RequireAdmin())
	{
		adminRoutes.POST("", handlers.CreateEvent(container.EventService))
		adminRoutes.GET("/mine", handlers.ListMyEvents(container.EventService))
		adminRoutes.PATCH("/:id", handlers.UpdateEvent(container.EventService))
		adminRoutes.DELETE("/:id", handlers.DeleteEvent(container.EventService))
		adminRoutes.PUT("/:id/image", handlers.SetEventImage(container.EventService))
		adminRoutes.GET("/:id/attendees", handlers.ListAttendees(container.MembershipService))
		adminRoutes.DELETE("/:id/attendees/:user_id", handlers.RemoveAttendee(container.MembershipService))
	}
}
