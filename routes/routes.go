package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	config "github.com/phillip/event-finder-go/config"
	controllers "github.com/phillip/event-finder-go/controllers"
	"github.com/phillip/event-finder-go/logger"
	"github.com/phillip/event-finder-go/metrics"
	middleware "github.com/phillip/event-finder-go/middleware"
	"github.com/phillip/event-finder-go/services"
)

// Deps is everything the HTTP surface is built from.
type Deps struct {
	Config    *config.Config
	Events    *services.EventService
	Users     *services.UserService
	Identity  controllers.IdentityProvider
	Documents controllers.DocumentStore
	Ping      func(ctx context.Context) error
}

// NewRouter builds the engine with the shared middleware chain and routes.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware())
	r.Use(metrics.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.Config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logger.RequestIDHeader},
		ExposeHeaders:    []string{"ETag", "Last-Modified", logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	SetupRoutes(r, d)
	return r
}

func SetupRoutes(r *gin.Engine, d Deps) {
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Event Finder API")
	})
	r.GET("/healthz", controllers.Health(d.Ping))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.Use(middleware.Session(d.Config.SessionSecret))

	// protected
	auth := middleware.RequireAuth()

	authRoutes := api.Group("/auth")
	{
		authRoutes.GET("/google", controllers.GoogleLogin(d.Identity, d.Config))
		authRoutes.GET("/callback", controllers.GoogleCallback(d.Identity, d.Users, d.Config))
		authRoutes.GET("/current_user", controllers.CurrentUser(d.Users))
		authRoutes.GET("/logout", controllers.Logout(d.Config))
	}

	events := api.Group("/events")
	{
		events.GET("", controllers.ListEvents(d.Events))
		events.GET("/distance/:id", controllers.EventDistance(d.Events))
		events.GET("/:id", controllers.GetEvent(d.Events))
		events.POST("", auth, controllers.CreateEvent(d.Events))
		events.PUT("/:id", auth, controllers.UpdateEvent(d.Events))
		events.DELETE("/:id", auth, controllers.DeleteEvent(d.Events))
	}

	users := api.Group("/users")
	users.Use(auth)
	{
		users.POST("/verify", controllers.SubmitVerification(d.Users, d.Documents))
		users.POST("/created-events/rebuild", controllers.RebuildCreatedEvents(d.Users))
	}
}
