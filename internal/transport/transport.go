package transport

import (
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Bookings  *BookingHandler
	Resources *ResourceHandler
	Holds     *HoldHandler
	Catalog   *CatalogHandler
	Outbox    *OutboxHandler
}

type RouterConfig struct {
	JWTSecret      string
	AuthDisabled   bool
	RequestTimeout time.Duration
}

func InitRoutes(h Handlers, cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})

	// API routes
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTSecret, cfg.AuthDisabled))
	{
		resources := api.Group("/resources")
		{
			resources.POST("", h.Resources.CreateResource)
			resources.GET("", h.Resources.ListResources)
			resources.GET("/:id", h.Resources.GetResource)
			resources.GET("/:id/availability", h.Resources.GetAvailability)
			resources.POST("/:id/schedules", h.Resources.CreateSchedule)
			resources.GET("/:id/schedules", h.Resources.ListSchedules)
		}

		schedules := api.Group("/schedules")
		{
			schedules.PUT("/:id", h.Resources.UpdateSchedule)
			schedules.DELETE("/:id", h.Resources.DeleteSchedule)
		}

		holds := api.Group("/holds")
		{
			holds.POST("", h.Holds.CreateHold)
			holds.GET("/:key", h.Holds.GetHold)
			holds.DELETE("/:key", h.Holds.ReleaseHold)
		}

		bookings := api.Group("/bookings")
		{
			bookings.POST("", h.Bookings.CreateBooking)
			bookings.GET("", h.Bookings.ListBookings)
			bookings.GET("/:id", h.Bookings.GetBooking)
			bookings.POST("/:id/confirm", h.Bookings.ConfirmBooking)
			bookings.POST("/:id/check-in", h.Bookings.CheckInBooking)
			bookings.POST("/:id/complete", h.Bookings.CompleteBooking)
			bookings.POST("/:id/cancel", h.Bookings.CancelBooking)
			bookings.POST("/:id/no-show", h.Bookings.MarkNoShow)
			bookings.POST("/:id/reschedule", h.Bookings.RescheduleBooking)
		}

		api.PATCH("/calendar/bookings/:id/move", h.Bookings.MoveBooking)

		api.POST("/services", h.Catalog.CreateService)
		api.GET("/services/:id", h.Catalog.GetService)
		api.POST("/customers", h.Catalog.CreateCustomer)
		api.GET("/customers/:id", h.Catalog.GetCustomer)
		api.POST("/waitlist", h.Catalog.AddToWaitlist)

		// Admin routes
		admin := api.Group("/admin")
		{
			admin.GET("/bookings/stats", h.Bookings.GetBookingStats)
			admin.GET("/outbox", h.Outbox.ListEvents)
			admin.GET("/outbox/dead-letters", h.Outbox.ListDeadLetters)
			admin.POST("/outbox/dead-letters/:id/requeue", h.Outbox.RequeueDeadLetter)
		}
	}

	return router
}
