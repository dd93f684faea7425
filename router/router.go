package router

import (
	"stagebased/config"
	"stagebased/controllers"
	"stagebased/db"
	"stagebased/middleware"
	"stagebased/workers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Initialize wires all routes and middlewares.
func Initialize(r *gin.Engine, cfg config.Configuration, engine *workers.Engine, gatherer prometheus.Gatherer, log zerolog.Logger) {
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())
	r.Use(Logger(log))
	r.Use(db.SetDBtoContext(engine.DB()))
	r.Use(workers.SetEngineToContext(engine))

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// health stays open only while no static tokens are configured
	health := r.Group("/api")
	if len(cfg.AuthTokens) > 0 {
		health.Use(Authorizer(cfg.AuthTokens))
	}
	health.GET("/health/", controllers.Health)

	api := r.Group("/api")
	api.Use(Authorizer(cfg.AuthTokens))

	api.GET("/metrics/", controllers.GetMetrics)
	api.POST("/metrics/", controllers.PostMetrics)

	v1 := api.Group("/v1")

	// Subscriptions
	v1.GET("/subscriptions/", controllers.GetSubscriptions)
	v1.POST("/subscriptions/", controllers.CreateSubscription)
	v1.POST("/subscriptions/request", controllers.CreateSubscriptionRequest)
	v1.GET("/subscriptions/:id/", controllers.GetSubscriptionByID)
	v1.PATCH("/subscriptions/:id/", controllers.UpdateSubscription)
	v1.PUT("/subscriptions/:id/", controllers.UpdateSubscription)
	v1.DELETE("/subscriptions/:id/", controllers.DeleteSubscription)
	v1.POST("/subscriptions/:id/send", controllers.SendSubscription)

	// Users (admin)
	v1.POST("/user/token/", Adminizer(), controllers.CreateUserToken)

	// Content store
	v1.GET("/schedule/", controllers.GetSchedules)
	v1.POST("/schedule/", controllers.CreateSchedule)
	v1.GET("/schedule/:id/", controllers.GetScheduleByID)
	v1.PUT("/schedule/:id/", controllers.UpdateSchedule)
	v1.PATCH("/schedule/:id/", controllers.UpdateSchedule)
	v1.DELETE("/schedule/:id/", controllers.DeleteSchedule)

	v1.GET("/messageset/", controllers.GetMessageSets)
	v1.POST("/messageset/", controllers.CreateMessageSet)
	v1.GET("/messageset/:id/", controllers.GetMessageSetByID)
	v1.GET("/messageset/:id/messages", controllers.GetMessageSetMessages)
	v1.PUT("/messageset/:id/", controllers.UpdateMessageSet)
	v1.PATCH("/messageset/:id/", controllers.UpdateMessageSet)
	v1.DELETE("/messageset/:id/", controllers.DeleteMessageSet)

	v1.GET("/message/", controllers.GetMessages)
	v1.POST("/message/", controllers.CreateMessage)
	v1.GET("/message/:id/", controllers.GetMessageByID)
	v1.PUT("/message/:id/", controllers.UpdateMessage)
	v1.PATCH("/message/:id/", controllers.UpdateMessage)
	v1.DELETE("/message/:id/", controllers.DeleteMessage)

	v1.GET("/binarycontent/", controllers.GetBinaryContents)
	v1.POST("/binarycontent/", controllers.CreateBinaryContent)
	v1.GET("/binarycontent/:id/", controllers.GetBinaryContentByID)
	v1.DELETE("/binarycontent/:id/", controllers.DeleteBinaryContent)

	log.Info().Msg("routes initialized")
}
