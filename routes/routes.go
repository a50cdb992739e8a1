package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"prometeo-backend/config"
	"prometeo-backend/controllers"
	"prometeo-backend/services"
)

type Options struct {
	CORSOrigins []string
	Threshold   float64
	Scoring     *services.ScoringService
	Logger      *zap.Logger
}

func SetupRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(ginzap.RecoveryWithZap(logger, true))

	allowed := make(map[string]struct{}, len(opts.CORSOrigins))
	for _, o := range opts.CORSOrigins {
		allowed[o] = struct{}{}
	}
	r.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) bool {
			_, ok := allowed[origin]
			return ok
		},
		MaxAge: 12 * time.Hour,
	}))

	r.Use(config.PerformanceLogger(logger))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Prometeo API is running"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		metricsController := controllers.MetricsController{Threshold: opts.Threshold}
		api.GET("/metrics/summary", metricsController.GetSummary)

		clients := api.Group("/clients")
		{
			clients.GET("/priority-list", controllers.GetPriorityList)
			clients.GET("/:id", controllers.GetClient)
			clients.PATCH("/:id/status", controllers.UpdateClientStatus)
		}

		predictionController := controllers.PredictionController{Scoring: opts.Scoring}
		predictions := api.Group("/predictions")
		{
			predictions.GET("/:id", predictionController.GetPrediction)
			predictions.POST("/run", predictionController.RunScoring)
		}
		api.GET("/runs/:id", predictionController.GetRun)
	}

	return r
}
