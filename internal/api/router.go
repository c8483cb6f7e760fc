package api

import (
	"github.com/gin-gonic/gin"

	"github.com/argenomics/arg_go_server/config"
	"github.com/argenomics/arg_go_server/internal/api/handler"
	"github.com/argenomics/arg_go_server/internal/api/middleware"
)

type Router struct {
	jobHandler       *handler.JobHandler
	fileHandler      *handler.FileHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	jobHandler *handler.JobHandler,
	fileHandler *handler.FileHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		jobHandler:       jobHandler,
		fileHandler:      fileHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})

		api.GET("/ws", r.websocketHandler.Handle)

		api.POST("/analyze", r.jobHandler.Launch)
		api.GET("/status/:job_id", r.jobHandler.Status)
		api.GET("/results/:job_id", r.jobHandler.Results)

		jobs := api.Group("/jobs")
		{
			jobs.GET("", r.jobHandler.List)
			jobs.DELETE("", r.jobHandler.DeleteAll)
			jobs.DELETE("/:job_id", r.jobHandler.Delete)
			jobs.POST("/:job_id/stop", r.jobHandler.Stop)
			jobs.GET("/:job_id/files", r.fileHandler.List)
			jobs.GET("/:job_id/files/download", r.fileHandler.Download)
		}
	}

	return engine
}
