package http

import (
	"log/slog"

	"github.com/geocoder89/secondchance/internal/config"
	"github.com/geocoder89/secondchance/internal/http/handlers"
	"github.com/geocoder89/secondchance/internal/http/middlewares"
	"github.com/geocoder89/secondchance/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "secondchance-api"

type Deps struct {
	Log          *slog.Logger
	Cfg          config.Config
	Credentials  handlers.CredentialService
	Tokens       middlewares.TokenParser
	Ping         handlers.PingFunc
	Prom         *observability.Prom
	ShuttingDown func() bool         // flips /readyz to 503 while draining
	Gatherer     prometheus.Gatherer // backs /metrics; nil means the default registry
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSAllowedOrigins))
	r.Use(middlewares.SecurityHeaders())

	// health
	h := handlers.NewHealthHandler(d.Ping, d.ShuttingDown)
	r.GET("/", h.Root)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	authHandler := handlers.NewAuthHandler(d.Credentials)

	api := r.Group("/api/auth")
	api.Use(middlewares.MaxBodyBytes(d.Cfg.MaxBodyBytes), middlewares.RequireJSON())
	{
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		update := []gin.HandlerFunc{authHandler.Update}
		if d.Cfg.RequireTokenOnUpdate && d.Tokens != nil {
			update = append([]gin.HandlerFunc{middlewares.NewAuthMiddleware(d.Tokens).RequireAuth()}, update...)
		}
		api.PUT("/update", update...)
	}

	return r
}
