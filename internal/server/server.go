// Package server is the HTTP surface of the exchange subsystem. One file
// per resource; handlers translate transport concerns and delegate to the
// feature services.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/peppolway/internal/config"
	"github.com/smallbiznis/peppolway/internal/document"
	documentdomain "github.com/smallbiznis/peppolway/internal/document/domain"
	"github.com/smallbiznis/peppolway/internal/environment"
	"github.com/smallbiznis/peppolway/internal/exchangestats"
	statsdomain "github.com/smallbiznis/peppolway/internal/exchangestats/domain"
	"github.com/smallbiznis/peppolway/internal/observability"
	obsmiddleware "github.com/smallbiznis/peppolway/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/peppolway/internal/observability/metrics"
	obstracing "github.com/smallbiznis/peppolway/internal/observability/tracing"
	"github.com/smallbiznis/peppolway/internal/participant"
	participantdomain "github.com/smallbiznis/peppolway/internal/participant/domain"
	"github.com/smallbiznis/peppolway/internal/transmission"
	transmissiondomain "github.com/smallbiznis/peppolway/internal/transmission/domain"
	"github.com/smallbiznis/peppolway/internal/transport/httpap"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	participant.Module,
	document.Module,
	httpap.Module,
	transmission.Module,
	exchangestats.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	participantSvc  participantdomain.Service
	documentSvc     documentdomain.Service
	transmissionSvc transmissiondomain.Service
	statsSvc        statsdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	ParticipantSvc  participantdomain.Service
	DocumentSvc     documentdomain.Service
	TransmissionSvc transmissiondomain.Service
	StatsSvc        statsdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		participantSvc:  p.ParticipantSvc,
		documentSvc:     p.DocumentSvc,
		transmissionSvc: p.TransmissionSvc,
		statsSvc:        p.StatsSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/:env", s.EnvironmentRequired())

	// -------- Participants --------
	api.POST("/participants", s.RegisterParticipant)
	api.GET("/participants", s.ListParticipants)
	api.GET("/participants/:id", s.GetParticipantByID)
	api.PUT("/participants/:id/role", s.SetParticipantRole)
	api.POST("/participants/:id/identifiers", s.AddParticipantIdentifier)
	api.DELETE("/participants/:id", s.DeactivateParticipant)

	// -------- Statistics --------
	api.GET("/participants/:id/stats", s.GetParticipantStats)
	api.GET("/participants/:id/stats/monthly", s.GetParticipantMonthlyStats)

	// -------- Documents --------
	api.POST("/documents", s.ConvertDocument)
	api.GET("/documents/:id", s.GetDocumentByID)
	api.GET("/documents/:id/payload", s.GetDocumentPayload)

	// -------- Transmissions --------
	api.POST("/documents/:id/send", s.SendDocument)
	api.POST("/documents/:id/cancel", s.CancelTransmission)
	api.GET("/documents/:id/transmission", s.GetTransmissionByDocument)

	// -------- Inbound --------
	api.POST("/inbound", s.RecordInboundDocument)
}

// EnvironmentRequired validates the :env path segment before any handler
// runs. Handlers then read it with requestEnvironment.
func (s *Server) EnvironmentRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		env, err := environment.Parse(c.Param("env"))
		if err != nil {
			AbortWithError(c, newValidationError("env", "invalid_environment", "environment must be sandbox or production"))
			return
		}
		c.Set(contextKeyEnvironment, env)
		c.Next()
	}
}

const contextKeyEnvironment = "exchange_environment"

func requestEnvironment(c *gin.Context) environment.Environment {
	if value, ok := c.Get(contextKeyEnvironment); ok {
		if env, ok := value.(environment.Environment); ok {
			return env
		}
	}
	env, _ := environment.Parse(c.Param("env"))
	return env
}
