// Package server exposes the HTTP surface: the banklink entry endpoint the
// emulated banks listen on, the decision endpoint driving the payment state
// machine, and the debug endpoints (bank roster, signature orders, sample
// requests).
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/banklabs/banklink/internal/banklink/service"
	"github.com/banklabs/banklink/internal/config"
)

type Server struct {
	engine *gin.Engine
	svc    *service.Service
	log    *zap.Logger
}

func NewEngine(log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(func(c *gin.Context) {
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()))
	})
	return engine
}

func NewServer(engine *gin.Engine, svc *service.Service, log *zap.Logger) *Server {
	return &Server{engine: engine, svc: svc, log: log}
}

func (s *Server) RegisterRoutes() {
	s.engine.POST("/banklink/:bank", s.ServeBanklink)
	s.engine.GET("/banklink/:bank", s.ServeBanklink)

	s.engine.GET("/payments/:id", s.GetPayment)
	s.engine.POST("/payments/:id/decision", s.DecidePayment)

	s.engine.GET("/banks", s.ListBanks)
	s.engine.GET("/banks/:bank/sample", s.SampleRequest)
	s.engine.GET("/protocols/:protocol/signature-order", s.SignatureOrder)
}

func RunHTTP(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: engine,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.ListenAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(RunHTTP),
)
