// Package http assembles the external and internal echo servers.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/aetheron/internal/config"
	"github.com/xiaot623/aetheron/internal/logger"
	"github.com/xiaot623/aetheron/internal/service"
	"github.com/xiaot623/aetheron/internal/transport/http/internalapi"
	v1 "github.com/xiaot623/aetheron/internal/transport/http/v1"
)

// WebSocketHandler upgrades a request to a websocket chat connection.
type WebSocketHandler interface {
	HandleWebSocket(c echo.Context) error
}

// NewExternalServer creates the client-facing server: the REST API and the websocket endpoint.
func NewExternalServer(cfg *config.Config, svc *service.Service, ws WebSocketHandler, log *logger.Logger) *echo.Echo {
	e := newEcho(log.With("server", "external"))

	corsConfig := middleware.DefaultCORSConfig
	if len(cfg.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowHeaders = []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization}
	e.Use(middleware.CORSWithConfig(corsConfig))

	v1.NewHandler(svc, log).RegisterRoutes(e)
	if ws != nil {
		e.GET("/ws", ws.HandleWebSocket)
	}
	return e
}

// NewInternalServer creates the operator server. It must not be exposed publicly.
func NewInternalServer(svc *service.Service, conns internalapi.ConnectionCounter, log *logger.Logger) *echo.Echo {
	e := newEcho(log.With("server", "internal"))
	internalapi.NewHandler(svc, conns, log).RegisterRoutes(e)
	return e
}

func newEcho(log *logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			kv := []interface{}{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			}
			switch {
			case v.Error != nil:
				log.Error("request", append(kv, "error", v.Error)...)
			case v.Status >= http.StatusInternalServerError:
				log.Warn("request", kv...)
			default:
				log.Debug("request", kv...)
			}
			return nil
		},
	}))
	return e
}
