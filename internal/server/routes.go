package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/berfenger/omnik2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/api/reading", s.ReadingHandler)
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics))
	}

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

// ReadingHandler fetches a fresh reading from the inverter.
func (s *Server) ReadingHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetReadingRequest{}, s.readingTimeout).Result()
	if err != nil {
		if errors.Is(err, actor.ErrTimeout) {
			return c.JSON(http.StatusGatewayTimeout, errorBody(err))
		}
		return c.JSON(http.StatusBadGateway, errorBody(err))
	}
	response, ok := res.(domain.GetReadingResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "unexpected response"})
	}
	if response.HasResponseError() {
		if errors.Is(response.GetResponseError(), context.DeadlineExceeded) {
			return c.JSON(http.StatusGatewayTimeout, errorBody(response.GetResponseError()))
		}
		return c.JSON(http.StatusBadGateway, errorBody(response.GetResponseError()))
	}
	return c.JSON(http.StatusOK, response.Reading)
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}
