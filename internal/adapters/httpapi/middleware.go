package httpapi

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/labstack/echo/v4"

	"tradesim/internal/ports"
)

func recoverMiddleware(logger ports.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if r := recover(); r != nil {
					err, ok := r.(error)
					if !ok {
						err = fmt.Errorf("%v", r)
					}
					logger.Error(c.Request().Context(), err, "Panic in HTTP handler", map[string]interface{}{
						"stack": string(debug.Stack()),
					})
					_ = dataResponse(c, http.StatusInternalServerError, "Something went wrong")
				}
			}()
			return next(c)
		}
	}
}

func requestLogging(logger ports.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)

			logger.Debug(req.Context(), "HTTP request", map[string]interface{}{
				"method":  req.Method,
				"uri":     req.RequestURI,
				"remote":  req.RemoteAddr,
				"status":  c.Response().Status,
				"latency": time.Since(start).String(),
			})
			return err
		}
	}
}
