package echoapi

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// requestIDMiddleware tags every request and response with an X-Request-ID (uuid v4) unless the client sent one.
func requestIDMiddleware() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	})
}

// requestID returns the id set by requestIDMiddleware.
func requestID(ctx echo.Context) string {
	if id := ctx.Request().Header.Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return ctx.Response().Header().Get(echo.HeaderXRequestID)
}
