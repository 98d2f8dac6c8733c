package middleware

import (
	"strings"
	"time"

	"funnel-api/core/config"
	"funnel-api/core/constants"
	"funnel-api/core/controller"
	"funnel-api/core/errors"
	"funnel-api/core/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type TokenData struct {
	Subject string
	Email   string
	Role    string
}

type Middleware struct {
	jwtSecret string
	base      controller.BaseController
}

func NewMiddleware(cfg config.AdminConfig) *Middleware {
	return &Middleware{
		jwtSecret: cfg.JWTSecret,
		base:      controller.NewBaseController(),
	}
}

// AuthMiddleware validates a Bearer token and stashes its claims on the
// request context. Protected routes read constants.ContextTokenData.
func (m *Middleware) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return m.base.ErrorResponse(c, errors.NewAppError(errors.ErrUnauthorized, "Missing authorization header", nil))
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return m.base.ErrorResponse(c, errors.NewAppError(errors.ErrUnauthorized, "Invalid authorization header format", nil))
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.NewAppError(errors.ErrUnauthorized, "Unexpected signing method", nil)
				}
				return []byte(m.jwtSecret), nil
			})
			if err != nil || !token.Valid {
				return m.base.ErrorResponse(c, errors.NewAppError(errors.ErrUnauthorized, "Invalid or expired token", err))
			}

			data := TokenData{}
			if sub, ok := claims["sub"].(string); ok {
				data.Subject = sub
			}
			if email, ok := claims["email"].(string); ok {
				data.Email = email
			}
			if role, ok := claims["role"].(string); ok {
				data.Role = role
			}
			c.Set(constants.ContextTokenData, data)
			return next(c)
		}
	}
}

// RequestLogger logs every request with latency and status.
func (m *Middleware) RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// dispatch here so the logged status reflects the error
				// response; returning nil keeps echo from handling it twice
				c.Error(err)
				err = nil
			}

			req := c.Request()
			res := c.Response()
			logger.Info("request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"latency", time.Since(start).String(),
				"remote_ip", c.RealIP(),
			)
			return err
		}
	}
}
