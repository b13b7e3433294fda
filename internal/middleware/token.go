package middleware

import (
	"QRScanner/internal/entity"
	"QRScanner/pkg/handlerUtil"
	jwtPkg "QRScanner/pkg/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"strings"
)

const (
	AccessTokenSecret = "JWT_ACCESS_TOKEN_SECRET"
	unauthorizedMsg   = "Unauthorized, access token invalid or expired"
)

type tokenMiddleware struct {
	errHandler *handlerUtil.ErrorHandler
}

func newTokenMiddleware(logger *logrus.Logger) *tokenMiddleware {
	return &tokenMiddleware{
		errHandler: handlerUtil.New(logger),
	}
}

func (m *middleware) NewTokenMiddleware(ctx *fiber.Ctx) error {
	requestID := m.GetRequestID(ctx)
	authHeader := ctx.Get("Authorization")

	m.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"method":     ctx.Method(),
		"client_ip":  ctx.IP(),
	}).Debug("Incoming request")

	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      "Authorization header is missing or malformed",
		}).Warn("Authorization header check")
		return m.token.errHandler.HandleUnauthorized(ctx, requestID, unauthorizedMsg)
	}

	userToken, err := jwtPkg.VerifyTokenHeader(ctx, AccessTokenSecret)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Token verification failed")
		return m.token.errHandler.HandleUnauthorized(ctx, requestID, unauthorizedMsg)
	}

	claims, ok := userToken.Claims.(jwt.MapClaims)
	if !ok {
		return m.token.errHandler.HandleUnauthorized(ctx, requestID, unauthorizedMsg)
	}

	id, ok := claims["id"].(string)
	if !ok || id == "" {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      "Token claims are missing required fields",
		}).Warn("Token claims check")
		return m.token.errHandler.HandleUnauthorized(ctx, requestID, unauthorizedMsg)
	}

	user := entity.UserLoginData{ID: id}
	user.Email, _ = claims["email"].(string)
	user.Username, _ = claims["username"].(string)
	ctx.Locals("user", user)

	return ctx.Next()
}
