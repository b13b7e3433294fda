package config

import (
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger) *fiber.App {
	bodyLimit := 10 * 1024 * 1024
	if v, err := strconv.Atoi(os.Getenv("APP_BODY_LIMIT")); err == nil && v > 0 {
		bodyLimit = v
	}

	app := fiber.New(
		fiber.Config{
			AppName:           "QR Scanner",
			BodyLimit:         bodyLimit,
			DisableKeepalive:  false,
			StrictRouting:     true,
			CaseSensitive:     true,
			EnablePrintRoutes: os.Getenv("APP_ENV") == "development",
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
		})

	logger.Debugf("Fiber app created with body limit %d", bodyLimit)
	return app
}
