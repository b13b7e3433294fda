package banking

import (
	"QRScanner/internal/entity"
	"QRScanner/pkg/redis"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConfigured = errors.New("banking info endpoint not configured")
	ErrLookupFailed  = errors.New("banking info lookup failed")
)

const cachePrefix = "banking:"

type IBanking interface {
	Lookup(ctx context.Context, text string) (*entity.BankingInfo, error)
	Enabled() bool
}

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type client struct {
	cfg   Config
	cache redis.IRedis
	log   *logrus.Logger
}

// New builds a client for the application's banking info endpoint. cache may
// be nil, in which case every lookup goes to the endpoint.
func New(cfg Config, cache redis.IRedis, logger *logrus.Logger) IBanking {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &client{
		cfg:   cfg,
		cache: cache,
		log:   logger,
	}
}

func (c *client) Enabled() bool {
	return c.cfg.BaseURL != ""
}

func (c *client) Lookup(ctx context.Context, text string) (*entity.BankingInfo, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	key := cacheKey(text)
	if info, ok := c.fromCache(ctx, key); ok {
		return info, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agent := fiber.Get(c.cfg.BaseURL)
	agent.QueryString(url.Values{"text": {text}}.Encode())
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	agent.Timeout(c.timeout(ctx))

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		c.log.WithFields(logrus.Fields{
			"error": errs[0].Error(),
		}).Error("[banking.Lookup] request failed")
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, errs[0])
	}
	if code != fiber.StatusOK {
		c.log.WithFields(logrus.Fields{
			"status": code,
		}).Warn("[banking.Lookup] unexpected status")
		return nil, fmt.Errorf("%w: status %d", ErrLookupFailed, code)
	}

	var info entity.BankingInfo
	if err := jsoniter.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	c.toCache(ctx, key, body)
	return &info, nil
}

func (c *client) timeout(ctx context.Context) time.Duration {
	timeout := c.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	return timeout
}

func (c *client) fromCache(ctx context.Context, key string) (*entity.BankingInfo, bool) {
	if c.cache == nil {
		return nil, false
	}

	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			c.log.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Warn("[banking.fromCache] cache read failed")
		}
		return nil, false
	}

	var info entity.BankingInfo
	if err := jsoniter.UnmarshalFromString(raw, &info); err != nil {
		return nil, false
	}
	return &info, true
}

func (c *client) toCache(ctx context.Context, key string, body []byte) {
	if c.cache == nil || c.cfg.CacheTTL <= 0 {
		return
	}
	if err := c.cache.Set(ctx, key, string(body), c.cfg.CacheTTL); err != nil {
		c.log.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("[banking.toCache] cache write failed")
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return cachePrefix + hex.EncodeToString(sum[:])
}
