package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const idempotencyHeader = "X-Correlation-ID"

const (
	// inFlightTTL bounds how long a crashed request can hold its correlation ID
	inFlightTTL = 30 * time.Second
	// replayWait is how long a duplicate waits for the first request to finish
	replayWait   = 5 * time.Second
	pollInterval = 50 * time.Millisecond
)

// cachedResponse keeps the status so a replayed 201 stays a 201. Status 0 marks a request still in flight.
type cachedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
}

var inFlight, _ = json.Marshal(cachedResponse{})

// IdempotencyMiddleware replays the stored response of a POST/PATCH/PUT carrying an already seen X-Correlation-ID.
// Keys are scoped per user so two members cannot collide on the same correlation ID.
// The first request reserves the key; concurrent duplicates wait for its response instead of running again.
func IdempotencyMiddleware(redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPatch && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		correlationID := c.Get(idempotencyHeader)
		if correlationID == "" {
			return c.Next()
		}

		key := fmt.Sprintf("idempotency:%s:%s", UserID(c), correlationID)
		ctx := c.UserContext()

		reserved, err := redisClient.SetNX(ctx, key, inFlight, inFlightTTL).Result()
		if err != nil {
			// Redis trouble must not block bookings
			logger.Warn("idempotency reservation failed", zap.String("key", key), zap.Error(err))
			reserved = true
		}

		if !reserved {
			cached, err := waitForResponse(ctx, redisClient, key)
			switch {
			case err != nil:
				logger.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
			case cached == nil:
				// The first request failed or expired; run this one instead
			case cached.Status == 0:
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "A request with this correlation ID is still in progress"})
			default:
				c.Set("X-Idempotent-Replay", "true")
				c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
				return c.Status(cached.Status).Send(cached.Body)
			}
		}

		if err := c.Next(); err != nil {
			release(redisClient, key, logger)
			return err
		}

		status := c.Response().StatusCode()
		// fasthttp reuses the response buffer once the handler returns
		body := append([]byte(nil), c.Response().Body()...)
		if status < 200 || status >= 300 || !json.Valid(body) {
			release(redisClient, key, logger)
			return nil
		}

		payload, err := json.Marshal(cachedResponse{Status: status, Body: body})
		if err != nil {
			release(redisClient, key, logger)
			return nil
		}
		if err := redisClient.Set(context.Background(), key, payload, ttl).Err(); err != nil {
			logger.Warn("failed to store idempotent response", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
}

// waitForResponse polls the key until the first request stored its response.
// nil means the key is gone; a zero Status means it is still in flight after replayWait.
func waitForResponse(ctx context.Context, redisClient *redis.Client, key string) (*cachedResponse, error) {
	deadline := time.NewTimer(replayWait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		raw, err := redisClient.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		var cached cachedResponse
		if err := json.Unmarshal(raw, &cached); err != nil {
			return nil, err
		}
		if cached.Status != 0 {
			return &cached, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return &cached, nil
		case <-ticker.C:
		}
	}
}

// release frees a reservation so a retry can run the request again
func release(redisClient *redis.Client, key string, logger *zap.Logger) {
	if err := redisClient.Del(context.Background(), key).Err(); err != nil {
		logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}
