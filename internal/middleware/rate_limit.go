package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/graderbot/internal/utils"
)

// RateLimit caps how often one client IP may hit the routes behind it, such as
// batch starts. Rejected requests get 429 with a Retry-After of one window.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window < time.Second {
		window = time.Second
	}
	retryAfter := strconv.Itoa(int(window / time.Second))

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return fmt.Sprintf("%s:%s", identifier, c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, retryAfter)
			return utils.SendError(c, fiber.StatusTooManyRequests,
				fmt.Sprintf("%s limit of %d per %s reached, retry later", identifier, max, window))
		},
	})
}
