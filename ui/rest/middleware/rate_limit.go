package middleware

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	pkgError "github.com/AzielCF/az-infer/pkg/error"
	"github.com/AzielCF/az-infer/pkg/ratelimit"
	"github.com/AzielCF/az-infer/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// RateLimit admits at most the limiter's quota per client IP. Paths starting
// with any of skip are never counted.
func RateLimit(limiter ratelimit.Limiter, skip ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, prefix := range skip {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		d := limiter.Allow(c.IP())
		c.Set(HeaderLimit, strconv.Itoa(d.Limit))
		c.Set(HeaderRemaining, strconv.Itoa(d.Remaining))
		c.Set(HeaderReset, strconv.FormatInt(d.ResetAt.Unix(), 10))

		if d.Allowed {
			return c.Next()
		}

		retry := int(math.Ceil(d.RetryAfter.Seconds()))
		if retry < 1 {
			retry = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
		logrus.Debugf("[RATE_LIMIT] %s rejected (%d/%d)", c.IP(), d.Count, d.Limit)

		errLimit := pkgError.TooManyRequestsError(fmt.Sprintf("too many requests, retry in %ds", retry))
		return c.Status(errLimit.StatusCode()).JSON(utils.ResponseData{
			Status:  errLimit.StatusCode(),
			Code:    errLimit.ErrCode(),
			Message: errLimit.Error(),
		})
	}
}
