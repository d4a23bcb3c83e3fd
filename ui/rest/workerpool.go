package rest

import (
	"github.com/AzielCF/az-infer/pkg/jobpool"
	"github.com/gofiber/fiber/v2"
)

// UsagePoolStats returns real-time stats of the pool that writes usage records.
func UsagePoolStats(pool *jobpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if pool == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Usage worker pool not initialized",
			})
		}
		return c.JSON(pool.GetStats())
	}
}
