package rest

import (
	"github.com/AzielCF/az-infer/domains/health"
	"github.com/AzielCF/az-infer/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Health struct {
	Service health.IHealthUsecase
}

func InitRestHealth(app fiber.Router, service health.IHealthUsecase) Health {
	handler := Health{Service: service}

	group := app.Group("/health")
	group.Get("/status", handler.GetStatus)

	return handler
}

// GetStatus answers 503 when any component is in ERROR so load balancers can
// pull the instance.
func (h *Health) GetStatus(c *fiber.Ctx) error {
	report := h.Service.GetStatus(c.UserContext())
	status := fiber.StatusOK
	if report.Status == health.StatusError {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(utils.ResponseData{
		Status:  status,
		Code:    "SUCCESS",
		Message: "Health status retrieved",
		Results: report,
	})
}
