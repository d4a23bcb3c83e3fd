package rest

import (
	domainUsage "github.com/AzielCF/az-infer/domains/usage"
	"github.com/AzielCF/az-infer/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Usage struct {
	Service domainUsage.IUsageUsecase
}

func InitRestUsage(app fiber.Router, service domainUsage.IUsageUsecase) Usage {
	rest := Usage{Service: service}
	app.Get("/usage", rest.GetSummary)
	return rest
}

func (handler *Usage) GetSummary(c *fiber.Ctx) error {
	summary, err := handler.Service.Summary(c.UserContext(), c.Query("task"), c.QueryInt("limit", 50))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Usage summary retrieved",
		Results: summary,
	})
}
