package rest

import (
	coreconfig "github.com/AzielCF/az-infer/core/config"
	"github.com/AzielCF/az-infer/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type App struct {
	Config *coreconfig.Config
}

func InitRestApp(app fiber.Router, cfg *coreconfig.Config) App {
	rest := App{Config: cfg}
	app.Get("/app/version", rest.GetVersion)
	app.Get("/app/settings", rest.GetSettings)

	return rest
}

func (handler *App) GetVersion(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version":   handler.Config.App.Version,
		"server_id": handler.Config.App.ServerID,
	})
}

func (handler *App) GetSettings(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Settings retrieved",
		Results: handler.Config.Settings(),
	})
}
