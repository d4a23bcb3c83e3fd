package rest

import (
	"github.com/AzielCF/az-infer/domains/pipeline"
	pkgError "github.com/AzielCF/az-infer/pkg/error"
	"github.com/AzielCF/az-infer/pkg/utils"
	"github.com/AzielCF/az-infer/validations"
	"github.com/gofiber/fiber/v2"
)

type Pipelines struct {
	Service pipeline.IInferenceUsecase
}

func InitRestPipelines(app fiber.Router, service pipeline.IInferenceUsecase) Pipelines {
	rest := Pipelines{Service: service}
	app.Get("/pipelines", rest.List)
	app.Post("/pipelines/preload", rest.Preload)
	app.Delete("/pipelines/:task", rest.Reset)
	return rest
}

func (handler *Pipelines) List(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Pipelines status retrieved",
		Results: handler.Service.Status(c.UserContext()),
	})
}

// Preload acepta body vacío: precarga todas las configuradas.
func (handler *Pipelines) Preload(c *fiber.Ctx) error {
	var request pipeline.PreloadRequest
	if len(c.Body()) > 0 {
		parseBody(c, &request)
	}
	utils.PanicIfNeeded(validations.ValidatePreload(c.UserContext(), request))

	tasks := make([]pipeline.Task, 0, len(request.Tasks))
	for _, t := range request.Tasks {
		tasks = append(tasks, pipeline.Task(t))
	}

	if err := handler.Service.Preload(c.UserContext(), tasks); err != nil {
		panic(pkgError.ServiceUnavailableError(err.Error()))
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Pipelines preloaded",
		Results: handler.Service.Status(c.UserContext()),
	})
}

func (handler *Pipelines) Reset(c *fiber.Ctx) error {
	task := c.Params("task")
	utils.PanicIfNeeded(handler.Service.Reset(c.UserContext(), pipeline.Task(task)))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Pipeline " + task + " reset",
	})
}
