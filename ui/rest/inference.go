package rest

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/AzielCF/az-infer/domains/pipeline"
	pkgError "github.com/AzielCF/az-infer/pkg/error"
	"github.com/AzielCF/az-infer/pkg/utils"
	"github.com/AzielCF/az-infer/validations"
	"github.com/gofiber/fiber/v2"
)

type Inference struct {
	Service       pipeline.IInferenceUsecase
	MaxImageBytes int64
	MaxAudioBytes int64
}

// InitRestInference registers one POST route per task. cache runs before
// every handler; pass nil to serve without cache.
func InitRestInference(app fiber.Router, service pipeline.IInferenceUsecase, maxImageBytes, maxAudioBytes int64, cache fiber.Handler) Inference {
	rest := Inference{Service: service, MaxImageBytes: maxImageBytes, MaxAudioBytes: maxAudioBytes}

	route := func(path string, h fiber.Handler) {
		if cache != nil {
			app.Post(path, cache, h)
			return
		}
		app.Post(path, h)
	}
	route("/speech-to-text", rest.SpeechToText)
	route("/image-classification", rest.ImageClassification)
	route("/text-generation", rest.TextGeneration)
	route("/summarization", rest.Summarization)
	route("/text-to-speech", rest.TextToSpeech)
	route("/text-to-image", rest.TextToImage)
	route("/text-to-video", rest.TextToVideo)

	return rest
}

func (handler *Inference) TextGeneration(c *fiber.Ctx) error {
	var request pipeline.TextGenerationRequest
	parseBody(c, &request)

	utils.PanicIfNeeded(validations.ValidateTextGeneration(c.UserContext(), request))
	return handler.run(c, pipeline.TaskTextGeneration, request.ToInput(), "Text generated")
}

func (handler *Inference) Summarization(c *fiber.Ctx) error {
	var request pipeline.SummarizationRequest
	parseBody(c, &request)

	utils.PanicIfNeeded(validations.ValidateSummarization(c.UserContext(), request))
	return handler.run(c, pipeline.TaskSummarization, request.ToInput(), "Summary generated")
}

func (handler *Inference) TextToSpeech(c *fiber.Ctx) error {
	var request pipeline.TextToSpeechRequest
	parseBody(c, &request)

	utils.PanicIfNeeded(validations.ValidateTextToSpeech(c.UserContext(), request))
	return handler.run(c, pipeline.TaskTextToSpeech, request.ToInput(), "Speech generated")
}

func (handler *Inference) TextToImage(c *fiber.Ctx) error {
	var request pipeline.TextToImageRequest
	parseBody(c, &request)

	utils.PanicIfNeeded(validations.ValidateTextToImage(c.UserContext(), request))
	return handler.run(c, pipeline.TaskTextToImage, request.ToInput(), "Image generated")
}

func (handler *Inference) TextToVideo(c *fiber.Ctx) error {
	var request pipeline.TextToVideoRequest
	parseBody(c, &request)

	utils.PanicIfNeeded(validations.ValidateTextToVideo(c.UserContext(), request))
	return handler.run(c, pipeline.TaskTextToVideo, request.ToInput(), "Video generated")
}

func (handler *Inference) SpeechToText(c *fiber.Ctx) error {
	var request pipeline.SpeechToTextRequest
	request.Language = c.FormValue("language")
	request.MaxBytes = handler.MaxAudioBytes
	request.Data, request.MIMEType = readFormFile(c, "audio", handler.MaxAudioBytes)

	utils.PanicIfNeeded(validations.ValidateSpeechToText(c.UserContext(), request))
	return handler.run(c, pipeline.TaskSpeechToText, request.ToInput(), "Audio transcribed")
}

func (handler *Inference) ImageClassification(c *fiber.Ctx) error {
	var request pipeline.ImageClassificationRequest
	if v := c.FormValue("top_k"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &request.TopK); err != nil {
			panic(pkgError.ValidationError("top_k must be an integer"))
		}
	}
	request.MaxBytes = handler.MaxImageBytes
	request.Data, request.MIMEType = readFormFile(c, "image", handler.MaxImageBytes)

	utils.PanicIfNeeded(validations.ValidateImageClassification(c.UserContext(), request))
	return handler.run(c, pipeline.TaskImageClassification, request.ToInput(), "Image classified")
}

func (handler *Inference) run(c *fiber.Ctx, task pipeline.Task, in pipeline.Input, message string) error {
	out, err := handler.Service.Run(c.UserContext(), task, in)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: out,
	})
}

func parseBody(c *fiber.Ctx, out any) {
	if err := c.BodyParser(out); err != nil {
		panic(pkgError.ValidationError("invalid request body: " + err.Error()))
	}
}

// readFormFile returns nil data when the field is missing so validation can
// report it. Reads at most limit+1 bytes.
func readFormFile(c *fiber.Ctx, field string, limit int64) ([]byte, string) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, ""
	}
	data, err := readLimited(fh, limit)
	utils.PanicIfNeeded(err)
	return data, fh.Header.Get(fiber.HeaderContentType)
}

func readLimited(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	return io.ReadAll(r)
}
