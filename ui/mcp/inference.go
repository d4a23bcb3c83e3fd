package mcp

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-infer/domains/pipeline"
	"github.com/AzielCF/az-infer/validations"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// InferenceHandler exposes the text-in pipelines as MCP tools. Uploads are
// REST only.
type InferenceHandler struct {
	service pipeline.IInferenceUsecase
}

func InitMcpInference(service pipeline.IInferenceUsecase) *InferenceHandler {
	return &InferenceHandler{service: service}
}

func (h *InferenceHandler) AddInferenceTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(h.toolTextGeneration(), h.handleTextGeneration)
	mcpServer.AddTool(h.toolSummarization(), h.handleSummarization)
	mcpServer.AddTool(h.toolTextToSpeech(), h.handleTextToSpeech)
	mcpServer.AddTool(h.toolTextToImage(), h.handleTextToImage)
	mcpServer.AddTool(h.toolTextToVideo(), h.handleTextToVideo)
	mcpServer.AddTool(h.toolPipelineStatus(), h.handlePipelineStatus)
}

func (h *InferenceHandler) toolTextGeneration() mcp.Tool {
	return mcp.NewTool(
		"inference_text_generation",
		mcp.WithDescription("Generate text from a prompt with the configured language model."),
		mcp.WithTitleAnnotation("Generate Text"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Prompt sent to the model"),
		),
		mcp.WithString("system",
			mcp.Description("Optional system instruction"),
		),
		mcp.WithNumber("max_tokens",
			mcp.Description("Upper bound of generated tokens"),
		),
	)
}

func (h *InferenceHandler) handleTextGeneration(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := request.RequireString("prompt")
	if err != nil {
		return nil, err
	}
	req := pipeline.TextGenerationRequest{
		Prompt:    prompt,
		System:    request.GetString("system", ""),
		MaxTokens: request.GetInt("max_tokens", 0),
	}
	if err := validations.ValidateTextGeneration(ctx, req); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return h.run(ctx, pipeline.TaskTextGeneration, req.ToInput())
}

func (h *InferenceHandler) toolSummarization() mcp.Tool {
	return mcp.NewTool(
		"inference_summarize",
		mcp.WithDescription("Summarize a text or the readable content of a web page."),
		mcp.WithTitleAnnotation("Summarize"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Description("Text to summarize. Either text or url is required"),
		),
		mcp.WithString("url",
			mcp.Description("Web page to fetch and summarize"),
		),
		mcp.WithString("language",
			mcp.Description("Language of the summary, e.g. es or en"),
		),
		mcp.WithNumber("max_words",
			mcp.Description("Approximate length of the summary"),
		),
	)
}

func (h *InferenceHandler) handleSummarization(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := pipeline.SummarizationRequest{
		Text:     request.GetString("text", ""),
		URL:      request.GetString("url", ""),
		Language: request.GetString("language", ""),
		MaxWords: request.GetInt("max_words", 0),
	}
	if err := validations.ValidateSummarization(ctx, req); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return h.run(ctx, pipeline.TaskSummarization, req.ToInput())
}

func (h *InferenceHandler) toolTextToSpeech() mcp.Tool {
	return mcp.NewTool(
		"inference_text_to_speech",
		mcp.WithDescription("Synthesize speech from text. Returns base64 WAV audio."),
		mcp.WithTitleAnnotation("Text To Speech"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text to read aloud"),
		),
		mcp.WithString("voice",
			mcp.Description("Voice name, defaults to the configured one"),
		),
	)
}

func (h *InferenceHandler) handleTextToSpeech(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return nil, err
	}
	req := pipeline.TextToSpeechRequest{Text: text, Voice: request.GetString("voice", "")}
	if err := validations.ValidateTextToSpeech(ctx, req); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return h.run(ctx, pipeline.TaskTextToSpeech, req.ToInput())
}

func (h *InferenceHandler) toolTextToImage() mcp.Tool {
	return mcp.NewTool(
		"inference_text_to_image",
		mcp.WithDescription("Generate an image from a prompt. Returns a URL or base64 data."),
		mcp.WithTitleAnnotation("Generate Image"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Description of the image"),
		),
		mcp.WithString("size",
			mcp.Description("Image size, e.g. 1024x1024"),
		),
	)
}

func (h *InferenceHandler) handleTextToImage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := request.RequireString("prompt")
	if err != nil {
		return nil, err
	}
	req := pipeline.TextToImageRequest{Prompt: prompt, Size: request.GetString("size", "")}
	if err := validations.ValidateTextToImage(ctx, req); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return h.run(ctx, pipeline.TaskTextToImage, req.ToInput())
}

func (h *InferenceHandler) toolTextToVideo() mcp.Tool {
	return mcp.NewTool(
		"inference_text_to_video",
		mcp.WithDescription("Generate a short video from a prompt. It can take several minutes."),
		mcp.WithTitleAnnotation("Generate Video"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Description of the video"),
		),
		mcp.WithString("aspect_ratio",
			mcp.Description("16:9 or 9:16"),
		),
	)
}

func (h *InferenceHandler) handleTextToVideo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := request.RequireString("prompt")
	if err != nil {
		return nil, err
	}
	req := pipeline.TextToVideoRequest{Prompt: prompt, AspectRatio: request.GetString("aspect_ratio", "")}
	if err := validations.ValidateTextToVideo(ctx, req); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return h.run(ctx, pipeline.TaskTextToVideo, req.ToInput())
}

func (h *InferenceHandler) toolPipelineStatus() mcp.Tool {
	return mcp.NewTool(
		"inference_pipeline_status",
		mcp.WithDescription("List every pipeline with its load state, provider and model."),
		mcp.WithTitleAnnotation("Pipeline Status"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

func (h *InferenceHandler) handlePipelineStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := h.service.Status(ctx)
	ready := 0
	for _, s := range status {
		if s.Available {
			ready++
		}
	}
	fallback := fmt.Sprintf("%d of %d pipelines loaded", ready, len(status))
	return mcp.NewToolResultStructured(map[string]any{"pipelines": status}, fallback), nil
}

func (h *InferenceHandler) run(ctx context.Context, task pipeline.Task, in pipeline.Input) (*mcp.CallToolResult, error) {
	out, err := h.service.Run(ctx, task, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	fallback := out.Text
	if fallback == "" {
		fallback = out.Summary
	}
	if fallback == "" && out.URI != "" {
		fallback = out.URI
	}
	if fallback == "" {
		fallback = fmt.Sprintf("%s finished in %dms", task, out.LatencyMs)
	}
	return mcp.NewToolResultStructured(out, fallback), nil
}
