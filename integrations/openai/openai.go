package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	coreconfig "github.com/AzielCF/az-infer/core/config"
	"github.com/AzielCF/az-infer/domains/pipeline"
	pkgError "github.com/AzielCF/az-infer/pkg/error"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

const ProviderName = "openai"

// Factories returns the pipelines served by OpenAI. Text generation is only
// included when it is the configured provider for that task.
func Factories(cfg coreconfig.AIConfig) map[pipeline.Task]pipeline.Factory {
	out := map[pipeline.Task]pipeline.Factory{
		pipeline.TaskTextToImage: func(ctx context.Context) (pipeline.Pipeline, error) {
			client, err := newClient(cfg.OpenAIAPIKey)
			if err != nil {
				return nil, err
			}
			logrus.Infof("[OPENAI] %s pipeline using %s", pipeline.TaskTextToImage, cfg.TextToImageModel)
			return &textToImage{client: client, model: cfg.TextToImageModel}, nil
		},
	}
	if cfg.TextGenerationProvider == ProviderName {
		out[pipeline.TaskTextGeneration] = func(ctx context.Context) (pipeline.Pipeline, error) {
			client, err := newClient(cfg.OpenAIAPIKey)
			if err != nil {
				return nil, err
			}
			logrus.Infof("[OPENAI] %s pipeline using %s", pipeline.TaskTextGeneration, cfg.OpenAITextModel)
			return &textGeneration{client: client, model: cfg.OpenAITextModel}, nil
		}
	}
	return out
}

func newClient(apiKey string) (*openai.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai pipelines require OPENAI_API_KEY")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &client, nil
}

type textGeneration struct {
	client *openai.Client
	model  string
}

func (p *textGeneration) Task() pipeline.Task { return pipeline.TaskTextGeneration }
func (p *textGeneration) Provider() string    { return ProviderName }
func (p *textGeneration) Model() string       { return p.model }

func (p *textGeneration) Invoke(ctx context.Context, in pipeline.Input) (pipeline.Output, error) {
	params, err := chatParams(p.model, in)
	if err != nil {
		return pipeline.Output{}, err
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return pipeline.Output{}, err
	}
	if len(completion.Choices) == 0 {
		return pipeline.Output{}, pkgError.UpstreamError("text generation returned no choices")
	}

	return pipeline.Output{
		Task:     pipeline.TaskTextGeneration,
		Model:    p.model,
		Provider: ProviderName,
		Text:     strings.TrimSpace(completion.Choices[0].Message.Content),
	}, nil
}

func chatParams(model string, in pipeline.Input) (openai.ChatCompletionNewParams, error) {
	prompt := in.Prompt
	if strings.TrimSpace(prompt) == "" {
		prompt = in.Text
	}
	if strings.TrimSpace(prompt) == "" {
		return openai.ChatCompletionNewParams{}, pkgError.ValidationError("prompt is required")
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if sys := in.Options["system"]; sys != "" {
		messages = append(messages, openai.SystemMessage(sys))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if in.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(in.MaxTokens))
	}
	return params, nil
}

type textToImage struct {
	client *openai.Client
	model  string
}

func (p *textToImage) Task() pipeline.Task { return pipeline.TaskTextToImage }
func (p *textToImage) Provider() string    { return ProviderName }
func (p *textToImage) Model() string       { return p.model }

func (p *textToImage) Invoke(ctx context.Context, in pipeline.Input) (pipeline.Output, error) {
	params, err := imageParams(p.model, in)
	if err != nil {
		return pipeline.Output{}, err
	}

	resp, err := p.client.Images.Generate(ctx, params)
	if err != nil {
		return pipeline.Output{}, err
	}
	if resp == nil || len(resp.Data) == 0 {
		return pipeline.Output{}, pkgError.UpstreamError("text-to-image returned no image")
	}

	img := resp.Data[0]
	out := pipeline.Output{
		Task:     pipeline.TaskTextToImage,
		Model:    p.model,
		Provider: ProviderName,
		Text:     img.RevisedPrompt,
		URI:      img.URL,
	}
	if img.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return pipeline.Output{}, pkgError.UpstreamError("invalid image payload: " + err.Error())
		}
		out.Data = data
		out.MIMEType = "image/png"
	}
	return out, nil
}

func imageParams(model string, in pipeline.Input) (openai.ImageGenerateParams, error) {
	prompt := in.Prompt
	if strings.TrimSpace(prompt) == "" {
		prompt = in.Text
	}
	if strings.TrimSpace(prompt) == "" {
		return openai.ImageGenerateParams{}, pkgError.ValidationError("prompt is required")
	}

	params := openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(model),
		N:      openai.Int(1),
	}
	if size := in.Options["size"]; size != "" {
		params.Size = openai.ImageGenerateParamsSize(size)
	}
	// gpt-image-* siempre responde en base64 y no acepta response_format
	if strings.HasPrefix(model, "dall-e") {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormatB64JSON
	}
	return params, nil
}
