package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/AzielCF/az-infer/core/config"
	"github.com/AzielCF/az-infer/domains/pipeline"
	pkgError "github.com/AzielCF/az-infer/pkg/error"
	"github.com/AzielCF/az-infer/pkg/webtext"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const ProviderName = "gemini"

// PageFetcher loads the readable text of a URL for summarization.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (webtext.Page, error)
}

// Factories returns a pipeline factory for every task Gemini serves. Each
// factory creates its own genai client when the registry first asks for it.
func Factories(cfg coreconfig.AIConfig, fetcher PageFetcher) map[pipeline.Task]pipeline.Factory {
	build := func(task pipeline.Task, model string, wrap func(base) pipeline.Pipeline) pipeline.Factory {
		return func(ctx context.Context) (pipeline.Pipeline, error) {
			client, err := newClient(ctx, cfg.GeminiAPIKey)
			if err != nil {
				return nil, err
			}
			logrus.Infof("[GEMINI] %s pipeline using %s", task, model)
			return wrap(base{task: task, model: model, client: client}), nil
		}
	}

	return map[pipeline.Task]pipeline.Factory{
		pipeline.TaskTextGeneration: build(pipeline.TaskTextGeneration, cfg.TextGenerationModel, func(b base) pipeline.Pipeline {
			return &textGeneration{base: b}
		}),
		pipeline.TaskSummarization: build(pipeline.TaskSummarization, cfg.SummarizationModel, func(b base) pipeline.Pipeline {
			return &summarization{base: b, fetcher: fetcher}
		}),
		pipeline.TaskImageClassification: build(pipeline.TaskImageClassification, cfg.ClassificationModel, func(b base) pipeline.Pipeline {
			return &imageClassification{base: b, maxSide: cfg.ClassificationMaxSide}
		}),
		pipeline.TaskSpeechToText: build(pipeline.TaskSpeechToText, cfg.SpeechToTextModel, func(b base) pipeline.Pipeline {
			return &speechToText{base: b}
		}),
		pipeline.TaskTextToSpeech: build(pipeline.TaskTextToSpeech, cfg.TextToSpeechModel, func(b base) pipeline.Pipeline {
			return &textToSpeech{base: b, voice: cfg.TextToSpeechVoice}
		}),
		pipeline.TaskTextToVideo: build(pipeline.TaskTextToVideo, cfg.TextToVideoModel, func(b base) pipeline.Pipeline {
			return &textToVideo{base: b, pollInterval: cfg.VideoPollInterval}
		}),
	}
}

func newClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini pipelines require GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}

type base struct {
	task   pipeline.Task
	model  string
	client *genai.Client
}

func (b *base) Task() pipeline.Task { return b.task }
func (b *base) Provider() string    { return ProviderName }
func (b *base) Model() string       { return b.model }

func (b *base) output() pipeline.Output {
	return pipeline.Output{Task: b.task, Model: b.model, Provider: ProviderName}
}

// generate retries 503 (model overloaded) with exponential backoff.
func (b *base) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var lastErr error
	for i := 0; i < 3; i++ {
		result, err := b.client.Models.GenerateContent(ctx, b.model, contents, cfg)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !strings.Contains(err.Error(), "503") {
			return nil, err
		}
		logrus.Warnf("[GEMINI] %s overloaded, retry %d", b.model, i+1)
		select {
		case <-time.After(time.Duration(1<<uint(i)) * time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func userContent(parts ...*genai.Part) []*genai.Content {
	return []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return pkgError.ValidationError(field + " is required")
	}
	return nil
}
