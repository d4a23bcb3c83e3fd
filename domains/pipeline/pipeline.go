package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AzielCF/az-infer/pkg/lazy"
)

// Task identifies one inference capability. The set is closed: only the
// constants below are valid.
type Task string

const (
	TaskSpeechToText        Task = "speech-to-text"
	TaskImageClassification Task = "image-classification"
	TaskTextGeneration      Task = "text-generation"
	TaskSummarization       Task = "summarization"
	TaskTextToSpeech        Task = "text-to-speech"
	TaskTextToImage         Task = "text-to-image"
	TaskTextToVideo         Task = "text-to-video"
)

var ErrUnknownTask = errors.New("unknown pipeline task")

// AllTasks lists every task in a stable order.
func AllTasks() []Task {
	return []Task{
		TaskSpeechToText,
		TaskImageClassification,
		TaskTextGeneration,
		TaskSummarization,
		TaskTextToSpeech,
		TaskTextToImage,
		TaskTextToVideo,
	}
}

// ParseTask returns the Task named s or ErrUnknownTask.
func ParseTask(s string) (Task, error) {
	for _, t := range AllTasks() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTask, s)
}

// Input carries every field any task may need. Each pipeline reads only its own.
type Input struct {
	Text      string            `json:"text,omitempty"`
	URL       string            `json:"url,omitempty"`
	Prompt    string            `json:"prompt,omitempty"`
	Data      []byte            `json:"-"`
	MIMEType  string            `json:"mime_type,omitempty"`
	Language  string            `json:"language,omitempty"`
	MaxTokens int               `json:"max_tokens,omitempty"`
	TopK      int               `json:"top_k,omitempty"`
	Options   map[string]string `json:"options,omitempty"`
}

// Label is one classification result.
type Label struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Output is the JSON body returned to clients. Binary results are
// base64-encoded by encoding/json.
type Output struct {
	Task      Task    `json:"task"`
	Model     string  `json:"model"`
	Provider  string  `json:"provider"`
	Text      string  `json:"text,omitempty"`
	Summary   string  `json:"summary,omitempty"`
	Labels    []Label `json:"labels,omitempty"`
	Data      []byte  `json:"data,omitempty"`
	MIMEType  string  `json:"mime_type,omitempty"`
	URI       string  `json:"uri,omitempty"`
	LatencyMs int64   `json:"latency_ms"`
}

// Pipeline runs one task against a provider.
type Pipeline interface {
	Task() Task
	Provider() string
	Model() string
	Invoke(ctx context.Context, in Input) (Output, error)
}

// Factory builds the pipeline for a task. It may be slow (client setup,
// connectivity checks) and may fail.
type Factory func(ctx context.Context) (Pipeline, error)

// Status describes one task for the /pipelines endpoint.
type Status struct {
	Task      Task       `json:"task"`
	State     lazy.State `json:"state"`
	Available bool       `json:"available"`
	Provider  string     `json:"provider,omitempty"`
	Model     string     `json:"model,omitempty"`
	Attempts  int        `json:"attempts"`
	ReadyAt   *time.Time `json:"ready_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

type IInferenceUsecase interface {
	Run(ctx context.Context, task Task, in Input) (Output, error)
	Preload(ctx context.Context, tasks []Task) error
	Status(ctx context.Context) []Status
	Reset(ctx context.Context, task Task) error
}
