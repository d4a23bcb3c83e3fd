package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/AzielCF/az-infer/domains/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInference struct {
	last pipeline.Input
	err  error
}

func (f *fakeInference) Run(_ context.Context, task pipeline.Task, in pipeline.Input) (pipeline.Output, error) {
	f.last = in
	if f.err != nil {
		return pipeline.Output{}, f.err
	}
	return pipeline.Output{Task: task, Summary: "resumen"}, nil
}

func (f *fakeInference) Preload(context.Context, []pipeline.Task) error { return nil }

func (f *fakeInference) Status(context.Context) []pipeline.Status {
	return []pipeline.Status{{Task: pipeline.TaskSummarization, Available: true}, {Task: pipeline.TaskTextToVideo}}
}

func (f *fakeInference) Reset(context.Context, pipeline.Task) error { return nil }

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestHandleSummarization(t *testing.T) {
	svc := &fakeInference{}
	h := InitMcpInference(svc)

	res, err := h.handleSummarization(context.Background(), callRequest(map[string]any{"text": "largo texto", "max_words": 30}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "resumen", textOf(t, res))
	assert.Equal(t, 30, svc.last.MaxTokens)

	res, err = h.handleSummarization(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleTextGeneration_Errors(t *testing.T) {
	svc := &fakeInference{err: errors.New("provider down")}
	h := InitMcpInference(svc)

	_, err := h.handleTextGeneration(context.Background(), callRequest(map[string]any{}))
	assert.Error(t, err)

	res, err := h.handleTextGeneration(context.Background(), callRequest(map[string]any{"prompt": "hola"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "provider down")
}

func TestHandlePipelineStatus(t *testing.T) {
	h := InitMcpInference(&fakeInference{})
	res, err := h.handlePipelineStatus(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "1 of 2 pipelines loaded", textOf(t, res))
}

func TestHandleTextToVideo_Validation(t *testing.T) {
	svc := &fakeInference{}
	h := InitMcpInference(svc)

	res, err := h.handleTextToVideo(context.Background(), callRequest(map[string]any{"prompt": "olas", "aspect_ratio": "4:3"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.handleTextToVideo(context.Background(), callRequest(map[string]any{"prompt": "olas", "aspect_ratio": "9:16"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "9:16", svc.last.Options["aspect_ratio"])
}
