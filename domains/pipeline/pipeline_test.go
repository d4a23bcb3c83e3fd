package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTask(t *testing.T) {
	for _, task := range AllTasks() {
		got, err := ParseTask(string(task))
		require.NoError(t, err)
		assert.Equal(t, task, got)
	}

	_, err := ParseTask("translate")
	assert.ErrorIs(t, err, ErrUnknownTask)
	_, err = ParseTask("")
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestAllTasks_Unique(t *testing.T) {
	seen := map[Task]bool{}
	for _, task := range AllTasks() {
		assert.False(t, seen[task], task)
		seen[task] = true
	}
	assert.Len(t, seen, 7)
}

func TestRequests_ToInput(t *testing.T) {
	in := TextGenerationRequest{Prompt: "p", System: "s", MaxTokens: 10}.ToInput()
	assert.Equal(t, Input{Prompt: "p", MaxTokens: 10, Options: map[string]string{"system": "s"}}, in)

	assert.Nil(t, TextToSpeechRequest{Text: "t"}.ToInput().Options)
	assert.Equal(t, "alloy", TextToSpeechRequest{Text: "t", Voice: "alloy"}.ToInput().Options["voice"])
	assert.Equal(t, 40, SummarizationRequest{URL: "u", MaxWords: 40}.ToInput().MaxTokens)
	assert.Equal(t, "9:16", TextToVideoRequest{Prompt: "p", AspectRatio: "9:16"}.ToInput().Options["aspect_ratio"])
	assert.Equal(t, 3, ImageClassificationRequest{TopK: 3}.ToInput().TopK)
}
