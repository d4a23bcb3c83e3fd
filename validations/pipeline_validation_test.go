package validations

import (
	"context"
	"strings"
	"testing"

	"github.com/AzielCF/az-infer/domains/pipeline"
	pkgError "github.com/AzielCF/az-infer/pkg/error"
	"github.com/stretchr/testify/assert"
)

func assertValidation(t *testing.T, err error) {
	t.Helper()
	var vErr pkgError.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestValidateTextGeneration(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, ValidateTextGeneration(ctx, pipeline.TextGenerationRequest{Prompt: "hi", MaxTokens: 100}))
	assertValidation(t, ValidateTextGeneration(ctx, pipeline.TextGenerationRequest{}))
	assertValidation(t, ValidateTextGeneration(ctx, pipeline.TextGenerationRequest{Prompt: "hi", MaxTokens: -1}))
}

func TestValidateSummarization(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, ValidateSummarization(ctx, pipeline.SummarizationRequest{Text: "long text"}))
	assert.NoError(t, ValidateSummarization(ctx, pipeline.SummarizationRequest{URL: "https://example.com/a"}))

	err := ValidateSummarization(ctx, pipeline.SummarizationRequest{})
	assertValidation(t, err)
	assert.Contains(t, err.Error(), "text or url is required")

	assertValidation(t, ValidateSummarization(ctx, pipeline.SummarizationRequest{URL: "not a url"}))
}

func TestValidateGenerationRequests(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, ValidateTextToSpeech(ctx, pipeline.TextToSpeechRequest{Text: "hola"}))
	assertValidation(t, ValidateTextToSpeech(ctx, pipeline.TextToSpeechRequest{Text: strings.Repeat("a", maxSpeechLength+1)}))

	assert.NoError(t, ValidateTextToImage(ctx, pipeline.TextToImageRequest{Prompt: "a cat", Size: "1024x1024"}))
	assertValidation(t, ValidateTextToImage(ctx, pipeline.TextToImageRequest{Prompt: "a cat", Size: "3x3"}))

	assert.NoError(t, ValidateTextToVideo(ctx, pipeline.TextToVideoRequest{Prompt: "waves"}))
	assertValidation(t, ValidateTextToVideo(ctx, pipeline.TextToVideoRequest{Prompt: "waves", AspectRatio: "4:3"}))
}

func TestValidateUploads(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, ValidateSpeechToText(ctx, pipeline.SpeechToTextRequest{Data: []byte{1}, MIMEType: "audio/ogg"}))
	assert.NoError(t, ValidateSpeechToText(ctx, pipeline.SpeechToTextRequest{Data: []byte{1}, MIMEType: "application/octet-stream"}))
	assertValidation(t, ValidateSpeechToText(ctx, pipeline.SpeechToTextRequest{}))
	assertValidation(t, ValidateSpeechToText(ctx, pipeline.SpeechToTextRequest{Data: []byte{1}, MIMEType: "text/plain"}))
	assertValidation(t, ValidateSpeechToText(ctx, pipeline.SpeechToTextRequest{Data: []byte{1, 2, 3}, MaxBytes: 2}))

	assert.NoError(t, ValidateImageClassification(ctx, pipeline.ImageClassificationRequest{Data: []byte{1}, MIMEType: "image/png", TopK: 3}))
	assertValidation(t, ValidateImageClassification(ctx, pipeline.ImageClassificationRequest{Data: []byte{1}, MIMEType: "audio/ogg"}))
	assertValidation(t, ValidateImageClassification(ctx, pipeline.ImageClassificationRequest{Data: []byte{1}, TopK: 50}))
}

func TestValidatePreload(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, ValidatePreload(ctx, pipeline.PreloadRequest{}))
	assert.NoError(t, ValidatePreload(ctx, pipeline.PreloadRequest{Tasks: []string{"summarization", "text-to-image"}}))
	assertValidation(t, ValidatePreload(ctx, pipeline.PreloadRequest{Tasks: []string{"translate"}}))
}
