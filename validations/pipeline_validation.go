package validations

import (
	"context"
	"fmt"
	"strings"

	"github.com/AzielCF/az-infer/domains/pipeline"
	pkgError "github.com/AzielCF/az-infer/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	maxPromptLength = 32000
	maxTextLength   = 200000
	maxSpeechLength = 5000
)

var (
	imageSizes   = []any{"256x256", "512x512", "1024x1024", "1024x1536", "1536x1024", "1792x1024", "1024x1792", "auto"}
	aspectRatios = []any{"16:9", "9:16"}
)

func ValidateTextGeneration(ctx context.Context, request pipeline.TextGenerationRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Prompt, validation.Required, validation.RuneLength(1, maxPromptLength)),
		validation.Field(&request.MaxTokens, validation.Min(0), validation.Max(65536)),
	)
	return wrap(err)
}

func ValidateSummarization(ctx context.Context, request pipeline.SummarizationRequest) error {
	noText := strings.TrimSpace(request.Text) == ""
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Text, validation.RuneLength(0, maxTextLength)),
		validation.Field(&request.URL,
			validation.When(noText, validation.Required.Error("text or url is required")),
			is.URL,
		),
		validation.Field(&request.MaxWords, validation.Min(0), validation.Max(2000)),
	)
	return wrap(err)
}

func ValidateTextToSpeech(ctx context.Context, request pipeline.TextToSpeechRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Text, validation.Required, validation.RuneLength(1, maxSpeechLength)),
	)
	return wrap(err)
}

func ValidateTextToImage(ctx context.Context, request pipeline.TextToImageRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Prompt, validation.Required, validation.RuneLength(1, maxPromptLength)),
		validation.Field(&request.Size, validation.In(imageSizes...)),
	)
	return wrap(err)
}

func ValidateTextToVideo(ctx context.Context, request pipeline.TextToVideoRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Prompt, validation.Required, validation.RuneLength(1, maxPromptLength)),
		validation.Field(&request.AspectRatio, validation.In(aspectRatios...)),
	)
	return wrap(err)
}

func ValidateSpeechToText(ctx context.Context, request pipeline.SpeechToTextRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Data, validation.Required.Error("audio file is required"), maxBytes(request.MaxBytes)),
		validation.Field(&request.MIMEType, validation.When(len(request.Data) > 0, validation.By(prefixed("audio/", "video/")))),
	)
	return wrap(err)
}

func ValidateImageClassification(ctx context.Context, request pipeline.ImageClassificationRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Data, validation.Required.Error("image file is required"), maxBytes(request.MaxBytes)),
		validation.Field(&request.MIMEType, validation.When(len(request.Data) > 0, validation.By(prefixed("image/")))),
		validation.Field(&request.TopK, validation.Min(0), validation.Max(20)),
	)
	return wrap(err)
}

func ValidatePreload(ctx context.Context, request pipeline.PreloadRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Tasks, validation.Each(validation.By(func(value any) error {
			_, err := pipeline.ParseTask(value.(string))
			return err
		}))),
	)
	return wrap(err)
}

func maxBytes(limit int64) validation.Rule {
	return validation.By(func(value any) error {
		data, _ := value.([]byte)
		if limit > 0 && int64(len(data)) > limit {
			return fmt.Errorf("file exceeds %d bytes", limit)
		}
		return nil
	})
}

func prefixed(prefixes ...string) validation.RuleFunc {
	return func(value any) error {
		mime, _ := value.(string)
		// multipart a veces no trae content-type; se acepta
		if mime == "" || mime == "application/octet-stream" {
			return nil
		}
		for _, p := range prefixes {
			if strings.HasPrefix(mime, p) {
				return nil
			}
		}
		return fmt.Errorf("unsupported content type %s", mime)
	}
}

func wrap(err error) error {
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
