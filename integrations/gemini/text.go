package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/AzielCF/az-infer/domains/pipeline"
	pkgError "github.com/AzielCF/az-infer/pkg/error"
	"google.golang.org/genai"
)

type textGeneration struct {
	base
}

func (p *textGeneration) Invoke(ctx context.Context, in pipeline.Input) (pipeline.Output, error) {
	prompt := firstNonEmpty(in.Prompt, in.Text)
	if err := requireText("prompt", prompt); err != nil {
		return pipeline.Output{}, err
	}

	cfg := &genai.GenerateContentConfig{}
	if in.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(in.MaxTokens)
	}
	if sys := in.Options["system"]; sys != "" {
		cfg.SystemInstruction = genai.NewContentFromText(sys, "")
	}

	result, err := p.generate(ctx, userContent(&genai.Part{Text: prompt}), cfg)
	if err != nil {
		return pipeline.Output{}, err
	}
	out := p.output()
	out.Text = strings.TrimSpace(result.Text())
	return out, nil
}

type summarization struct {
	base
	fetcher PageFetcher
}

func (p *summarization) Invoke(ctx context.Context, in pipeline.Input) (pipeline.Output, error) {
	text, err := p.source(ctx, in)
	if err != nil {
		return pipeline.Output{}, err
	}

	result, err := p.generate(ctx, userContent(&genai.Part{Text: summaryPrompt(text, in.Language, in.MaxTokens)}), nil)
	if err != nil {
		return pipeline.Output{}, err
	}
	out := p.output()
	out.Summary = strings.TrimSpace(result.Text())
	return out, nil
}

// source returns the text to summarize: the body text, or the page at URL.
func (p *summarization) source(ctx context.Context, in pipeline.Input) (string, error) {
	if strings.TrimSpace(in.Text) != "" {
		return in.Text, nil
	}
	if in.URL == "" {
		return "", pkgError.ValidationError("text or url is required")
	}
	if p.fetcher == nil {
		return "", pkgError.ValidationError("url summarization is not available")
	}
	page, err := p.fetcher.Fetch(ctx, in.URL)
	if err != nil {
		return "", pkgError.UpstreamError(err.Error())
	}
	if page.Text == "" {
		return "", pkgError.ValidationError("no readable text at " + in.URL)
	}
	if page.Title != "" {
		return page.Title + "\n\n" + page.Text, nil
	}
	return page.Text, nil
}

func summaryPrompt(text, language string, maxWords int) string {
	var sb strings.Builder
	sb.WriteString("Summarize the following text in a few sentences. Keep names, figures and conclusions.")
	if maxWords > 0 {
		fmt.Fprintf(&sb, " Use at most %d words.", maxWords)
	}
	if language != "" {
		fmt.Fprintf(&sb, " Write the summary in %s.", language)
	}
	sb.WriteString("\n\n")
	sb.WriteString(text)
	return sb.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
