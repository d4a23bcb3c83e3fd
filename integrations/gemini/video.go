package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/AzielCF/az-infer/domains/pipeline"
	pkgError "github.com/AzielCF/az-infer/pkg/error"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const defaultVideoPoll = 10 * time.Second

type textToVideo struct {
	base
	pollInterval time.Duration
}

// Invoke starts a long-running video generation and polls it until it is
// done or ctx ends.
func (p *textToVideo) Invoke(ctx context.Context, in pipeline.Input) (pipeline.Output, error) {
	prompt := firstNonEmpty(in.Prompt, in.Text)
	if err := requireText("prompt", prompt); err != nil {
		return pipeline.Output{}, err
	}

	cfg := &genai.GenerateVideosConfig{NumberOfVideos: 1}
	if ar := in.Options["aspect_ratio"]; ar != "" {
		cfg.AspectRatio = ar
	}

	op, err := p.client.Models.GenerateVideos(ctx, p.model, prompt, nil, cfg)
	if err != nil {
		return pipeline.Output{}, err
	}

	interval := p.pollInterval
	if interval <= 0 {
		interval = defaultVideoPoll
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !op.Done {
		logrus.Debugf("[GEMINI] Waiting for video operation %s", op.Name)
		select {
		case <-ctx.Done():
			return pipeline.Output{}, ctx.Err()
		case <-ticker.C:
		}
		op, err = p.client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return pipeline.Output{}, err
		}
	}

	return p.result(op)
}

func (p *textToVideo) result(op *genai.GenerateVideosOperation) (pipeline.Output, error) {
	if op.Error != nil {
		return pipeline.Output{}, pkgError.UpstreamError(fmt.Sprintf("video generation failed: %v", op.Error))
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		return pipeline.Output{}, pkgError.UpstreamError("video generation returned no video")
	}

	video := op.Response.GeneratedVideos[0].Video
	out := p.output()
	out.URI = video.URI
	out.Data = video.VideoBytes
	out.MIMEType = video.MIMEType
	if out.MIMEType == "" {
		out.MIMEType = "video/mp4"
	}
	return out, nil
}
