package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/AzielCF/az-infer/domains/pipeline"
	pkgError "github.com/AzielCF/az-infer/pkg/error"
	"github.com/AzielCF/az-infer/pkg/imageprep"
	"google.golang.org/genai"
)

const defaultTopK = 5

type imageClassification struct {
	base
	maxSide int
}

func (p *imageClassification) Invoke(ctx context.Context, in pipeline.Input) (pipeline.Output, error) {
	if len(in.Data) == 0 {
		return pipeline.Output{}, pkgError.ValidationError("image is required")
	}
	img, err := imageprep.Prepare(in.Data, p.maxSide)
	if err != nil {
		return pipeline.Output{}, pkgError.ValidationError(err.Error())
	}

	topK := in.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseJsonSchema: &genai.Schema{
			Type: "object",
			Properties: map[string]*genai.Schema{
				"labels": {
					Type: "array",
					Items: &genai.Schema{
						Type: "object",
						Properties: map[string]*genai.Schema{
							"label": {Type: "string", Description: "Short lowercase class name."},
							"score": {Type: "number", Description: "Confidence between 0 and 1."},
						},
						Required: []string{"label", "score"},
					},
				},
			},
			Required: []string{"labels"},
		},
	}

	prompt := fmt.Sprintf("Classify this image. Return up to %d labels for what it shows, most likely first, each with a confidence score between 0 and 1.", topK)
	result, err := p.generate(ctx, userContent(
		&genai.Part{Text: prompt},
		&genai.Part{InlineData: &genai.Blob{MIMEType: img.MIME, Data: img.Data}},
	), cfg)
	if err != nil {
		return pipeline.Output{}, err
	}

	labels, err := parseLabels(result.Text(), topK)
	if err != nil {
		return pipeline.Output{}, err
	}
	out := p.output()
	out.Labels = labels
	return out, nil
}

// parseLabels decodes the model answer, clamps scores to [0,1] and keeps the
// topK best.
func parseLabels(raw string, topK int) ([]pipeline.Label, error) {
	var answer struct {
		Labels []pipeline.Label `json:"labels"`
	}
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		return nil, fmt.Errorf("failed to parse classification JSON: %w", err)
	}

	labels := answer.Labels[:0]
	for _, l := range answer.Labels {
		if l.Label == "" {
			continue
		}
		if l.Score < 0 {
			l.Score = 0
		}
		if l.Score > 1 {
			l.Score = 1
		}
		labels = append(labels, l)
	}
	sort.SliceStable(labels, func(i, j int) bool { return labels[i].Score > labels[j].Score })
	if topK > 0 && len(labels) > topK {
		labels = labels[:topK]
	}
	return labels, nil
}
