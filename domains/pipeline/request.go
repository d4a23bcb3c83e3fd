package pipeline

// Request bodies accepted by the inference endpoints. Each one maps onto
// the shared Input.

type TextGenerationRequest struct {
	Prompt    string `json:"prompt"`
	System    string `json:"system,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

func (r TextGenerationRequest) ToInput() Input {
	in := Input{Prompt: r.Prompt, MaxTokens: r.MaxTokens}
	if r.System != "" {
		in.Options = map[string]string{"system": r.System}
	}
	return in
}

type SummarizationRequest struct {
	Text     string `json:"text,omitempty"`
	URL      string `json:"url,omitempty"`
	Language string `json:"language,omitempty"`
	MaxWords int    `json:"max_words,omitempty"`
}

func (r SummarizationRequest) ToInput() Input {
	return Input{Text: r.Text, URL: r.URL, Language: r.Language, MaxTokens: r.MaxWords}
}

type TextToSpeechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

func (r TextToSpeechRequest) ToInput() Input {
	in := Input{Text: r.Text}
	if r.Voice != "" {
		in.Options = map[string]string{"voice": r.Voice}
	}
	return in
}

type TextToImageRequest struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
}

func (r TextToImageRequest) ToInput() Input {
	in := Input{Prompt: r.Prompt}
	if r.Size != "" {
		in.Options = map[string]string{"size": r.Size}
	}
	return in
}

type TextToVideoRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

func (r TextToVideoRequest) ToInput() Input {
	in := Input{Prompt: r.Prompt}
	if r.AspectRatio != "" {
		in.Options = map[string]string{"aspect_ratio": r.AspectRatio}
	}
	return in
}

// SpeechToTextRequest comes from a multipart form with an "audio" file.
type SpeechToTextRequest struct {
	Language string `form:"language"`
	Data     []byte `form:"-"`
	MIMEType string `form:"-"`
	MaxBytes int64  `form:"-"`
}

func (r SpeechToTextRequest) ToInput() Input {
	return Input{Data: r.Data, MIMEType: r.MIMEType, Language: r.Language}
}

// ImageClassificationRequest comes from a multipart form with an "image" file.
type ImageClassificationRequest struct {
	TopK     int    `form:"top_k"`
	Data     []byte `form:"-"`
	MIMEType string `form:"-"`
	MaxBytes int64  `form:"-"`
}

func (r ImageClassificationRequest) ToInput() Input {
	return Input{Data: r.Data, MIMEType: r.MIMEType, TopK: r.TopK}
}

type PreloadRequest struct {
	Tasks []string `json:"tasks"`
}
