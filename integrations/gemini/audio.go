package gemini

import (
	"bytes"
	"context"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/AzielCF/az-infer/domains/pipeline"
	pkgError "github.com/AzielCF/az-infer/pkg/error"
	"google.golang.org/genai"
)

const (
	defaultSampleRate = 24000
	MIMEWav           = "audio/wav"
)

type speechToText struct {
	base
}

func (p *speechToText) Invoke(ctx context.Context, in pipeline.Input) (pipeline.Output, error) {
	if len(in.Data) == 0 {
		return pipeline.Output{}, pkgError.ValidationError("audio is required")
	}
	mime := in.MIMEType
	if mime == "" || mime == "application/octet-stream" {
		mime = "audio/mpeg"
	}

	prompt := "Transcribe this audio literally. Return only the transcription."
	if in.Language != "" {
		prompt += " The speech is in " + in.Language + "."
	}

	result, err := p.generate(ctx, userContent(
		&genai.Part{Text: prompt},
		&genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: in.Data}},
	), nil)
	if err != nil {
		return pipeline.Output{}, err
	}
	out := p.output()
	out.Text = strings.TrimSpace(result.Text())
	return out, nil
}

type textToSpeech struct {
	base
	voice string
}

func (p *textToSpeech) Invoke(ctx context.Context, in pipeline.Input) (pipeline.Output, error) {
	if err := requireText("text", in.Text); err != nil {
		return pipeline.Output{}, err
	}
	voice := p.voice
	if v := in.Options["voice"]; v != "" {
		voice = v
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}
	result, err := p.generate(ctx, userContent(&genai.Part{Text: in.Text}), cfg)
	if err != nil {
		return pipeline.Output{}, err
	}

	blob := firstBlob(result)
	if blob == nil || len(blob.Data) == 0 {
		return pipeline.Output{}, pkgError.UpstreamError("text-to-speech returned no audio")
	}

	out := p.output()
	out.Data = pcmToWAV(blob.Data, sampleRate(blob.MIMEType))
	out.MIMEType = MIMEWav
	return out, nil
}

func firstBlob(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part != nil && part.InlineData != nil {
				return part.InlineData
			}
		}
	}
	return nil
}

// sampleRate reads "rate=" from a mime like "audio/L16;codec=pcm;rate=24000".
func sampleRate(mime string) int {
	for _, param := range strings.Split(mime, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if ok && k == "rate" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				return n
			}
		}
	}
	return defaultSampleRate
}

// pcmToWAV wraps 16-bit mono little-endian PCM in a RIFF header.
func pcmToWAV(pcm []byte, rate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := rate * channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels*bitsPerSample/8))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
