package genimage

import (
	"context"
	"fmt"
	"strings"
	"time"

	genai "google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash-image-preview"

// Gemini is a thin wrapper around the official genai client.
type Gemini struct {
	cli     *genai.Client
	model   string
	timeout time.Duration
}

// NewGemini dials the Gemini API. The client reads GEMINI_API_KEY from the
// environment. timeout bounds each generation call; <=0 means 90s.
func NewGemini(ctx context.Context, model string, timeout time.Duration) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Gemini{cli: cli, model: model, timeout: timeout}, nil
}

func (g *Gemini) Name() string { return "Gemini:" + g.model }
func (g *Gemini) Close() error { return nil }

func (g *Gemini) GenerateModel(ctx context.Context, person Image) (Image, error) {
	return g.generate(ctx, []*genai.Part{
		{Text: modelPrompt()},
		blobPart(person),
	})
}

func (g *Gemini) GenerateTryOn(ctx context.Context, base, garment Image, garmentName string) (Image, error) {
	return g.generate(ctx, []*genai.Part{
		{Text: tryOnPrompt(garmentName)},
		blobPart(base),
		blobPart(garment),
	})
}

func (g *Gemini) GeneratePose(ctx context.Context, base Image, pose string) (Image, error) {
	return g.generate(ctx, []*genai.Part{
		{Text: posePrompt(pose)},
		blobPart(base),
	})
}

func (g *Gemini) generate(ctx context.Context, parts []*genai.Part) (Image, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: parts}},
		&genai.GenerateContentConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	)
	if err != nil {
		return Image{}, err
	}
	var refusal string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && len(p.InlineData.Data) > 0 {
				mime := p.InlineData.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				return Image{Data: p.InlineData.Data, MIME: mime}, nil
			}
			if refusal == "" && p.Text != "" {
				refusal = strings.TrimSpace(p.Text)
			}
		}
	}
	// Text-only answers are usually safety refusals; carry the text along.
	if refusal != "" {
		if len(refusal) > 200 {
			refusal = refusal[:200]
		}
		return Image{}, fmt.Errorf("%w: %s", ErrNoImage, refusal)
	}
	return Image{}, ErrNoImage
}

func blobPart(img Image) *genai.Part {
	mime := img.MIME
	if mime == "" {
		mime = "image/png"
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: img.Data}}
}
