package generator

import "go-tarot-gen/internal/api"

// Request is one image generation call before it is shaped for a model.
type Request struct {
	Prompt         string
	NegativePrompt string
	Seed           int64
	Image          string // data URI, empty for text-to-image
	PromptStrength float64
	AspectRatio    string
	Width          int
	Height         int
}

// Input builds the model-specific prediction input.
func (r Request) Input(m api.Model) map[string]any {
	if m.IsFlux() {
		return map[string]any{
			"prompt":        r.Prompt,
			"seed":          r.Seed,
			"num_outputs":   1,
			"aspect_ratio":  r.AspectRatio,
			"output_format": "png",
		}
	}
	input := map[string]any{
		"prompt":          r.Prompt,
		"negative_prompt": r.NegativePrompt,
		"seed":            r.Seed,
		"width":           r.Width,
		"height":          r.Height,
		"num_outputs":     1,
	}
	if r.Image != "" {
		input["image"] = r.Image
		input["prompt_strength"] = r.PromptStrength
	}
	return input
}
