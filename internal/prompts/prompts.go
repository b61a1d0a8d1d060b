// Package prompts builds the text prompts sent to the image model.
package prompts

import (
	"strings"

	"go-tarot-gen/internal/models"
)

// DefaultNegative lists the artifacts every card should avoid.
const DefaultNegative = "text, letters, words, title, label, card name, typography, font, " +
	"watermark, signature, blurry, low quality, deformed, ugly, duplicate, " +
	"cropped, out of frame, bad anatomy, border, frame, card border, " +
	"decorative border, ornate frame, white border, black border, any border, " +
	"edge decoration, margin, matting"

const fullBleed = "full bleed illustration extending to all edges, " +
	"no border, no frame, no text, no title, seamless edge-to-edge artwork"

var artworkLabels = map[string]string{
	models.ArcanaMajor:  "tarot card artwork",
	models.ArcanaMinor:  "tarot card artwork",
	models.ArcanaOracle: "oracle card artwork",
	models.ArcanaBack:   "card back artwork",
}

// BuildStylePrefix wraps the user's style so the same phrase appears
// verbatim at the start of every prompt in the deck.
func BuildStylePrefix(style string) string {
	return "consistent art style, " + strings.TrimSpace(style)
}

// BuildPrompt combines the style prefix with the card's imagery. The
// negative prompt is the default artifact list.
func BuildPrompt(stylePrefix string, card models.Card) (positive, negative string) {
	label, ok := artworkLabels[card.Arcana]
	if !ok {
		label = artworkLabels[models.ArcanaMajor]
	}

	parts := []string{
		stylePrefix + ", " + label,
		"depicting " + card.Description,
	}
	if len(card.KeySymbols) > 0 {
		parts = append(parts, "with "+strings.Join(card.KeySymbols, ", "))
	}
	if card.Composition != "" {
		parts = append(parts, card.Composition)
	}
	parts = append(parts, fullBleed)

	return strings.Join(parts, ", "), DefaultNegative
}

// BuildNegativePrompt returns the default negative prompt, optionally
// extended with extra terms.
func BuildNegativePrompt(extra string) string {
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return DefaultNegative
	}
	return DefaultNegative + ", " + extra
}
