package generator

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go-tarot-gen/internal/downloader"
)

// RunInfoFilename is written into the output directory after every run.
const RunInfoFilename = "run_info.txt"

// RunInfo is the human-readable record of a run's settings and outcome.
type RunInfo struct {
	RunID           string
	Style           string
	StylePrefix     string
	ModelAlias      string
	ModelID         string
	BaseSeed        int64
	Diversity       string
	DeckKind        string
	DeckName        string
	Subset          string
	CardsFile       string
	AspectRatio     string
	Width           int
	Height          int
	PromptStrength  float64
	Parallel        int
	KeyCardScope    string
	ReferenceSource string
	Fingerprint     string
	Started         time.Time
	Finished        time.Time
	Completed       int
	Failed          int
	Skipped         int
	Failures        []string // "numeral name: error"
}

// RunInfo fills the settings the generator owns plus the outcome in report.
// Deck and run identity fields are left to the caller.
func (g *Generator) RunInfo(report *Report) RunInfo {
	o := g.opts
	info := RunInfo{
		Style:          o.Style,
		StylePrefix:    g.prefix,
		ModelAlias:     o.Model.Alias,
		ModelID:        o.Model.ID,
		BaseSeed:       o.Seed,
		Diversity:      string(o.Diversity),
		AspectRatio:    o.AspectRatio,
		Width:          g.width,
		Height:         g.height,
		PromptStrength: o.PromptStrength,
		Parallel:       o.Parallel,
		KeyCardScope:   o.KeyCardScope,
		Fingerprint:    g.Fingerprint(),
	}
	switch {
	case !o.Model.SupportsImg2Img():
		info.ReferenceSource = "none (text-to-image model)"
	case o.References.Len() > 0:
		info.ReferenceSource = fmt.Sprintf("%s (%s)", o.References.Source, strings.Join(o.References.Groups(), ", "))
	case o.KeyCardPath != "":
		info.ReferenceSource = "key card " + o.KeyCardPath
	case o.KeyCardScope != ScopeOff:
		info.ReferenceSource = "generated key cards"
	default:
		info.ReferenceSource = "none"
	}
	if report != nil {
		info.Started, info.Finished = report.Started, report.Finished
		info.Completed = len(report.Completed())
		info.Skipped = len(report.Skipped())
		for _, res := range report.Failed() {
			info.Failures = append(info.Failures, fmt.Sprintf("%s: %v", res.Task.Card, res.Err))
		}
		info.Failed = len(info.Failures)
	}
	return info
}

// WriteRunInfo writes info to dir/run_info.txt as "key: value" lines.
func WriteRunInfo(dir string, info RunInfo) (string, error) {
	var buf bytes.Buffer
	line := func(key string, value any) {
		fmt.Fprintf(&buf, "%s: %v\n", key, value)
	}
	stamp := func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format(time.RFC3339)
	}
	orDash := func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	}

	line("run_id", orDash(info.RunID))
	line("style", info.Style)
	line("style_prefix", info.StylePrefix)
	line("model_alias", orDash(info.ModelAlias))
	line("model_id", info.ModelID)
	line("base_seed", info.BaseSeed)
	line("diversity", info.Diversity)
	line("deck_kind", orDash(info.DeckKind))
	line("deck_name", orDash(info.DeckName))
	line("subset", orDash(info.Subset))
	line("cards_file", orDash(info.CardsFile))
	line("aspect_ratio", info.AspectRatio)
	line("dimensions", fmt.Sprintf("%dx%d", info.Width, info.Height))
	line("prompt_strength", info.PromptStrength)
	line("parallel", info.Parallel)
	line("key_card_scope", info.KeyCardScope)
	line("reference_source", orDash(info.ReferenceSource))
	line("run_fingerprint", info.Fingerprint)
	line("started", stamp(info.Started))
	line("finished", stamp(info.Finished))
	line("completed", info.Completed)
	line("failed", info.Failed)
	line("skipped", info.Skipped)
	for _, f := range info.Failures {
		line("failed_card", strings.ReplaceAll(f, "\n", " "))
	}

	path := filepath.Join(dir, RunInfoFilename)
	if err := downloader.SaveFile(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("writing run metadata: %w", err)
	}
	return path, nil
}
