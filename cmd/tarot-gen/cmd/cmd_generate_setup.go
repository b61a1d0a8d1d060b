package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"go-tarot-gen/internal/api"
	"go-tarot-gen/internal/cards"
	"go-tarot-gen/internal/config"
	"go-tarot-gen/internal/consistency"
	"go-tarot-gen/internal/generator"
	"go-tarot-gen/internal/models"
)

// generateSettings is the resolved view of the generate flags and config.
type generateSettings struct {
	OutputDir         string
	Style             string
	Model             api.Model
	Seed              int64
	Parallel          int
	Diversity         consistency.Diversity
	AspectRatio       string
	PromptStrength    float64
	NegativeExtra     string
	ReferencePath     string
	ReferenceDir      string
	KeyCardPath       string
	KeyCardScope      string
	CardsFile         string
	Subset            string
	SkipCardBack      bool
	ReferenceFallback bool
	Resume            bool
	DryRun            bool
	NoIndex           bool
}

// loadGenerateSettings reads every generate.* key. Problems are reported as
// generator.ErrConfig so they surface before any API call.
func loadGenerateSettings() (generateSettings, error) {
	s := generateSettings{
		OutputDir:         strings.TrimSpace(viper.GetString("generate.output")),
		Style:             strings.TrimSpace(viper.GetString("generate.style")),
		Model:             api.ResolveModel(viper.GetString("generate.model")),
		Seed:              viper.GetInt64("generate.seed"),
		Parallel:          viper.GetInt("generate.parallel"),
		AspectRatio:       strings.TrimSpace(viper.GetString("generate.aspect_ratio")),
		PromptStrength:    viper.GetFloat64("generate.prompt_strength"),
		NegativeExtra:     viper.GetString("generate.negative_extra"),
		ReferencePath:     viper.GetString("generate.reference"),
		ReferenceDir:      viper.GetString("generate.reference_dir"),
		KeyCardPath:       viper.GetString("generate.key_card"),
		KeyCardScope:      strings.ToLower(viper.GetString("generate.key_card_scope")),
		CardsFile:         viper.GetString("generate.cards_file"),
		Subset:            strings.ToLower(viper.GetString("generate.subset")),
		SkipCardBack:      viper.GetBool("generate.skip_card_back"),
		ReferenceFallback: viper.GetBool("generate.reference_fallback"),
		Resume:            viper.GetBool("generate.resume"),
		DryRun:            viper.GetBool("generate.dry_run"),
		NoIndex:           viper.GetBool("generate.no_index"),
	}

	if s.Style == "" {
		return s, fmt.Errorf("%w: --style is required (or set Style in the config file)", generator.ErrConfig)
	}
	if s.OutputDir == "" {
		s.OutputDir = config.Defaults().OutputPath
	}
	if s.Model.ID == "" {
		return s, fmt.Errorf("%w: --model is empty (known aliases: %s)", generator.ErrConfig, strings.Join(api.Aliases(), ", "))
	}
	d, err := consistency.ParseDiversity(viper.GetString("generate.diversity"))
	if err != nil {
		return s, fmt.Errorf("%w: %v", generator.ErrConfig, err)
	}
	s.Diversity = d
	if _, ok := api.SDXLDimensions[s.AspectRatio]; !ok {
		log.Warnf("Aspect ratio %q has no SDXL size, using %s dimensions", s.AspectRatio, api.DefaultAspectRatio)
	}
	if s.ReferencePath != "" && s.ReferenceDir != "" {
		return s, fmt.Errorf("%w: use either --reference or --reference-dir, not both", generator.ErrConfig)
	}
	return s, nil
}

// loadDeck returns the built-in tarot deck or the deck defined in cardsFile.
func loadDeck(cardsFile string) (*cards.Deck, error) {
	if cardsFile == "" {
		return cards.Default(), nil
	}
	deck, err := cards.LoadFile(cardsFile)
	if err != nil {
		return nil, err
	}
	log.Infof("Loaded %s deck %q with %d cards from %s", deck.Kind, deck.Name, len(deck.Cards), cardsFile)
	return deck, nil
}

// selectCards applies the subset and appends the card back unless skipped.
func selectCards(deck *cards.Deck, subset string, skipBack bool) ([]models.Card, error) {
	selected, err := deck.Select(subset)
	if err != nil {
		return nil, err
	}
	if !skipBack {
		selected = append(selected, deck.CardBack())
	}
	return selected, nil
}

// loadReferences loads --reference or --reference-dir, if either is set.
func loadReferences(ctx context.Context, s generateSettings) (*generator.ReferenceSet, error) {
	switch {
	case s.ReferencePath != "":
		return generator.LoadReferenceFile(s.ReferencePath)
	case s.ReferenceDir != "":
		return generator.LoadReferenceDir(ctx, s.ReferenceDir)
	}
	return nil, nil
}

func (s generateSettings) options(refs *generator.ReferenceSet) generator.Options {
	outputDir := s.OutputDir
	if abs, err := filepath.Abs(outputDir); err == nil {
		outputDir = abs
	}
	return generator.Options{
		OutputDir:         outputDir,
		Model:             s.Model,
		Style:             s.Style,
		Seed:              s.Seed,
		Parallel:          s.Parallel,
		Diversity:         s.Diversity,
		AspectRatio:       s.AspectRatio,
		PromptStrength:    s.PromptStrength,
		NegativeExtra:     s.NegativeExtra,
		KeyCardScope:      s.KeyCardScope,
		KeyCardPath:       s.KeyCardPath,
		References:        refs,
		ReferenceFallback: s.ReferenceFallback,
		FetchRetries:      globalConfig.MaxRetries,
	}
}

// apiOptions maps the config file's API settings onto the client.
func apiOptions(cfg models.Config) api.Options {
	return api.Options{
		BaseURL:       cfg.ApiBaseUrl,
		MaxRetries:    cfg.MaxRetries,
		PollInterval:  time.Duration(cfg.PollIntervalSec) * time.Second,
		RateLimitWait: time.Duration(cfg.RateLimitWaitSec) * time.Second,
		RequestDelay:  time.Duration(cfg.ApiDelayMs) * time.Millisecond,
	}
}

// isConfigError reports errors that stop a run before any work begins.
func isConfigError(err error) bool {
	return errors.Is(err, generator.ErrConfig) || errors.Is(err, cards.ErrInvalidDeck)
}
