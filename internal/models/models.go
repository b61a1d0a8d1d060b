package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type (
	Config struct {
		// Connection/Auth
		ApiToken   string `toml:"ApiToken"` // REPLICATE_API_TOKEN takes precedence when set
		ApiBaseUrl string `toml:"ApiBaseUrl"`

		// Paths
		OutputPath     string `toml:"OutputPath"`
		DatabasePath   string `toml:"DatabasePath"`
		BleveIndexPath string `toml:"BleveIndexPath"`
		CardsFile      string `toml:"CardsFile"`
		ReferencePath  string `toml:"ReferencePath"` // Single universal reference image
		ReferenceDir   string `toml:"ReferenceDir"`  // Directory of per-group reference images

		// Generation
		Style             string  `toml:"Style"`
		Model             string  `toml:"Model"`
		AspectRatio       string  `toml:"AspectRatio"`
		Seed              int64   `toml:"Seed"`
		Parallel          int     `toml:"Parallel"`
		Diversity         string  `toml:"Diversity"`
		PromptStrength    float64 `toml:"PromptStrength"`
		NegativeExtra     string  `toml:"NegativeExtra"`
		KeyCardScope      string  `toml:"KeyCardScope"` // deck, group or off
		SkipCardBack      bool    `toml:"SkipCardBack"`
		ReferenceFallback bool    `toml:"ReferenceFallback"`

		// API Behavior
		MaxRetries          int `toml:"MaxRetries"`
		ApiDelayMs          int `toml:"ApiDelayMs"`
		ApiClientTimeoutSec int `toml:"ApiClientTimeoutSec"`
		PollIntervalSec     int `toml:"PollIntervalSec"`
		RateLimitWaitSec    int `toml:"RateLimitWaitSec"`

		// Other
		LogApiRequests bool `toml:"LogApiRequests"`
	}

	// Card is a single deck entry. Cards are built once when a deck is loaded
	// and treated as immutable afterwards.
	Card struct {
		Name        string   `json:"name" yaml:"name" validate:"required"`
		Numeral     string   `json:"numeral" yaml:"numeral" validate:"required,numeric,min=2"`
		Arcana      string   `json:"arcana" yaml:"-" validate:"required,oneof=major minor oracle back"`
		Suit        string   `json:"suit,omitempty" yaml:"-" validate:"required_if=Arcana minor"`
		Description string   `json:"description" yaml:"description" validate:"required"`
		KeySymbols  []string `json:"keySymbols" yaml:"key_symbols"`
		Composition string   `json:"composition,omitempty" yaml:"composition,omitempty"`
		Meaning     string   `json:"meaning,omitempty" yaml:"meaning,omitempty"`
	}

	// CardRecord is the per-card state persisted in the run database.
	CardRecord struct {
		RunID          string    `json:"runId"`
		OutputDir      string    `json:"outputDir"`
		Numeral        string    `json:"numeral"`
		Name           string    `json:"name"`
		Arcana         string    `json:"arcana"`
		Filename       string    `json:"filename"`
		Seed           int64     `json:"seed"`
		PromptHash     string    `json:"promptHash"`
		RunFingerprint string    `json:"runFingerprint"`
		ReferenceMode  string    `json:"referenceMode"`
		State          string    `json:"state"`
		ErrorDetails   string    `json:"errorDetails,omitempty"`
		OutputURL      string    `json:"outputUrl,omitempty"`
		FileHash       string    `json:"fileHash,omitempty"` // BLAKE3, upper hex
		Keywords       []string  `json:"keywords,omitempty"`
		Meaning        string    `json:"meaning,omitempty"`
		Prompt         string    `json:"prompt,omitempty"`
		UpdatedAt      time.Time `json:"updatedAt"`
	}

	// --- Replicate API ---

	PredictionRequest struct {
		Version string         `json:"version,omitempty"`
		Input   map[string]any `json:"input"`
	}

	PredictionURLs struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel,omitempty"`
	}

	Prediction struct {
		ID      string          `json:"id"`
		Model   string          `json:"model,omitempty"`
		Version string          `json:"version,omitempty"`
		Status  string          `json:"status"`
		Output  json.RawMessage `json:"output,omitempty"`
		Error   json.RawMessage `json:"error,omitempty"`
		Logs    string          `json:"logs,omitempty"`
		URLs    PredictionURLs  `json:"urls"`
	}
)

// Arcana classifiers
const (
	ArcanaMajor  = "major"
	ArcanaMinor  = "minor"
	ArcanaOracle = "oracle"
	ArcanaBack   = "back"
)

// Card generation states
const (
	StatePending           = "Pending"
	StateReferenceResolved = "ReferenceResolved"
	StateRequested         = "Requested"
	StateCompleted         = "Completed"
	StateFailed            = "Failed"
)

// Replicate prediction statuses
const (
	PredictionStarting   = "starting"
	PredictionProcessing = "processing"
	PredictionSucceeded  = "succeeded"
	PredictionFailed     = "failed"
	PredictionCanceled   = "canceled"
)

// Terminal reports whether the prediction has stopped changing.
func (p *Prediction) Terminal() bool {
	switch p.Status {
	case PredictionSucceeded, PredictionFailed, PredictionCanceled:
		return true
	}
	return false
}

// OutputURLs normalises the output field, which is either a single string or a list.
func (p *Prediction) OutputURLs() ([]string, error) {
	if len(p.Output) == 0 || string(p.Output) == "null" {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(p.Output, &single); err == nil {
		return []string{single}, nil
	}
	var list []string
	if err := json.Unmarshal(p.Output, &list); err != nil {
		return nil, fmt.Errorf("unexpected prediction output %s: %w", string(p.Output), err)
	}
	return list, nil
}

// ErrorMessage returns the prediction error as text, or an empty string.
func (p *Prediction) ErrorMessage() string {
	if len(p.Error) == 0 || string(p.Error) == "null" {
		return ""
	}
	var msg string
	if err := json.Unmarshal(p.Error, &msg); err == nil {
		return msg
	}
	return string(p.Error)
}
