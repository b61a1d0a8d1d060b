// Package generator plans and runs the generation of a deck: one prediction
// per card, with optional image-to-image references for visual consistency.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go-tarot-gen/internal/api"
	"go-tarot-gen/internal/cards"
	"go-tarot-gen/internal/consistency"
	"go-tarot-gen/internal/downloader"
	"go-tarot-gen/internal/helpers"
	"go-tarot-gen/internal/models"
	"go-tarot-gen/internal/prompts"
)

var (
	// ErrConfig wraps every configuration problem detected before a run starts.
	ErrConfig = errors.New("invalid generation config")
	// ErrInterrupted marks cards that did not finish because the run was cancelled.
	ErrInterrupted = errors.New("interrupted before completion")
)

// ReferenceMode says where a card's reference image comes from.
type ReferenceMode string

const (
	ModeNone    ReferenceMode = "none"
	ModeStatic  ReferenceMode = "static"
	ModeKeyCard ReferenceMode = "keycard"
)

// Key-card scopes
const (
	ScopeDeck  = "deck"
	ScopeGroup = "group"
	ScopeOff   = "off"
)

// externalKeyCard is the KeyCard index of tasks that reference a user-supplied key card.
const externalKeyCard = -2

// Predictor runs one prediction to completion.
type Predictor interface {
	Predict(ctx context.Context, modelID string, input map[string]any) (*models.Prediction, error)
}

// Fetcher retrieves the bytes behind an output URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StateEvent describes one card state transition.
type StateEvent struct {
	Task      Task
	State     string
	Err       error
	OutputURL string
	FileHash  string
}

// StateRecorder receives every card state transition. Implementations must be
// safe for concurrent use.
type StateRecorder interface {
	RecordState(ev StateEvent)
}

// Options configures a run.
type Options struct {
	OutputDir         string                `validate:"required"`
	Model             api.Model             `validate:"-"`
	Style             string                `validate:"required"`
	Seed              int64                 `validate:"-"`
	Parallel          int                   `validate:"min=1,max=64"`
	Diversity         consistency.Diversity `validate:"oneof=low medium high"`
	AspectRatio       string                `validate:"required"`
	PromptStrength    float64               `validate:"gt=0,lte=1"`
	NegativeExtra     string                `validate:"-"`
	KeyCardScope      string                `validate:"oneof=deck group off"`
	KeyCardPath       string                `validate:"omitempty,file"`
	References        *ReferenceSet         `validate:"-"`
	ReferenceFallback bool                  `validate:"-"`
	// Attempts and first backoff interval for fetching output images.
	FetchRetries  int           `validate:"min=0"`
	FetchInterval time.Duration `validate:"min=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Task is one planned card generation.
type Task struct {
	Index      int
	Card       models.Card
	Seed       int64
	Prompt     string
	Negative   string
	Mode       ReferenceMode
	RefGroup   string // group key of a static reference
	Batch      string
	KeyCard    int // index of the key-card task for ModeKeyCard, -1 otherwise
	IsKeyCard  bool
	Path       string
	PromptHash string
	Skip       bool // already generated by an earlier identical run
}

// Result is the outcome of one task.
type Result struct {
	Task      Task
	State     string
	Err       error
	Skipped   bool
	OutputURL string
	FileHash  string
	Duration  time.Duration
}

// Report collects the results of a run, indexed like the tasks.
type Report struct {
	Results  []Result
	Started  time.Time
	Finished time.Time
}

// Generator plans and runs deck generation.
type Generator struct {
	// Recorder and Progress are optional.
	Recorder StateRecorder
	Progress io.Writer

	opts       Options
	predictor  Predictor
	fetcher    Fetcher
	prefix     string
	width      int
	height     int
	progressMu sync.Mutex
	done       atomic.Int64
	failed     atomic.Int64
}

// New validates opts and returns a Generator.
func New(opts Options, predictor Predictor, fetcher Fetcher) (*Generator, error) {
	if opts.Parallel == 0 {
		opts.Parallel = 1
	}
	if opts.KeyCardScope == "" {
		opts.KeyCardScope = ScopeDeck
	}
	if opts.AspectRatio == "" {
		opts.AspectRatio = api.DefaultAspectRatio
	}
	if opts.FetchRetries == 0 {
		opts.FetchRetries = defaultFetchRetries
	}
	if opts.FetchInterval == 0 {
		opts.FetchInterval = defaultFetchInterval
	}
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if opts.Model.ID == "" {
		return nil, fmt.Errorf("%w: no model selected", ErrConfig)
	}
	if predictor == nil || fetcher == nil {
		return nil, fmt.Errorf("%w: predictor and fetcher are required", ErrConfig)
	}
	if !opts.Model.SupportsImg2Img() && (opts.References.Len() > 0 || opts.KeyCardPath != "") {
		log.Warnf("Model %s does not accept reference images; references and key cards are ignored", opts.Model)
	}

	w, h := api.Dimensions(opts.AspectRatio)
	return &Generator{
		opts:      opts,
		predictor: predictor,
		fetcher:   fetcher,
		prefix:    prompts.BuildStylePrefix(opts.Style),
		width:     w,
		height:    h,
	}, nil
}

// StylePrefix returns the prefix shared by every prompt of the run.
func (g *Generator) StylePrefix() string { return g.prefix }

// Dimensions returns the output width and height.
func (g *Generator) Dimensions() (int, int) { return g.width, g.height }

// Fingerprint identifies the settings that shape every card of a run. Two runs
// with the same fingerprint produce the same prompt inputs per card.
func (g *Generator) Fingerprint() string {
	o := g.opts
	refs := ""
	if o.References != nil {
		refs = o.References.Source
	}
	return helpers.Fingerprint(
		o.Model.ID, o.Style, string(o.Diversity), o.AspectRatio,
		strconv.FormatFloat(o.PromptStrength, 'f', -1, 64),
		o.NegativeExtra, o.KeyCardScope, o.KeyCardPath, refs,
	)
}

// PromptHash identifies a card's prompt pair.
func PromptHash(prompt, negative string) string {
	return helpers.Fingerprint(prompt, negative)
}

// Plan turns cards into tasks. A card-back entry, if present, joins the batch
// of the first task.
func (g *Generator) Plan(deck []models.Card) []Task {
	o := g.opts
	img2img := o.Model.SupportsImg2Img()
	negative := prompts.BuildNegativePrompt(o.NegativeExtra)

	tasks := make([]Task, 0, len(deck))
	keyOf := map[string]int{}
	for i, c := range deck {
		positive, _ := prompts.BuildPrompt(g.prefix, c)
		t := Task{
			Index:    i,
			Card:     c,
			Seed:     consistency.DeriveSeed(o.Seed, int64(i)),
			Prompt:   positive,
			Negative: negative,
			Mode:     ModeNone,
			KeyCard:  -1,
			Path:     filepath.Join(o.OutputDir, c.Filename()),
		}
		t.PromptHash = PromptHash(t.Prompt, t.Negative)
		t.Batch = g.batchOf(c, tasks)

		if !img2img {
			tasks = append(tasks, t)
			continue
		}
		if _, group, ok := o.References.Resolve(c); ok {
			t.Mode, t.RefGroup = ModeStatic, group
			tasks = append(tasks, t)
			continue
		}
		if o.KeyCardScope != ScopeOff {
			switch key, seen := keyOf[t.Batch]; {
			case o.KeyCardPath != "":
				t.Mode, t.KeyCard = ModeKeyCard, externalKeyCard
			case seen:
				t.Mode, t.KeyCard = ModeKeyCard, key
			default:
				keyOf[t.Batch] = i
				t.IsKeyCard = true
			}
		}
		tasks = append(tasks, t)
	}
	return tasks
}

func (g *Generator) batchOf(c models.Card, planned []Task) string {
	if g.opts.KeyCardScope != ScopeGroup {
		return ScopeDeck
	}
	if c.Arcana == models.ArcanaBack && len(planned) > 0 {
		return planned[0].Batch
	}
	return cards.Group(c)
}

// submissionOrder puts key cards ahead of everything else, keeping deck order
// within each class, so a bounded FIFO pool never waits on an unscheduled key card.
func submissionOrder(tasks []Task) []int {
	order := make([]int, len(tasks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return tasks[order[a]].IsKeyCard && !tasks[order[b]].IsKeyCard
	})
	return order
}

// Run generates every task and returns the per-card outcome. A failed card
// never stops its siblings. Use ctx to interrupt the run.
func (g *Generator) Run(ctx context.Context, tasks []Task) *Report {
	report := &Report{Results: make([]Result, len(tasks)), Started: time.Now()}
	g.done.Store(0)
	g.failed.Store(0)

	futures := make(map[int]*keyCardFuture)
	for _, t := range tasks {
		if t.IsKeyCard {
			futures[t.Index] = newKeyCardFuture()
		}
	}
	if g.opts.KeyCardPath != "" {
		futures[externalKeyCard] = resolvedFuture(g.opts.KeyCardPath, nil)
	}
	byIndex := make(map[int]Task, len(tasks))
	for _, t := range tasks {
		byIndex[t.Index] = t
	}

	log.WithFields(log.Fields{
		"cards":    len(tasks),
		"parallel": g.opts.Parallel,
		"model":    g.opts.Model.ID,
	}).Info("Starting deck generation")

	var eg errgroup.Group
	eg.SetLimit(g.opts.Parallel)
	for _, i := range submissionOrder(tasks) {
		t := tasks[i]
		if !t.Skip {
			g.record(StateEvent{Task: t, State: models.StatePending})
		}
		if ctx.Err() != nil {
			report.Results[i] = g.fail(t, ErrInterrupted, time.Now(), futures)
			continue
		}
		eg.Go(func() error {
			report.Results[i] = g.runTask(ctx, t, futures, byIndex)
			return nil
		})
	}
	_ = eg.Wait()

	report.Finished = time.Now()
	log.WithFields(log.Fields{
		"completed": len(report.Completed()),
		"skipped":   len(report.Skipped()),
		"failed":    len(report.Failed()),
		"duration":  report.Finished.Sub(report.Started).Round(time.Second),
	}).Info("Deck generation finished")
	return report
}

func (g *Generator) runTask(ctx context.Context, t Task, futures map[int]*keyCardFuture, byIndex map[int]Task) Result {
	start := time.Now()
	logger := log.WithFields(log.Fields{"card": t.Card.Numeral, "name": t.Card.Name, "seed": t.Seed})

	if t.Skip {
		if _, err := os.Stat(t.Path); err == nil {
			if f, ok := futures[t.Index]; ok {
				f.resolve(t.Path, nil)
			}
			logger.Info("Skipping card, output already generated")
			g.record(StateEvent{Task: t, State: models.StateCompleted})
			g.report(t, "skipped")
			return Result{Task: t, State: models.StateCompleted, Skipped: true, Duration: time.Since(start)}
		}
		logger.Warn("Output marked as resumable is missing, generating again")
		t.Skip = false
	}
	if ctx.Err() != nil {
		return g.fail(t, ErrInterrupted, start, futures)
	}

	image, err := g.resolveReference(ctx, t, futures, byIndex)
	if err != nil {
		return g.fail(t, err, start, futures)
	}
	g.record(StateEvent{Task: t, State: models.StateReferenceResolved})

	req := Request{
		Prompt:         t.Prompt,
		NegativePrompt: t.Negative,
		Seed:           t.Seed,
		Image:          image,
		PromptStrength: g.opts.PromptStrength,
		AspectRatio:    g.opts.AspectRatio,
		Width:          g.width,
		Height:         g.height,
	}
	g.record(StateEvent{Task: t, State: models.StateRequested})
	g.report(t, models.StateRequested)
	logger.WithField("reference", t.Mode).Debug("Requesting prediction")

	pred, err := g.predictor.Predict(ctx, g.opts.Model.ID, req.Input(g.opts.Model))
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ErrInterrupted, err)
		}
		return g.fail(t, err, start, futures)
	}
	urls, err := pred.OutputURLs()
	if err != nil || len(urls) == 0 {
		return g.fail(t, fmt.Errorf("%w: %v", api.ErrNoOutput, err), start, futures)
	}

	data, err := g.fetchOutput(ctx, urls[0], logger)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ErrInterrupted, err)
		}
		return g.fail(t, fmt.Errorf("fetching output: %w", err), start, futures)
	}
	if t.Card.Arcana == models.ArcanaBack {
		if data, err = consistency.SymmetrizePNG(data); err != nil {
			return g.fail(t, fmt.Errorf("symmetrizing card back: %w", err), start, futures)
		}
	}
	if err := downloader.SaveFile(t.Path, data); err != nil {
		return g.fail(t, err, start, futures)
	}
	hash := helpers.HashBytes(data)

	if f, ok := futures[t.Index]; ok {
		f.resolve(t.Path, nil)
	}
	g.done.Add(1)
	g.record(StateEvent{Task: t, State: models.StateCompleted, OutputURL: urls[0], FileHash: hash})
	g.report(t, models.StateCompleted)
	logger.WithField("duration", time.Since(start).Round(time.Millisecond)).Info("Card generated")

	return Result{
		Task:      t,
		State:     models.StateCompleted,
		OutputURL: urls[0],
		FileHash:  hash,
		Duration:  time.Since(start),
	}
}

// resolveReference returns the data URI for the task's reference, or "" for none.
func (g *Generator) resolveReference(ctx context.Context, t Task, futures map[int]*keyCardFuture, byIndex map[int]Task) (string, error) {
	var raw []byte
	switch t.Mode {
	case ModeStatic:
		data, _, ok := g.opts.References.Resolve(t.Card)
		if !ok {
			return "", fmt.Errorf("%w: no reference for group of %s", ErrConfig, t.Card)
		}
		raw = data
	case ModeKeyCard:
		future, ok := futures[t.KeyCard]
		if !ok {
			return "", fmt.Errorf("%w: key card %d is not part of this run", ErrConfig, t.KeyCard)
		}
		path, err := future.wait(ctx)
		if ctx.Err() != nil {
			return "", ErrInterrupted
		}
		if err != nil {
			keyName := "user key card"
			if key, ok := byIndex[t.KeyCard]; ok {
				keyName = key.Card.String()
			}
			return "", &DependencyError{Card: t.Card.String(), KeyCard: keyName, Err: err}
		}
		if raw, err = os.ReadFile(path); err != nil {
			return "", fmt.Errorf("%w: reading key card %s: %v", consistency.ErrUnreadableImage, path, err)
		}
	default:
		return "", nil
	}

	seed := t.Seed
	uri, err := consistency.EncodeReference(raw, g.width, g.height, &seed, g.opts.Diversity)
	if err != nil {
		if g.opts.ReferenceFallback {
			log.WithError(err).Warnf("Reference for %s unusable, generating without one", t.Card)
			return "", nil
		}
		return "", err
	}
	return uri, nil
}

func (g *Generator) fail(t Task, err error, start time.Time, futures map[int]*keyCardFuture) Result {
	if f, ok := futures[t.Index]; ok {
		f.resolve("", err)
	}
	g.failed.Add(1)
	if !errors.Is(err, ErrInterrupted) {
		log.WithError(err).WithField("card", t.Card.Numeral).Errorf("Card %s failed", t.Card.Name)
	}
	g.record(StateEvent{Task: t, State: models.StateFailed, Err: err})
	g.report(t, models.StateFailed)
	return Result{Task: t, State: models.StateFailed, Err: err, Duration: time.Since(start)}
}

func (g *Generator) record(ev StateEvent) {
	if g.Recorder != nil {
		g.Recorder.RecordState(ev)
	}
}

func (g *Generator) report(t Task, state string) {
	if g.Progress == nil {
		return
	}
	g.progressMu.Lock()
	defer g.progressMu.Unlock()
	fmt.Fprintf(g.Progress, "[%d done, %d failed] %s %s: %s\n", g.done.Load(), g.failed.Load(), t.Card.Numeral, t.Card.Name, state)
}

// DependencyError is returned for a card whose key card failed.
type DependencyError struct {
	Card    string
	KeyCard string
	Err     error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: key card %s failed: %v", e.Card, e.KeyCard, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// Completed returns generated cards, excluding skipped ones, sorted by numeral.
func (r *Report) Completed() []Result {
	return r.filter(func(res Result) bool { return res.State == models.StateCompleted && !res.Skipped })
}

// Skipped returns cards kept from an earlier run.
func (r *Report) Skipped() []Result {
	return r.filter(func(res Result) bool { return res.Skipped })
}

// Failed returns failed cards sorted by numeral.
func (r *Report) Failed() []Result {
	return r.filter(func(res Result) bool { return res.State == models.StateFailed })
}

// Err joins every card failure, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", res.Task.Card.Filename(), res.Err))
	}
	return errors.Join(errs...)
}

func (r *Report) filter(keep func(Result) bool) []Result {
	var out []Result
	for _, res := range r.Results {
		if keep(res) {
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].Task.Card.Numeral)
		b, _ := strconv.Atoi(out[j].Task.Card.Numeral)
		return a < b
	})
	return out
}

// MarkResumable sets Skip on every task whose output exists and whose stored
// record matches the task's seed, prompt, run fingerprint and file hash.
func (g *Generator) MarkResumable(tasks []Task, lookup func(numeral string) (models.CardRecord, bool)) int {
	fingerprint := g.Fingerprint()
	marked := 0
	for i := range tasks {
		t := &tasks[i]
		rec, ok := lookup(t.Card.Numeral)
		if !ok || rec.State != models.StateCompleted {
			continue
		}
		if rec.Seed != t.Seed || rec.PromptHash != t.PromptHash || rec.RunFingerprint != fingerprint {
			continue
		}
		if !helpers.CheckHash(t.Path, rec.FileHash) {
			continue
		}
		t.Skip = true
		marked++
	}
	return marked
}
