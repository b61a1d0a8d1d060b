package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-tarot-gen/internal/api"
	"go-tarot-gen/internal/cards"
	"go-tarot-gen/internal/consistency"
	"go-tarot-gen/internal/helpers"
	"go-tarot-gen/internal/models"
)

// gradientPNG returns a w x h image whose pixels all differ, so crops and
// mirrors are observable.
func gradientPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / max(w-1, 1)), G: uint8(y * 255 / max(h-1, 1)), B: uint8((x * y) % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type call struct {
	Seed  int64
	Input map[string]any
}

type fakePredictor struct {
	mu       sync.Mutex
	calls    []call
	fail     func(seed int64) error
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	onCall   func()
}

func (f *fakePredictor) Predict(ctx context.Context, modelID string, input map[string]any) (*models.Prediction, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	seed := input["seed"].(int64)
	f.mu.Lock()
	f.calls = append(f.calls, call{Seed: seed, Input: input})
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall()
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail != nil {
		if err := f.fail(seed); err != nil {
			return nil, err
		}
	}
	out, _ := json.Marshal(fmt.Sprintf("https://replicate.test/%d.png", seed))
	return &models.Prediction{ID: fmt.Sprint(seed), Status: models.PredictionSucceeded, Output: out}, nil
}

func (f *fakePredictor) callFor(seed int64) (call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.Seed == seed {
			return c, true
		}
	}
	return call{}, false
}

func (f *fakePredictor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeFetcher struct {
	data []byte
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.data, nil
}

func testDeck(t *testing.T) []models.Card {
	t.Helper()
	deck := cards.Default()
	sample, err := deck.Select(cards.SubsetSample)
	require.NoError(t, err)
	return append(sample, deck.CardBack())
}

func baseOptions(t *testing.T, model string) Options {
	return Options{
		OutputDir:      t.TempDir(),
		Model:          api.ResolveModel(model),
		Style:          "watercolor",
		Seed:           42,
		Parallel:       1,
		Diversity:      consistency.DiversityMedium,
		AspectRatio:    "2:3",
		PromptStrength: 0.47,
		KeyCardScope:   ScopeDeck,
	}
}

func newGenerator(t *testing.T, opts Options, p *fakePredictor) *Generator {
	t.Helper()
	g, err := New(opts, p, &fakeFetcher{data: gradientPNG(t, 48, 72)})
	require.NoError(t, err)
	return g
}

func TestNewValidatesOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"Missing output dir", func(o *Options) { o.OutputDir = "" }},
		{"Missing style", func(o *Options) { o.Style = "" }},
		{"Negative parallel", func(o *Options) { o.Parallel = -1 }},
		{"Unknown scope", func(o *Options) { o.KeyCardScope = "suit" }},
		{"Unknown diversity", func(o *Options) { o.Diversity = "extreme" }},
		{"Strength out of range", func(o *Options) { o.PromptStrength = 1.5 }},
		{"Missing key card file", func(o *Options) { o.KeyCardPath = "/definitely/not/here.png" }},
		{"No model", func(o *Options) { o.Model = api.Model{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := baseOptions(t, "sdxl")
			tt.mutate(&opts)
			_, err := New(opts, &fakePredictor{}, &fakeFetcher{})
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestPlanSeedsPromptsAndPaths(t *testing.T) {
	opts := baseOptions(t, "flux-schnell")
	g := newGenerator(t, opts, &fakePredictor{})
	deck := testDeck(t)

	tasks := g.Plan(deck)
	require.Len(t, tasks, len(deck))
	for i, task := range tasks {
		assert.Equal(t, int64(42+i), task.Seed)
		assert.Equal(t, ModeNone, task.Mode, "flux has no reference")
		assert.Equal(t, filepath.Join(opts.OutputDir, deck[i].Filename()), task.Path)
		assert.True(t, strings.HasPrefix(task.Prompt, "consistent art style, watercolor, "))
		assert.NotEmpty(t, task.PromptHash)
	}
	assert.Equal(t, "78_card_back.png", filepath.Base(tasks[len(tasks)-1].Path))
}

func TestPlanKeyCardDeckScope(t *testing.T) {
	g := newGenerator(t, baseOptions(t, "sdxl"), &fakePredictor{})
	tasks := g.Plan(testDeck(t))

	assert.True(t, tasks[0].IsKeyCard)
	assert.Equal(t, ModeNone, tasks[0].Mode, "a key card never depends on itself")
	for _, task := range tasks[1:] {
		assert.Equal(t, ModeKeyCard, task.Mode, task.Card.Name)
		assert.Equal(t, 0, task.KeyCard, task.Card.Name)
		assert.False(t, task.IsKeyCard)
	}
}

func TestPlanKeyCardGroupScope(t *testing.T) {
	opts := baseOptions(t, "sdxl")
	opts.KeyCardScope = ScopeGroup
	g := newGenerator(t, opts, &fakePredictor{})
	tasks := g.Plan(testDeck(t))

	keys := map[string]int{}
	for _, task := range tasks {
		if task.IsKeyCard {
			keys[task.Batch] = task.Index
		}
	}
	assert.Equal(t, map[string]int{"major": 0, "wands": 5, "cups": 8, "swords": 11, "pentacles": 14}, keys)

	for _, task := range tasks {
		if task.IsKeyCard {
			continue
		}
		assert.Equal(t, ModeKeyCard, task.Mode)
		assert.Equal(t, keys[task.Batch], task.KeyCard, task.Card.Name)
	}
	back := tasks[len(tasks)-1]
	assert.Equal(t, models.ArcanaBack, back.Card.Arcana)
	assert.Equal(t, "major", back.Batch, "card back joins the batch of the first card")
	assert.Equal(t, 0, back.KeyCard)
}

func TestPlanStaticReferences(t *testing.T) {
	opts := baseOptions(t, "sdxl")
	opts.References = NewReferenceSet("refs", map[string][]byte{
		cards.GroupMajor: gradientPNG(t, 64, 64),
		cards.GroupCups:  gradientPNG(t, 64, 64),
	})
	g := newGenerator(t, opts, &fakePredictor{})
	tasks := g.Plan(testDeck(t))

	for _, task := range tasks {
		switch cards.Group(task.Card) {
		case cards.GroupMajor, cards.GroupCups:
			assert.Equal(t, ModeStatic, task.Mode, task.Card.Name)
			assert.False(t, task.IsKeyCard)
		}
	}
	// The first card without a static reference becomes the key card.
	assert.True(t, tasks[5].IsKeyCard, tasks[5].Card.Name)
	assert.Equal(t, ModeKeyCard, tasks[6].Mode)
	assert.Equal(t, 5, tasks[6].KeyCard)
}

func TestPlanUniversalReferenceAndScopeOff(t *testing.T) {
	opts := baseOptions(t, "sdxl")
	opts.References = NewReferenceSet("ref.png", map[string][]byte{cards.GroupUniversal: gradientPNG(t, 64, 64)})
	g := newGenerator(t, opts, &fakePredictor{})
	for _, task := range g.Plan(testDeck(t)) {
		assert.Equal(t, ModeStatic, task.Mode)
		assert.Equal(t, cards.GroupUniversal, task.RefGroup)
	}

	opts = baseOptions(t, "sdxl")
	opts.KeyCardScope = ScopeOff
	g = newGenerator(t, opts, &fakePredictor{})
	for _, task := range g.Plan(testDeck(t)) {
		assert.Equal(t, ModeNone, task.Mode)
		assert.False(t, task.IsKeyCard)
	}
}

func TestRunCompletesAllCards(t *testing.T) {
	opts := baseOptions(t, "flux-schnell")
	opts.Parallel = 4
	p := &fakePredictor{delay: 5 * time.Millisecond}
	g := newGenerator(t, opts, p)

	var progress bytes.Buffer
	g.Progress = &progress
	tasks := g.Plan(testDeck(t))
	report := g.Run(context.Background(), tasks)

	require.NoError(t, report.Err())
	assert.Len(t, report.Completed(), len(tasks))
	assert.Empty(t, report.Failed())
	assert.Equal(t, len(tasks), p.count())
	assert.LessOrEqual(t, p.maxSeen.Load(), int32(4))
	assert.Greater(t, p.maxSeen.Load(), int32(1), "cards should run in parallel")

	for _, res := range report.Completed() {
		assert.True(t, helpers.CheckHash(res.Task.Path, res.FileHash), res.Task.Card.Name)
	}
	assert.Contains(t, progress.String(), "00 The Fool: Completed")

	input := p.calls[0].Input
	assert.Equal(t, "png", input["output_format"])
	assert.Equal(t, "2:3", input["aspect_ratio"])
	assert.NotContains(t, input, "image")
}

func TestRunKeyCardFailureFailsDependents(t *testing.T) {
	opts := baseOptions(t, "sdxl")
	opts.Parallel = 3
	keyErr := fmt.Errorf("%w: prediction 42: NSFW", api.ErrPredictionFailed)
	p := &fakePredictor{fail: func(seed int64) error {
		if seed == 42 {
			return keyErr
		}
		return nil
	}}
	g := newGenerator(t, opts, p)
	tasks := g.Plan(testDeck(t))
	report := g.Run(context.Background(), tasks)

	assert.Equal(t, 1, p.count(), "dependents must not call the API")
	require.Len(t, report.Failed(), len(tasks))
	for _, res := range report.Failed()[1:] {
		var depErr *DependencyError
		require.ErrorAs(t, res.Err, &depErr, res.Task.Card.Name)
		assert.Equal(t, "00 The Fool", depErr.KeyCard)
		assert.Contains(t, res.Err.Error(), "00 The Fool")
		assert.ErrorIs(t, res.Err, api.ErrPredictionFailed)
	}
	assert.ErrorIs(t, report.Err(), api.ErrPredictionFailed)
}

func TestRunFailureDoesNotStopSiblings(t *testing.T) {
	opts := baseOptions(t, "flux-schnell")
	p := &fakePredictor{fail: func(seed int64) error {
		if seed == 44 {
			return api.ErrBadRequest
		}
		return nil
	}}
	g := newGenerator(t, opts, p)
	tasks := g.Plan(testDeck(t))
	report := g.Run(context.Background(), tasks)

	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "02", report.Failed()[0].Task.Card.Numeral)
	assert.Len(t, report.Completed(), len(tasks)-1)
	_, err := os.Stat(report.Failed()[0].Task.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestRunKeyCardChainingUsesKeyOutput(t *testing.T) {
	opts := baseOptions(t, "sdxl")
	opts.Parallel = 2
	p := &fakePredictor{}
	g := newGenerator(t, opts, p)
	tasks := g.Plan(testDeck(t)[:3])
	report := g.Run(context.Background(), tasks)
	require.NoError(t, report.Err())

	key, ok := p.callFor(42)
	require.True(t, ok)
	assert.NotContains(t, key.Input, "image")

	dep, ok := p.callFor(43)
	require.True(t, ok)
	img, _ := dep.Input["image"].(string)
	assert.True(t, strings.HasPrefix(img, "data:image/png;base64,"))
	assert.Equal(t, 0.47, dep.Input["prompt_strength"])
	assert.Equal(t, 768, dep.Input["width"])
	assert.Equal(t, 1152, dep.Input["height"])
}

func TestRunStaticReferencePerCard(t *testing.T) {
	opts := baseOptions(t, "sdxl")
	opts.Diversity = consistency.DiversityHigh
	opts.References = NewReferenceSet("ref.png", map[string][]byte{cards.GroupUniversal: gradientPNG(t, 600, 300)})
	p := &fakePredictor{}
	g := newGenerator(t, opts, p)
	report := g.Run(context.Background(), g.Plan(testDeck(t)[:2]))
	require.NoError(t, report.Err())

	first, _ := p.callFor(42)
	second, _ := p.callFor(43)
	assert.NotEqual(t, first.Input["image"], second.Input["image"], "each card gets its own crop")

	seed := int64(42)
	want, err := consistency.EncodeReference(gradientPNG(t, 600, 300), 768, 1152, &seed, consistency.DiversityHigh)
	require.NoError(t, err)
	assert.Equal(t, want, first.Input["image"])
}

func TestRunUnreadableReference(t *testing.T) {
	refs := NewReferenceSet("bad.png", map[string][]byte{cards.GroupUniversal: []byte("not an image")})

	opts := baseOptions(t, "sdxl")
	opts.References = refs
	p := &fakePredictor{}
	g := newGenerator(t, opts, p)
	report := g.Run(context.Background(), g.Plan(testDeck(t)[:2]))
	require.Len(t, report.Failed(), 2)
	assert.ErrorIs(t, report.Failed()[0].Err, consistency.ErrUnreadableImage)
	assert.Zero(t, p.count())

	opts = baseOptions(t, "sdxl")
	opts.References = refs
	opts.ReferenceFallback = true
	p = &fakePredictor{}
	g = newGenerator(t, opts, p)
	report = g.Run(context.Background(), g.Plan(testDeck(t)[:2]))
	require.NoError(t, report.Err())
	first, _ := p.callFor(42)
	assert.NotContains(t, first.Input, "image")
}

func TestRunCardBackIsSymmetric(t *testing.T) {
	opts := baseOptions(t, "flux-schnell")
	g := newGenerator(t, opts, &fakePredictor{})
	deck := cards.Default()
	report := g.Run(context.Background(), g.Plan([]models.Card{deck.Cards[0], deck.CardBack()}))
	require.NoError(t, report.Err())

	front := decodeFile(t, report.Results[0].Task.Path)
	assert.NotEqual(t, front.At(0, 0), front.At(front.Bounds().Dx()-1, 0), "regular cards are untouched")

	back := decodeFile(t, report.Results[1].Task.Path)
	b := back.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r0, g0, b0, a0 := back.At(x, y).RGBA()
			r1, g1, b1, a1 := back.At(b.Dx()-1-x, y).RGBA()
			r2, g2, b2, a2 := back.At(x, b.Dy()-1-y).RGBA()
			require.Equal(t, [4]uint32{r0, g0, b0, a0}, [4]uint32{r1, g1, b1, a1}, "horizontal mirror at %d,%d", x, y)
			require.Equal(t, [4]uint32{r0, g0, b0, a0}, [4]uint32{r2, g2, b2, a2}, "vertical mirror at %d,%d", x, y)
		}
	}
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func TestRunInterrupted(t *testing.T) {
	t.Run("Cancelled before start", func(t *testing.T) {
		p := &fakePredictor{}
		g := newGenerator(t, baseOptions(t, "sdxl"), p)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report := g.Run(ctx, g.Plan(testDeck(t)))
		assert.Zero(t, p.count())
		for _, res := range report.Failed() {
			assert.ErrorIs(t, res.Err, ErrInterrupted)
		}
		assert.Len(t, report.Failed(), len(testDeck(t)))
	})

	t.Run("Cancelled mid-run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p := &fakePredictor{onCall: cancel, delay: time.Second}
		g := newGenerator(t, baseOptions(t, "flux-schnell"), p)

		report := g.Run(ctx, g.Plan(testDeck(t)))
		assert.Equal(t, 1, p.count(), "no new calls after cancellation")
		for _, res := range report.Failed() {
			assert.ErrorIs(t, res.Err, ErrInterrupted, res.Task.Card.Name)
			_, err := os.Stat(res.Task.Path)
			assert.True(t, os.IsNotExist(err))
		}
		assert.Len(t, report.Failed(), len(testDeck(t)))
	})
}

func TestRunResumeSkipsMatchingCards(t *testing.T) {
	opts := baseOptions(t, "sdxl")
	p := &fakePredictor{}
	g := newGenerator(t, opts, p)
	deck := testDeck(t)[:4]

	first := g.Run(context.Background(), g.Plan(deck))
	require.NoError(t, first.Err())
	records := map[string]models.CardRecord{}
	for _, res := range first.Results {
		records[res.Task.Card.Numeral] = models.CardRecord{
			Numeral:        res.Task.Card.Numeral,
			Seed:           res.Task.Seed,
			PromptHash:     res.Task.PromptHash,
			RunFingerprint: g.Fingerprint(),
			FileHash:       res.FileHash,
			State:          models.StateCompleted,
		}
	}
	// Card 02 was edited on disk, so it no longer matches its record.
	require.NoError(t, os.WriteFile(first.Results[2].Task.Path, []byte("edited"), 0644))

	p2 := &fakePredictor{}
	g2 := newGenerator(t, opts, p2)
	tasks := g2.Plan(deck)
	marked := g2.MarkResumable(tasks, func(numeral string) (models.CardRecord, bool) {
		rec, ok := records[numeral]
		return rec, ok
	})
	assert.Equal(t, 3, marked)

	report := g2.Run(context.Background(), tasks)
	require.NoError(t, report.Err())
	assert.Len(t, report.Skipped(), 3)
	assert.Equal(t, 1, p2.count())
	regen, ok := p2.callFor(44)
	require.True(t, ok)
	assert.Contains(t, regen.Input, "image", "the skipped key card still feeds its dependents")
}

func TestResumeIgnoresChangedSettings(t *testing.T) {
	opts := baseOptions(t, "flux-schnell")
	g := newGenerator(t, opts, &fakePredictor{})
	first := g.Run(context.Background(), g.Plan(testDeck(t)[:1]))
	res := first.Results[0]
	rec := models.CardRecord{Seed: res.Task.Seed, PromptHash: res.Task.PromptHash, RunFingerprint: g.Fingerprint(), FileHash: res.FileHash, State: models.StateCompleted}

	opts.Style = "oil painting"
	g2 := newGenerator(t, opts, &fakePredictor{})
	tasks := g2.Plan(testDeck(t)[:1])
	assert.Zero(t, g2.MarkResumable(tasks, func(string) (models.CardRecord, bool) { return rec, true }))
}

func TestRunExternalKeyCard(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "key.png")
	require.NoError(t, os.WriteFile(keyPath, gradientPNG(t, 200, 300), 0644))

	opts := baseOptions(t, "sdxl")
	opts.KeyCardPath = keyPath
	p := &fakePredictor{}
	g := newGenerator(t, opts, p)
	tasks := g.Plan(testDeck(t)[:3])
	for _, task := range tasks {
		assert.Equal(t, ModeKeyCard, task.Mode)
		assert.False(t, task.IsKeyCard)
	}
	report := g.Run(context.Background(), tasks)
	require.NoError(t, report.Err())
	first, _ := p.callFor(42)
	assert.Contains(t, first.Input, "image")
}

func TestSubmissionOrder(t *testing.T) {
	tasks := []Task{{Index: 0}, {Index: 1, IsKeyCard: true}, {Index: 2}, {Index: 3, IsKeyCard: true}}
	assert.Equal(t, []int{1, 3, 0, 2}, submissionOrder(tasks))
}

func TestKeyCardFutureResolvesOnce(t *testing.T) {
	f := newKeyCardFuture()
	f.resolve("a.png", nil)
	f.resolve("", errors.New("late"))
	path, err := f.wait(context.Background())
	assert.Equal(t, "a.png", path)
	assert.NoError(t, err)

	pending := newKeyCardFuture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pending.wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDependencyError(t *testing.T) {
	err := &DependencyError{Card: "05 The Hierophant", KeyCard: "00 The Fool", Err: api.ErrUnauthorized}
	assert.Equal(t, "05 The Hierophant: key card 00 The Fool failed: "+api.ErrUnauthorized.Error(), err.Error())
	assert.ErrorIs(t, err, api.ErrUnauthorized)
}
