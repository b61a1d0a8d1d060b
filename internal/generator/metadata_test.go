package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-tarot-gen/internal/database"
	"go-tarot-gen/internal/models"
)

func TestWriteRunInfo(t *testing.T) {
	opts := baseOptions(t, "sdxl")
	opts.KeyCardScope = ScopeOff
	g := newGenerator(t, opts, &fakePredictor{fail: func(seed int64) error {
		if seed == 42 {
			return errors.New("boom\nsecond line")
		}
		return nil
	}})

	report := g.Run(context.Background(), g.Plan(testDeck(t)[:2]))
	info := g.RunInfo(report)
	info.RunID = "run-1"
	info.DeckKind = "tarot"
	info.Subset = "sample"

	path, err := WriteRunInfo(opts.OutputDir, info)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(opts.OutputDir, RunInfoFilename), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	for _, want := range []string{
		"run_id: run-1\n",
		"style: watercolor\n",
		"style_prefix: consistent art style, watercolor\n",
		"model_alias: sdxl\n",
		"base_seed: 42\n",
		"diversity: medium\n",
		"deck_kind: tarot\n",
		"deck_name: -\n",
		"cards_file: -\n",
		"dimensions: 768x1152\n",
		"prompt_strength: 0.47\n",
		"key_card_scope: off\n",
		"reference_source: none\n",
		"run_fingerprint: " + g.Fingerprint() + "\n",
		"completed: 1\n",
		"failed: 1\n",
		"skipped: 0\n",
		"failed_card: 00 The Fool: boom second line\n",
	} {
		assert.Contains(t, text, want)
	}
	assert.Equal(t, 24, strings.Count(text, "\n"))

	entries, err := os.ReadDir(opts.OutputDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
	}
}

func TestRunInfoReferenceSource(t *testing.T) {
	flux := newGenerator(t, baseOptions(t, "flux-schnell"), &fakePredictor{})
	assert.Equal(t, "none (text-to-image model)", flux.RunInfo(nil).ReferenceSource)

	sdxl := newGenerator(t, baseOptions(t, "sdxl"), &fakePredictor{})
	assert.Equal(t, "generated key cards", sdxl.RunInfo(nil).ReferenceSource)

	opts := baseOptions(t, "sdxl")
	opts.References = NewReferenceSet("refs", map[string][]byte{"major": nil, "*": nil})
	refs := newGenerator(t, opts, &fakePredictor{})
	assert.Equal(t, "refs (*, major)", refs.RunInfo(nil).ReferenceSource)
}

func TestStoreRecorder(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	opts := baseOptions(t, "flux-schnell")
	store := database.NewCardStore(db, opts.OutputDir)
	g := newGenerator(t, opts, &fakePredictor{fail: func(seed int64) error {
		if seed == 43 {
			return errors.New("model refused")
		}
		return nil
	}})
	g.Recorder = &StoreRecorder{Store: store, RunID: "run-1", Fingerprint: g.Fingerprint()}

	tasks := g.Plan(testDeck(t)[:2])
	report := g.Run(context.Background(), tasks)
	require.Len(t, report.Failed(), 1)

	ok, err := store.Lookup("00")
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, ok.State)
	assert.Equal(t, "run-1", ok.RunID)
	assert.Equal(t, "The Fool", ok.Name)
	assert.Equal(t, int64(42), ok.Seed)
	assert.Equal(t, tasks[0].PromptHash, ok.PromptHash)
	assert.Equal(t, g.Fingerprint(), ok.RunFingerprint)
	assert.Equal(t, report.Results[0].FileHash, ok.FileHash)
	assert.Equal(t, "https://replicate.test/42.png", ok.OutputURL)
	assert.Empty(t, ok.ErrorDetails)

	bad, err := store.Lookup("01")
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, bad.State)
	assert.Contains(t, bad.ErrorDetails, "model refused")
	assert.Empty(t, bad.FileHash)

	// A resumed run leaves the kept record untouched.
	before := ok.UpdatedAt
	time.Sleep(10 * time.Millisecond)
	g2 := newGenerator(t, opts, &fakePredictor{})
	g2.Recorder = &StoreRecorder{Store: store, RunID: "run-2", Fingerprint: g2.Fingerprint()}
	tasks = g2.Plan(testDeck(t)[:2])
	assert.Equal(t, 1, g2.MarkResumable(tasks, func(numeral string) (models.CardRecord, bool) {
		rec, err := store.Lookup(numeral)
		return rec, err == nil
	}))
	require.NoError(t, g2.Run(context.Background(), tasks).Err())

	kept, err := store.Lookup("00")
	require.NoError(t, err)
	assert.Equal(t, "run-1", kept.RunID)
	assert.Equal(t, before, kept.UpdatedAt)

	redone, err := store.Lookup("01")
	require.NoError(t, err)
	assert.Equal(t, "run-2", redone.RunID)
	assert.Equal(t, models.StateCompleted, redone.State)
}
