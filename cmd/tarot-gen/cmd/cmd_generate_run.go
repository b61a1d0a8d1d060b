package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-tarot-gen/index"
	"go-tarot-gen/internal/api"
	"go-tarot-gen/internal/cards"
	"go-tarot-gen/internal/database"
	"go-tarot-gen/internal/downloader"
	"go-tarot-gen/internal/generator"
	"go-tarot-gen/internal/helpers"
	"go-tarot-gen/internal/models"
)

func runGenerate(cmd *cobra.Command, args []string) error {
	err := generate(cmd.OutOrStdout())
	if isConfigError(err) {
		log.WithError(err).Error("Configuration error, nothing was generated")
	}
	return err
}

func generate(out io.Writer) error {
	s, err := loadGenerateSettings()
	if err != nil {
		return err
	}
	deck, err := loadDeck(s.CardsFile)
	if err != nil {
		return err
	}
	selected, err := selectCards(deck, s.Subset, s.SkipCardBack)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	refs, err := loadReferences(ctx, s)
	if err != nil {
		return err
	}
	opts := s.options(refs)

	if globalConfig.ApiToken == "" && !s.DryRun {
		return fmt.Errorf("%w: REPLICATE_API_TOKEN is not set (environment, .env or ApiToken in config)", generator.ErrConfig)
	}
	client := api.NewClient(globalConfig.ApiToken, newHttpClient(), apiOptions(globalConfig))
	fetcher := downloader.NewDownloader(newHttpClient())

	gen, err := generator.New(opts, client, fetcher)
	if err != nil {
		return err
	}
	tasks := gen.Plan(selected)

	if s.DryRun {
		printPlan(out, gen, tasks)
		return nil
	}

	if !helpers.CheckAndMakeDir(opts.OutputDir) {
		return fmt.Errorf("%w: cannot create output directory %s", generator.ErrConfig, opts.OutputDir)
	}

	db, err := database.Open(globalConfig.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening state database %s: %w", globalConfig.DatabasePath, err)
	}
	defer db.Close()
	store := database.NewCardStore(db, opts.OutputDir)

	if s.Resume {
		marked := gen.MarkResumable(tasks, func(numeral string) (models.CardRecord, bool) {
			rec, err := store.Lookup(numeral)
			return rec, err == nil
		})
		log.Infof("Resuming: %d of %d cards already generated", marked, len(tasks))
	}

	runID := uuid.NewString()
	gen.Recorder = &generator.StoreRecorder{Store: store, RunID: runID, Fingerprint: gen.Fingerprint()}

	w, h := gen.Dimensions()
	log.WithFields(log.Fields{
		"run":    runID,
		"deck":   deck.Kind,
		"cards":  len(tasks),
		"model":  opts.Model.String(),
		"size":   fmt.Sprintf("%dx%d", w, h),
		"output": opts.OutputDir,
	}).Info("Generating deck")

	writer := uilive.New()
	writer.Out = out
	writer.Start()
	gen.Progress = writer
	report := gen.Run(ctx, tasks)
	writer.Stop()

	info := gen.RunInfo(report)
	info.RunID = runID
	info.DeckKind = deck.Kind
	info.DeckName = deck.Name
	info.Subset = s.Subset
	info.CardsFile = s.CardsFile
	if path, err := generator.WriteRunInfo(opts.OutputDir, info); err != nil {
		log.WithError(err).Error("Failed to write run metadata")
	} else {
		log.Infof("Run metadata written to %s", path)
	}

	if !s.NoIndex {
		indexResults(store, opts, report)
	}

	printSummary(out, report)

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %d cards not generated", generator.ErrInterrupted, len(report.Failed()))
	}
	if n := len(report.Failed()); n > 0 {
		return fmt.Errorf("%d of %d cards failed", n, len(tasks))
	}
	return nil
}

// printPlan lists what a run would do without calling the API.
func printPlan(out io.Writer, gen *generator.Generator, tasks []generator.Task) {
	w, h := gen.Dimensions()
	fmt.Fprintf(out, "Style prefix: %s\nDimensions: %dx%d\nRun fingerprint: %s\n\n", gen.StylePrefix(), w, h, gen.Fingerprint())

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Numeral\tFilename\tSeed\tReference\tPrompt")
	fmt.Fprintln(tw, "-------\t--------\t----\t---------\t------")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", t.Card.Numeral, filepath.Base(t.Path), t.Seed, describeReference(t, tasks), t.Prompt)
	}
	tw.Flush()
	fmt.Fprintf(out, "\n%d cards planned, no API calls made (dry run).\n", len(tasks))
}

func describeReference(t generator.Task, tasks []generator.Task) string {
	switch {
	case t.IsKeyCard:
		return "key card (" + t.Batch + ")"
	case t.Mode == generator.ModeStatic:
		if t.RefGroup == cards.GroupUniversal {
			return "static (default)"
		}
		return "static (" + t.RefGroup + ")"
	case t.Mode == generator.ModeKeyCard:
		if t.KeyCard >= 0 && t.KeyCard < len(tasks) {
			return "keycard " + tasks[t.KeyCard].Card.Numeral
		}
		return "keycard (user)"
	}
	return string(t.Mode)
}

// indexResults adds every completed card of the run to the search index.
func indexResults(store *database.CardStore, opts generator.Options, report *generator.Report) {
	done := append(report.Completed(), report.Skipped()...)
	if len(done) == 0 {
		return
	}
	idx, err := index.OpenOrCreateIndex(globalConfig.BleveIndexPath)
	if err != nil {
		log.WithError(err).Warn("Failed to open search index, skipping indexing")
		return
	}
	defer idx.Close()

	items := make([]index.Item, 0, len(done))
	for _, res := range done {
		rec, err := store.Lookup(res.Task.Card.Numeral)
		if err != nil {
			log.WithError(err).Debugf("No state record for %s", res.Task.Card)
		}
		item := index.NewCardItem(opts.OutputDir, res.Task.Card, rec)
		item.Model = opts.Model.ID
		item.Style = opts.Style
		items = append(items, item)
	}
	if err := index.IndexItems(idx, items); err != nil {
		log.WithError(err).Warn("Failed to index generated cards")
		return
	}
	log.Debugf("Indexed %d cards in %s", len(items), globalConfig.BleveIndexPath)
}

func printSummary(out io.Writer, report *generator.Report) {
	completed, skipped, failed := report.Completed(), report.Skipped(), report.Failed()
	elapsed := report.Finished.Sub(report.Started).Round(time.Second)

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s %d generated, %d kept from an earlier run, %d failed in %s\n",
		color.CyanString("Summary:"), len(completed), len(skipped), len(failed), elapsed)
	for _, res := range completed {
		fmt.Fprintf(out, "  %s %s\n", color.GreenString("ok"), res.Task.Path)
	}
	for _, res := range failed {
		reason := res.Err.Error()
		var depErr *generator.DependencyError
		if errors.As(res.Err, &depErr) {
			reason = "key card " + depErr.KeyCard + " failed"
		}
		fmt.Fprintf(out, "  %s %s: %s\n", color.RedString("failed"), res.Task.Card, strings.TrimSpace(reason))
	}
}
