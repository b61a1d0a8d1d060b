package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-tarot-gen/internal/database"
	"go-tarot-gen/internal/helpers"
	"go-tarot-gen/internal/models"
)

// dbCmd is the base command for state database operations
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the generation state database",
	Long:  `View, verify or reset the per-card records kept for every generated deck.`,
}

var dbViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the card records stored in the database",
	RunE:  runDbView,
}

var dbVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify generated files against their recorded BLAKE3 hashes",
	Long: `Checks that every completed card recorded for the deck still exists at its
expected location with the recorded hash. Missing or modified files are reported
and will be generated again by 'generate --resume'.`,
	RunE: runDbVerify,
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the records of one deck",
	RunE:  runDbReset,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbViewCmd, dbVerifyCmd, dbResetCmd)

	dbCmd.PersistentFlags().StringP("output", "o", "", "Deck output directory (default: OutputPath from config)")
	dbViewCmd.Flags().Bool("all", false, "Show the records of every deck")
	dbVerifyCmd.Flags().Bool("all", false, "Verify every deck in the database")
	dbResetCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}

func openStateDB() (*database.DB, error) {
	if globalConfig.DatabasePath == "" {
		return nil, fmt.Errorf("database path is not set in the configuration")
	}
	db, err := database.Open(globalConfig.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database at %s: %w", globalConfig.DatabasePath, err)
	}
	return db, nil
}

func deckDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("output")
	if dir == "" {
		dir = globalConfig.OutputPath
	}
	return dir
}

// selectedRecords returns the records of the --output deck, or of every deck with --all.
func selectedRecords(cmd *cobra.Command, db *database.DB) ([]models.CardRecord, error) {
	if all, _ := cmd.Flags().GetBool("all"); all {
		return database.AllCards(db)
	}
	return database.NewCardStore(db, deckDir(cmd)).List()
}

func runDbView(cmd *cobra.Command, args []string) error {
	db, err := openStateDB()
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := selectedRecords(cmd, db)
	if err != nil {
		return fmt.Errorf("reading records: %w", err)
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Deck\tNumeral\tName\tState\tSeed\tReference\tFile Hash\tRun\tUpdated")
	fmt.Fprintln(tw, "----\t-------\t----\t-----\t----\t---------\t---------\t---\t-------")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			filepath.Base(rec.OutputDir),
			rec.Numeral,
			rec.Name,
			rec.State,
			rec.Seed,
			rec.ReferenceMode,
			shortHash(rec.FileHash),
			shortHash(rec.RunID),
			rec.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
		)
	}
	tw.Flush()
	fmt.Fprintf(out, "\n%d records (%d keys in database)\n", len(records), db.Len())

	for _, rec := range records {
		if rec.State == models.StateFailed && rec.ErrorDetails != "" {
			log.Debugf("%s %s: %s", rec.Numeral, rec.Name, rec.ErrorDetails)
		}
	}
	return nil
}

func shortHash(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	if s == "" {
		return "-"
	}
	return s
}

type verifyResult struct {
	ok, missing, mismatched, incomplete int
}

func runDbVerify(cmd *cobra.Command, args []string) error {
	db, err := openStateDB()
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := selectedRecords(cmd, db)
	if err != nil {
		return fmt.Errorf("reading records: %w", err)
	}
	if len(records) == 0 {
		log.Infof("No records found for %s", deckDir(cmd))
		return nil
	}

	res := verifyRecords(cmd.OutOrStdout(), records)
	log.Infof("Verify complete: %d ok, %d missing, %d modified, %d not completed", res.ok, res.missing, res.mismatched, res.incomplete)
	if res.missing+res.mismatched > 0 {
		return fmt.Errorf("%d generated files are missing or modified", res.missing+res.mismatched)
	}
	return nil
}

func verifyRecords(out io.Writer, records []models.CardRecord) verifyResult {
	var res verifyResult
	for _, rec := range records {
		if rec.State != models.StateCompleted {
			res.incomplete++
			continue
		}
		path := filepath.Join(rec.OutputDir, rec.Filename)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Fprintf(out, "MISSING   %s\n", path)
			res.missing++
			continue
		}
		if !helpers.CheckHash(path, rec.FileHash) {
			fmt.Fprintf(out, "MODIFIED  %s\n", path)
			res.mismatched++
			continue
		}
		log.Debugf("OK %s", path)
		res.ok++
	}
	return res
}

func runDbReset(cmd *cobra.Command, args []string) error {
	db, err := openStateDB()
	if err != nil {
		return err
	}
	defer db.Close()

	dir := deckDir(cmd)
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		fmt.Fprintf(cmd.OutOrStdout(), "Delete all records for %s? [y/N]: ", dir)
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			log.Info("Reset cancelled")
			return nil
		}
	}

	n, err := database.NewCardStore(db, dir).Reset()
	if err != nil {
		return fmt.Errorf("resetting records for %s: %w", dir, err)
	}
	log.Infof("Deleted %d records for %s", n, dir)
	return nil
}
