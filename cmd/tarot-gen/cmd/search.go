package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-tarot-gen/index"
)

// Fields printed for every hit, in this order when present.
var searchFields = []string{"name", "numeral", "arcana", "suit", "deck", "filePath", "seed", "style", "model", "keywords", "meaning"}

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search generated cards",
	Long: `Searches the Bleve index of generated cards. Queries use the Bleve query string
syntax, with fields named after the index item:

  tarot-gen search moon
  tarot-gen search '+arcana:minor +suit:cups'
  tarot-gen search '+keywords:lantern +style:watercolor'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")
		indexPath := globalConfig.BleveIndexPath

		bleveIndex, err := bleve.Open(indexPath)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			return fmt.Errorf("search index not found at %s, run 'generate' first to create it", indexPath)
		} else if err != nil {
			return fmt.Errorf("opening search index %s: %w", indexPath, err)
		}
		defer func() {
			if err := bleveIndex.Close(); err != nil {
				log.Errorf("Error closing Bleve index: %v", err)
			}
		}()

		results, err := index.SearchIndex(bleveIndex, query, limit)
		if err != nil {
			return fmt.Errorf("searching %q: %w", query, err)
		}
		log.Debugf("Search finished. Hits: %d, Total: %d, Took: %s", len(results.Hits), results.Total, results.Took)

		out := cmd.OutOrStdout()
		if results.Total == 0 {
			fmt.Fprintln(out, "No cards found matching your query.")
			return nil
		}
		for i, hit := range results.Hits {
			fmt.Fprintf(out, "[%d] %s (score %.2f)\n", i+1, hit.ID, hit.Score)
			for _, field := range orderedFields(hit.Fields) {
				fmt.Fprintf(out, "  %s: %v\n", field, hit.Fields[field])
			}
		}
		fmt.Fprintf(out, "%d of %d matching cards shown\n", len(results.Hits), results.Total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntP("limit", "n", 20, "Maximum number of results")
}

// orderedFields returns the known fields first, then the rest alphabetically.
func orderedFields(fields map[string]interface{}) []string {
	var out []string
	seen := map[string]bool{}
	for _, f := range searchFields {
		if _, ok := fields[f]; ok {
			out = append(out, f)
			seen[f] = true
		}
	}
	var rest []string
	for f := range fields {
		if !seen[f] && f != "prompt" && f != "description" {
			rest = append(rest, f)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
