package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-tarot-gen/internal/cards"
	"go-tarot-gen/internal/downloader"
)

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Inspect, export and validate card definitions",
}

var cardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the cards of a deck with their output filenames",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("cards-file")
		subset, _ := cmd.Flags().GetString("subset")
		withBack, _ := cmd.Flags().GetBool("card-back")

		deck, err := loadDeck(file)
		if err != nil {
			return err
		}
		selected, err := selectCards(deck, subset, !withBack)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Numeral\tName\tArcana\tGroup\tFilename")
		fmt.Fprintln(tw, "-------\t----\t------\t-----\t--------")
		for _, c := range selected {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Numeral, c.Name, c.Arcana, cards.Group(c), c.Filename())
		}
		tw.Flush()
		fmt.Fprintf(out, "\n%d cards (%s deck %q)\n", len(selected), deck.Kind, deck.Name)
		return nil
	},
}

var cardsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the built-in tarot deck as a YAML card file",
	Long: `Writes the built-in 78-card deck in the tarot card file format, ready to be
edited and passed back with --cards-file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath, _ := cmd.Flags().GetString("output")
		file, _ := cmd.Flags().GetString("cards-file")

		deck, err := loadDeck(file)
		if err != nil {
			return err
		}
		if outPath == "" || outPath == "-" {
			return cards.Export(cmd.OutOrStdout(), deck)
		}

		var buf strings.Builder
		if err := cards.Export(&buf, deck); err != nil {
			return err
		}
		if err := downloader.SaveFile(outPath, []byte(buf.String())); err != nil {
			return err
		}
		log.Infof("Exported %d cards to %s", len(deck.Cards), outPath)
		return nil
	},
}

var cardsValidateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Validate tarot or oracle card files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		out := cmd.OutOrStdout()
		for _, path := range args {
			deck, err := cards.LoadFile(path)
			if err != nil {
				fmt.Fprintf(out, "%s: %v\n", path, err)
				failed++
				continue
			}
			fmt.Fprintf(out, "%s: ok (%s deck %q, %d cards, card back %s)\n", path, deck.Kind, deck.Name, len(deck.Cards), deck.CardBack().Filename())
		}
		if failed > 0 {
			return fmt.Errorf("%w: %d of %d files invalid", cards.ErrInvalidDeck, failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cardsCmd)
	cardsCmd.AddCommand(cardsListCmd, cardsExportCmd, cardsValidateCmd)

	cardsListCmd.Flags().String("cards-file", "", "Tarot or oracle YAML card definitions (default: built-in deck)")
	cardsListCmd.Flags().String("subset", "all", "Cards to list (all, major, minor, sample)")
	cardsListCmd.Flags().Bool("card-back", true, "Include the card back")

	cardsExportCmd.Flags().StringP("output", "o", "-", "Output file (- for stdout)")
	cardsExportCmd.Flags().String("cards-file", "", "Re-export a card file instead of the built-in deck")
}
