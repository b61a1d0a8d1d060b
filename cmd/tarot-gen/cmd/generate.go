package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the illustrations of a deck",
	Long: `Generates one image per card in a single art style, plus a symmetric card back.

Image-to-image models (sdxl) keep the deck consistent by chaining every card off
a key card (the first card of the deck, or of each group with --key-card-scope group)
or off static reference images (--reference / --reference-dir). Text-to-image
models (flux-schnell) rely on the shared style prefix alone.

Each card gets the seed base+index. Outputs are written atomically as
{numeral}_{slug}.png next to a run_info.txt describing the run.`,
	Example: `  tarot-gen generate --style "art nouveau, gold leaf" --subset sample
  tarot-gen generate --style watercolor --model sdxl --parallel 4 --reference-dir refs/
  tarot-gen generate --style "ink wash" --cards-file oracle.yaml --dry-run`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	f := generateCmd.Flags()
	f.StringP("output", "o", "output", "Output directory for the generated deck")
	f.StringP("style", "s", "", "Art style shared by every card (required)")
	f.StringP("model", "m", "flux-schnell", "Model alias (flux-schnell, sdxl) or raw Replicate model id")
	f.Int64("seed", 42, "Base seed; card i uses seed+i")
	f.IntP("parallel", "p", 1, "Number of cards generated concurrently (1-64)")
	f.StringP("diversity", "d", "medium", "Crop diversity for reference images (low, medium, high)")
	f.String("aspect-ratio", "2:3", "Output aspect ratio")
	f.Float64("prompt-strength", 0.47, "How far img2img may move away from the reference (0-1]")
	f.String("negative-extra", "", "Extra terms appended to the negative prompt")
	f.String("reference", "", "Reference image used for every card")
	f.String("reference-dir", "", "Directory of per-group reference images (major.png, cups.png, default.png, ...)")
	f.String("key-card", "", "Existing image used as the key card for every card")
	f.String("key-card-scope", "deck", "Key-card chaining scope (deck, group, off)")
	f.String("cards-file", "", "Tarot or oracle YAML card definitions (default: built-in tarot deck)")
	f.String("subset", "all", "Cards to generate (all, major, minor, sample)")
	f.Bool("skip-card-back", false, "Do not generate the card back")
	f.Bool("reference-fallback", false, "Generate without a reference when a reference image cannot be used")
	f.Bool("resume", false, "Skip cards already generated by an identical earlier run")
	f.Bool("dry-run", false, "Print the generation plan without calling the API")
	f.Bool("no-index", false, "Do not add generated cards to the search index")

	viper.BindPFlag("generate.output", f.Lookup("output"))
	viper.BindPFlag("generate.style", f.Lookup("style"))
	viper.BindPFlag("generate.model", f.Lookup("model"))
	viper.BindPFlag("generate.seed", f.Lookup("seed"))
	viper.BindPFlag("generate.parallel", f.Lookup("parallel"))
	viper.BindPFlag("generate.diversity", f.Lookup("diversity"))
	viper.BindPFlag("generate.aspect_ratio", f.Lookup("aspect-ratio"))
	viper.BindPFlag("generate.prompt_strength", f.Lookup("prompt-strength"))
	viper.BindPFlag("generate.negative_extra", f.Lookup("negative-extra"))
	viper.BindPFlag("generate.reference", f.Lookup("reference"))
	viper.BindPFlag("generate.reference_dir", f.Lookup("reference-dir"))
	viper.BindPFlag("generate.key_card", f.Lookup("key-card"))
	viper.BindPFlag("generate.key_card_scope", f.Lookup("key-card-scope"))
	viper.BindPFlag("generate.cards_file", f.Lookup("cards-file"))
	viper.BindPFlag("generate.subset", f.Lookup("subset"))
	viper.BindPFlag("generate.skip_card_back", f.Lookup("skip-card-back"))
	viper.BindPFlag("generate.reference_fallback", f.Lookup("reference-fallback"))
	viper.BindPFlag("generate.resume", f.Lookup("resume"))
	viper.BindPFlag("generate.dry_run", f.Lookup("dry-run"))
	viper.BindPFlag("generate.no_index", f.Lookup("no-index"))
}
