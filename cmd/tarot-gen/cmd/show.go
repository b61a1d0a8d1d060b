package cmd

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	colorize "github.com/fatih/color"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"go-tarot-gen/internal/database"
	"go-tarot-gen/internal/models"
)

var showCmd = &cobra.Command{
	Use:   "show NUMERAL|FILE",
	Short: "Preview a generated card in the terminal",
	Long: `Renders a generated card as truecolor half-block art next to its details.
The card is looked up by numeral in the deck output directory, or given as an image path.

Examples:
  tarot-gen show 00
  tarot-gen show --output decks/noir 78
  tarot-gen show output/13_death.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("output")
		if dir == "" {
			dir = globalConfig.OutputPath
		}
		width, _ := cmd.Flags().GetInt("width")

		path, err := findCardImage(dir, args[0])
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}

		rec, _ := lookupRecord(filepath.Dir(path), filepath.Base(path))
		displayCard(cmd.OutOrStdout(), imageToAnsi(img, width), path, rec)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringP("output", "o", "", "Deck output directory (default: OutputPath from config)")
	showCmd.Flags().IntP("width", "w", 32, "Preview width in terminal columns")
}

// findCardImage resolves a numeral or a path to an existing image file.
func findCardImage(dir, arg string) (string, error) {
	if _, err := os.Stat(arg); err == nil {
		return arg, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, arg+"_*.png"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no generated image for card %s in %s", arg, dir)
	}
	return matches[0], nil
}

// lookupRecord finds the state record of the card stored under filename in dir.
func lookupRecord(dir, filename string) (models.CardRecord, bool) {
	db, err := openStateDB()
	if err != nil {
		return models.CardRecord{}, false
	}
	defer db.Close()

	numeral, _, _ := strings.Cut(filename, "_")
	rec, err := database.NewCardStore(db, dir).Lookup(numeral)
	return rec, err == nil
}

// imageToAnsi renders img as upper half blocks, each averaging a 2x2 pixel cell.
// Rows are half as many as columns times the aspect ratio since terminal cells are tall.
func imageToAnsi(img image.Image, width int) string {
	if width <= 0 {
		width = 32
	}
	b := img.Bounds()
	height := max(width*b.Dy()/max(b.Dx(), 1)/2, 1)
	resized := resize.Resize(uint(width*2), uint(height*2), img, resize.Lanczos3)

	var buf strings.Builder
	for y := 0; y < height*2; y += 2 {
		for x := 0; x < width*2; x += 2 {
			top := averageColor(colorAt(resized, x, y), colorAt(resized, x+1, y))
			bottom := averageColor(colorAt(resized, x, y+1), colorAt(resized, x+1, y+1))
			tr, tg, tb := top.RGB255()
			br, bg, bb := bottom.RGB255()
			fmt.Fprintf(&buf, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀\x1b[0m", tr, tg, tb, br, bg, bb)
		}
		buf.WriteString("\n")
	}
	return buf.String()
}

func colorAt(img image.Image, x, y int) colorful.Color {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
		return colorful.Color{}
	}
	c, ok := colorful.MakeColor(img.At(x, y))
	if !ok {
		c, _ = colorful.MakeColor(color.Black)
	}
	return c
}

func averageColor(colors ...colorful.Color) colorful.Color {
	var r, g, b float64
	for _, c := range colors {
		r += c.R
		g += c.G
		b += c.B
	}
	n := float64(len(colors))
	return colorful.Color{R: r / n, G: g / n, B: b / n}.Clamped()
}

// displayCard prints the ANSI art with the card details on its right.
func displayCard(out io.Writer, art, path string, rec models.CardRecord) {
	artLines := strings.Split(strings.TrimRight(art, "\n"), "\n")
	artWidth := 0
	if len(artLines) > 0 {
		artWidth = len([]rune(stripAnsi(artLines[0])))
	}

	termWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || termWidth <= 0 {
		termWidth = 100
	}
	infoWidth := max(termWidth-artWidth-6, 20)

	label := colorize.New(colorize.FgCyan).SprintFunc()
	value := colorize.New(colorize.FgHiWhite).SprintFunc()
	info := []string{label("File:   ") + value(filepath.Base(path))}
	if rec.Numeral != "" {
		info = append(info,
			label("Card:   ")+value(rec.Numeral+" "+rec.Name),
			label("Arcana: ")+value(rec.Arcana),
			label("Seed:   ")+value(rec.Seed),
			label("Ref:    ")+value(rec.ReferenceMode),
			label("State:  ")+value(rec.State),
		)
		if len(rec.Keywords) > 0 {
			info = append(info, label("Keys:   ")+value(strings.Join(rec.Keywords, ", ")))
		}
		if rec.Meaning != "" {
			info = append(info, "", label("Meaning:"))
			info = append(info, wrapText(rec.Meaning, infoWidth)...)
		}
	}

	fmt.Fprintln(out)
	for i := 0; i < max(len(artLines), len(info)); i++ {
		fmt.Fprint(out, "  ")
		if i < len(artLines) {
			fmt.Fprint(out, artLines[i])
		} else {
			fmt.Fprint(out, strings.Repeat(" ", artWidth))
		}
		if i < len(info) {
			fmt.Fprint(out, "    ", info[i])
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out)
}

func wrapText(text string, width int) []string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		switch {
		case line == "":
			line = word
		case len(line)+1+len(word) <= width:
			line += " " + word
		default:
			lines = append(lines, line)
			line = word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

func stripAnsi(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
