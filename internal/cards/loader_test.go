package cards

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-tarot-gen/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func oracleYAML(n int) string {
	var b strings.Builder
	b.WriteString("deck_name: Test Deck\ncards:\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "  - name: Card %d\n    description: Desc %d\n    keywords: [kw%d]\n", i, i, i)
	}
	return b.String()
}

func TestLoadOracleBasic(t *testing.T) {
	path := writeFile(t, "oracle.yaml", `deck_name: Test Deck
cards:
  - name: The Dawn
    description: A sunrise over the sea
    keywords: [sunrise, sea]
    meaning: New beginnings
  - name: The Mirror
    description: A mirror reflecting stars
    keywords: [mirror, stars]
    meaning: Self-reflection
    composition: wide shot
`)
	deck, err := LoadOracleFile(path)
	require.NoError(t, err)
	require.Len(t, deck.Cards, 2)

	c := deck.Cards[0]
	assert.Equal(t, "Test Deck", deck.Name)
	assert.Equal(t, KindOracle, deck.Kind)
	assert.Equal(t, "The Dawn", c.Name)
	assert.Equal(t, "00", c.Numeral)
	assert.Equal(t, models.ArcanaOracle, c.Arcana)
	assert.Empty(t, c.Suit)
	assert.Equal(t, []string{"sunrise", "sea"}, c.KeySymbols)
	assert.Equal(t, "New beginnings", c.Meaning)
	assert.Empty(t, c.Composition)
	assert.Equal(t, "00_the_dawn.png", c.Filename())

	assert.Equal(t, "01", deck.Cards[1].Numeral)
	assert.Equal(t, "wide shot", deck.Cards[1].Composition)
}

func TestLoadOracleNumerals(t *testing.T) {
	deck, err := ParseOracle([]byte(oracleYAML(15)))
	require.NoError(t, err)
	assert.Equal(t, "00", deck.Cards[0].Numeral)
	assert.Equal(t, "09", deck.Cards[9].Numeral)
	assert.Equal(t, "14", deck.Cards[14].Numeral)
	assert.Equal(t, "15", deck.CardBack().Numeral)
}

func TestLoadOracleBounds(t *testing.T) {
	_, err := ParseOracle([]byte("deck_name: Empty\ncards: []\n"))
	require.ErrorIs(t, err, ErrInvalidDeck)
	assert.Contains(t, err.Error(), "at least 1")

	_, err = ParseOracle([]byte(oracleYAML(101)))
	require.ErrorIs(t, err, ErrInvalidDeck)
	assert.Contains(t, err.Error(), "100")

	deck, err := ParseOracle([]byte(oracleYAML(100)))
	require.NoError(t, err)
	assert.Equal(t, "100", deck.CardBack().Numeral)
}

func TestLoadOracleMissingFields(t *testing.T) {
	_, err := ParseOracle([]byte("cards:\n  - name: Nameless description\n"))
	assert.ErrorIs(t, err, ErrInvalidDeck)
}

const tarotYAML = `deck_name: Small Tarot
major_arcana:
  - name: The Fool
    description: a traveller at a cliff edge
    key_symbols: [white rose, small dog]
  - name: The Magician
    numeral: "01"
    description: a figure at an altar
    key_symbols: [wand]
minor_arcana:
  coins:
    pips:
      "10":
        description: a family under an arch
      "1":
        description: a hand holding a coin
    court:
      King:
        description: a king on a throne of bulls
      Page:
        description: a youth studying a coin
  wands:
    pips:
      "2":
        description: a figure holding a globe
`

func TestParseTarot(t *testing.T) {
	deck, err := ParseTarot([]byte(tarotYAML))
	require.NoError(t, err)
	assert.Equal(t, "Small Tarot", deck.Name)

	var got []string
	for _, c := range deck.Cards {
		got = append(got, c.Numeral+" "+c.Name)
	}
	assert.Equal(t, []string{
		"00 The Fool",
		"01 The Magician",
		"22 2 of Wands",
		"64 Ace of Pentacles",
		"65 10 of Pentacles",
		"66 Page of Pentacles",
		"67 King of Pentacles",
	}, got)
	assert.Equal(t, "Pentacles", deck.Cards[3].Suit)
	assert.Equal(t, []string{"white rose", "small dog"}, deck.Cards[0].KeySymbols)
}

func TestParseTarotErrors(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		contains string
	}{
		{"Unknown suit", "minor_arcana:\n  stars:\n    pips:\n      \"1\":\n        description: x\n", "unknown suit"},
		{"Bad pip", "minor_arcana:\n  cups:\n    pips:\n      \"11\":\n        description: x\n", ""},
		{"Unknown rank", "minor_arcana:\n  cups:\n    court:\n      Jack:\n        description: x\n", ""},
		{"Duplicate numeral", "major_arcana:\n  - name: A\n    numeral: \"00\"\n    description: a\n  - name: B\n    numeral: \"00\"\n    description: b\n", "numeral 00"},
		{"Empty", "deck_name: Nothing\n", "at least 1"},
		{"Empty suits", "deck_name: Nothing\nmajor_arcana: []\nminor_arcana: {}\n", "at least 1"},
		{"Not YAML", "major_arcana: [\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTarot([]byte(tt.yaml))
			require.ErrorIs(t, err, ErrInvalidDeck)
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

// fullSuitYAML writes every pip and court card of the named suits.
func fullSuitYAML(suits ...string) string {
	var b strings.Builder
	b.WriteString("deck_name: Partial\nminor_arcana:\n")
	for _, suit := range suits {
		fmt.Fprintf(&b, "  %s:\n    pips:\n", suit)
		for n := 1; n <= 10; n++ {
			fmt.Fprintf(&b, "      \"%d\":\n        description: %s %d\n", n, suit, n)
		}
		b.WriteString("    court:\n")
		for _, rank := range []string{"Page", "Knight", "Queen", "King"} {
			fmt.Fprintf(&b, "      %s:\n        description: %s %s\n", rank, suit, rank)
		}
	}
	return b.String()
}

func TestParseTarotCardBackCollision(t *testing.T) {
	_, err := ParseTarot([]byte(fullSuitYAML("wands", "cups")))
	require.ErrorIs(t, err, ErrInvalidDeck)
	assert.Contains(t, err.Error(), "card back numeral 28")
	assert.Contains(t, err.Error(), "7 of Wands")

	// Cups alone end at 49 with 14 cards, so the back (14) is free.
	deck, err := ParseTarot([]byte(fullSuitYAML("cups")))
	require.NoError(t, err)
	assert.Equal(t, "14", deck.CardBack().Numeral)

	// Every suit without majors still leaves 56 free.
	deck, err = ParseTarot([]byte(fullSuitYAML("wands", "cups", "swords", "pentacles")))
	require.NoError(t, err)
	require.Len(t, deck.Cards, 56)
	assert.Equal(t, "56", deck.CardBack().Numeral)
}

func TestValidateDefaultDeck(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestLoadFileDetectsKind(t *testing.T) {
	oracle := writeFile(t, "oracle.yaml", oracleYAML(3))
	deck, err := LoadFile(oracle)
	require.NoError(t, err)
	assert.Equal(t, KindOracle, deck.Kind)

	tarot := writeFile(t, "tarot.yaml", tarotYAML)
	deck, err = LoadFile(tarot)
	require.NoError(t, err)
	assert.Equal(t, KindTarot, deck.Kind)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrInvalidDeck)
}

func TestExportRoundTrip(t *testing.T) {
	t.Run("Default tarot", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Export(&buf, Default()))

		deck, err := ParseTarot(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, Default().Cards, deck.Cards)
	})

	t.Run("Oracle", func(t *testing.T) {
		orig, err := ParseOracle([]byte(oracleYAML(4)))
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, Export(&buf, orig))

		deck, err := ParseOracle(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, orig.Cards, deck.Cards)
		assert.Equal(t, orig.Name, deck.Name)
	})
}
