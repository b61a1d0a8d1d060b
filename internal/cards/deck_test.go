package cards

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-tarot-gen/internal/models"
)

func TestDefaultDeck(t *testing.T) {
	deck := Default()
	require.Len(t, deck.Cards, 78)
	assert.Equal(t, KindTarot, deck.Kind)

	for i, c := range deck.Cards {
		assert.Equal(t, fmt.Sprintf("%02d", i), c.Numeral, "card %s", c.Name)
	}

	assert.Equal(t, "The Fool", deck.Cards[0].Name)
	assert.Equal(t, "The World", deck.Cards[21].Name)
	assert.Equal(t, "Ace of Wands", deck.Cards[22].Name)
	assert.Equal(t, "Ace of Cups", deck.Cards[36].Name)
	assert.Equal(t, "Ace of Swords", deck.Cards[50].Name)
	assert.Equal(t, "Ace of Pentacles", deck.Cards[64].Name)
	assert.Equal(t, "King of Pentacles", deck.Cards[77].Name)
	assert.Equal(t, "Pentacles", deck.Cards[77].Suit)

	require.NoError(t, Validate(deck))
}

func TestDefaultReturnsCopy(t *testing.T) {
	a := Default()
	a.Cards[0].KeySymbols[0] = "changed"
	b := Default()
	assert.NotEqual(t, "changed", b.Cards[0].KeySymbols[0])
}

func TestCardBack(t *testing.T) {
	back := Default().CardBack()
	assert.Equal(t, "78", back.Numeral)
	assert.Equal(t, models.ArcanaBack, back.Arcana)
	assert.Equal(t, "78_card_back.png", back.Filename())

	oracle := &Deck{Kind: KindOracle}
	for i := 0; i < 44; i++ {
		oracle.Cards = append(oracle.Cards, models.Card{Name: fmt.Sprintf("Card %d", i), Numeral: fmt.Sprintf("%02d", i)})
	}
	assert.Equal(t, "44", oracle.CardBack().Numeral)
	assert.Contains(t, oracle.CardBack().Description, "oracle")
}

func TestSelect(t *testing.T) {
	deck := Default()

	tests := []struct {
		subset string
		want   int
		first  string
	}{
		{"all", 78, "The Fool"},
		{"", 78, "The Fool"},
		{"major", 22, "The Fool"},
		{"MINOR", 56, "Ace of Wands"},
		{"sample", 17, "The Fool"},
	}
	for _, tt := range tests {
		t.Run(tt.subset, func(t *testing.T) {
			got, err := deck.Select(tt.subset)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			assert.Equal(t, tt.first, got[0].Name)
		})
	}

	_, err := deck.Select("court")
	assert.ErrorIs(t, err, ErrInvalidDeck)
}

func TestSampleContents(t *testing.T) {
	got, err := Default().Select(SubsetSample)
	require.NoError(t, err)

	var names []string
	for _, c := range got {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		"The Fool", "The Magician", "The High Priestess", "The Empress", "The Emperor",
		"Ace of Wands", "2 of Wands", "King of Wands",
		"Ace of Cups", "2 of Cups", "King of Cups",
		"Ace of Swords", "2 of Swords", "King of Swords",
		"Ace of Pentacles", "2 of Pentacles", "King of Pentacles",
	}, names)
}

func TestSelectOracle(t *testing.T) {
	deck := &Deck{Kind: KindOracle}
	for i := 0; i < 8; i++ {
		deck.Cards = append(deck.Cards, models.Card{Name: fmt.Sprintf("Card %d", i), Numeral: fmt.Sprintf("%02d", i), Arcana: models.ArcanaOracle})
	}

	sample, err := deck.Select(SubsetSample)
	require.NoError(t, err)
	assert.Len(t, sample, 5)

	_, err = deck.Select(SubsetMajor)
	assert.ErrorIs(t, err, ErrInvalidDeck)
}

func TestSelectDoesNotAlias(t *testing.T) {
	deck := Default()
	got, err := deck.Select(SubsetAll)
	require.NoError(t, err)
	got[0].Name = "Renamed"
	assert.Equal(t, "The Fool", deck.Cards[0].Name)
}

func TestGroup(t *testing.T) {
	tests := []struct {
		card models.Card
		want string
	}{
		{models.Card{Arcana: models.ArcanaMajor}, GroupMajor},
		{models.Card{Arcana: models.ArcanaMinor, Suit: "Wands"}, GroupWands},
		{models.Card{Arcana: models.ArcanaMinor, Suit: "Cups"}, GroupCups},
		{models.Card{Arcana: models.ArcanaMinor, Suit: "Swords"}, GroupSwords},
		{models.Card{Arcana: models.ArcanaMinor, Suit: "Pentacles"}, GroupPentacles},
		{models.Card{Arcana: models.ArcanaOracle}, GroupOracle},
		{models.Card{Arcana: models.ArcanaBack}, GroupUniversal},
		{models.Card{Arcana: "unknown"}, GroupUniversal},
	}
	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.card.Arcana, func(t *testing.T) {
			assert.Equal(t, tt.want, Group(tt.card))
		})
	}
}
