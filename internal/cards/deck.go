// Package cards defines the built-in tarot deck and loads custom tarot or
// oracle decks from YAML card files.
package cards

import (
	"errors"
	"fmt"
	"strings"

	"go-tarot-gen/internal/models"
)

// Deck kinds
const (
	KindTarot  = "tarot"
	KindOracle = "oracle"
)

// Subsets accepted by Deck.Select
const (
	SubsetAll    = "all"
	SubsetMajor  = "major"
	SubsetMinor  = "minor"
	SubsetSample = "sample"
)

// Reference group keys. A card maps to exactly one of these through groupByArcana.
const (
	GroupUniversal = "*"
	GroupMajor     = "major"
	GroupWands     = "wands"
	GroupCups      = "cups"
	GroupSwords    = "swords"
	GroupPentacles = "pentacles"
	GroupOracle    = "oracle"
)

// KnownGroups lists every named reference group in deck order.
var KnownGroups = []string{GroupMajor, GroupWands, GroupCups, GroupSwords, GroupPentacles, GroupOracle}

// Suits in deck order.
var Suits = []string{"Wands", "Cups", "Swords", "Pentacles"}

// ErrInvalidDeck is wrapped by every deck loading and selection failure.
var ErrInvalidDeck = errors.New("invalid deck")

// MaxOracleCards is the upper bound for user-defined oracle decks.
const MaxOracleCards = 100

// CardBackName is the display name of the synthetic card-back entry.
const CardBackName = "Card Back"

// groupByArcana routes a card to its reference group.
var groupByArcana = map[string]func(models.Card) string{
	models.ArcanaMajor:  func(models.Card) string { return GroupMajor },
	models.ArcanaMinor:  func(c models.Card) string { return strings.ToLower(c.Suit) },
	models.ArcanaOracle: func(models.Card) string { return GroupOracle },
	models.ArcanaBack:   func(models.Card) string { return GroupUniversal },
}

// Group returns the reference group key for a card. Unknown classifiers use
// the universal group.
func Group(c models.Card) string {
	if route, ok := groupByArcana[c.Arcana]; ok {
		return route(c)
	}
	return GroupUniversal
}

// Deck is an ordered list of real cards. The card back is derived, never stored.
type Deck struct {
	Name  string
	Kind  string
	Cards []models.Card
}

// CardBack returns the synthetic card-back entry. Its numeral is the number
// of real cards in the deck, so it always sorts last.
func (d *Deck) CardBack() models.Card {
	noun := "tarot"
	if d.Kind == KindOracle {
		noun = "oracle"
	}
	return models.Card{
		Name:        CardBackName,
		Numeral:     fmt.Sprintf("%02d", len(d.Cards)),
		Arcana:      models.ArcanaBack,
		Description: "the reverse side of a " + noun + " card, an intricate ornamental pattern radiating from a central medallion",
		KeySymbols:  []string{"central medallion", "interlaced ornament", "celestial motifs", "mirrored flourishes"},
		Composition: "perfectly symmetrical design centered on the card",
	}
}

// Select returns the cards of the requested subset in deck order.
func (d *Deck) Select(subset string) ([]models.Card, error) {
	var selected []models.Card
	switch strings.ToLower(subset) {
	case "", SubsetAll:
		selected = d.Cards
	case SubsetMajor:
		selected = d.filter(func(c models.Card) bool { return c.Arcana == models.ArcanaMajor })
	case SubsetMinor:
		selected = d.filter(func(c models.Card) bool { return c.Arcana == models.ArcanaMinor })
	case SubsetSample:
		selected = d.sample()
	default:
		return nil, fmt.Errorf("%w: unknown card subset %q (use all, major, minor or sample)", ErrInvalidDeck, subset)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: subset %q selects no cards from the %s deck", ErrInvalidDeck, subset, d.Kind)
	}
	return append([]models.Card(nil), selected...), nil
}

func (d *Deck) filter(keep func(models.Card) bool) []models.Card {
	var out []models.Card
	for _, c := range d.Cards {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// sample takes the first five major cards, then the first two pips and the
// King of every suit. Oracle decks sample their first five cards.
func (d *Deck) sample() []models.Card {
	if d.Kind == KindOracle {
		return d.Cards[:min(5, len(d.Cards))]
	}
	major := d.filter(func(c models.Card) bool { return c.Arcana == models.ArcanaMajor })
	out := append([]models.Card(nil), major[:min(5, len(major))]...)
	for _, suit := range Suits {
		var pips, kings []models.Card
		for _, c := range d.Cards {
			if c.Arcana != models.ArcanaMinor || c.Suit != suit {
				continue
			}
			if strings.HasPrefix(c.Name, "King ") {
				kings = append(kings, c)
			} else {
				pips = append(pips, c)
			}
		}
		out = append(out, pips[:min(2, len(pips))]...)
		out = append(out, kings...)
	}
	return out
}

// Default returns a fresh copy of the built-in 78-card tarot deck.
func Default() *Deck {
	out := make([]models.Card, 0, len(majorArcana)+len(minorSuits)*14)
	for _, c := range majorArcana {
		out = append(out, cloneCard(c))
	}
	for _, s := range minorSuits {
		out = append(out, buildSuit(s)...)
	}
	return &Deck{Name: "Rider-Waite-Smith", Kind: KindTarot, Cards: out}
}

// courtRanks in deck order.
var courtRanks = []string{"Page", "Knight", "Queen", "King"}

func buildSuit(s suitScenes) []models.Card {
	cards := make([]models.Card, 0, 14)
	for i, sc := range s.pips {
		cards = append(cards, models.Card{
			Name:        pipName(i+1, s.suit),
			Numeral:     fmt.Sprintf("%02d", s.start+len(cards)),
			Arcana:      models.ArcanaMinor,
			Suit:        s.suit,
			Description: sc.description,
			KeySymbols:  append([]string(nil), sc.symbols...),
		})
	}
	for i, sc := range s.court {
		cards = append(cards, models.Card{
			Name:        courtRanks[i] + " of " + s.suit,
			Numeral:     fmt.Sprintf("%02d", s.start+len(cards)),
			Arcana:      models.ArcanaMinor,
			Suit:        s.suit,
			Description: sc.description,
			KeySymbols:  append([]string(nil), sc.symbols...),
		})
	}
	return cards
}

func pipName(num int, suit string) string {
	if num == 1 {
		return "Ace of " + suit
	}
	return fmt.Sprintf("%d of %s", num, suit)
}

func cloneCard(c models.Card) models.Card {
	c.KeySymbols = append([]string(nil), c.KeySymbols...)
	return c
}
