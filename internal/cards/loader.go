package cards

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"go-tarot-gen/internal/models"
)

type (
	// cardEntry is one card in a tarot card file.
	cardEntry struct {
		Name        string   `yaml:"name,omitempty"`
		Numeral     string   `yaml:"numeral,omitempty"`
		Description string   `yaml:"description"`
		KeySymbols  []string `yaml:"key_symbols"`
		Composition string   `yaml:"composition,omitempty"`
	}

	suitEntry struct {
		Pips  map[string]cardEntry `yaml:"pips"`
		Court map[string]cardEntry `yaml:"court"`
	}

	tarotFile struct {
		DeckName    string               `yaml:"deck_name,omitempty"`
		MajorArcana []cardEntry          `yaml:"major_arcana"`
		MinorArcana map[string]suitEntry `yaml:"minor_arcana"`
	}

	oracleEntry struct {
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Keywords    []string `yaml:"keywords"`
		Meaning     string   `yaml:"meaning,omitempty"`
		Composition string   `yaml:"composition,omitempty"`
	}

	oracleFile struct {
		DeckName string        `yaml:"deck_name"`
		Cards    []oracleEntry `yaml:"cards"`
	}
)

// suitStart maps a suit key in a card file to its display name and first numeral.
var suitStart = map[string]struct {
	title string
	start int
}{
	"wands":     {"Wands", 22},
	"cups":      {"Cups", 36},
	"swords":    {"Swords", 50},
	"pentacles": {"Pentacles", 64},
	"coins":     {"Pentacles", 64},
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFile reads a card file, detecting whether it describes an oracle deck
// (top-level "cards" list) or a tarot deck.
func LoadFile(path string) (*Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading card file %s: %v", ErrInvalidDeck, path, err)
	}
	var probe map[string]yaml.Node
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: parsing card file %s: %v", ErrInvalidDeck, path, err)
	}
	if _, ok := probe["cards"]; ok {
		return ParseOracle(data)
	}
	return ParseTarot(data)
}

// LoadOracleFile reads an oracle deck definition.
func LoadOracleFile(path string) (*Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading oracle file %s: %v", ErrInvalidDeck, path, err)
	}
	return ParseOracle(data)
}

// LoadTarotFile reads a tarot deck definition.
func LoadTarotFile(path string) (*Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading tarot file %s: %v", ErrInvalidDeck, path, err)
	}
	return ParseTarot(data)
}

// ParseOracle builds an oracle deck. Numerals follow list position.
func ParseOracle(data []byte) (*Deck, error) {
	var f oracleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing oracle deck: %v", ErrInvalidDeck, err)
	}
	if len(f.Cards) == 0 {
		return nil, fmt.Errorf("%w: oracle deck must contain at least 1 card", ErrInvalidDeck)
	}
	if len(f.Cards) > MaxOracleCards {
		return nil, fmt.Errorf("%w: oracle deck has %d cards, the maximum is %d", ErrInvalidDeck, len(f.Cards), MaxOracleCards)
	}

	deck := &Deck{Name: f.DeckName, Kind: KindOracle}
	if deck.Name == "" {
		deck.Name = "Oracle"
	}
	for i, e := range f.Cards {
		deck.Cards = append(deck.Cards, models.Card{
			Name:        strings.TrimSpace(e.Name),
			Numeral:     fmt.Sprintf("%02d", i),
			Arcana:      models.ArcanaOracle,
			Description: strings.TrimSpace(e.Description),
			KeySymbols:  e.Keywords,
			Composition: e.Composition,
			Meaning:     e.Meaning,
		})
	}
	if err := Validate(deck); err != nil {
		return nil, err
	}
	log.Debugf("Loaded oracle deck %q with %d cards", deck.Name, len(deck.Cards))
	return deck, nil
}

// ParseTarot builds a tarot deck. Minor arcana numerals continue from each
// suit's fixed start index. Pips are ordered by number and court cards by rank.
func ParseTarot(data []byte) (*Deck, error) {
	var f tarotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing tarot deck: %v", ErrInvalidDeck, err)
	}

	deck := &Deck{Name: f.DeckName, Kind: KindTarot}
	if deck.Name == "" {
		deck.Name = "Custom Tarot"
	}
	for i, e := range f.MajorArcana {
		numeral := e.Numeral
		if numeral == "" {
			numeral = fmt.Sprintf("%02d", i)
		}
		deck.Cards = append(deck.Cards, models.Card{
			Name:        strings.TrimSpace(e.Name),
			Numeral:     numeral,
			Arcana:      models.ArcanaMajor,
			Description: strings.TrimSpace(e.Description),
			KeySymbols:  e.KeySymbols,
			Composition: e.Composition,
		})
	}

	suitKeys := make([]string, 0, len(f.MinorArcana))
	for key := range f.MinorArcana {
		if _, ok := suitStart[strings.ToLower(key)]; !ok {
			return nil, fmt.Errorf("%w: unknown suit %q", ErrInvalidDeck, key)
		}
		suitKeys = append(suitKeys, key)
	}
	sort.Slice(suitKeys, func(i, j int) bool {
		return suitStart[strings.ToLower(suitKeys[i])].start < suitStart[strings.ToLower(suitKeys[j])].start
	})

	for _, key := range suitKeys {
		suitCards, err := parseSuit(key, f.MinorArcana[key])
		if err != nil {
			return nil, err
		}
		deck.Cards = append(deck.Cards, suitCards...)
	}

	if len(deck.Cards) == 0 {
		return nil, fmt.Errorf("%w: tarot deck must contain at least 1 card", ErrInvalidDeck)
	}
	if err := Validate(deck); err != nil {
		return nil, err
	}
	log.Debugf("Loaded tarot deck %q with %d cards", deck.Name, len(deck.Cards))
	return deck, nil
}

func parseSuit(key string, s suitEntry) ([]models.Card, error) {
	info := suitStart[strings.ToLower(key)]

	nums := make([]int, 0, len(s.Pips))
	for k := range s.Pips {
		n, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || n < 1 || n > 10 {
			return nil, fmt.Errorf("%w: suit %s has invalid pip %q (want 1-10)", ErrInvalidDeck, key, k)
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var cards []models.Card
	next := func() string { return fmt.Sprintf("%02d", info.start+len(cards)) }

	for _, n := range nums {
		e := s.Pips[pipKey(s.Pips, n)]
		cards = append(cards, models.Card{
			Name:        pipName(n, info.title),
			Numeral:     next(),
			Arcana:      models.ArcanaMinor,
			Suit:        info.title,
			Description: strings.TrimSpace(e.Description),
			KeySymbols:  e.KeySymbols,
			Composition: e.Composition,
		})
	}

	for rank := range s.Court {
		if !isCourtRank(rank) {
			return nil, fmt.Errorf("%w: suit %s has unknown court rank %q", ErrInvalidDeck, key, rank)
		}
	}
	for _, rank := range courtRanks {
		e, ok := s.Court[rank]
		if !ok {
			continue
		}
		cards = append(cards, models.Card{
			Name:        rank + " of " + info.title,
			Numeral:     next(),
			Arcana:      models.ArcanaMinor,
			Suit:        info.title,
			Description: strings.TrimSpace(e.Description),
			KeySymbols:  e.KeySymbols,
			Composition: e.Composition,
		})
	}
	return cards, nil
}

// pipKey finds the map key for pip n, tolerating whitespace in the file.
func pipKey(pips map[string]cardEntry, n int) string {
	want := strconv.Itoa(n)
	for k := range pips {
		if strings.TrimSpace(k) == want {
			return k
		}
	}
	return want
}

func isCourtRank(rank string) bool {
	for _, r := range courtRanks {
		if r == rank {
			return true
		}
	}
	return false
}

// Validate checks every card's fields and that numerals are unique, the
// card back's included.
func Validate(d *Deck) error {
	seen := make(map[string]string, len(d.Cards))
	for i, c := range d.Cards {
		if err := validate.Struct(c); err != nil {
			return fmt.Errorf("%w: card %d (%q): %v", ErrInvalidDeck, i, c.Name, err)
		}
		if other, dup := seen[c.Numeral]; dup {
			return fmt.Errorf("%w: numeral %s used by both %q and %q", ErrInvalidDeck, c.Numeral, other, c.Name)
		}
		seen[c.Numeral] = c.Name
	}
	// Records and filenames are keyed by numeral, so the card back needs its own.
	if back := d.CardBack(); seen[back.Numeral] != "" {
		return fmt.Errorf("%w: card back numeral %s collides with %q", ErrInvalidDeck, back.Numeral, seen[back.Numeral])
	}
	return nil
}

// Export writes the deck in card-file format so it can be edited and loaded back.
func Export(w io.Writer, d *Deck) error {
	var doc any
	if d.Kind == KindOracle {
		f := oracleFile{DeckName: d.Name}
		for _, c := range d.Cards {
			f.Cards = append(f.Cards, oracleEntry{
				Name:        c.Name,
				Description: c.Description,
				Keywords:    c.KeySymbols,
				Meaning:     c.Meaning,
				Composition: c.Composition,
			})
		}
		doc = f
	} else {
		f := tarotFile{DeckName: d.Name, MinorArcana: map[string]suitEntry{}}
		for _, c := range d.Cards {
			entry := cardEntry{Description: c.Description, KeySymbols: c.KeySymbols, Composition: c.Composition}
			if c.Arcana == models.ArcanaMajor {
				entry.Name, entry.Numeral = c.Name, c.Numeral
				f.MajorArcana = append(f.MajorArcana, entry)
				continue
			}
			key := strings.ToLower(c.Suit)
			suit := f.MinorArcana[key]
			if suit.Pips == nil {
				suit = suitEntry{Pips: map[string]cardEntry{}, Court: map[string]cardEntry{}}
			}
			rank, _, _ := strings.Cut(c.Name, " of ")
			switch {
			case rank == "Ace":
				suit.Pips["1"] = entry
			case isCourtRank(rank):
				suit.Court[rank] = entry
			default:
				suit.Pips[rank] = entry
			}
			f.MinorArcana[key] = suit
		}
		doc = f
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding deck: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding deck: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
