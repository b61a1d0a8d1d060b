package index

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"

	"go-tarot-gen/internal/models"
)

const defaultIndexPath = "tarot.bleve"

// Item is one generated card in the search index. Fields are searchable by
// their JSON tag names (e.g. '+arcana:major' or '+keywords:moon').
type Item struct {
	ID          string    `json:"id"`                    // <output dir>#<numeral>
	Type        string    `json:"type"`                  // always "card"
	Deck        string    `json:"deck"`                  // output directory of the deck
	Numeral     string    `json:"numeral"`               // two-digit card numeral
	Name        string    `json:"name"`                  // card name
	Arcana      string    `json:"arcana"`                // major, minor, oracle or back
	Suit        string    `json:"suit,omitempty"`        // minor arcana only
	Description string    `json:"description,omitempty"` // card imagery description
	Keywords    []string  `json:"keywords,omitempty"`    // key symbols
	Meaning     string    `json:"meaning,omitempty"`
	Prompt      string    `json:"prompt,omitempty"` // full positive prompt sent to the model
	Seed        int64     `json:"seed"`
	FilePath    string    `json:"filePath"`
	FileHash    string    `json:"fileHash,omitempty"`
	Model       string    `json:"model,omitempty"`
	Style       string    `json:"style,omitempty"`
	RunID       string    `json:"runId,omitempty"`
	GeneratedAt time.Time `json:"generatedAt,omitempty"`
}

// NewCardItem builds the index entry for a generated card.
func NewCardItem(deckDir string, card models.Card, rec models.CardRecord) Item {
	return Item{
		ID:          deckDir + "#" + card.Numeral,
		Type:        "card",
		Deck:        deckDir,
		Numeral:     card.Numeral,
		Name:        card.Name,
		Arcana:      card.Arcana,
		Suit:        card.Suit,
		Description: card.Description,
		Keywords:    card.KeySymbols,
		Meaning:     card.Meaning,
		Prompt:      rec.Prompt,
		Seed:        rec.Seed,
		FilePath:    filepath.Join(deckDir, card.Filename()),
		FileHash:    rec.FileHash,
		RunID:       rec.RunID,
		GeneratedAt: rec.UpdatedAt,
	}
}

// OpenOrCreateIndex opens an existing Bleve index or creates a new one if it doesn't exist.
func OpenOrCreateIndex(indexPath string) (bleve.Index, error) {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}

	index, err := bleve.Open(indexPath)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		log.Infof("Creating new index at: %s", indexPath)
		index, err = bleve.New(indexPath, bleve.NewIndexMapping())
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		log.Debugf("Opened existing index at: %s", indexPath)
	}
	return index, nil
}

// IndexItem adds or updates an item in the Bleve index.
func IndexItem(index bleve.Index, item Item) error {
	return index.Index(item.ID, item)
}

// IndexItems adds items in one batch.
func IndexItems(index bleve.Index, items []Item) error {
	batch := index.NewBatch()
	for _, item := range items {
		if err := batch.Index(item.ID, item); err != nil {
			return err
		}
	}
	return index.Batch(batch)
}

// SearchIndex performs a query string search, returning up to size hits with all stored fields.
func SearchIndex(index bleve.Index, query string, size int) (*bleve.SearchResult, error) {
	req := bleve.NewSearchRequest(bleve.NewQueryStringQuery(query))
	req.Fields = []string{"*"}
	if size > 0 {
		req.Size = size
	}
	return index.Search(req)
}

// DeleteIndex removes the index directory.
func DeleteIndex(indexPath string) error {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}
	log.Warnf("Deleting index at: %s", indexPath)
	return os.RemoveAll(indexPath)
}
