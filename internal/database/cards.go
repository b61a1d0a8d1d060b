package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"go-tarot-gen/internal/models"
)

const cardKeyPrefix = "card:"

// CardKey builds the store key for a card in an output directory.
// The same numeral in different decks never collides.
func CardKey(outputDir, numeral string) []byte {
	return []byte(cardKeyPrefix + absDir(outputDir) + "#" + numeral)
}

func absDir(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

// CardStore persists per-card generation state for one output directory.
type CardStore struct {
	DB        *DB
	OutputDir string
}

// NewCardStore scopes db to outputDir.
func NewCardStore(db *DB, outputDir string) *CardStore {
	return &CardStore{DB: db, OutputDir: absDir(outputDir)}
}

// Lookup returns the stored record for a numeral, or ErrNotFound.
func (s *CardStore) Lookup(numeral string) (models.CardRecord, error) {
	var rec models.CardRecord
	raw, err := s.DB.Get(CardKey(s.OutputDir, numeral))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("error unmarshalling record for card %s: %w", numeral, err)
	}
	return rec, nil
}

// Save writes rec, stamping the output dir and update time.
func (s *CardStore) Save(rec models.CardRecord) error {
	rec.OutputDir = s.OutputDir
	rec.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("error marshalling record for card %s: %w", rec.Numeral, err)
	}
	return s.DB.Put(CardKey(s.OutputDir, rec.Numeral), data)
}

// Update loads the record for numeral (or starts a new one), applies fn and saves it.
func (s *CardStore) Update(numeral string, fn func(*models.CardRecord)) error {
	rec, err := s.Lookup(numeral)
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.WithError(err).Warnf("Discarding unreadable record for card %s", numeral)
	}
	rec.Numeral = numeral
	fn(&rec)
	return s.Save(rec)
}

// List returns this directory's records sorted by numeral.
func (s *CardStore) List() ([]models.CardRecord, error) {
	return listRecords(s.DB, []byte(cardKeyPrefix+s.OutputDir+"#"))
}

// Reset removes every record of this directory and returns how many were deleted.
func (s *CardStore) Reset() (int, error) {
	recs, err := s.List()
	if err != nil {
		return 0, err
	}
	for _, rec := range recs {
		if err := s.DB.Delete(CardKey(s.OutputDir, rec.Numeral)); err != nil && !errors.Is(err, ErrNotFound) {
			return 0, err
		}
	}
	return len(recs), nil
}

// AllCards returns every card record in the store, across output directories.
func AllCards(db *DB) ([]models.CardRecord, error) {
	return listRecords(db, []byte(cardKeyPrefix))
}

func listRecords(db *DB, prefix []byte) ([]models.CardRecord, error) {
	var out []models.CardRecord
	err := db.Scan(prefix, func(key, value []byte) error {
		var rec models.CardRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			log.WithError(err).Warnf("Skipping unreadable record %s", string(key))
			return nil
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OutputDir != out[j].OutputDir {
			return out[i].OutputDir < out[j].OutputDir
		}
		return numeralLess(out[i].Numeral, out[j].Numeral)
	})
	return out, nil
}

// numeralLess orders "9" before "10" and "99" before "100".
func numeralLess(a, b string) bool {
	a, b = strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
