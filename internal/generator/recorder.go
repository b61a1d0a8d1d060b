package generator

import (
	log "github.com/sirupsen/logrus"

	"go-tarot-gen/internal/database"
	"go-tarot-gen/internal/models"
)

// StoreRecorder persists state transitions to a CardStore.
type StoreRecorder struct {
	Store       *database.CardStore
	RunID       string
	Fingerprint string
}

// RecordState implements StateRecorder. Store errors are logged, never fatal.
func (r *StoreRecorder) RecordState(ev StateEvent) {
	t := ev.Task
	if t.Skip {
		// Kept from an earlier run; its record already describes the file.
		return
	}
	err := r.Store.Update(t.Card.Numeral, func(rec *models.CardRecord) {
		rec.RunID = r.RunID
		rec.Name = t.Card.Name
		rec.Arcana = t.Card.Arcana
		rec.Filename = t.Card.Filename()
		rec.Seed = t.Seed
		rec.PromptHash = t.PromptHash
		rec.RunFingerprint = r.Fingerprint
		rec.ReferenceMode = string(t.Mode)
		rec.Keywords = t.Card.KeySymbols
		rec.Meaning = t.Card.Meaning
		rec.Prompt = t.Prompt
		rec.State = ev.State
		rec.ErrorDetails = ""
		if ev.Err != nil {
			rec.ErrorDetails = ev.Err.Error()
		}
		switch ev.State {
		case models.StatePending:
			rec.OutputURL, rec.FileHash = "", ""
		case models.StateCompleted:
			rec.OutputURL, rec.FileHash = ev.OutputURL, ev.FileHash
		}
	})
	if err != nil {
		log.WithError(err).Warnf("Failed to record state %s for card %s", ev.State, t.Card)
	}
}
