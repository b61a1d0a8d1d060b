package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go-tarot-gen/internal/cards"
	"go-tarot-gen/internal/models"
)

var referenceExts = []string{".png", ".jpg", ".jpeg"}

// ReferenceSet maps reference group keys to raw image bytes. It is read-only
// once loaded and safe for concurrent use.
type ReferenceSet struct {
	Source string
	images map[string][]byte
}

// NewReferenceSet builds a set from in-memory images keyed by group.
func NewReferenceSet(source string, images map[string][]byte) *ReferenceSet {
	set := &ReferenceSet{Source: source, images: make(map[string][]byte, len(images))}
	for k, v := range images {
		set.images[k] = v
	}
	return set
}

// LoadReferenceFile uses one image for every card.
func LoadReferenceFile(path string) (*ReferenceSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading reference image: %v", ErrConfig, err)
	}
	log.Infof("Loaded universal reference %s", path)
	return NewReferenceSet(path, map[string][]byte{cards.GroupUniversal: data}), nil
}

// LoadReferenceDir scans dir for {group}.{png,jpg,jpeg} and default.* files.
func LoadReferenceDir(ctx context.Context, dir string) (*ReferenceSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading reference directory: %v", ErrConfig, err)
	}

	known := map[string]string{"default": cards.GroupUniversal}
	for _, g := range cards.KnownGroups {
		known[g] = g
	}

	found := map[string]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !isReferenceExt(ext) {
			continue
		}
		stem := strings.ToLower(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		group, ok := known[stem]
		if !ok {
			log.Debugf("Ignoring %s in reference directory", e.Name())
			continue
		}
		if prev, dup := found[group]; dup {
			log.Warnf("Reference group %q has both %s and %s, using %s", stem, prev, e.Name(), prev)
			continue
		}
		found[group] = e.Name()
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: no reference images (%s.png, default.png, ...) found in %s", ErrConfig, strings.Join(cards.KnownGroups, ".png, "), dir)
	}

	images := make(map[string][]byte, len(found))
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	for group, name := range found {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return fmt.Errorf("%w: reading reference %s: %v", ErrConfig, name, err)
			}
			mu.Lock()
			images[group] = data
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	set := NewReferenceSet(dir, images)
	log.Infof("Loaded %d reference images from %s: %s", len(images), dir, strings.Join(set.Groups(), ", "))
	return set, nil
}

func isReferenceExt(ext string) bool {
	for _, e := range referenceExts {
		if e == ext {
			return true
		}
	}
	return false
}

// Resolve returns the reference for a card's group, falling back to the
// universal image. The group key that matched is returned with the bytes.
func (r *ReferenceSet) Resolve(c models.Card) ([]byte, string, bool) {
	if r == nil {
		return nil, "", false
	}
	group := cards.Group(c)
	if data, ok := r.images[group]; ok {
		return data, group, true
	}
	if data, ok := r.images[cards.GroupUniversal]; ok {
		return data, cards.GroupUniversal, true
	}
	return nil, "", false
}

// Len reports how many group images are loaded.
func (r *ReferenceSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.images)
}

// Groups returns the loaded group keys, sorted.
func (r *ReferenceSet) Groups() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.images))
	for k := range r.images {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
