// Package consistency holds the pieces that keep a generated deck visually
// coherent: per-card seeds, sliding crop windows over shared reference
// images, reference encoding and the card-back symmetry transform.
package consistency

// DeriveSeed returns the seed for the card at position index. Identical
// inputs always give identical seeds, which is what makes a deck reproducible
// from its base seed.
func DeriveSeed(base, index int64) int64 {
	return base + index
}
