package models

import (
	"fmt"
	"strings"

	"go-tarot-gen/internal/helpers"
)

// Slug returns the filesystem-friendly form of the card name.
func (c Card) Slug() string {
	return helpers.ConvertToSlug(strings.ReplaceAll(c.Name, "'", ""))
}

// Filename is the output image name, ordered by numeral.
func (c Card) Filename() string {
	return fmt.Sprintf("%s_%s.png", c.Numeral, c.Slug())
}

// String implements fmt.Stringer for log output.
func (c Card) String() string {
	return fmt.Sprintf("%s %s", c.Numeral, c.Name)
}
