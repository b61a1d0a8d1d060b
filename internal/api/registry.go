package api

import (
	"fmt"
	"strings"
)

// Model describes a resolved Replicate model.
type Model struct {
	Alias string // registry alias, empty for raw ids
	ID    string // owner/name or owner/name:version
}

// registry of model aliases accepted by --model.
var registry = map[string]string{
	"flux-schnell": "black-forest-labs/flux-schnell",
	"sdxl":         "stability-ai/sdxl:39ed52f2a78e934b3ba6e2a89f5b1c712de7dfea535525255b1aa35c5565e08b",
}

// Aliases returns the registered aliases in a fixed order.
func Aliases() []string {
	return []string{"flux-schnell", "sdxl"}
}

// ResolveModel maps an alias to its model id. Unknown names pass through as raw ids.
func ResolveModel(name string) Model {
	name = strings.TrimSpace(name)
	if id, ok := registry[strings.ToLower(name)]; ok {
		return Model{Alias: strings.ToLower(name), ID: id}
	}
	return Model{ID: name}
}

// IsFlux reports whether the model belongs to the flux family.
func (m Model) IsFlux() bool {
	return strings.Contains(strings.ToLower(m.ID), "flux")
}

// SupportsImg2Img reports whether the model accepts a reference image.
func (m Model) SupportsImg2Img() bool {
	return !m.IsFlux()
}

// Version returns the pinned version hash, if the id carries one.
func (m Model) Version() string {
	if _, version, ok := strings.Cut(m.ID, ":"); ok {
		return version
	}
	return ""
}

// Name returns owner/name without the version.
func (m Model) Name() string {
	name, _, _ := strings.Cut(m.ID, ":")
	return name
}

func (m Model) String() string {
	if m.Alias != "" {
		return fmt.Sprintf("%s (%s)", m.Alias, m.ID)
	}
	return m.ID
}

// DefaultAspectRatio is used when no aspect ratio is configured.
const DefaultAspectRatio = "2:3"

// SDXLDimensions maps aspect ratios to the pixel sizes SDXL was trained on.
var SDXLDimensions = map[string][2]int{
	"1:1":  {1024, 1024},
	"16:9": {1344, 768},
	"9:16": {768, 1344},
	"2:3":  {768, 1152},
	"3:2":  {1152, 768},
	"4:5":  {896, 1120},
	"5:4":  {1120, 896},
	"21:9": {1536, 640},
	"9:21": {640, 1536},
}

// Dimensions returns width and height for an aspect ratio, falling back to 2:3.
func Dimensions(aspect string) (int, int) {
	if wh, ok := SDXLDimensions[strings.TrimSpace(aspect)]; ok {
		return wh[0], wh[1]
	}
	wh := SDXLDimensions[DefaultAspectRatio]
	return wh[0], wh[1]
}
