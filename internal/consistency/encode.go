package consistency

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// ErrUnreadableImage marks a reference or source image that could not be decoded.
// It is a resource error: retrying will not help.
var ErrUnreadableImage = errors.New("unreadable image")

// pngEncoder is shared so every reference is written with identical settings.
var pngEncoder = png.Encoder{CompressionLevel: png.DefaultCompression}

// ResizeToAspect decodes raw, applies the crop window for seed and diversity
// and resizes the result to exactly width x height. The returned bytes are PNG.
func ResizeToAspect(raw []byte, width, height int, seed *int64, d Diversity) ([]byte, CropWindow, error) {
	if width <= 0 || height <= 0 {
		return nil, CropWindow{}, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, CropWindow{}, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}

	bounds := src.Bounds()
	window := ComputeCrop(bounds.Dx(), bounds.Dy(), width, height, seed, d)
	cropped := imaging.Crop(src, window.Rect(bounds.Min))
	resized := imaging.Resize(cropped, width, height, imaging.Lanczos)

	out, err := encodePNG(resized)
	if err != nil {
		return nil, window, err
	}
	return out, window, nil
}

// EncodeReference prepares a reference image for inline transmission. It is
// meant to be called once per card: cards sharing a reference get different
// bytes whenever their seeds select different windows.
func EncodeReference(raw []byte, width, height int, seed *int64, d Diversity) (string, error) {
	out, _, err := ResizeToAspect(raw, width, height, seed, d)
	if err != nil {
		return "", err
	}
	return DataURI("image/png", out), nil
}

// DataURI wraps data as a base64 data URI.
func DataURI(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := pngEncoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
