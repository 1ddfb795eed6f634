package imaging

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

// Preset names a target size class for re-encoding.
type Preset string

const (
	PresetGeneral   Preset = "general"
	PresetThumbnail Preset = "thumbnail"
	PresetHero      Preset = "hero"
	PresetAvatar    Preset = "avatar"
)

// presetBounds caps the longer side of the image; 0 keeps the original.
var presetBounds = map[Preset]int{
	PresetGeneral:   1600,
	PresetThumbnail: 400,
	PresetHero:      1920,
	PresetAvatar:    256,
}

// ProcessFile re-encodes the image at path to the preset's size class,
// overwriting it in place. Unknown formats and oversized decode failures
// return an error; callers treat that as a soft failure and keep the
// original file.
func ProcessFile(path string, preset Preset) error {
	bound, ok := presetBounds[preset]
	if !ok {
		return fmt.Errorf("unknown image preset %q", preset)
	}
	return resizeFile(path, bound, bound)
}

// ProcessFileTo resizes to explicit bounds. Zero values fall back to the
// general preset bound.
func ProcessFileTo(path string, maxWidth, maxHeight int) error {
	if maxWidth <= 0 {
		maxWidth = presetBounds[PresetGeneral]
	}
	if maxHeight <= 0 {
		maxHeight = presetBounds[PresetGeneral]
	}
	return resizeFile(path, maxWidth, maxHeight)
}

func resizeFile(path string, maxWidth, maxHeight int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	src, format, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxWidth && h <= maxHeight {
		return nil
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	dstW := int(float64(w) * scale)
	dstH := int(float64(h) * scale)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp image: %w", err)
	}

	switch {
	case format == "png" || strings.EqualFold(filepath.Ext(path), ".png"):
		err = png.Encode(out, dst)
	default:
		err = jpeg.Encode(out, dst, &jpeg.Options{Quality: 85})
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("encode image: %w", err)
	}
	return os.Rename(tmp, path)
}
