package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/hexley/adforge/internal/models"
)

const (
	watermarkMargin = 24 // px from the canvas edge

	// Logo box limits relative to the canvas
	logoMaxWidthFrac  = 0.15
	logoMaxHeightFrac = 0.08

	captionHeightFrac = 0.85 // caption baseline sits at 85% of canvas height
)

// Renderer draws brand overlays: watermarks on generated images, the
// per-scene caption/logo overlay, and the closing end card. It holds the
// parsed brand font; faces are created per call because truetype faces are
// not safe for concurrent use.
type Renderer struct {
	font *truetype.Font
}

// NewRenderer loads the brand font from fontPath. An empty path leaves the
// renderer on a built-in bitmap face, which keeps rendering deterministic
// in environments without font assets.
func NewRenderer(fontPath string) (*Renderer, error) {
	r := &Renderer{}
	if fontPath == "" {
		return r, nil
	}

	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	r.font = parsedFont
	return r, nil
}

func (r *Renderer) face(size float64) font.Face {
	if r.font == nil {
		return basicfont.Face7x13
	}
	return truetype.NewFace(r.font, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Watermark draws text in semi-transparent white in the bottom-left corner
// of img and returns the result. Empty text returns img unchanged. Output
// dimensions always match the input.
func (r *Renderer) Watermark(img image.Image, text string) image.Image {
	if text == "" {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	dc := gg.NewContext(w, h)
	dc.DrawImage(img, 0, 0)

	dc.SetFontFace(r.face(watermarkFontSize(h)))
	dc.SetColor(color.NRGBA{R: 255, G: 255, B: 255, A: 140})
	dc.DrawString(text, watermarkMargin, float64(h)-watermarkMargin)

	return dc.Image()
}

// watermarkFontSize scales the watermark with the image height.
func watermarkFontSize(height int) float64 {
	return 0.035 * float64(height)
}

// SceneOverlay renders the transparent overlay composited onto one scene's
// clip: brand logo top-right, watermark bottom-left, and the scene caption
// centered near the bottom. The overlay is sized to the output canvas.
func (r *Renderer) SceneOverlay(caption string, branding models.BrandingConfig) image.Image {
	w, h := branding.AspectRatio.CanvasSize()
	dc := gg.NewContext(w, h)

	if branding.Logo != nil {
		logo := scaleToFit(branding.Logo,
			int(float64(w)*logoMaxWidthFrac), int(float64(h)*logoMaxHeightFrac))
		dc.DrawImage(logo, w-logo.Bounds().Dx()-watermarkMargin, watermarkMargin)
	}

	if branding.WatermarkText != "" {
		dc.SetFontFace(r.face(watermarkFontSize(h)))
		dc.SetColor(color.NRGBA{R: 255, G: 255, B: 255, A: 140})
		dc.DrawString(branding.WatermarkText, watermarkMargin, float64(h)-watermarkMargin)
	}

	if caption != "" {
		dc.SetFontFace(r.face(0.05 * float64(h)))
		tw, _ := dc.MeasureString(caption)
		cx := (float64(w) - tw) / 2
		cy := captionHeightFrac * float64(h)

		// Dark stroke behind the caption keeps it readable on bright clips.
		dc.SetColor(color.NRGBA{A: 200})
		for _, off := range [][2]float64{{-2, 0}, {2, 0}, {0, -2}, {0, 2}, {-2, -2}, {-2, 2}, {2, -2}, {2, 2}} {
			dc.DrawString(caption, cx+off[0], cy+off[1])
		}
		dc.SetColor(color.White)
		dc.DrawString(caption, cx, cy)
	}

	return dc.Image()
}

// EndCard renders the closing frame: the brand logo centered on a dark
// background, at most half the canvas in either dimension.
func (r *Renderer) EndCard(branding models.BrandingConfig) image.Image {
	w, h := branding.AspectRatio.CanvasSize()
	dc := gg.NewContext(w, h)

	dc.SetColor(color.NRGBA{R: 18, G: 18, B: 22, A: 255})
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Fill()

	if branding.Logo != nil {
		logo := scaleToFit(branding.Logo, w/2, h/2)
		dc.DrawImage(logo, (w-logo.Bounds().Dx())/2, (h-logo.Bounds().Dy())/2)
	}

	return dc.Image()
}

// WatermarkPNG watermarks an encoded image and returns it re-encoded as
// PNG. Empty text returns the input bytes untouched.
func (r *Renderer) WatermarkPNG(data []byte, text string) ([]byte, error) {
	if text == "" {
		return data, nil
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return EncodePNG(r.Watermark(img, text))
}

// EncodePNG encodes an image for upload or for handing to the encoder.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	dc := gg.NewContextForImage(img)
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImage decodes PNG or JPEG bytes.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// FitWithin shrinks (w, h) proportionally so both sides fit inside
// (maxW, maxH). Images already inside the box keep their size.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scaleW := float64(maxW) / float64(w)
	scaleH := float64(maxH) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	outW := int(float64(w) * scale)
	outH := int(float64(h) * scale)
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}
	return outW, outH
}

func scaleToFit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), maxW, maxH)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
