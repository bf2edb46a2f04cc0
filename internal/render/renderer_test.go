package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/hexley/adforge/internal/models"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestWatermarkEmptyTextReturnsInputUnchanged(t *testing.T) {
	r, err := NewRenderer("")
	if err != nil {
		t.Fatal(err)
	}

	src := solidImage(100, 80, color.Black)
	out := r.Watermark(src, "")
	if out != src {
		t.Error("empty watermark text should return the input image")
	}
}

func TestWatermarkPreservesDimensions(t *testing.T) {
	r, err := NewRenderer("")
	if err != nil {
		t.Fatal(err)
	}

	src := solidImage(320, 480, color.Black)
	out := r.Watermark(src, "adforge.dev")

	if got := out.Bounds(); got.Dx() != 320 || got.Dy() != 480 {
		t.Errorf("expected 320x480, got %dx%d", got.Dx(), got.Dy())
	}

	// Some pixels in the bottom-left corner should have changed.
	changed := false
	for y := 480 - 60; y < 480 && !changed; y++ {
		for x := 0; x < 200 && !changed; x++ {
			if out.At(x, y) != src.At(x, y) {
				changed = true
			}
		}
	}
	if !changed {
		t.Error("watermark left the bottom-left corner untouched")
	}
}

func TestSceneOverlayMatchesCanvas(t *testing.T) {
	r, err := NewRenderer("")
	if err != nil {
		t.Fatal(err)
	}

	branding := models.BrandingConfig{
		Logo:          solidImage(400, 400, color.White),
		WatermarkText: "adforge.dev",
		AspectRatio:   models.AspectPortrait9x16,
	}
	out := r.SceneOverlay("Try it today", branding)

	if got := out.Bounds(); got.Dx() != 720 || got.Dy() != 1280 {
		t.Errorf("expected 720x1280 overlay, got %dx%d", got.Dx(), got.Dy())
	}
}

func TestEndCardCentersLogo(t *testing.T) {
	r, err := NewRenderer("")
	if err != nil {
		t.Fatal(err)
	}

	branding := models.BrandingConfig{
		Logo:        solidImage(200, 100, color.White),
		AspectRatio: models.AspectSquare1x1,
	}
	out := r.EndCard(branding)

	if got := out.Bounds(); got.Dx() != 1080 || got.Dy() != 1080 {
		t.Errorf("expected 1080x1080 end card, got %dx%d", got.Dx(), got.Dy())
	}

	// Center pixel should be the white logo, corners the dark background.
	cr, cg, cb, _ := out.At(540, 540).RGBA()
	if cr < 0xF000 || cg < 0xF000 || cb < 0xF000 {
		t.Errorf("expected white logo at center, got (%d, %d, %d)", cr, cg, cb)
	}
	er, _, _, _ := out.At(5, 5).RGBA()
	if er > 0x3000 {
		t.Errorf("expected dark background at corner, got red=%d", er)
	}
}

func TestFitWithin(t *testing.T) {
	cases := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{100, 50, 200, 200, 100, 50},   // already fits
		{400, 400, 108, 86, 86, 86},    // height is the binding side
		{1000, 100, 100, 100, 100, 10}, // width is the binding side
		{3, 3000, 100, 100, 1, 100},    // extreme ratio still at least 1px
	}
	for _, c := range cases {
		gotW, gotH := FitWithin(c.w, c.h, c.maxW, c.maxH)
		if gotW != c.wantW || gotH != c.wantH {
			t.Errorf("FitWithin(%d, %d, %d, %d) = (%d, %d), want (%d, %d)",
				c.w, c.h, c.maxW, c.maxH, gotW, gotH, c.wantW, c.wantH)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := solidImage(10, 10, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	data, err := EncodePNG(src)
	if err != nil {
		t.Fatal(err)
	}
	img, err := DecodeImage(data)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds(); got.Dx() != 10 || got.Dy() != 10 {
		t.Errorf("expected 10x10, got %dx%d", got.Dx(), got.Dy())
	}
}
