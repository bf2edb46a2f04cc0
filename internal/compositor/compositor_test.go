package compositor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hexley/adforge/internal/models"
)

func TestExportRejectsIncompleteAssets(t *testing.T) {
	scenes := []models.Scene{
		{ID: 0, VoiceoverText: "hook line", VisualPrompt: "product close-up"},
		{ID: 1, VoiceoverText: "call to action", VisualPrompt: "logo reveal"},
	}
	assets := models.NewCampaignAssetSet(scenes)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("failed to prepare assets: %v", err)
		}
	}
	for i := range scenes {
		must(assets.Transition(i, models.KindImage, models.StatusGenerating))
		must(assets.SetImageResult(i, []byte("png"), "https://cdn.example.com/img"))
		must(assets.Transition(i, models.KindVideo, models.StatusGenerating))
		must(assets.SetVideoResult(i, "https://cdn.example.com/clip"))
	}
	// Scene 1's voice-over never finishes.
	must(assets.Transition(0, models.KindVoiceover, models.StatusGenerating))
	must(assets.SetAudioResult(0, "https://cdn.example.com/vo"))

	c := &models.Campaign{
		ID:          uuid.New(),
		ProductName: "Glow Serum",
		Branding:    models.BrandingConfig{AspectRatio: models.AspectPortrait9x16},
		Scenes:      scenes,
		Assets:      assets,
	}

	// Nil ffmpeg/renderer/store: the export must be rejected before any of
	// them is touched.
	comp := New(nil, nil, nil)
	if _, err := comp.Export(context.Background(), c); !errors.Is(err, ErrAssetsIncomplete) {
		t.Fatalf("expected ErrAssetsIncomplete, got %v", err)
	}
}

func TestAudioOffsets(t *testing.T) {
	offsets := AudioOffsets([]float64{2.0, 1.5, 3.0})

	want := []float64{0, 2.0, 3.5}
	if len(offsets) != len(want) {
		t.Fatalf("expected %d offsets, got %d", len(want), len(offsets))
	}
	for i := range want {
		if math.Abs(offsets[i]-want[i]) > 1e-9 {
			t.Errorf("offset %d: expected %.2f, got %.2f", i, want[i], offsets[i])
		}
	}
}

func TestAudioOffsetsEmpty(t *testing.T) {
	if got := AudioOffsets(nil); len(got) != 0 {
		t.Errorf("expected no offsets, got %v", got)
	}
}

func TestExportFilename(t *testing.T) {
	date := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		product string
		want    string
	}{
		{"Glow Serum", "glow_serum_ad_2026-08-25.mp4"},
		{"ACME 3000", "acme_3000_ad_2026-08-25.mp4"},
		{"  Café // Brand!  ", "café_brand_ad_2026-08-25.mp4"},
		{"!!!", "untitled_ad_2026-08-25.mp4"},
	}
	for _, c := range cases {
		if got := ExportFilename(c.product, date); got != c.want {
			t.Errorf("ExportFilename(%q) = %q, want %q", c.product, got, c.want)
		}
	}
}

func TestSceneFilter(t *testing.T) {
	got := SceneFilter(720, 1280)
	want := "[0:v]scale=720:1280:force_original_aspect_ratio=increase,crop=720:1280[base];[base][1:v]overlay=0:0[v]"
	if got != want {
		t.Errorf("SceneFilter = %q, want %q", got, want)
	}
}

func TestAudioConcatFilter(t *testing.T) {
	got := AudioConcatFilter(3)
	want := "[0:a][1:a][2:a]concat=n=3:v=0:a=1[a]"
	if got != want {
		t.Errorf("AudioConcatFilter = %q, want %q", got, want)
	}
}
