package models

import (
	"testing"
)

func testScenes(n int) []Scene {
	scenes := make([]Scene, n)
	for i := range scenes {
		scenes[i] = Scene{
			ID:            i,
			VoiceoverText: "line",
			OnScreenText:  "caption",
			VisualPrompt:  "prompt",
		}
	}
	return scenes
}

func TestNewCampaignAssetSetStartsReady(t *testing.T) {
	set := NewCampaignAssetSet(testScenes(3))

	if set.Len() != 3 {
		t.Fatalf("expected 3 assets, got %d", set.Len())
	}

	for i := 0; i < set.Len(); i++ {
		for _, kind := range []AssetKind{KindImage, KindVoiceover, KindVideo} {
			if got := set.Status(i, kind); got != StatusReady {
				t.Errorf("scene %d %s: expected ready, got %s", i, kind, got)
			}
		}
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to AssetStatus
		allowed  bool
	}{
		{StatusReady, StatusGenerating, true},
		{StatusGenerating, StatusComplete, true},
		{StatusGenerating, StatusFailed, true},
		{StatusFailed, StatusGenerating, true},
		{StatusReady, StatusComplete, false},
		{StatusReady, StatusFailed, false},
		{StatusComplete, StatusGenerating, false},
		{StatusComplete, StatusFailed, false},
		{StatusFailed, StatusComplete, false},
	}

	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.allowed {
			t.Errorf("%s -> %s: expected allowed=%v, got %v", c.from, c.to, c.allowed, got)
		}
	}
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	set := NewCampaignAssetSet(testScenes(1))

	// ready -> complete skips generating and must be rejected
	if err := set.SetImageResult(0, []byte("png"), "https://cdn/image.png"); err == nil {
		t.Fatal("expected illegal transition error, got nil")
	}
	if got := set.Status(0, KindImage); got != StatusReady {
		t.Errorf("status changed after rejected transition: %s", got)
	}
}

func TestVideoGateRequiresCompleteImage(t *testing.T) {
	set := NewCampaignAssetSet(testScenes(1))

	if err := set.Transition(0, KindVideo, StatusGenerating); err == nil {
		t.Fatal("expected video gate error while image not complete")
	}
	if got := set.Status(0, KindVideo); got != StatusReady {
		t.Errorf("video status should be untouched, got %s", got)
	}

	// Complete the image, then the gate opens.
	if err := set.Transition(0, KindImage, StatusGenerating); err != nil {
		t.Fatalf("image generating: %v", err)
	}
	if err := set.SetImageResult(0, []byte("png"), "https://cdn/image.png"); err != nil {
		t.Fatalf("image complete: %v", err)
	}
	if err := set.Transition(0, KindVideo, StatusGenerating); err != nil {
		t.Fatalf("video generating after image complete: %v", err)
	}
}

func TestFailRecordsMessageAndRetryClears(t *testing.T) {
	set := NewCampaignAssetSet(testScenes(1))

	if err := set.Transition(0, KindVoiceover, StatusGenerating); err != nil {
		t.Fatalf("generating: %v", err)
	}
	if err := set.Fail(0, KindVoiceover, "provider returned status 500"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	asset := set.Get(0)
	if asset.VoiceStatus != StatusFailed {
		t.Errorf("expected failed, got %s", asset.VoiceStatus)
	}
	if asset.VoiceError == nil || *asset.VoiceError != "provider returned status 500" {
		t.Errorf("expected error message, got %v", asset.VoiceError)
	}

	// Manual retry: failed -> generating clears the recorded error.
	if err := set.Transition(0, KindVoiceover, StatusGenerating); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if asset := set.Get(0); asset.VoiceError != nil {
		t.Errorf("expected error cleared on retry, got %q", *asset.VoiceError)
	}
}

func TestAllComplete(t *testing.T) {
	set := NewCampaignAssetSet(testScenes(2))

	if set.AllComplete(KindVoiceover) {
		t.Fatal("empty progress should not be complete")
	}

	for i := 0; i < 2; i++ {
		if err := set.Transition(i, KindVoiceover, StatusGenerating); err != nil {
			t.Fatalf("scene %d generating: %v", i, err)
		}
	}
	if err := set.SetAudioResult(0, "https://cdn/vo_0.mp3"); err != nil {
		t.Fatalf("scene 0 complete: %v", err)
	}
	if set.AllComplete(KindVoiceover) {
		t.Fatal("one pending scene should block completion")
	}
	if err := set.SetAudioResult(1, "https://cdn/vo_1.mp3"); err != nil {
		t.Fatalf("scene 1 complete: %v", err)
	}
	if !set.AllComplete(KindVoiceover) {
		t.Fatal("expected all voiceovers complete")
	}
}

func TestEmptyAssetSetNeverReady(t *testing.T) {
	var set *CampaignAssetSet
	if set.AllComplete(KindVideo) {
		t.Fatal("nil asset set must not be ready")
	}
	if NewCampaignAssetSet(nil).AllComplete(KindVideo) {
		t.Fatal("zero-length asset set must not be ready")
	}
}

func TestCanvasSize(t *testing.T) {
	if w, h := AspectPortrait9x16.CanvasSize(); w != 720 || h != 1280 {
		t.Errorf("portrait: expected 720x1280, got %dx%d", w, h)
	}
	if w, h := AspectSquare1x1.CanvasSize(); w != 1080 || h != 1080 {
		t.Errorf("square: expected 1080x1080, got %dx%d", w, h)
	}
}
