package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/hexley/adforge/internal/models"
)

type fakeImageGen struct {
	calls   int
	prompts []string
	failOn  map[string]bool
}

func (f *fakeImageGen) GenerateImage(_ context.Context, prompt string, _ models.AspectRatio, _ []byte) ([]byte, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.failOn[prompt] {
		return nil, errors.New("image provider unavailable")
	}
	return []byte("raw:" + prompt), nil
}

type fakeSpeech struct {
	calls  int
	failOn map[string]bool
}

func (f *fakeSpeech) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	f.calls++
	if f.failOn[text] {
		return nil, errors.New("tts returned status 500")
	}
	return []byte("mp3:" + text), nil
}

type fakeVideoGen struct {
	calls  int
	inputs [][]byte
}

func (f *fakeVideoGen) GenerateVideo(_ context.Context, _ string, imageData []byte, _ models.AspectRatio) ([]byte, error) {
	f.calls++
	f.inputs = append(f.inputs, imageData)
	return []byte("mp4"), nil
}

type fakeStore struct {
	uploads map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: make(map[string][]byte)}
}

func (f *fakeStore) Upload(_ context.Context, objectPath string, data []byte, _ string) error {
	f.uploads[objectPath] = data
	return nil
}

func (f *fakeStore) PublicURL(objectPath string) string {
	return "https://cdn.example.com/" + objectPath
}

type fakeBrander struct{}

func (fakeBrander) WatermarkPNG(data []byte, text string) ([]byte, error) {
	if text == "" {
		return data, nil
	}
	return append([]byte("wm:"), data...), nil
}

func newTestCampaign(sceneCount int) *models.Campaign {
	scenes := make([]models.Scene, sceneCount)
	for i := range scenes {
		scenes[i] = models.Scene{
			ID:            i,
			VoiceoverText: fmt.Sprintf("line %d", i),
			OnScreenText:  fmt.Sprintf("caption %d", i),
			VisualPrompt:  fmt.Sprintf("prompt %d", i),
		}
	}
	return &models.Campaign{
		ID:          uuid.New(),
		ProductName: "Glow Serum",
		Branding: models.BrandingConfig{
			WatermarkText: "adforge.dev",
			AspectRatio:   models.AspectPortrait9x16,
		},
		Scenes: scenes,
		Assets: models.NewCampaignAssetSet(scenes),
	}
}

func TestGenerateImagesCompletesAllScenes(t *testing.T) {
	campaign := newTestCampaign(3)
	images := &fakeImageGen{}
	store := newFakeStore()
	p := New(images, nil, nil, store, fakeBrander{}, nil)

	if err := p.GenerateImages(context.Background(), campaign); err != nil {
		t.Fatal(err)
	}

	if images.calls != 3 {
		t.Errorf("expected 3 generator calls, got %d", images.calls)
	}
	if !campaign.Assets.AllComplete(models.KindImage) {
		t.Fatal("expected all images complete")
	}

	// Scenes are processed strictly in order.
	for i, prompt := range images.prompts {
		if want := fmt.Sprintf("prompt %d", i); prompt != want {
			t.Errorf("call %d: expected %q, got %q", i, want, prompt)
		}
	}

	// The uploaded copy is watermarked; the retained copy is raw.
	key := campaign.ID.String() + "/scene_0_image.png"
	if got := string(store.uploads[key]); got != "wm:raw:prompt 0" {
		t.Errorf("uploaded image = %q, want watermarked copy", got)
	}
	if got := string(campaign.Assets.Get(0).ImageBytes); got != "raw:prompt 0" {
		t.Errorf("retained image = %q, want raw copy", got)
	}
	if url := campaign.Assets.Get(0).ImageURL; url == nil || !strings.HasPrefix(*url, "https://cdn.example.com/") {
		t.Errorf("expected public URL, got %v", url)
	}
}

func TestGenerateImagesContinuesPastFailure(t *testing.T) {
	campaign := newTestCampaign(3)
	images := &fakeImageGen{failOn: map[string]bool{"prompt 1": true}}
	p := New(images, nil, nil, newFakeStore(), fakeBrander{}, nil)

	if err := p.GenerateImages(context.Background(), campaign); err != nil {
		t.Fatal(err)
	}

	if got := campaign.Assets.Status(0, models.KindImage); got != models.StatusComplete {
		t.Errorf("scene 0: expected complete, got %s", got)
	}
	if got := campaign.Assets.Status(1, models.KindImage); got != models.StatusFailed {
		t.Errorf("scene 1: expected failed, got %s", got)
	}
	if got := campaign.Assets.Status(2, models.KindImage); got != models.StatusComplete {
		t.Errorf("scene 2: expected complete, got %s", got)
	}
	if msg := campaign.Assets.Get(1).ImageError; msg == nil || *msg != "image provider unavailable" {
		t.Errorf("scene 1: expected recorded error, got %v", msg)
	}
}

func TestGenerateImagesRetryOnlyRegeneratesGaps(t *testing.T) {
	campaign := newTestCampaign(3)
	images := &fakeImageGen{failOn: map[string]bool{"prompt 1": true}}
	p := New(images, nil, nil, newFakeStore(), fakeBrander{}, nil)

	if err := p.GenerateImages(context.Background(), campaign); err != nil {
		t.Fatal(err)
	}

	// Second run: the two complete scenes are skipped, only the failed one
	// is attempted again.
	images.failOn = nil
	if err := p.GenerateImages(context.Background(), campaign); err != nil {
		t.Fatal(err)
	}

	if images.calls != 4 {
		t.Errorf("expected 4 total generator calls (3 + 1 retry), got %d", images.calls)
	}
	if !campaign.Assets.AllComplete(models.KindImage) {
		t.Fatal("expected all images complete after retry")
	}
}

func TestGenerateImagesCancelledContext(t *testing.T) {
	campaign := newTestCampaign(2)
	images := &fakeImageGen{}
	p := New(images, nil, nil, newFakeStore(), fakeBrander{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.GenerateImages(ctx, campaign); err == nil {
		t.Fatal("expected cancellation error")
	}
	if images.calls != 0 {
		t.Errorf("expected no generator calls after cancel, got %d", images.calls)
	}
	if got := campaign.Assets.Status(0, models.KindImage); got != models.StatusReady {
		t.Errorf("scene 0: expected ready, got %s", got)
	}
}

func TestGenerateVoiceoversContinuesPastFailure(t *testing.T) {
	campaign := newTestCampaign(2)
	speech := &fakeSpeech{failOn: map[string]bool{"line 0": true}}
	p := New(nil, speech, nil, newFakeStore(), fakeBrander{}, nil)

	if err := p.GenerateVoiceovers(context.Background(), campaign); err != nil {
		t.Fatal(err)
	}

	if got := campaign.Assets.Status(0, models.KindVoiceover); got != models.StatusFailed {
		t.Errorf("scene 0: expected failed, got %s", got)
	}
	if got := campaign.Assets.Status(1, models.KindVoiceover); got != models.StatusComplete {
		t.Errorf("scene 1: expected complete, got %s", got)
	}
}

func TestGenerateVideosSkipsScenesWithoutImage(t *testing.T) {
	campaign := newTestCampaign(2)
	videos := &fakeVideoGen{}
	store := newFakeStore()
	p := New(&fakeImageGen{failOn: map[string]bool{"prompt 1": true}}, nil, videos, store, fakeBrander{}, nil)

	if err := p.GenerateImages(context.Background(), campaign); err != nil {
		t.Fatal(err)
	}
	if err := p.GenerateVideos(context.Background(), campaign); err != nil {
		t.Fatal(err)
	}

	if videos.calls != 1 {
		t.Errorf("expected 1 video call, got %d", videos.calls)
	}
	if got := campaign.Assets.Status(0, models.KindVideo); got != models.StatusComplete {
		t.Errorf("scene 0: expected complete, got %s", got)
	}
	// Scene 1 has no image, so its video is never started.
	if got := campaign.Assets.Status(1, models.KindVideo); got != models.StatusReady {
		t.Errorf("scene 1: expected ready, got %s", got)
	}
}

func TestGenerateVideosUsesRawImageBytes(t *testing.T) {
	campaign := newTestCampaign(1)
	videos := &fakeVideoGen{}
	p := New(&fakeImageGen{}, nil, videos, newFakeStore(), fakeBrander{}, nil)

	if err := p.GenerateImages(context.Background(), campaign); err != nil {
		t.Fatal(err)
	}
	if err := p.GenerateVideos(context.Background(), campaign); err != nil {
		t.Fatal(err)
	}

	// The video generator receives the pre-watermark frame.
	if got := string(videos.inputs[0]); got != "raw:prompt 0" {
		t.Errorf("video input = %q, want raw frame", got)
	}
}

func TestStatusListenerSeesTransitions(t *testing.T) {
	campaign := newTestCampaign(1)
	var events []string
	listener := func(sceneID int, kind models.AssetKind, status models.AssetStatus) {
		events = append(events, fmt.Sprintf("%d:%s:%s", sceneID, kind, status))
	}
	p := New(&fakeImageGen{}, nil, nil, newFakeStore(), fakeBrander{}, listener)

	if err := p.GenerateImages(context.Background(), campaign); err != nil {
		t.Fatal(err)
	}

	want := []string{"0:image:generating", "0:image:complete"}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d: expected %q, got %q", i, want[i], events[i])
		}
	}
}
