package campaign

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/hexley/adforge/internal/models"
)

// newExportableCampaign builds a one-scene campaign with every asset complete.
func newExportableCampaign(t *testing.T) *models.Campaign {
	t.Helper()

	scenes := []models.Scene{{ID: 0, VoiceoverText: "hook line", VisualPrompt: "product close-up"}}
	assets := models.NewCampaignAssetSet(scenes)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("failed to prepare assets: %v", err)
		}
	}
	must(assets.Transition(0, models.KindImage, models.StatusGenerating))
	must(assets.SetImageResult(0, []byte("png"), "https://cdn.example.com/img"))
	must(assets.Transition(0, models.KindVoiceover, models.StatusGenerating))
	must(assets.SetAudioResult(0, "https://cdn.example.com/vo"))
	must(assets.Transition(0, models.KindVideo, models.StatusGenerating))
	must(assets.SetVideoResult(0, "https://cdn.example.com/clip"))

	return &models.Campaign{
		ID:          uuid.New(),
		ProductName: "Glow Serum",
		Status:      models.CampaignStatusReady,
		Scenes:      scenes,
		Assets:      assets,
	}
}

func TestBeginExportFlipsStatusOnce(t *testing.T) {
	s := NewStore()
	c := newExportableCampaign(t)
	s.Put(c)

	if err := s.BeginExport(c.ID); err != nil {
		t.Fatalf("first export request: %v", err)
	}

	got, err := s.Get(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.CampaignStatusExporting {
		t.Fatalf("expected status exporting, got %s", got.Status)
	}

	if err := s.BeginExport(c.ID); !errors.Is(err, ErrExportInProgress) {
		t.Fatalf("second export request: expected ErrExportInProgress, got %v", err)
	}
}

func TestBeginExportRejectsIncompleteAssets(t *testing.T) {
	s := NewStore()
	scenes := []models.Scene{{ID: 0, VoiceoverText: "hook line"}}
	c := &models.Campaign{
		ID:     uuid.New(),
		Status: models.CampaignStatusReady,
		Scenes: scenes,
		Assets: models.NewCampaignAssetSet(scenes),
	}
	s.Put(c)

	if err := s.BeginExport(c.ID); !errors.Is(err, ErrNotExportReady) {
		t.Fatalf("expected ErrNotExportReady, got %v", err)
	}

	got, err := s.Get(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.CampaignStatusReady {
		t.Fatalf("rejected export must not change status, got %s", got.Status)
	}
}

func TestBeginExportConcurrentRequests(t *testing.T) {
	s := NewStore()
	c := newExportableCampaign(t)
	s.Put(c)

	const requests = 8
	errs := make([]error, requests)
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.BeginExport(c.ID)
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case !errors.Is(err, ErrExportInProgress):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted export, got %d", accepted)
	}
}
