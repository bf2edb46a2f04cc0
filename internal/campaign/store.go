package campaign

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hexley/adforge/internal/models"
)

var (
	// ErrExportInProgress is returned by BeginExport while another export of
	// the same campaign is in flight.
	ErrExportInProgress = errors.New("export already in progress")
	// ErrNotExportReady is returned by BeginExport when any scene's video or
	// voice-over is not complete.
	ErrNotExportReady = errors.New("campaign assets incomplete")
)

// Store is the in-memory campaign registry. Campaigns live only for the
// lifetime of the process; generating a new plan for a campaign replaces its
// scenes and asset set wholesale.
//
// The store's lock guards campaign-level fields (status, scenes, errors,
// final video). Scene asset state has its own synchronization inside
// CampaignAssetSet because the pipeline mutates it at a much higher rate.
type Store struct {
	mu        sync.RWMutex
	campaigns map[uuid.UUID]*models.Campaign
}

func NewStore() *Store {
	return &Store{campaigns: make(map[uuid.UUID]*models.Campaign)}
}

// Put registers a freshly created campaign.
func (s *Store) Put(c *models.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.campaigns[c.ID] = c
}

// Get returns the live campaign aggregate. The returned pointer is shared;
// callers that mutate campaign-level fields must go through Update.
func (s *Store) Get(id uuid.UUID) (*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %s not found", id)
	}
	return c, nil
}

// Update applies fn to the campaign under the write lock.
func (s *Store) Update(id uuid.UUID, fn func(*models.Campaign) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return fmt.Errorf("campaign %s not found", id)
	}
	if err := fn(c); err != nil {
		return err
	}
	c.UpdatedAt = time.Now()
	return nil
}

// AcceptPlan installs a newly generated storyboard: scenes are replaced and
// a fresh asset set (all statuses ready) is created. Any previous assets are
// discarded — there is no retention across plans.
func (s *Store) AcceptPlan(id uuid.UUID, scenes []models.Scene) error {
	return s.Update(id, func(c *models.Campaign) error {
		c.Scenes = scenes
		c.Assets = models.NewCampaignAssetSet(scenes)
		c.Status = models.CampaignStatusReady
		c.FinalVideoPath = nil
		c.ErrorCode = nil
		c.ErrorMessage = nil
		return nil
	})
}

// BeginExport flips the campaign to exporting, but only if no export is
// already in flight and every scene's video and voice-over are complete.
// The readiness check and the status flip share one critical section, so of
// any number of concurrent export requests exactly one succeeds.
func (s *Store) BeginExport(id uuid.UUID) error {
	return s.Update(id, func(c *models.Campaign) error {
		if c.Status == models.CampaignStatusExporting {
			return ErrExportInProgress
		}
		if !c.Assets.AllComplete(models.KindVideo) || !c.Assets.AllComplete(models.KindVoiceover) {
			return ErrNotExportReady
		}
		c.Status = models.CampaignStatusExporting
		return nil
	})
}

// SetStatus moves the campaign to a new lifecycle status.
func (s *Store) SetStatus(id uuid.UUID, status models.CampaignStatus) error {
	return s.Update(id, func(c *models.Campaign) error {
		c.Status = status
		return nil
	})
}

// SetError marks the campaign failed with a machine code and a
// human-readable message.
func (s *Store) SetError(id uuid.UUID, code, message string) error {
	return s.Update(id, func(c *models.Campaign) error {
		c.Status = models.CampaignStatusFailed
		c.ErrorCode = &code
		c.ErrorMessage = &message
		return nil
	})
}

// SetFinalVideo records the exported artifact's storage path and completes
// the campaign.
func (s *Store) SetFinalVideo(id uuid.UUID, storagePath string) error {
	return s.Update(id, func(c *models.Campaign) error {
		c.FinalVideoPath = &storagePath
		c.Status = models.CampaignStatusCompleted
		return nil
	})
}

// View builds a read-only response snapshot: campaign fields, per-scene
// asset statuses, and the readiness flags that gate the next stage.
func (s *Store) View(id uuid.UUID) (*models.CampaignResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %s not found", id)
	}

	resp := &models.CampaignResponse{
		Campaign:    *c,
		SceneAssets: c.Assets.Snapshot(),
	}
	resp.Readiness = models.StageReadiness{
		ImagesComplete:     c.Assets.AllComplete(models.KindImage),
		VoiceoversComplete: c.Assets.AllComplete(models.KindVoiceover),
		VideosComplete:     c.Assets.AllComplete(models.KindVideo),
	}
	resp.Readiness.ExportReady = resp.Readiness.VideosComplete && resp.Readiness.VoiceoversComplete
	return resp, nil
}
