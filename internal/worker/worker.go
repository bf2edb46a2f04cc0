package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hexley/adforge/internal/campaign"
	"github.com/hexley/adforge/internal/compositor"
	"github.com/hexley/adforge/internal/models"
	"github.com/hexley/adforge/internal/pipeline"
	"github.com/hexley/adforge/internal/queue"
	"github.com/hexley/adforge/internal/services"
)

const dequeueTimeout = 5 * time.Second

// Worker consumes stage jobs from the queue one at a time. A single worker
// goroutine is the only writer of campaign state, so stages never overlap
// and provider rate limits see at most one in-flight batch.
type Worker struct {
	queue      *queue.Queue
	store      *campaign.Store
	storyboard *services.StoryboardService
	pipeline   *pipeline.Pipeline
	compositor *compositor.Compositor
}

func New(q *queue.Queue, store *campaign.Store, storyboard *services.StoryboardService, p *pipeline.Pipeline, c *compositor.Compositor) *Worker {
	return &Worker{
		queue:      q,
		store:      store,
		storyboard: storyboard,
		pipeline:   p,
		compositor: c,
	}
}

// Run blocks, processing jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log.Printf("[Worker] Started")
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Worker] Stopped: %v", ctx.Err())
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("[Worker] Stopped: %v", ctx.Err())
				return
			}
			log.Printf("[Worker] Dequeue failed: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job *queue.Job) {
	log.Printf("[Worker] Processing job %s (%s) for campaign %s", job.ID, job.Type, job.CampaignID)

	c, err := w.store.Get(job.CampaignID)
	if err != nil {
		log.Printf("[Worker] Job %s dropped: %v", job.ID, err)
		return
	}

	switch job.Type {
	case queue.JobGeneratePlan:
		w.generatePlan(ctx, c)
	case queue.JobGenerateImages:
		w.runStage(ctx, c, "images", w.pipeline.GenerateImages)
	case queue.JobGenerateVoiceovers:
		w.runStage(ctx, c, "voiceovers", w.pipeline.GenerateVoiceovers)
	case queue.JobGenerateVideos:
		w.runStage(ctx, c, "videos", w.pipeline.GenerateVideos)
	case queue.JobExportVideo:
		w.exportVideo(ctx, c)
	default:
		log.Printf("[Worker] Unknown job type %q, dropping", job.Type)
	}
}

func (w *Worker) generatePlan(ctx context.Context, c *models.Campaign) {
	if err := w.store.SetStatus(c.ID, models.CampaignStatusPlanning); err != nil {
		log.Printf("[Worker] Campaign %s: %v", c.ID, err)
		return
	}

	scenes, err := w.storyboard.GeneratePlan(ctx, c.ProductName, c.ProductDescription, c.Audience, c.Branding.AspectRatio, c.SceneCount)
	if err != nil {
		log.Printf("[Worker] Campaign %s: plan generation failed: %v", c.ID, err)
		w.setError(c.ID, "plan_failed", err.Error())
		return
	}

	if err := w.store.AcceptPlan(c.ID, scenes); err != nil {
		log.Printf("[Worker] Campaign %s: %v", c.ID, err)
		return
	}
	log.Printf("[Worker] Campaign %s: plan accepted (%d scenes)", c.ID, len(scenes))
}

func (w *Worker) runStage(ctx context.Context, c *models.Campaign, stage string, run func(context.Context, *models.Campaign) error) {
	if c.Assets.Len() == 0 {
		log.Printf("[Worker] Campaign %s: no plan accepted, skipping %s stage", c.ID, stage)
		return
	}

	if err := w.store.SetStatus(c.ID, models.CampaignStatusGenerating); err != nil {
		log.Printf("[Worker] Campaign %s: %v", c.ID, err)
		return
	}

	if err := run(ctx, c); err != nil {
		// Only cancellation aborts a batch; per-scene failures are already
		// recorded on the assets.
		log.Printf("[Worker] Campaign %s: %s stage aborted: %v", c.ID, stage, err)
	}

	if err := w.store.SetStatus(c.ID, models.CampaignStatusReady); err != nil {
		log.Printf("[Worker] Campaign %s: %v", c.ID, err)
		return
	}
	log.Printf("[Worker] Campaign %s: %s stage finished", c.ID, stage)
}

func (w *Worker) exportVideo(ctx context.Context, c *models.Campaign) {
	path, err := w.compositor.Export(ctx, c)
	if err != nil {
		if errors.Is(err, compositor.ErrAssetsIncomplete) {
			log.Printf("[Worker] Campaign %s: export rejected, assets incomplete", c.ID)
			w.setError(c.ID, "assets_incomplete", compositor.ErrAssetsIncomplete.Error())
			return
		}
		log.Printf("[Worker] Campaign %s: export failed: %v", c.ID, err)
		w.setError(c.ID, "export_failed", err.Error())
		return
	}

	if err := w.store.SetFinalVideo(c.ID, path); err != nil {
		log.Printf("[Worker] Campaign %s: %v", c.ID, err)
		return
	}
	log.Printf("[Worker] Campaign %s: export complete (%s)", c.ID, path)
}

func (w *Worker) setError(id uuid.UUID, code, message string) {
	if err := w.store.SetError(id, code, message); err != nil {
		log.Printf("[Worker] Campaign %s: %v", id, err)
	}
}
