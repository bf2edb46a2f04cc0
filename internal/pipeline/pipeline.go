package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/hexley/adforge/internal/models"
	"github.com/hexley/adforge/internal/storage"
)

// The pipeline runs one generation stage across every scene of a campaign.
// Scenes are processed strictly in order, one provider call at a time, and a
// failed scene never stops the batch: it is marked failed and the loop moves
// on, so a later retry only has to regenerate the gaps.

// ImageGenerator produces a scene's key frame from its visual prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, visualPrompt string, format models.AspectRatio, logoPNG []byte) ([]byte, error)
}

// SpeechSynthesizer produces a scene's voice-over audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// VideoGenerator animates a scene's key frame into a short clip.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, prompt string, imageData []byte, format models.AspectRatio) ([]byte, error)
}

// ObjectStore persists generated assets and serves their URLs.
type ObjectStore interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) error
	PublicURL(objectPath string) string
}

// Brander applies the campaign watermark to an encoded image.
type Brander interface {
	WatermarkPNG(data []byte, text string) ([]byte, error)
}

// StatusListener observes per-scene status changes as the batch progresses.
type StatusListener func(sceneID int, kind models.AssetKind, status models.AssetStatus)

type Pipeline struct {
	images   ImageGenerator
	speech   SpeechSynthesizer
	videos   VideoGenerator
	store    ObjectStore
	brander  Brander
	listener StatusListener
}

func New(images ImageGenerator, speech SpeechSynthesizer, videos VideoGenerator, store ObjectStore, brander Brander, listener StatusListener) *Pipeline {
	return &Pipeline{
		images:   images,
		speech:   speech,
		videos:   videos,
		store:    store,
		brander:  brander,
		listener: listener,
	}
}

func (p *Pipeline) notify(sceneID int, kind models.AssetKind, status models.AssetStatus) {
	if p.listener != nil {
		p.listener(sceneID, kind, status)
	}
}

// begin moves scene i's asset into generating, handling the idempotent
// cases: complete assets are skipped, failed assets re-enter generating.
// Returns false when the scene should be passed over.
func (p *Pipeline) begin(assets *models.CampaignAssetSet, i int, kind models.AssetKind) bool {
	if assets.Status(i, kind) == models.StatusComplete {
		log.Printf("[Pipeline] Scene %d: %s already complete, skipping", i, kind)
		return false
	}
	if err := assets.Transition(i, kind, models.StatusGenerating); err != nil {
		log.Printf("[Pipeline] Scene %d: %s not started: %v", i, kind, err)
		return false
	}
	p.notify(i, kind, models.StatusGenerating)
	return true
}

func (p *Pipeline) fail(assets *models.CampaignAssetSet, i int, kind models.AssetKind, cause error) {
	log.Printf("[Pipeline] Scene %d: %s generation failed: %v", i, kind, cause)
	if err := assets.Fail(i, kind, cause.Error()); err != nil {
		log.Printf("[Pipeline] Scene %d: could not record %s failure: %v", i, kind, err)
		return
	}
	p.notify(i, kind, models.StatusFailed)
}

// GenerateImages generates the key frame for every scene that still needs
// one. The raw frame is kept for video generation; the uploaded copy carries
// the campaign watermark.
func (p *Pipeline) GenerateImages(ctx context.Context, campaign *models.Campaign) error {
	assets := campaign.Assets
	for i, scene := range campaign.Scenes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("image batch cancelled: %w", err)
		}
		if !p.begin(assets, i, models.KindImage) {
			continue
		}

		raw, err := p.images.GenerateImage(ctx, scene.VisualPrompt, campaign.Branding.AspectRatio, campaign.Branding.LogoPNG)
		if err != nil {
			p.fail(assets, i, models.KindImage, err)
			continue
		}

		branded, err := p.brander.WatermarkPNG(raw, campaign.Branding.WatermarkText)
		if err != nil {
			p.fail(assets, i, models.KindImage, fmt.Errorf("failed to watermark image: %w", err))
			continue
		}

		objectPath := storage.ObjectPath(campaign.ID, fmt.Sprintf("scene_%d_image.png", i))
		if err := p.store.Upload(ctx, objectPath, branded, "image/png"); err != nil {
			p.fail(assets, i, models.KindImage, fmt.Errorf("failed to upload image: %w", err))
			continue
		}

		if err := assets.SetImageResult(i, raw, p.store.PublicURL(objectPath)); err != nil {
			p.fail(assets, i, models.KindImage, err)
			continue
		}
		p.notify(i, models.KindImage, models.StatusComplete)
		log.Printf("[Pipeline] Scene %d: image complete (%d bytes)", i, len(raw))
	}
	return nil
}

// GenerateVoiceovers synthesizes the narration line for every scene that
// still needs one.
func (p *Pipeline) GenerateVoiceovers(ctx context.Context, campaign *models.Campaign) error {
	assets := campaign.Assets
	for i, scene := range campaign.Scenes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("voiceover batch cancelled: %w", err)
		}
		if !p.begin(assets, i, models.KindVoiceover) {
			continue
		}

		audio, err := p.speech.Synthesize(ctx, scene.VoiceoverText, campaign.VoiceID)
		if err != nil {
			p.fail(assets, i, models.KindVoiceover, err)
			continue
		}

		objectPath := storage.ObjectPath(campaign.ID, fmt.Sprintf("scene_%d_voiceover.mp3", i))
		if err := p.store.Upload(ctx, objectPath, audio, "audio/mpeg"); err != nil {
			p.fail(assets, i, models.KindVoiceover, fmt.Errorf("failed to upload voiceover: %w", err))
			continue
		}

		if err := assets.SetAudioResult(i, p.store.PublicURL(objectPath)); err != nil {
			p.fail(assets, i, models.KindVoiceover, err)
			continue
		}
		p.notify(i, models.KindVoiceover, models.StatusComplete)
		log.Printf("[Pipeline] Scene %d: voiceover complete (%d bytes)", i, len(audio))
	}
	return nil
}

// GenerateVideos animates the key frame of every scene whose image is
// complete. Scenes with a missing or failed image are passed over without
// touching their video status.
func (p *Pipeline) GenerateVideos(ctx context.Context, campaign *models.Campaign) error {
	assets := campaign.Assets
	for i, scene := range campaign.Scenes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("video batch cancelled: %w", err)
		}
		if !p.begin(assets, i, models.KindVideo) {
			continue
		}

		imageBytes := assets.Get(i).ImageBytes
		clip, err := p.videos.GenerateVideo(ctx, scene.VisualPrompt, imageBytes, campaign.Branding.AspectRatio)
		if err != nil {
			p.fail(assets, i, models.KindVideo, err)
			continue
		}

		objectPath := storage.ObjectPath(campaign.ID, fmt.Sprintf("scene_%d_video.mp4", i))
		if err := p.store.Upload(ctx, objectPath, clip, "video/mp4"); err != nil {
			p.fail(assets, i, models.KindVideo, fmt.Errorf("failed to upload video: %w", err))
			continue
		}

		if err := assets.SetVideoResult(i, p.store.PublicURL(objectPath)); err != nil {
			p.fail(assets, i, models.KindVideo, err)
			continue
		}
		p.notify(i, models.KindVideo, models.StatusComplete)
		log.Printf("[Pipeline] Scene %d: video complete (%d bytes)", i, len(clip))
	}
	return nil
}
