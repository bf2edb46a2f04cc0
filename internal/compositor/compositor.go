package compositor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/hexley/adforge/internal/models"
	"github.com/hexley/adforge/internal/render"
	"github.com/hexley/adforge/internal/storage"
)

// End card hold time when the campaign carries a logo.
const endCardSeconds = 3.0

// ErrAssetsIncomplete is returned when an export is requested before every
// scene's video clip and voice-over are complete. No encoder work starts in
// that case.
var ErrAssetsIncomplete = errors.New("campaign assets incomplete")

// Compositor assembles the final ad: downloads the per-scene clips and
// voice-overs, renders branded overlays, concatenates both timelines, muxes
// them, and uploads the result.
type Compositor struct {
	ffmpeg   *FFmpegService
	renderer *render.Renderer
	store    *storage.Store
}

func New(ffmpeg *FFmpegService, renderer *render.Renderer, store *storage.Store) *Compositor {
	return &Compositor{
		ffmpeg:   ffmpeg,
		renderer: renderer,
		store:    store,
	}
}

// Export builds the final video for a campaign and uploads it. Returns the
// storage path of the exported MP4.
func (c *Compositor) Export(ctx context.Context, campaign *models.Campaign) (string, error) {
	assets := campaign.Assets
	if !assets.AllComplete(models.KindVideo) || !assets.AllComplete(models.KindVoiceover) {
		return "", ErrAssetsIncomplete
	}

	sceneCount := assets.Len()
	width, height := campaign.Branding.AspectRatio.CanvasSize()
	prefix := campaign.ID.String()

	log.Printf("[Compositor] Exporting campaign %s (%d scenes, %dx%d)", campaign.ID, sceneCount, width, height)

	var tempFiles []string
	defer func() { c.ffmpeg.Cleanup(tempFiles...) }()
	tmp := func(name string) string {
		p := c.ffmpeg.CreateTempFile(prefix + "_" + name)
		tempFiles = append(tempFiles, p)
		return p
	}

	// Fetch all source assets up front so a storage failure aborts before
	// any encoding starts.
	clipPaths := make([]string, sceneCount)
	audioPaths := make([]string, sceneCount)
	for i := 0; i < sceneCount; i++ {
		clipData, err := c.store.Download(ctx, storage.ObjectPath(campaign.ID, fmt.Sprintf("scene_%d_video.mp4", i)))
		if err != nil {
			return "", fmt.Errorf("scene %d: failed to fetch clip: %w", i, err)
		}
		clipPaths[i] = tmp(fmt.Sprintf("scene_%d_src.mp4", i))
		if err := os.WriteFile(clipPaths[i], clipData, 0644); err != nil {
			return "", fmt.Errorf("scene %d: failed to write clip: %w", i, err)
		}

		audioData, err := c.store.Download(ctx, storage.ObjectPath(campaign.ID, fmt.Sprintf("scene_%d_voiceover.mp3", i)))
		if err != nil {
			return "", fmt.Errorf("scene %d: failed to fetch voiceover: %w", i, err)
		}
		audioPaths[i] = tmp(fmt.Sprintf("scene_%d_voiceover.mp3", i))
		if err := os.WriteFile(audioPaths[i], audioData, 0644); err != nil {
			return "", fmt.Errorf("scene %d: failed to write voiceover: %w", i, err)
		}
	}

	// The two timelines are independent until the mux, so assemble them
	// concurrently.
	videoTimeline := tmp("timeline_video.mp4")
	audioTimeline := tmp("timeline_audio.m4a")
	var videoDuration float64

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		branded := make([]string, 0, sceneCount+1)
		for i := 0; i < sceneCount; i++ {
			overlay := c.renderer.SceneOverlay(campaign.Scenes[i].OnScreenText, campaign.Branding)
			overlayPNG, err := render.EncodePNG(overlay)
			if err != nil {
				return fmt.Errorf("scene %d: %w", i, err)
			}
			overlayPath := tmp(fmt.Sprintf("scene_%d_overlay.png", i))
			if err := os.WriteFile(overlayPath, overlayPNG, 0644); err != nil {
				return fmt.Errorf("scene %d: failed to write overlay: %w", i, err)
			}

			out := tmp(fmt.Sprintf("scene_%d_branded.mp4", i))
			if err := c.ffmpeg.RenderSceneClip(gctx, clipPaths[i], overlayPath, out, width, height); err != nil {
				return fmt.Errorf("scene %d: %w", i, err)
			}
			branded = append(branded, out)
			log.Printf("[Compositor] Scene %d: branded clip rendered", i)
		}

		if campaign.Branding.Logo != nil {
			cardPNG, err := render.EncodePNG(c.renderer.EndCard(campaign.Branding))
			if err != nil {
				return fmt.Errorf("end card: %w", err)
			}
			cardPath := tmp("endcard.png")
			if err := os.WriteFile(cardPath, cardPNG, 0644); err != nil {
				return fmt.Errorf("end card: failed to write image: %w", err)
			}
			cardClip := tmp("endcard.mp4")
			if err := c.ffmpeg.RenderStillClip(gctx, cardPath, cardClip, endCardSeconds); err != nil {
				return fmt.Errorf("end card: %w", err)
			}
			branded = append(branded, cardClip)
			log.Printf("[Compositor] End card rendered (%.1fs)", endCardSeconds)
		}

		if err := c.ffmpeg.ConcatClips(gctx, branded, videoTimeline); err != nil {
			return err
		}
		var err error
		videoDuration, err = c.ffmpeg.MediaDuration(gctx, videoTimeline)
		if err != nil {
			return fmt.Errorf("video timeline: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		durations := make([]float64, sceneCount)
		for i, path := range audioPaths {
			d, err := c.ffmpeg.MediaDuration(gctx, path)
			if err != nil {
				return fmt.Errorf("scene %d voiceover: %w", i, err)
			}
			durations[i] = d
		}
		for i, off := range AudioOffsets(durations) {
			log.Printf("[Compositor] Scene %d: narration at %.2fs (%.2fs long)", i, off, durations[i])
		}
		return c.ffmpeg.ConcatAudio(gctx, audioPaths, audioTimeline)
	})

	if err := g.Wait(); err != nil {
		return "", err
	}

	finalPath := tmp("final.mp4")
	if err := c.ffmpeg.Mux(ctx, videoTimeline, audioTimeline, finalPath, videoDuration); err != nil {
		return "", err
	}

	filename := ExportFilename(campaign.ProductName, time.Now())
	objectPath := storage.ObjectPath(campaign.ID, filename)
	if err := c.store.UploadFile(ctx, objectPath, finalPath, "video/mp4"); err != nil {
		return "", fmt.Errorf("failed to upload final video: %w", err)
	}

	log.Printf("[Compositor] Export complete: %s (%.2fs)", objectPath, videoDuration)
	return objectPath, nil
}

// AudioOffsets returns each voice-over's start time when the tracks are laid
// back to back: scene i starts where scene i-1 ends.
func AudioOffsets(durations []float64) []float64 {
	offsets := make([]float64, len(durations))
	var cum float64
	for i, d := range durations {
		offsets[i] = cum
		cum += d
	}
	return offsets
}

// ExportFilename names the final artifact <product>_ad_<date>.mp4, with the
// product name lowercased and non-alphanumerics collapsed to underscores.
func ExportFilename(productName string, t time.Time) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(productName) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "untitled"
	}
	return fmt.Sprintf("%s_ad_%s.mp4", name, t.Format("2006-01-02"))
}
