package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hexley/adforge/internal/models"
	"google.golang.org/genai"
)

// Veo image-to-video generation. The scene's key frame is passed as the
// first frame and the visual prompt describes the motion.

const veoPollInterval = 10 * time.Second

// VideoJobService drives long-running Veo operations: submit, poll until
// done, download the result. There is no poll cap; a stuck job is abandoned
// by cancelling the caller's context.
type VideoJobService struct {
	apiKey string
	model  string
}

// NewVideoJobService creates the Veo service. apiKey is the Gemini API key
// (the same key drives both image generation and Veo). An empty model falls
// back to veo-3.1-generate-preview.
func NewVideoJobService(apiKey, model string) *VideoJobService {
	if model == "" {
		model = "veo-3.1-generate-preview"
	}
	return &VideoJobService{
		apiKey: apiKey,
		model:  model,
	}
}

// VideoJob is a handle on one in-flight Veo operation.
type VideoJob struct {
	client    *genai.Client
	operation *genai.GenerateVideosOperation
	polls     int
}

// Done reports whether the remote operation has finished (success or failure).
func (j *VideoJob) Done() bool {
	return j.operation.Done
}

func (s *VideoJobService) newClient(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// Submit starts an async video generation job with imageData as the first
// frame and returns immediately with a pollable handle.
func (s *VideoJobService) Submit(ctx context.Context, prompt string, imageData []byte, format models.AspectRatio) (*VideoJob, error) {
	client, err := s.newClient(ctx)
	if err != nil {
		return nil, err
	}

	enhancedPrompt := buildMotionPrompt(prompt)

	firstFrame := &genai.Image{
		ImageBytes: imageData,
		MIMEType:   "image/png",
	}

	config := &genai.GenerateVideosConfig{
		AspectRatio:      string(format),
		Resolution:       "720p",
		PersonGeneration: "allow_adult",
		NumberOfVideos:   1,
	}

	log.Printf("[Veo] Starting video generation (model=%s, promptLen=%d, imageSize=%d bytes)",
		s.model, len(prompt), len(imageData))

	operation, err := client.Models.GenerateVideos(ctx, s.model, enhancedPrompt, firstFrame, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start video generation: %w", err)
	}

	log.Printf("[Veo] Operation started: %s", operation.Name)

	return &VideoJob{client: client, operation: operation}, nil
}

// Poll refreshes the job's remote state once.
func (s *VideoJobService) Poll(ctx context.Context, job *VideoJob) error {
	job.polls++
	operation, err := job.client.Operations.GetVideosOperation(ctx, job.operation, nil)
	if err != nil {
		return fmt.Errorf("failed to poll operation (attempt %d): %w", job.polls, err)
	}
	job.operation = operation
	log.Printf("[Veo] Poll %d: done=%v", job.polls, operation.Done)
	return nil
}

// Await polls the job at a fixed interval until it finishes or ctx is
// cancelled, then validates the outcome and downloads the MP4 bytes.
func (s *VideoJobService) Await(ctx context.Context, job *VideoJob) ([]byte, error) {
	for !job.operation.Done {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("video generation cancelled: %w", ctx.Err())
		case <-time.After(veoPollInterval):
		}

		if err := s.Poll(ctx, job); err != nil {
			return nil, err
		}
	}

	return s.Download(ctx, job)
}

// Download validates a finished operation and fetches the generated video.
func (s *VideoJobService) Download(ctx context.Context, job *VideoJob) ([]byte, error) {
	operation := job.operation

	if operation.Error != nil && len(operation.Error) > 0 {
		errJSON, _ := json.Marshal(operation.Error)
		return nil, fmt.Errorf("video generation operation failed: %s", string(errJSON))
	}

	if operation.Response == nil {
		if operation.Metadata != nil {
			metaJSON, _ := json.Marshal(operation.Metadata)
			log.Printf("[Veo] Operation metadata: %s", string(metaJSON))
		}
		return nil, fmt.Errorf("no response in completed operation after %d polls (operation: %s)", job.polls, operation.Name)
	}

	if operation.Response.RAIMediaFilteredCount > 0 {
		reasons := "unknown"
		if len(operation.Response.RAIMediaFilteredReasons) > 0 {
			reasons = strings.Join(operation.Response.RAIMediaFilteredReasons, ", ")
		}
		return nil, fmt.Errorf("video blocked by safety filters: %d video(s) filtered, reasons: %s",
			operation.Response.RAIMediaFilteredCount, reasons)
	}

	if len(operation.Response.GeneratedVideos) == 0 {
		respJSON, _ := json.Marshal(operation.Response)
		return nil, fmt.Errorf("no videos in response (full response: %s)", string(respJSON))
	}

	video := operation.Response.GeneratedVideos[0]
	if video.Video == nil {
		return nil, fmt.Errorf("generated video object is nil")
	}

	log.Printf("[Veo] Video ready, downloading...")

	downloadURI := genai.NewDownloadURIFromVideo(video.Video)
	videoBytes, err := job.client.Files.Download(ctx, downloadURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated video: %w", err)
	}

	if len(videoBytes) == 0 {
		return nil, fmt.Errorf("downloaded video is empty (0 bytes)")
	}

	log.Printf("[Veo] Video generated successfully (%d bytes, %d polls)", len(videoBytes), job.polls)

	return videoBytes, nil
}

// GenerateVideo submits a job and blocks until the clip is downloaded. This
// ties up the calling goroutine for the full generation, which fits the
// one-job-at-a-time worker.
func (s *VideoJobService) GenerateVideo(ctx context.Context, prompt string, imageData []byte, format models.AspectRatio) ([]byte, error) {
	job, err := s.Submit(ctx, prompt, imageData, format)
	if err != nil {
		return nil, err
	}
	return s.Await(ctx, job)
}

// buildMotionPrompt wraps the scene's visual prompt with motion and safety
// instructions tuned for short product clips.
func buildMotionPrompt(rawPrompt string) string {
	return fmt.Sprintf(`%s

Visual style direction: Match the look of the input image exactly. Keep the color grading, lighting, and product detail from the source frame. The video should look like the photograph has come to life.

Motion direction: Generate subtle, natural, realistic movement. Favor gentle, grounded motion — a slow camera push-in, soft light shifts, fabric or steam moving, the product turning slightly. Avoid sudden jerky movements, morphing, or style changes between frames.

Important: This is a fictional commercial scene. All subjects are unnamed, generic figures. Do not identify or associate any subject with a real person, celebrity, or public figure.

No generated audio or dialogue. Silent video only.`, rawPrompt)
}
