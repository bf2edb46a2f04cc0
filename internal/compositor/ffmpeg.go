package compositor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const videoFPS = 30

// FFmpegService shells out to ffmpeg/ffprobe for all encoding work. It owns
// a scratch directory for intermediates.
type FFmpegService struct {
	tempDir string
}

func NewFFmpegService(tempDir string) (*FFmpegService, error) {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return &FFmpegService{tempDir: tempDir}, nil
}

func (s *FFmpegService) run(ctx context.Context, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// SceneFilter builds the filter chain that normalizes a generated clip to
// the output canvas and composites the branded overlay on top. The clip is
// scaled up until it covers the canvas, center-cropped, then overlaid.
func SceneFilter(width, height int) string {
	return fmt.Sprintf(
		"[0:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d[base];[base][1:v]overlay=0:0[v]",
		width, height, width, height)
}

// RenderSceneClip re-encodes one generated clip onto the output canvas with
// its overlay PNG composited. Any source audio is dropped; narration is
// muxed onto the final timeline instead.
func (s *FFmpegService) RenderSceneClip(ctx context.Context, videoPath, overlayPath, outputPath string, width, height int) error {
	args := []string{
		"-i", videoPath,
		"-i", overlayPath,
		"-filter_complex", SceneFilter(width, height),
		"-map", "[v]",
		"-an",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprintf("%d", videoFPS),
		"-y",
		outputPath,
	}

	if err := s.run(ctx, "ffmpeg", args); err != nil {
		return fmt.Errorf("ffmpeg render scene clip failed: %w", err)
	}
	return nil
}

// RenderStillClip turns a still frame (already at canvas size) into a video
// clip of the given duration. Used for the closing end card.
func (s *FFmpegService) RenderStillClip(ctx context.Context, imagePath, outputPath string, seconds float64) error {
	args := []string{
		"-loop", "1",
		"-t", fmt.Sprintf("%.2f", seconds),
		"-i", imagePath,
		"-an",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprintf("%d", videoFPS),
		"-y",
		outputPath,
	}

	if err := s.run(ctx, "ffmpeg", args); err != nil {
		return fmt.Errorf("ffmpeg render still clip failed: %w", err)
	}
	return nil
}

// ConcatClips joins re-encoded scene clips back to back without another
// encode pass. All inputs must share codec and canvas.
func (s *FFmpegService) ConcatClips(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	listPath := outputPath + ".list.txt"
	f, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	for _, path := range clipPaths {
		fmt.Fprintf(f, "file '%s'\n", path)
	}
	f.Close()
	defer os.Remove(listPath)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outputPath,
	}

	if err := s.run(ctx, "ffmpeg", args); err != nil {
		return fmt.Errorf("ffmpeg concatenate failed: %w", err)
	}
	return nil
}

// ConcatAudio joins the scene voice-overs back to back into one AAC track.
func (s *FFmpegService) ConcatAudio(ctx context.Context, audioPaths []string, outputPath string) error {
	if len(audioPaths) == 0 {
		return fmt.Errorf("no audio to concatenate")
	}

	args := make([]string, 0, len(audioPaths)*2+10)
	for _, path := range audioPaths {
		args = append(args, "-i", path)
	}
	args = append(args,
		"-filter_complex", AudioConcatFilter(len(audioPaths)),
		"-map", "[a]",
		"-c:a", "aac",
		"-b:a", "192k",
		"-y",
		outputPath,
	)

	if err := s.run(ctx, "ffmpeg", args); err != nil {
		return fmt.Errorf("ffmpeg concat audio failed: %w", err)
	}
	return nil
}

// AudioConcatFilter builds the concat filter for n sequential audio inputs.
func AudioConcatFilter(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[%d:a]", i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=0:a=1[a]", n)
	return b.String()
}

// Mux combines the assembled video timeline with the narration track. The
// audio is padded with silence and the whole output trimmed to the video's
// duration, so the export always runs exactly as long as the picture.
func (s *FFmpegService) Mux(ctx context.Context, videoPath, audioPath, outputPath string, videoDuration float64) error {
	args := []string{
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-af", "apad",
		"-t", fmt.Sprintf("%.3f", videoDuration),
		"-y",
		outputPath,
	}

	if err := s.run(ctx, "ffmpeg", args); err != nil {
		return fmt.Errorf("ffmpeg mux failed: %w", err)
	}
	return nil
}

// MediaDuration returns a file's duration in seconds using ffprobe.
func (s *FFmpegService) MediaDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var durationSec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &durationSec); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return durationSec, nil
}

// CreateTempFile returns a path inside the scratch directory.
func (s *FFmpegService) CreateTempFile(filename string) string {
	return filepath.Join(s.tempDir, filename)
}

// Cleanup removes temporary files.
func (s *FFmpegService) Cleanup(paths ...string) {
	for _, path := range paths {
		os.Remove(path)
	}
}
