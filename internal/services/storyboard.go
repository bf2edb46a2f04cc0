package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hexley/adforge/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

// StoryboardService turns a product brief into an ordered list of ad scenes
// using OpenAI structured output.
type StoryboardService struct {
	client *openai.Client
}

func NewStoryboardService(apiKey string) *StoryboardService {
	return &StoryboardService{
		client: openai.NewClient(apiKey),
	}
}

// storyboardPlan is the JSON shape the model is asked to produce.
type storyboardPlan struct {
	Scenes []models.Scene `json:"scenes"`
	Angle  string         `json:"angle"`
}

// GeneratePlan asks the model for sceneCount ad scenes for the given product
// and audience. Every scene must come back with narration, an on-screen
// caption, and a visual prompt; a plan with missing fields is rejected.
func (s *StoryboardService) GeneratePlan(ctx context.Context, productName, productDescription, audience string, format models.AspectRatio, sceneCount int) ([]models.Scene, error) {
	systemPrompt := buildPlanSystemPrompt(format, sceneCount)
	userPrompt := buildPlanUserPrompt(productName, productDescription, audience, sceneCount)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: "gpt-5-mini",
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 1.0,
	})

	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	rawContent := resp.Choices[0].Message.Content
	const maxLogLen = 2000

	var plan storyboardPlan
	if err := json.Unmarshal([]byte(rawContent), &plan); err != nil {
		log.Printf("[Storyboard] parse failed: %v", err)
		if len(rawContent) > maxLogLen {
			log.Printf("[Storyboard] raw response (truncated): %s...", rawContent[:maxLogLen])
		} else {
			log.Printf("[Storyboard] raw response: %s", rawContent)
		}
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}

	if len(plan.Scenes) == 0 {
		log.Printf("[Storyboard] plan has no scenes (angle=%q)", plan.Angle)
		return nil, fmt.Errorf("plan has no scenes")
	}

	for i, scene := range plan.Scenes {
		var missing []string
		if scene.VoiceoverText == "" {
			missing = append(missing, "voiceover_text")
		}
		if scene.OnScreenText == "" {
			missing = append(missing, "on_screen_text")
		}
		if scene.VisualPrompt == "" {
			missing = append(missing, "visual_prompt")
		}
		if len(missing) > 0 {
			log.Printf("[Storyboard] scene %d missing required fields: %v", i, missing)
			if len(rawContent) > maxLogLen {
				log.Printf("[Storyboard] raw response (truncated): %s...", rawContent[:maxLogLen])
			} else {
				log.Printf("[Storyboard] raw response: %s", rawContent)
			}
			return nil, fmt.Errorf("scene %d missing required fields: %v", i, missing)
		}
	}

	// Scene IDs are positional; the model's values are not trusted.
	for i := range plan.Scenes {
		plan.Scenes[i].ID = i
	}

	log.Printf("[Storyboard] plan generated: %d scenes, angle=%q", len(plan.Scenes), plan.Angle)

	return plan.Scenes, nil
}

func buildPlanSystemPrompt(format models.AspectRatio, sceneCount int) string {
	orientationDesc := "portrait-format viewing (like TikTok/Reels/Shorts)"
	if format == models.AspectSquare1x1 {
		orientationDesc = "square-format viewing (like Instagram feed)"
	}

	return fmt.Sprintf(`You are an expert performance-marketing creative director writing short product ad videos for %s (%s aspect ratio).

Your task is to plan a %d-scene ad. Each scene is a few seconds of AI-generated video with a voice-over line and a short on-screen caption.

WRITING PROCESS - THINK LIKE AN AD CREATIVE, NOT A SCENE MACHINE:
Before writing any individual scene, compose the ENTIRE ad as one pitch: hook, problem or desire, product payoff, and a closing push. Only then divide it into scenes. Read back-to-back, the voice-over lines should sound like one persuasive message, not disconnected captions.

Guidelines:
- Scene 0 must hook the target audience in the first second. No generic intros.
- Keep each voiceover_text to ONE short spoken sentence (roughly 4-8 seconds aloud). Write conversationally, use contractions.
- on_screen_text is a punchy caption of at most 6 words, NOT a repeat of the narration.
- visual_prompt must be a complete scene description: subject, setting, lighting, camera framing, and how the product appears. Compose for %s framing.
- The final scene should land the product name and push toward action.
- Do NOT include audio cues or sound descriptions in visual_prompt; the clip itself is silent.

ALL FIELDS ARE REQUIRED - DO NOT LEAVE ANY FIELD EMPTY:
- voiceover_text: the narration for the scene. NEVER empty.
- on_screen_text: the caption overlaid on the scene. NEVER empty.
- visual_prompt: the full visual description. NEVER empty.

Top-level fields:
- scenes: exactly %d scene objects in playback order.
- angle: one sentence naming the creative angle of the ad.

Structure your response as JSON matching the required schema.`, orientationDesc, format, sceneCount, format, sceneCount)
}

func buildPlanUserPrompt(productName, productDescription, audience string, sceneCount int) string {
	prompt := fmt.Sprintf("Plan a %d-scene video ad for the product: %q\n\nProduct description: %s", sceneCount, productName, productDescription)
	if audience != "" {
		prompt += fmt.Sprintf("\n\nTarget audience: %s", audience)
	}
	return prompt
}
