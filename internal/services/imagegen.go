package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hexley/adforge/internal/models"
)

const geminiImageModel = "gemini-3-pro-image-preview"

// GeminiImageService generates scene key frames. When a campaign carries a
// brand logo it is attached as an inline reference so the product renders
// consistently with the brand mark.
type GeminiImageService struct {
	apiKey string
	client *http.Client
}

func NewGeminiImageService(apiKey string) *GeminiImageService {
	return &GeminiImageService{
		apiKey: apiKey,
		client: &http.Client{Timeout: 300 * time.Second},
	}
}

// Gemini API request/response structures
type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content geminiResponseContent `json:"content"`
}

type geminiResponseContent struct {
	Parts []geminiResponsePart `json:"parts"`
}

type geminiResponsePart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

// GenerateImage generates a single scene image. logoPNG may be nil; when set
// it is passed as an inline reference part. Each call is independent.
func (s *GeminiImageService) GenerateImage(ctx context.Context, visualPrompt string, format models.AspectRatio, logoPNG []byte) ([]byte, error) {
	parts := []geminiPart{
		{Text: composeImagePrompt(visualPrompt, format, logoPNG != nil)},
	}
	if logoPNG != nil {
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MimeType: "image/png",
				Data:     base64.StdEncoding.EncodeToString(logoPNG),
			},
		})
	}

	reqBody := geminiGenerateContentRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: parts},
		},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig: &geminiImageConfig{
				AspectRatio: string(format),
				ImageSize:   "2K",
			},
		},
	}

	return s.doGenerateContent(ctx, reqBody)
}

func (s *GeminiImageService) doGenerateContent(ctx context.Context, reqBody geminiGenerateContentRequest) ([]byte, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", geminiImageModel, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var geminiResp geminiGenerateContentResponse
	if err := json.Unmarshal(bodyBytes, &geminiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	var textParts []string
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		if part.InlineData != nil && part.InlineData.Data != "" {
			imageData, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode base64 image: %w", err)
			}
			return imageData, nil
		}
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
	}

	if len(textParts) > 0 {
		log.Printf("[Gemini] model returned text instead of image: %s", truncateString(textParts[0], 200))
		return nil, fmt.Errorf("gemini returned text instead of image")
	}
	return nil, fmt.Errorf("no image part returned (got %d parts, none with inlineData)", len(geminiResp.Candidates[0].Content.Parts))
}

// composeImagePrompt wraps the scene description with framing and brand
// instructions. The logo does the heavy lifting for brand style when present.
func composeImagePrompt(visualPrompt string, format models.AspectRatio, hasLogo bool) string {
	var prompt bytes.Buffer

	if hasLogo {
		prompt.WriteString("BRAND REFERENCE: The attached image is the brand's logo. Match its color palette and mood, and where the scene shows product packaging or signage, render the logo on it naturally. Do NOT paste the logo over the scene as a flat sticker.\n\n")
	}

	prompt.WriteString("SCENE TO DEPICT:\n")
	prompt.WriteString(visualPrompt)

	orientLabel := "Portrait"
	if format == models.AspectSquare1x1 {
		orientLabel = "Square"
	}
	prompt.WriteString(fmt.Sprintf("\n\nOutput: %s %s, high quality commercial photography look.", orientLabel, format))

	return prompt.String()
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
