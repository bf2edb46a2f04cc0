package models

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Enums

// AssetStatus is the lifecycle state of one generated asset (image,
// voice-over, or video clip) for one scene.
type AssetStatus string

const (
	StatusReady      AssetStatus = "ready"
	StatusGenerating AssetStatus = "generating"
	StatusComplete   AssetStatus = "complete"
	StatusFailed     AssetStatus = "failed"
)

// assetTransitions is the single source of truth for legal status moves.
// complete is terminal; failed may re-enter generating on a manual retry.
var assetTransitions = map[AssetStatus][]AssetStatus{
	StatusReady:      {StatusGenerating},
	StatusGenerating: {StatusComplete, StatusFailed},
	StatusFailed:     {StatusGenerating},
	StatusComplete:   {},
}

// CanTransition reports whether moving from s to target is a legal move.
func (s AssetStatus) CanTransition(target AssetStatus) bool {
	for _, next := range assetTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// AssetKind identifies which of a scene's three assets is being addressed.
type AssetKind string

const (
	KindImage     AssetKind = "image"
	KindVoiceover AssetKind = "voiceover"
	KindVideo     AssetKind = "video"
)

type CampaignStatus string

const (
	CampaignStatusQueued     CampaignStatus = "queued"
	CampaignStatusPlanning   CampaignStatus = "planning"
	CampaignStatusReady      CampaignStatus = "ready"
	CampaignStatusGenerating CampaignStatus = "generating"
	CampaignStatusExporting  CampaignStatus = "exporting"
	CampaignStatusCompleted  CampaignStatus = "completed"
	CampaignStatusFailed     CampaignStatus = "failed"
)

// AspectRatio is the output format of the exported video.
type AspectRatio string

const (
	AspectPortrait9x16 AspectRatio = "9:16"
	AspectSquare1x1    AspectRatio = "1:1"
)

// CanvasSize returns the output canvas dimensions for the format.
func (r AspectRatio) CanvasSize() (width, height int) {
	switch r {
	case AspectSquare1x1:
		return 1080, 1080
	default:
		return 720, 1280
	}
}

func (r AspectRatio) Valid() bool {
	return r == AspectPortrait9x16 || r == AspectSquare1x1
}

// Models

// Scene is one storyboard beat. Scenes are produced by the storyboard
// generator and never mutated afterwards; their order is fixed for the
// life of a plan.
type Scene struct {
	ID            int    `json:"id"`
	VoiceoverText string `json:"voiceover_text"`
	OnScreenText  string `json:"on_screen_text"`
	VisualPrompt  string `json:"visual_prompt"`
}

// SceneAsset holds the generated media and per-kind status for one scene.
// ImageBytes keeps the raw, pre-watermark payload because it is the input
// to video generation; the URLs point at the uploaded, renderable copies.
type SceneAsset struct {
	SceneID     int         `json:"scene_id"`
	ImageStatus AssetStatus `json:"image_status"`
	VoiceStatus AssetStatus `json:"voiceover_status"`
	VideoStatus AssetStatus `json:"video_status"`

	ImageBytes []byte  `json:"-"`
	ImageURL   *string `json:"image_url,omitempty"`
	AudioURL   *string `json:"audio_url,omitempty"`
	VideoURL   *string `json:"video_url,omitempty"`

	ImageError *string `json:"image_error,omitempty"`
	VoiceError *string `json:"voiceover_error,omitempty"`
	VideoError *string `json:"video_error,omitempty"`
}

func (a *SceneAsset) status(kind AssetKind) *AssetStatus {
	switch kind {
	case KindImage:
		return &a.ImageStatus
	case KindVoiceover:
		return &a.VoiceStatus
	default:
		return &a.VideoStatus
	}
}

func (a *SceneAsset) errField(kind AssetKind) **string {
	switch kind {
	case KindImage:
		return &a.ImageError
	case KindVoiceover:
		return &a.VoiceError
	default:
		return &a.VideoError
	}
}

// Status returns the current status for one asset kind.
func (a *SceneAsset) Status(kind AssetKind) AssetStatus {
	return *a.status(kind)
}

// CampaignAssetSet is the ordered, fixed-length set of scene assets for one
// accepted storyboard plan. Index i corresponds to scene i. All mutation and
// inspection goes through its methods so status transitions are validated in
// one place instead of being trusted at every call site.
type CampaignAssetSet struct {
	mu     sync.RWMutex
	assets []*SceneAsset
}

// NewCampaignAssetSet creates one asset slot per scene, all statuses ready.
func NewCampaignAssetSet(scenes []Scene) *CampaignAssetSet {
	assets := make([]*SceneAsset, len(scenes))
	for i, scene := range scenes {
		assets[i] = &SceneAsset{
			SceneID:     scene.ID,
			ImageStatus: StatusReady,
			VoiceStatus: StatusReady,
			VideoStatus: StatusReady,
		}
	}
	return &CampaignAssetSet{assets: assets}
}

func (s *CampaignAssetSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.assets)
}

// Status returns the current status of scene i's asset of the given kind.
func (s *CampaignAssetSet) Status(i int, kind AssetKind) AssetStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assets[i].Status(kind)
}

// Transition moves scene i's asset of the given kind to target, validating
// the move against the transition table. The video asset additionally may
// not leave ready until the scene's image is complete.
func (s *CampaignAssetSet) Transition(i int, kind AssetKind, target AssetStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset := s.assets[i]
	current := asset.Status(kind)
	if !current.CanTransition(target) {
		return fmt.Errorf("scene %d: illegal %s transition %s -> %s", asset.SceneID, kind, current, target)
	}
	if kind == KindVideo && current == StatusReady && asset.ImageStatus != StatusComplete {
		return fmt.Errorf("scene %d: video generation requires a complete image (image status: %s)", asset.SceneID, asset.ImageStatus)
	}

	*asset.status(kind) = target
	if target == StatusGenerating {
		*asset.errField(kind) = nil
	}
	return nil
}

// Fail records a provider error and moves the asset to failed.
func (s *CampaignAssetSet) Fail(i int, kind AssetKind, message string) error {
	if err := s.Transition(i, kind, StatusFailed); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.assets[i].errField(kind) = &message
	return nil
}

// SetImageResult stores the raw image payload plus the uploaded (watermarked)
// copy's URL and marks the image complete.
func (s *CampaignAssetSet) SetImageResult(i int, raw []byte, url string) error {
	if err := s.Transition(i, KindImage, StatusComplete); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[i].ImageBytes = raw
	s.assets[i].ImageURL = &url
	return nil
}

// SetAudioResult stores the uploaded voice-over URL and marks it complete.
func (s *CampaignAssetSet) SetAudioResult(i int, url string) error {
	if err := s.Transition(i, KindVoiceover, StatusComplete); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[i].AudioURL = &url
	return nil
}

// SetVideoResult stores the uploaded clip URL and marks it complete.
func (s *CampaignAssetSet) SetVideoResult(i int, url string) error {
	if err := s.Transition(i, KindVideo, StatusComplete); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[i].VideoURL = &url
	return nil
}

// Get returns a copy of scene i's asset. The ImageBytes slice is shared but
// never mutated in place after being set.
func (s *CampaignAssetSet) Get(i int) SceneAsset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.assets[i]
}

// Snapshot returns copies of all scene assets in scene order.
func (s *CampaignAssetSet) Snapshot() []SceneAsset {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SceneAsset, len(s.assets))
	for i, a := range s.assets {
		out[i] = *a
	}
	return out
}

// AllComplete reports whether every scene's asset of the given kind is
// complete. This is the readiness predicate that gates the next stage.
func (s *CampaignAssetSet) AllComplete(kind AssetKind) bool {
	if s == nil || len(s.assets) == 0 {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assets {
		if a.Status(kind) != StatusComplete {
			return false
		}
	}
	return true
}

// BrandingConfig is the immutable per-campaign branding. Logo is the decoded
// image used by the overlay renderer; LogoPNG is the encoded copy passed to
// the image generator so products render consistently with the brand mark.
type BrandingConfig struct {
	Logo          image.Image `json:"-"`
	LogoPNG       []byte      `json:"-"`
	WatermarkText string      `json:"watermark_text"`
	AspectRatio   AspectRatio `json:"aspect_ratio"`
}

// Campaign is the aggregate owned by the in-memory store: the brief, the
// accepted storyboard, the asset set, and export state.
type Campaign struct {
	ID                 uuid.UUID         `json:"id"`
	ProductName        string            `json:"product_name"`
	ProductDescription string            `json:"product_description"`
	Audience           string            `json:"audience"`
	SceneCount         int               `json:"scene_count"`
	VoiceID            string            `json:"voice_id,omitempty"`
	Branding           BrandingConfig    `json:"branding"`
	Status             CampaignStatus    `json:"status"`
	Scenes             []Scene           `json:"scenes,omitempty"`
	Assets             *CampaignAssetSet `json:"-"`
	FinalVideoPath     *string           `json:"-"`
	ErrorCode          *string           `json:"error_code,omitempty"`
	ErrorMessage       *string           `json:"error_message,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// DTOs for API responses

// StageReadiness mirrors the readiness predicates: each flag enables the
// corresponding next action in a client.
type StageReadiness struct {
	ImagesComplete     bool `json:"images_complete"`
	VoiceoversComplete bool `json:"voiceovers_complete"`
	VideosComplete     bool `json:"videos_complete"`
	ExportReady        bool `json:"export_ready"`
}

type CampaignResponse struct {
	Campaign
	SceneAssets   []SceneAsset   `json:"scene_assets,omitempty"`
	Readiness     StageReadiness `json:"readiness"`
	FinalVideoURL *string        `json:"final_video_url,omitempty"`
}

type CreateCampaignRequest struct {
	ProductName        string  `json:"product_name"`
	ProductDescription string  `json:"product_description"`
	Audience           string  `json:"audience"`
	SceneCount         *int    `json:"scene_count,omitempty"`    // Default: 4
	AspectRatio        *string `json:"aspect_ratio,omitempty"`   // "9:16" (default) or "1:1"
	WatermarkText      *string `json:"watermark_text,omitempty"` // Empty = no watermark
	VoiceID            *string `json:"voice_id,omitempty"`       // TTS voice override
	LogoBase64         *string `json:"logo_base64,omitempty"`    // Base64-encoded PNG/JPEG
}

type CreateCampaignResponse struct {
	CampaignID uuid.UUID      `json:"campaign_id"`
	Status     CampaignStatus `json:"status"`
}
