package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hexley/adforge/internal/campaign"
	"github.com/hexley/adforge/internal/models"
	"github.com/hexley/adforge/internal/queue"
	"github.com/hexley/adforge/internal/render"
	"github.com/hexley/adforge/internal/storage"
)

const (
	defaultSceneCount = 4
	maxSceneCount     = 10
)

type Handler struct {
	store   *campaign.Store
	queue   *queue.Queue
	storage *storage.Store
}

func NewHandler(store *campaign.Store, q *queue.Queue, stor *storage.Store) *Handler {
	return &Handler{
		store:   store,
		queue:   q,
		storage: stor,
	}
}

// CreateCampaign handles POST /v1/campaigns
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ProductName == "" {
		respondError(w, http.StatusBadRequest, "product_name is required")
		return
	}
	if req.ProductDescription == "" {
		respondError(w, http.StatusBadRequest, "product_description is required")
		return
	}

	sceneCount := defaultSceneCount
	if req.SceneCount != nil {
		sceneCount = *req.SceneCount
	}
	if sceneCount < 1 || sceneCount > maxSceneCount {
		respondError(w, http.StatusBadRequest, "scene_count must be between 1 and 10")
		return
	}

	aspect := models.AspectPortrait9x16
	if req.AspectRatio != nil {
		aspect = models.AspectRatio(*req.AspectRatio)
		if !aspect.Valid() {
			respondError(w, http.StatusBadRequest, "aspect_ratio must be 9:16 or 1:1")
			return
		}
	}

	branding := models.BrandingConfig{AspectRatio: aspect}
	if req.WatermarkText != nil {
		branding.WatermarkText = *req.WatermarkText
	}
	if req.LogoBase64 != nil && *req.LogoBase64 != "" {
		raw, err := base64.StdEncoding.DecodeString(*req.LogoBase64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "logo_base64 is not valid base64")
			return
		}
		logo, err := render.DecodeImage(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "logo_base64 is not a valid PNG or JPEG image")
			return
		}
		logoPNG, err := render.EncodePNG(logo)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to process logo")
			return
		}
		branding.Logo = logo
		branding.LogoPNG = logoPNG
	}

	c := &models.Campaign{
		ID:                 uuid.New(),
		ProductName:        req.ProductName,
		ProductDescription: req.ProductDescription,
		Audience:           req.Audience,
		SceneCount:         sceneCount,
		Branding:           branding,
		Status:             models.CampaignStatusQueued,
		Assets:             models.NewCampaignAssetSet(nil),
	}
	if req.VoiceID != nil {
		c.VoiceID = *req.VoiceID
	}

	h.store.Put(c)

	if err := h.queue.Enqueue(r.Context(), queue.JobGeneratePlan, c.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue plan generation")
		return
	}

	respondJSON(w, http.StatusCreated, models.CreateCampaignResponse{
		CampaignID: c.ID,
		Status:     c.Status,
	})
}

// GetCampaign handles GET /v1/campaigns/{id}
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	view, err := h.store.View(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	if view.FinalVideoPath != nil {
		url := h.storage.PublicURL(*view.FinalVideoPath)
		view.FinalVideoURL = &url
	}

	respondJSON(w, http.StatusOK, view)
}

// GeneratePlan handles POST /v1/campaigns/{id}/plan. Re-planning replaces
// the previous storyboard and all generated assets.
func (h *Handler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	c, err := h.store.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	if c.Status == models.CampaignStatusPlanning || c.Status == models.CampaignStatusExporting {
		respondError(w, http.StatusConflict, "Campaign is busy: "+string(c.Status))
		return
	}

	if err := h.queue.Enqueue(r.Context(), queue.JobGeneratePlan, id); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue plan generation")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// RunStage handles POST /v1/campaigns/{id}/stages/{stage} where stage is
// images, voiceovers, or videos.
func (h *Handler) RunStage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	var jobType queue.JobType
	switch chi.URLParam(r, "stage") {
	case "images":
		jobType = queue.JobGenerateImages
	case "voiceovers":
		jobType = queue.JobGenerateVoiceovers
	case "videos":
		jobType = queue.JobGenerateVideos
	default:
		respondError(w, http.StatusBadRequest, "stage must be one of: images, voiceovers, videos")
		return
	}

	c, err := h.store.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	if c.Assets.Len() == 0 {
		respondError(w, http.StatusConflict, "No storyboard plan accepted yet")
		return
	}
	if c.Status == models.CampaignStatusExporting {
		respondError(w, http.StatusConflict, "Campaign is exporting")
		return
	}
	if jobType == queue.JobGenerateVideos && !c.Assets.AllComplete(models.KindImage) {
		respondError(w, http.StatusConflict, "Video generation requires all scene images to be complete")
		return
	}

	if err := h.queue.Enqueue(r.Context(), jobType, id); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue stage")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// ExportCampaign handles POST /v1/campaigns/{id}/export. The export is
// rejected up front when assets are incomplete or another export is already
// in flight.
func (h *Handler) ExportCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	// The readiness check and the flip to exporting happen in one store
	// critical section, so concurrent export requests cannot both pass.
	if err := h.store.BeginExport(id); err != nil {
		switch {
		case errors.Is(err, campaign.ErrExportInProgress):
			respondError(w, http.StatusConflict, "Export already in progress")
		case errors.Is(err, campaign.ErrNotExportReady):
			respondError(w, http.StatusConflict, "Campaign assets incomplete")
		default:
			respondError(w, http.StatusNotFound, "Campaign not found")
		}
		return
	}

	if err := h.queue.Enqueue(r.Context(), queue.JobExportVideo, id); err != nil {
		h.store.SetStatus(id, models.CampaignStatusReady)
		respondError(w, http.StatusInternalServerError, "Failed to enqueue export")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// DownloadCampaign handles GET /v1/campaigns/{id}/download with a redirect
// to a signed URL for the exported file.
func (h *Handler) DownloadCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	c, err := h.store.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	if c.FinalVideoPath == nil {
		respondError(w, http.StatusNotFound, "Video not ready")
		return
	}

	// Signed URL valid for 1 hour; download param makes the browser save the
	// file under its export name instead of the storage key.
	signedURL, err := h.storage.SignedURL(r.Context(), *c.FinalVideoPath, 3600)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate download URL")
		return
	}
	signedURL += "&download=" + url.QueryEscape(path.Base(*c.FinalVideoPath))

	http.Redirect(w, r, signedURL, http.StatusFound)
}

func (h *Handler) campaignID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid campaign ID")
		return uuid.Nil, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
