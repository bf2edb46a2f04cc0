package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hexley/adforge/internal/api"
	"github.com/hexley/adforge/internal/campaign"
	"github.com/hexley/adforge/internal/compositor"
	"github.com/hexley/adforge/internal/config"
	"github.com/hexley/adforge/internal/models"
	"github.com/hexley/adforge/internal/pipeline"
	"github.com/hexley/adforge/internal/queue"
	"github.com/hexley/adforge/internal/render"
	"github.com/hexley/adforge/internal/services"
	"github.com/hexley/adforge/internal/storage"
	"github.com/hexley/adforge/internal/worker"
)

func main() {
	log.Println("Starting AdForge API...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	// Initialize storage
	stor := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	log.Println("Initialized Supabase storage")

	// Campaigns live in memory for the lifetime of the process
	store := campaign.NewStore()

	handler := api.NewHandler(store, q, stor)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start worker if enabled
	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		renderer, err := render.NewRenderer(cfg.BrandFontPath)
		if err != nil {
			log.Fatalf("Failed to load brand font: %v", err)
		}
		if cfg.BrandFontPath == "" {
			log.Println("WARNING: No BRAND_FONT_PATH set — overlays use the built-in bitmap font")
		}

		ffmpegSvc, err := compositor.NewFFmpegService(cfg.TempDir)
		if err != nil {
			log.Fatalf("Failed to initialize ffmpeg service: %v", err)
		}

		storyboardSvc := services.NewStoryboardService(cfg.OpenAIKey)
		imageSvc := services.NewGeminiImageService(cfg.GeminiKey)
		speechSvc := services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
		videoSvc := services.NewVideoJobService(cfg.GeminiKey, cfg.VeoModel)
		log.Printf("Video generation model: %s", cfg.VeoModel)

		listener := func(sceneID int, kind models.AssetKind, status models.AssetStatus) {
			log.Printf("[Status] Scene %d: %s -> %s", sceneID, kind, status)
		}
		p := pipeline.New(imageSvc, speechSvc, videoSvc, stor, renderer, listener)
		comp := compositor.New(ffmpegSvc, renderer, stor)

		w := worker.New(q, store, storyboardSvc, p, comp)

		var workerCtx context.Context
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Run(workerCtx)
	}

	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	if workerCancel != nil {
		workerCancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
