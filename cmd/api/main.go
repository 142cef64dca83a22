package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/imnotsalty/mlschatproto/internal/chat"
	"github.com/imnotsalty/mlschatproto/internal/config"
	"github.com/imnotsalty/mlschatproto/internal/events"
	"github.com/imnotsalty/mlschatproto/internal/listings"
	"github.com/imnotsalty/mlschatproto/internal/media"
	"github.com/imnotsalty/mlschatproto/internal/oracle"
	"github.com/imnotsalty/mlschatproto/internal/render"
	"github.com/imnotsalty/mlschatproto/internal/server"
	"github.com/imnotsalty/mlschatproto/internal/storage"
	"github.com/imnotsalty/mlschatproto/internal/templates"
	"github.com/imnotsalty/mlschatproto/internal/vision"
)

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	templateClient := templates.NewClient(cfg.BannerbearAPIKey, cfg.BannerbearURL, 0)
	catalog, err := templateClient.LoadCatalog(ctx)
	if err != nil {
		// No degraded mode: every decision needs full template data.
		log.Fatalf("failed to load design templates: %v", err)
	}
	log.Printf("loaded %d design templates", len(catalog))

	gemini, err := oracle.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiMapsModel)
	if err != nil {
		log.Fatalf("failed to init oracle: %v", err)
	}

	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	defer store.Close()

	var uploader media.Uploader
	if cfg.Media.Bucket != "" && cfg.Media.Region != "" {
		uploader, err = media.NewS3Uploader(ctx, media.S3Config{
			Bucket:         cfg.Media.Bucket,
			Region:         cfg.Media.Region,
			Endpoint:       cfg.Media.Endpoint,
			PublicURL:      cfg.Media.PublicURL,
			KeyPrefix:      cfg.Media.KeyPrefix,
			AccessKey:      cfg.Media.AccessKey,
			SecretKey:      cfg.Media.SecretKey,
			ForcePathStyle: cfg.Media.ForcePathStyle,
		})
		if err != nil {
			log.Fatalf("failed to init media uploader: %v", err)
		}
		log.Println("media uploader: S3")
	} else if cfg.Media.FreeImageAPIKey != "" {
		uploader = media.NewFreeImageUploader(cfg.Media.FreeImageAPIKey, "", 0)
		log.Println("media uploader: freeimage.host")
	} else {
		uploader = media.Disabled()
		log.Println("media uploader: disabled (no S3 or freeimage config)")
	}

	var retoucher vision.Retoucher
	if vr := vision.NewVertexRetoucher(vision.VertexConfig{
		ProjectID: cfg.Vision.ProjectID,
		Location:  cfg.Vision.Location,
		Model:     cfg.Vision.Model,
		APIKey:    cfg.Vision.APIKey,
	}, uploader); vr != nil {
		retoucher = vr
		log.Println("photo retoucher: Vertex Imagen")
	}

	broker := events.NewBroker()

	assistant := &chat.Assistant{
		Catalog:  catalog,
		Oracle:   gemini,
		Listings: listings.NewClient(ctx, listings.Config(cfg.Reso), 0),
		Renderer: render.NewClient(cfg.BannerbearAPIKey, cfg.BannerbearURL, 0),
		Store:    store,
		Events:   broker,
	}

	handler := server.Handler{
		Sessions:  chat.NewRegistry(),
		Assistant: assistant,
		Uploader:  uploader,
		Retoucher: retoucher,
		Events:    broker,
		Store:     store,
	}

	staticFS := http.FileServer(http.Dir("web"))
	srv := server.New(cfg.Port, handler, cfg.APIKeyHash, staticFS)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownChan
		log.Println("shutting down server...")
		if err := srv.Close(); err != nil {
			log.Printf("server close error: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
