package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/imnotsalty/mlschatproto/internal/chat"
	"github.com/imnotsalty/mlschatproto/internal/config"
	"github.com/imnotsalty/mlschatproto/internal/listings"
	"github.com/imnotsalty/mlschatproto/internal/oracle"
	"github.com/imnotsalty/mlschatproto/internal/prompts"
	"github.com/imnotsalty/mlschatproto/internal/render"
	"github.com/imnotsalty/mlschatproto/internal/storage"
	"github.com/imnotsalty/mlschatproto/internal/templates"
)

// Terminal REPL for a single conversation, mainly for trying prompts and
// template changes without the HTTP server.
func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	templateClient := templates.NewClient(cfg.BannerbearAPIKey, cfg.BannerbearURL, 0)
	catalog, err := templateClient.LoadCatalog(ctx)
	if err != nil {
		log.Fatalf("failed to load design templates: %v", err)
	}

	gemini, err := oracle.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiMapsModel)
	if err != nil {
		log.Fatalf("failed to init oracle: %v", err)
	}

	assistant := &chat.Assistant{
		Catalog:  catalog,
		Oracle:   gemini,
		Listings: listings.NewClient(ctx, listings.Config(cfg.Reso), 0),
		Renderer: render.NewClient(cfg.BannerbearAPIKey, cfg.BannerbearURL, 0),
		Store:    storage.NewInMemoryStore(),
	}

	session := chat.NewSession()
	fmt.Printf("assistant> %s\n", prompts.Greeting)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" || text == "/exit" {
			break
		}

		reply := assistant.HandleMessage(ctx, session, text)
		fmt.Printf("assistant> %s\n", reply)
	}

	if err := scanner.Err(); err != nil {
		log.Fatalf("read input: %v", err)
	}
}
