// Command animerec serves interactive anime recommendations over a
// previously built vector index. Build the index with animerec-build
// first; this command never writes to it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"animerec/internal/config"
	"animerec/internal/domain"
	"animerec/internal/embedding/openai"
	"animerec/internal/embedding/tfidf"
	"animerec/internal/generator"
	"animerec/internal/recommender"
	"animerec/internal/tui"
	"animerec/internal/vectorstore"
	"animerec/internal/vectorstore/disk"
	"animerec/internal/vectorstore/qdrant"
)

func main() {
	config.LoadEnv()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/animerec/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Resolve the generation credential before anything else so a missing
	// key fails here, not on the first recommend call.
	genKey, err := config.Secret(cfg.Generator.APIKeyEnv)
	if err != nil {
		log.Fatalf("generator credential: %v", err)
	}
	gen, err := generator.NewClient(generator.Config{
		BaseURL:    cfg.Generator.BaseURL,
		APIKey:     genKey,
		Model:      cfg.Generator.Model,
		Timeout:    time.Duration(cfg.Generator.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Generator.MaxRetries,
	})
	if err != nil {
		log.Fatalf("generator init failed: %v", err)
	}

	emb, err := buildEmbedder(cfg)
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}
	store, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("vector store init failed: %v", err)
	}

	rec, err := recommender.Open(emb, store, gen, cfg.Retrieval.TopK)
	if err != nil {
		if errors.Is(err, domain.ErrIndexNotFound) {
			log.Fatalf("vector index missing at %s — run animerec-build first", cfg.VectorStore.Location)
		}
		log.Fatalf("failed to open recommender: %v", err)
	}
	defer rec.Close()

	m := tui.New(rec)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}

func buildEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		// Fitted state is restored from the index schema at open time.
		return tfidf.NewEmbedder(), nil
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		key, err := config.Secret(cfg.Embedder.OpenAI.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		return openai.NewClient(openai.Config{
			BaseURL: cfg.Embedder.OpenAI.BaseURL,
			APIKey:  key,
			Model:   cfg.Embedder.OpenAI.Model,
			Timeout: time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func buildStore(cfg *config.AppConfig) (vectorstore.Store, error) {
	switch cfg.VectorStore.Type {
	case "disk", "":
		return disk.NewStore(cfg.VectorStore.Location), nil
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		var key string
		if cfg.VectorStore.Qdrant.APIKeyEnv != "" {
			// An explicitly configured credential env must resolve.
			k, err := config.Secret(cfg.VectorStore.Qdrant.APIKeyEnv)
			if err != nil {
				return nil, err
			}
			key = k
		}
		return qdrant.NewStore(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     key,
			Collection: cfg.VectorStore.Qdrant.Collection,
			Timeout:    time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
}
