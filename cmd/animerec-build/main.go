// Command animerec-build runs the offline half of the pipeline: it loads
// the raw anime dataset, normalizes it into combined records, persists the
// reduced dataset artifact, and builds a fresh vector index. Run it once
// and again whenever the dataset changes; the serving command only reads
// what this one writes.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"animerec/internal/chunker"
	"animerec/internal/config"
	"animerec/internal/dataset"
	"animerec/internal/domain"
	"animerec/internal/embedding/openai"
	"animerec/internal/embedding/tfidf"
	"animerec/internal/recommender"
	"animerec/internal/summarizer"
	"animerec/internal/vectorstore"
	"animerec/internal/vectorstore/disk"
	"animerec/internal/vectorstore/qdrant"
)

func main() {
	config.LoadEnv()

	var cfgPath, datasetPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/animerec/config.yaml if not provided)")
	flag.StringVar(&datasetPath, "dataset", "", "Path to the raw dataset CSV (overrides config)")
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
	if datasetPath == "" {
		datasetPath = cfg.Dataset.Path
	}

	items, err := dataset.Load(datasetPath)
	if err != nil {
		log.Fatalf("dataset load failed: %v", err)
	}
	records := dataset.Normalize(items)
	if len(records) == 0 {
		log.Fatalf("no valid rows in %s after normalization", datasetPath)
	}
	if err := dataset.WriteCombined(cfg.Dataset.CombinedPath, records); err != nil {
		log.Fatalf("failed to write combined dataset: %v", err)
	}
	log.Printf("normalized %d of %d rows, combined dataset written to %s", len(records), len(items), cfg.Dataset.CombinedPath)

	emb, err := buildEmbedder(cfg)
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}
	store, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("vector store init failed: %v", err)
	}
	ch := chunker.NewSentenceChunker(cfg.Chunker.MaxRunes, cfg.Chunker.OverlapSentences)

	b := recommender.NewBuilder(ch, emb, store)
	schema, err := b.Build(records)
	if err != nil {
		log.Fatalf("index build failed: %v", err)
	}
	log.Printf("index build %s published: embedder=%s model=%s dim=%d", schema.BuildID, schema.Embedder, schema.Model, schema.Dimension)

	var corpus strings.Builder
	for _, rec := range records {
		corpus.WriteString(rec.CombinedInfo)
		corpus.WriteString("\n")
	}
	sum := summarizer.NewFrequencySummarizer()
	digest, err := sum.Summarize(corpus.String(), cfg.Summarizer.MaxSentences)
	if err == nil && digest != "" {
		fmt.Println("Corpus digest:")
		fmt.Println(digest)
	}
}

func buildEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
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
