// Command seed loads a JSON document into the configured store, one
// top-level collection at a time.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"sort"

	"github.com/staffhub/staffhub/backend/internal/setup"
	"github.com/staffhub/staffhub/backend/internal/storage/tree"
	"github.com/staffhub/staffhub/shared/config"
	"github.com/staffhub/staffhub/shared/logger"
)

func main() {
	var configFolder, file string
	flag.StringVar(&configFolder, "config_folder", "backend/config", "path to folder with configs")
	flag.StringVar(&file, "file", "backend/config/seed.json", "JSON document to load")
	flag.Parse()

	cfg := config.MustLoad(configFolder)
	logger.Initialize(cfg.Public.Log.Level, cfg.Public.Log.Json)
	if cfg.Public.Store.Backend == "memory" {
		log.Fatal("memory store does not outlive this process, set store.seed_file instead")
	}

	data, err := os.ReadFile(file)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", file, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Fatalf("Seed must be a JSON object: %v", err)
	}

	ctx := context.Background()
	store, err := setup.NewStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	roots := make([]string, 0, len(doc))
	for k := range doc {
		roots = append(roots, k)
	}
	sort.Strings(roots)

	for _, root := range roots {
		path, err := tree.NewPath(root)
		if err != nil {
			log.Fatalf("Invalid collection %q: %v", root, err)
		}
		if err := store.Set(ctx, path, doc[root]); err != nil {
			log.Fatalf("Failed to write %s: %v", root, err)
		}
		logger.Log.Info("collection loaded", "component", "seed", "collection", root, "backend", cfg.Public.Store.Backend)
	}
}
