package main

import (
	"context"
	"fmt"
	"os"

	"shifa/internal/config"
	"shifa/internal/database"
	"shifa/internal/knowledge"
	"shifa/internal/retrieval"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedEntry is one document in a seed file. JSON seed files parse too,
// since JSON is valid YAML.
type seedEntry struct {
	Title   string `yaml:"title" json:"title"`
	Content string `yaml:"content" json:"content"`
}

// seedCmd imports a knowledge-base file and rebuilds the index once.
var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Import knowledge entries from a YAML or JSON file",
	Long: `Seed reads a file containing a list of {title, content} documents,
adds each to the knowledge store, and rebuilds the retrieval index once
at the end.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(args[0])
	},
}

func runSeed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}

	var entries []seedEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing seed file: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("seed file %s contains no entries", path)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	store := knowledge.NewStore(db)
	for i, e := range entries {
		if e.Title == "" || e.Content == "" {
			return fmt.Errorf("seed entry %d is missing title or content", i)
		}
		if _, err := store.Add(ctx, e.Title, e.Content); err != nil {
			return err
		}
	}

	// One rebuild for the whole batch instead of one per entry.
	coordinator := retrieval.NewCoordinator(store, newEmbedder(cfg), db)
	if err := coordinator.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d entries; store now holds %d.\n", len(entries), count)
	return nil
}
