package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"shifa/internal/ai"
	"shifa/internal/config"
	"shifa/internal/database"
	"shifa/internal/embedder"
	"shifa/internal/gateway"
	"shifa/internal/knowledge"
	"shifa/internal/retrieval"
	"shifa/internal/version"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	port    int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shifa",
	Short: "Shifa - Islamic spiritual-health chatbot backend",
	Long: `Shifa answers Islamic spiritual-health questions with a hosted
language model, grounded in a curated knowledge base through vector
retrieval. Running without a subcommand starts the server.`,
	Version: version.Full(),
}

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Shifa API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Shifa %s\n", version.Full())
		if version.BuildDate != "unknown" {
			fmt.Printf("Build date: %s\n", version.BuildDate)
		}
		fmt.Printf("Go version: %s\n", version.GoVersion)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.json", "config file path")
	serverCmd.Flags().IntVarP(&port, "port", "p", 0, "override configured server port")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tokenRootCmd())

	// If no command is specified, default to server
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return serverCmd.RunE(cmd, args)
	}
}

// newEmbedder builds the configured embedding provider.
func newEmbedder(cfg *config.Config) embedder.Embedder {
	switch cfg.Embedding.Provider {
	case "huggingface":
		return embedder.NewHuggingFace(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dims)
	default:
		return embedder.NewHashing(cfg.Embedding.Dims)
	}
}

func runServer() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if port > 0 {
		cfg.Port = port
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	store := knowledge.NewStore(db)
	emb := newEmbedder(cfg)
	coordinator := retrieval.NewCoordinator(store, emb, db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("[Shifa] Embedding provider: %s", emb.Name())
	if err := coordinator.Warm(ctx); err != nil {
		// The server still comes up; queries return empty context until
		// the next successful rebuild.
		log.Printf("[Shifa] Initial index build failed: %v", err)
	}

	provider := ai.NewHuggingFace(cfg.Generation.APIKey, cfg.Generation.Model)
	tokens := newTokenStorage(db)

	g := gateway.New(cfg, store, coordinator, provider, tokens)
	return g.Start(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
