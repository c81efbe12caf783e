package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/newsground/internal/application/handlers"
	"github.com/ersonp/newsground/internal/domain/ports"
	"github.com/ersonp/newsground/internal/infrastructure/config"
	embedder "github.com/ersonp/newsground/internal/infrastructure/embedder/openai"
	"github.com/ersonp/newsground/internal/infrastructure/vectordb/qdrant"
)

func newInitCmd() *cobra.Command {
	var semantic bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new newsground workspace",
		Long:  "Creates a .newsground directory with default configuration and the entity database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, semantic)
		},
	}

	cmd.Flags().BoolVar(&semantic, "semantic", false, "Also create the Qdrant alias collection")

	return cmd
}

func runInit(cmd *cobra.Command, semantic bool) error {
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	var collections ports.CollectionManager
	if semantic {
		cfg, err := config.Parse(cwd, nil)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		repo, err := qdrant.NewRepository(cfg.Qdrant)
		if err != nil {
			return fmt.Errorf("connecting to qdrant: %w", err)
		}
		defer repo.Close()
		collections = repo
	}

	result, err := handlers.NewInitHandler(collections, embedder.VectorSize).Handle(ctx, cwd)
	if err != nil {
		return err
	}

	fmt.Printf("Created %s\n", result.ConfigPath)
	fmt.Printf("Created database: %s\n", result.DatabasePath)
	if !result.FullText {
		fmt.Println("Note: SQLite FTS5 is unavailable, full-text alias search uses LIKE.")
	}
	if result.CollectionName != "" {
		fmt.Printf("Created Qdrant collection: %s\n", result.CollectionName)
	}
	fmt.Println("newsground initialized successfully!")

	return nil
}
