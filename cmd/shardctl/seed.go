package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/7930navid/posts-server/internal/config"
	"github.com/7930navid/posts-server/internal/database"
	"github.com/7930navid/posts-server/internal/repository"
	"github.com/7930navid/posts-server/internal/seed"
	"github.com/7930navid/posts-server/internal/service"
	"github.com/7930navid/posts-server/internal/shard"
)

var (
	seedAuthors int
	seedPosts   int
	seedValue   int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the configured posts stores with demo posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		stores, err := database.Connect(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = database.Close(stores) }()

		ctx := context.Background()
		if err := database.InitStores(ctx, stores, true); err != nil {
			return err
		}

		router, err := shard.NewRouter(shard.RouterConfig{
			Strategy:     cfg.PartitionStrategy,
			Stores:       len(stores),
			RingReplicas: cfg.RingReplicas,
			QueryTimeout: cfg.QueryTimeout,
		})
		if err != nil {
			return err
		}
		svc := service.NewPostService(repository.NewPostRepository(database.DBs(stores), router))

		created, err := seed.NewSeeder(svc, seedValue).Run(ctx, seed.Options{
			Authors:        seedAuthors,
			PostsPerAuthor: seedPosts,
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "created %d posts across %d stores (%s)\n", created, len(stores), router.Strategy())
		return err
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedAuthors, "authors", 10, "number of authors")
	seedCmd.Flags().IntVar(&seedPosts, "posts", 5, "posts per author")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 0, "generator seed; 0 is random")
	rootCmd.AddCommand(seedCmd)
}
