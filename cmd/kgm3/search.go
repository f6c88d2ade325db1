package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	kgm3 "github.com/Mineru98/kg-m3-go"
	"github.com/Mineru98/kg-m3-go/rank"
	"github.com/Mineru98/kg-m3-go/retrieve"
)

var (
	searchK  int
	searchOn []string
)

type searchOutput struct {
	Score    float64       `json:"score"`
	Document kgm3.Document `json:"document"`
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the Postgres index, printing one JSON result per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn (or KGM3_POSTGRES_DSN) is required for searching")
		}
		if cfg.Storage.Dimensions <= 0 {
			return fmt.Errorf("storage.dimensions is required for searching")
		}

		p, err := newPipeline(cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		store, err := retrieve.NewPgVector(cmd.Context(), cfg.Storage.PostgresDSN, p.ranker, retrieve.PgVectorConfig{
			On:         searchOn,
			Dimensions: cfg.Storage.Dimensions,
		}, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		results, err := store.Search(cmd.Context(), args[0], searchK)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, result := range results {
			if err := enc.Encode(searchOutput{Score: result.Score, Document: result.Document}); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchK, "top-k", "k", rank.DefaultTopK, "results to keep")
	searchCmd.Flags().StringSliceVar(&searchOn, "on", []string{"text"}, "document fields the index embeds")
}
