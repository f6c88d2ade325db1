package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mineru98/kg-m3-go/rank"
)

var (
	topkQuery string
	topkK     int
)

var topkCmd = &cobra.Command{
	Use:   "topk [candidates...]",
	Short: "Rank candidate texts against a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		indices, scores, err := p.ranker.SelectTopK(cmd.Context(), topkQuery, args, topkK)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for i, idx := range indices {
			fmt.Fprintf(w, "%d\t%.6f\t%s\n", idx, scores[i], args[idx])
		}
		return nil
	},
}

func init() {
	topkCmd.Flags().StringVarP(&topkQuery, "query", "q", "", "query text")
	topkCmd.Flags().IntVarP(&topkK, "top-k", "k", rank.DefaultTopK, "results to keep")
	_ = topkCmd.MarkFlagRequired("query")
}
