package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

type embedOutput struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

var embedCmd = &cobra.Command{
	Use:   "embed [texts...]",
	Short: "Embed texts and print one JSON object per line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		rows, err := p.ranker.Embed(cmd.Context(), args)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		for i, row := range rows {
			if err := enc.Encode(embedOutput{Text: args[i], Embedding: row}); err != nil {
				return err
			}
		}
		return nil
	},
}
