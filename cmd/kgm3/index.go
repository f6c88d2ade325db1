package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	kgm3 "github.com/Mineru98/kg-m3-go"
	"github.com/Mineru98/kg-m3-go/retrieve"
)

var indexOn []string

var indexCmd = &cobra.Command{
	Use:   "index [documents.jsonl]",
	Short: "Embed documents from a JSONL file into the Postgres index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn (or KGM3_POSTGRES_DSN) is required for indexing")
		}
		if cfg.Storage.Dimensions <= 0 {
			return fmt.Errorf("storage.dimensions is required for indexing")
		}

		documents, err := readDocuments(args[0])
		if err != nil {
			return err
		}

		p, err := newPipeline(cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		store, err := retrieve.NewPgVector(cmd.Context(), cfg.Storage.PostgresDSN, p.ranker, retrieve.PgVectorConfig{
			On:         indexOn,
			Dimensions: cfg.Storage.Dimensions,
		}, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		return store.Index(cmd.Context(), documents)
	},
}

func init() {
	indexCmd.Flags().StringSliceVar(&indexOn, "on", []string{"text"}, "document fields to embed")
}

// readDocuments parses one JSON document per line, skipping blank lines.
func readDocuments(path string) ([]kgm3.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening documents: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	var documents []kgm3.Document
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var doc kgm3.Document
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		documents = append(documents, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("no documents in %s", path)
	}
	return documents, nil
}
