package main

import (
	"errors"
	"fmt"

	"github.com/Mineru98/kg-m3-go/models"
	"github.com/Mineru98/kg-m3-go/rank"
	"github.com/Mineru98/kg-m3-go/tokenizer"
)

// pipeline owns the native resources behind a ranker.
type pipeline struct {
	backbone *models.ONNXBackbone
	tok      *tokenizer.HF
	ranker   *rank.Ranker
}

func newPipeline(cfg *Config) (*pipeline, error) {
	backbone, err := models.NewONNXBackbone(cfg.Model.Path)
	if err != nil {
		return nil, fmt.Errorf("loading model: %w", err)
	}

	tok, err := tokenizer.NewHF(cfg.Model.TokenizerPath, tokenizer.HFConfig{PadID: cfg.Model.PadID})
	if err != nil {
		backbone.Close()
		return nil, fmt.Errorf("loading tokenizer: %w", err)
	}

	dense, err := models.NewDense(backbone, models.DenseConfig{
		Normalize:   cfg.Model.Normalize,
		Temperature: cfg.Model.Temperature,
	})
	if err != nil {
		tok.Close()
		backbone.Close()
		return nil, err
	}

	ranker, err := rank.New(dense, tok, rank.Config{
		BatchSize: cfg.Model.BatchSize,
		MaxLength: cfg.Model.MaxLength,
		CacheSize: cfg.Model.CacheSize,
	})
	if err != nil {
		tok.Close()
		backbone.Close()
		return nil, err
	}

	return &pipeline{backbone: backbone, tok: tok, ranker: ranker}, nil
}

func (p *pipeline) Close() error {
	return errors.Join(p.tok.Close(), p.backbone.Close())
}
