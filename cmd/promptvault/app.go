package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/thebtf/promptvault/internal/config"
	gormdb "github.com/thebtf/promptvault/internal/db/gorm"
	"github.com/thebtf/promptvault/internal/enrich"
	"github.com/thebtf/promptvault/internal/extract"
	"github.com/thebtf/promptvault/internal/fingerprint"
	"github.com/thebtf/promptvault/internal/ingest"
	"github.com/thebtf/promptvault/internal/library"
	"github.com/thebtf/promptvault/internal/metrics"
	"github.com/thebtf/promptvault/internal/normalize"
	"github.com/thebtf/promptvault/internal/store"
	"github.com/thebtf/promptvault/internal/store/memstore"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg      *config.Config
	store    store.Store
	metrics  *metrics.Metrics
	pipeline *ingest.Pipeline
	library  *library.Service
}

func newApp(cfg *config.Config) (*app, error) {
	fp, err := fingerprint.ForScheme(fingerprint.Scheme(cfg.Fingerprint))
	if err != nil {
		return nil, err
	}

	rules, err := normalize.Load(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load cleaning rules: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	var enricher enrich.Enricher
	if cfg.LLMAPIKey != "" {
		enricher = enrich.New(enrich.Config{
			BaseURL: cfg.LLMBaseURL,
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.Model,
			Timeout: time.Duration(cfg.LLMTimeoutSeconds) * time.Second,
		})
	} else {
		log.Warn().Msg("No LLM API key configured, enrichment disabled")
	}

	m := metrics.New()
	p := ingest.New(extract.NewRegistry(), rules, st, enricher, ingest.Config{
		Fingerprint: fp,
		Metrics:     m,
		EnrichLimit: cfg.EnrichLimit,
		ChunkSize:   cfg.ChunkSize,
	})

	return &app{
		cfg:      cfg,
		store:    st,
		metrics:  m,
		pipeline: p,
		library:  library.New(st, enricher, p, m),
	}, nil
}

// openStore selects the storage backend.
func openStore(cfg *config.Config) (store.Store, error) {
	driver := strings.ToLower(cfg.DBDriver)
	if driver == "memory" {
		log.Warn().Msg("Using in-memory store, prompts are lost on exit")
		return memstore.New(), nil
	}

	level := logger.Silent
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		level = logger.Warn
	}
	db, err := gormdb.NewStore(gormdb.Config{
		Driver:   driver,
		Path:     cfg.DBPath,
		DSN:      cfg.DatabaseDSN,
		MaxConns: cfg.MaxConns,
		LogLevel: level,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	log.Debug().Str("driver", db.Driver()).Msg("Store opened")
	return gormdb.NewPromptStore(db), nil
}

func (a *app) Close() error {
	return a.store.Close()
}
