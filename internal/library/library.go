// Package library is the per-user prompt library: manual adds, listing and
// search, deletion, and on-demand visualize and enhance calls.
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/thebtf/promptvault/internal/enrich"
	"github.com/thebtf/promptvault/internal/ingest"
	"github.com/thebtf/promptvault/internal/metrics"
	"github.com/thebtf/promptvault/internal/search"
	"github.com/thebtf/promptvault/internal/store"
	"github.com/thebtf/promptvault/pkg/models"
)

// DefaultTagSuggestions is how many quick tags TopTags returns by default.
const DefaultTagSuggestions = 8

var (
	// ErrRejected is returned when a manually added text fails the cleaning rules.
	ErrRejected = errors.New("text is not a usable prompt")
	// ErrMissingUser is returned when a call carries no owner.
	ErrMissingUser = ingest.ErrMissingUser
)

// AddRequest is a manually entered prompt.
type AddRequest struct {
	UserID     string `json:"-"`
	Text       string `json:"text"`
	SourceFile string `json:"source_file,omitempty"`
	Enrich     bool   `json:"enrich"`
}

// Service serves one prompt store to many users. Every read and write is
// scoped to the calling user; prompts of other users look like missing ones.
type Service struct {
	store    store.Store
	search   *search.Manager
	enricher enrich.Enricher
	pipeline *ingest.Pipeline
	metrics  *metrics.Metrics
	now      func() time.Time
	flight   singleflight.Group
}

// New creates a library over st. Cleaning rules and ids come from the import
// pipeline so manual adds and imports agree on identity. A nil enricher
// disables visualize, enhance and enrichment on add.
func New(st store.Store, enricher enrich.Enricher, pipeline *ingest.Pipeline, m *metrics.Metrics) *Service {
	return &Service{
		store:    st,
		search:   search.NewManager(st),
		enricher: enricher,
		pipeline: pipeline,
		metrics:  m,
		now:      time.Now,
	}
}

// Ping checks the backing database. Stores without a connection are always
// reachable.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.store.(store.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Add cleans and stores one prompt. Re-adding the same text returns the
// existing record's id.
func (s *Service) Add(ctx context.Context, req AddRequest) (*models.Prompt, error) {
	if req.UserID == "" {
		return nil, ErrMissingUser
	}
	res := s.pipeline.Normalizer().Apply(req.Text)
	if !res.Accepted {
		return nil, fmt.Errorf("%w: rule %s", ErrRejected, res.RuleName)
	}

	id := s.pipeline.Fingerprint()(req.UserID, res.Text)
	p := models.NewPrompt(id, req.UserID, models.CleanedPrompt{OriginalText: res.Text, SourceFile: req.SourceFile}, s.now())
	if err := s.store.CommitBatch(ctx, []*models.Prompt{p}); err != nil {
		return nil, fmt.Errorf("%w: %w", ingest.ErrPersistenceFailure, err)
	}
	s.metrics.PromptsSaved(1)

	if req.Enrich && s.enricher != nil {
		s.enrich(ctx, id, res.Text)
	}
	return s.store.Get(ctx, id)
}

func (s *Service) enrich(ctx context.Context, id, text string) {
	analysis, err := s.enricher.Analyze(ctx, text)
	outcome := metrics.EnrichOK
	if err != nil {
		log.Warn().Err(fmt.Errorf("%w: %w", ingest.ErrEnrichmentFailure, err)).Str("id", id).Msg("Using fallback analysis")
		analysis = enrich.Fallback(text)
		outcome = metrics.EnrichFallback
	}
	if err := s.store.Patch(ctx, id, analysis.Patch()); err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to store analysis")
		outcome = metrics.EnrichPatchFailed
	}
	s.metrics.Enrichment(outcome)
}

// Search lists or searches the user's prompts.
func (s *Service) Search(ctx context.Context, params search.SearchParams) (*search.Result, error) {
	if params.UserID == "" {
		return nil, ErrMissingUser
	}
	return s.search.Search(ctx, params)
}

// TopTags suggests the user's most used tags.
func (s *Service) TopTags(ctx context.Context, userID string, n int) ([]search.TagCount, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if n <= 0 {
		n = DefaultTagSuggestions
	}
	return s.search.TopTags(ctx, userID, n)
}

// Get returns one of the user's prompts.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.Prompt, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, store.ErrNotFound
	}
	return p, nil
}

// Delete removes one of the user's prompts.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// DeleteAll removes every prompt of the user and returns how many went.
func (s *Service) DeleteAll(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrMissingUser
	}
	n, err := s.store.DeleteAllByOwner(ctx, userID)
	if err != nil {
		return n, err
	}
	log.Info().Str("user", userID).Int("deleted", n).Msg("Library cleared")
	return n, nil
}

// Visualize asks the model for a short painterly description of the prompt
// and stores it as the sample description. Concurrent calls for the same
// prompt share one model request.
func (s *Service) Visualize(ctx context.Context, userID, id string) (*models.Prompt, error) {
	if s.enricher == nil {
		return nil, enrich.ErrNotConfigured
	}
	p, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	v, err, shared := s.flight.Do("visualize:"+id, func() (interface{}, error) {
		desc, err := s.enricher.Visualize(ctx, p.OriginalText)
		if err != nil {
			return nil, err
		}
		desc = strings.TrimSpace(desc)
		if err := s.store.Patch(ctx, id, models.PromptPatch{SampleDescription: &desc}); err != nil {
			return nil, err
		}
		return desc, nil
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("id", id).Bool("shared", shared).Msg("Visualized prompt")

	p.SampleDescription = v.(string)
	return p, nil
}

// Enhance returns an artistic rewrite of the prompt. The stored prompt is
// not changed.
func (s *Service) Enhance(ctx context.Context, userID, id string) (string, error) {
	if s.enricher == nil {
		return "", enrich.ErrNotConfigured
	}
	p, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}
	out, err := s.enricher.Enhance(ctx, p.OriginalText)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
