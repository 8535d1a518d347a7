// Package ingest turns an uploaded file into stored, partially enriched
// prompt records.
//
// One import moves through idle, parsing, saving, enriching and then done or
// error. Extraction and persistence failures end the import in error;
// enrichment failures are absorbed per item.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/promptvault/internal/enrich"
	"github.com/thebtf/promptvault/internal/extract"
	"github.com/thebtf/promptvault/internal/fingerprint"
	"github.com/thebtf/promptvault/internal/metrics"
	"github.com/thebtf/promptvault/internal/normalize"
	"github.com/thebtf/promptvault/internal/store"
	"github.com/thebtf/promptvault/pkg/models"
)

// DefaultEnrichLimit is how many newly saved prompts an import enriches.
const DefaultEnrichLimit = 5

// State is a step of the import state machine.
type State string

const (
	StateIdle      State = "idle"
	StateParsing   State = "parsing"
	StateSaving    State = "saving"
	StateEnriching State = "enriching"
	StateDone      State = "done"
	StateError     State = "error"
)

// Terminal reports whether no further transitions follow.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError
}

// Progress counts enrichment steps.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Event is delivered to an Observer on every transition and progress step.
type Event struct {
	JobID    string   `json:"job_id,omitempty"`
	State    State    `json:"state"`
	Message  string   `json:"message"`
	Error    string   `json:"error,omitempty"`
	Progress Progress `json:"progress"`
}

// Observer receives import events. It is called synchronously from the
// goroutine running the import.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Request is one file to import on behalf of a user.
type Request struct {
	JobID    string
	UserID   string
	FileName string
	Data     []byte
}

// Report summarizes a finished import.
type Report struct {
	JobID         string              `json:"job_id,omitempty"`
	FileName      string              `json:"file_name"`
	Format        models.SourceFormat `json:"format,omitempty"`
	State         State               `json:"state"`
	Error         string              `json:"error,omitempty"`
	IDs           []string            `json:"ids,omitempty"`
	Fragments     int                 `json:"fragments"`
	Saved         int                 `json:"saved"`
	Enriched      int                 `json:"enriched"`
	Fallbacks     int                 `json:"fallbacks"`
	PatchFailures int                 `json:"patch_failures"`
}

// Config tunes a Pipeline. Zero values select defaults.
type Config struct {
	Fingerprint fingerprint.Func
	Metrics     *metrics.Metrics
	Now         func() time.Time
	// EnrichLimit caps enrichment per import. Negative disables enrichment.
	EnrichLimit int
	ChunkSize   int
}

// Pipeline runs imports. It holds no per-import state and may run several
// imports concurrently.
type Pipeline struct {
	extractors *extract.Registry
	normalizer atomic.Pointer[normalize.Normalizer]
	store      store.Store
	enricher   enrich.Enricher
	cfg        Config
}

// New creates a pipeline. A nil enricher disables enrichment.
func New(extractors *extract.Registry, normalizer *normalize.Normalizer, st store.Store, enricher enrich.Enricher, cfg Config) *Pipeline {
	if cfg.Fingerprint == nil {
		cfg.Fingerprint = fingerprint.SHA128
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.EnrichLimit == 0 {
		cfg.EnrichLimit = DefaultEnrichLimit
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = store.DefaultChunkSize
	}
	if extractors == nil {
		extractors = extract.NewRegistry()
	}
	if normalizer == nil {
		normalizer = normalize.Default()
	}
	p := &Pipeline{extractors: extractors, store: st, enricher: enricher, cfg: cfg}
	p.normalizer.Store(normalizer)
	return p
}

// SetNormalizer swaps the cleaning rules used by imports that start later.
func (p *Pipeline) SetNormalizer(n *normalize.Normalizer) {
	if n != nil {
		p.normalizer.Store(n)
	}
}

// Normalizer returns the rules currently in use.
func (p *Pipeline) Normalizer() *normalize.Normalizer {
	return p.normalizer.Load()
}

// Supports reports whether an extractor handles the file name's extension.
func (p *Pipeline) Supports(fileName string) bool {
	_, err := p.extractors.Lookup(fileName)
	return err == nil
}

// Fingerprint returns the id function used for new records.
func (p *Pipeline) Fingerprint() fingerprint.Func {
	return p.cfg.Fingerprint
}

// run carries the mutable state of one import.
type run struct {
	obs    Observer
	report *Report
}

func (r *run) emit(state State, msg string, prog Progress) {
	r.report.State = state
	if r.obs != nil {
		r.obs.OnEvent(Event{JobID: r.report.JobID, State: state, Message: msg, Progress: prog})
	}
}

func (r *run) fail(err error) error {
	r.report.State = StateError
	r.report.Error = UserMessage(err)
	if r.obs != nil {
		r.obs.OnEvent(Event{JobID: r.report.JobID, State: StateError, Message: r.report.Error, Error: err.Error()})
	}
	return err
}

// Run imports one file. The returned report is never nil. The error is
// non-nil only when the import ends in the error state.
func (p *Pipeline) Run(ctx context.Context, req Request, obs Observer) (*Report, error) {
	start := time.Now()
	r := &run{obs: obs, report: &Report{JobID: req.JobID, FileName: req.FileName, State: StateIdle}}
	p.cfg.Metrics.ImportStarted()
	defer func() {
		outcome := string(r.report.State)
		p.cfg.Metrics.ImportFinished(string(r.report.Format), outcome, time.Since(start))
	}()

	logger := log.With().Str("job", req.JobID).Str("user", req.UserID).Str("file", req.FileName).Logger()

	if req.UserID == "" {
		logger.Warn().Msg("Import rejected, no user")
		return r.report, r.fail(ErrMissingUser)
	}

	// parsing
	r.emit(StateParsing, "Reading file...", Progress{})
	ex, err := p.extractors.Lookup(req.FileName)
	if err != nil {
		logger.Warn().Err(err).Msg("Import rejected")
		return r.report, r.fail(err)
	}
	r.report.Format = ex.Format()

	frags, err := ex.Extract(ctx, req.FileName, req.Data)
	if err != nil {
		logger.Warn().Err(err).Msg("Extraction failed")
		return r.report, r.fail(err)
	}
	cleaned := Dedupe(p.Normalizer(), frags)
	r.report.Fragments = len(frags)
	logger.Info().Int("fragments", len(frags)).Int("prompts", len(cleaned)).Msg("File parsed")

	// saving
	r.emit(StateSaving, fmt.Sprintf("Found %d prompts. Saving...", len(cleaned)), Progress{})
	now := p.cfg.Now()
	records := make([]*models.Prompt, len(cleaned))
	for i, cp := range cleaned {
		records[i] = models.NewPrompt(p.cfg.Fingerprint(req.UserID, cp.OriginalText), req.UserID, cp, now)
	}
	ids, err := store.BulkWrite(ctx, p.store, records, p.cfg.ChunkSize)
	r.report.IDs = ids
	r.report.Saved = len(ids)
	p.cfg.Metrics.PromptsSaved(len(ids))
	if err != nil {
		logger.Error().Err(err).Int("saved", len(ids)).Msg("Bulk write failed")
		return r.report, r.fail(fmt.Errorf("%w: %w", ErrPersistenceFailure, err))
	}

	// enriching
	total := 0
	if p.enricher != nil && p.cfg.EnrichLimit > 0 {
		total = min(len(ids), p.cfg.EnrichLimit)
	}
	r.emit(StateEnriching, fmt.Sprintf("Saved %d prompts.", len(ids)), Progress{Total: total})
	for i := 0; i < total; i++ {
		r.emit(StateEnriching, fmt.Sprintf("Analyzing prompt %d/%d", i+1, total), Progress{Completed: i, Total: total})
		p.enrichOne(ctx, &logger, r.report, ids[i], records[i].OriginalText)
		r.emit(StateEnriching, fmt.Sprintf("Analyzed prompt %d/%d", i+1, total), Progress{Completed: i + 1, Total: total})
	}

	r.emit(StateDone, fmt.Sprintf("Imported %d prompts.", len(ids)), Progress{Completed: total, Total: total})
	logger.Info().
		Int("saved", r.report.Saved).
		Int("enriched", r.report.Enriched).
		Int("fallbacks", r.report.Fallbacks).
		Int("patch_failures", r.report.PatchFailures).
		Dur("took", time.Since(start)).
		Msg("Import finished")
	return r.report, nil
}

// enrichOne analyzes one prompt and patches the record. A failed analysis is
// replaced by the fallback record; a failed patch is only logged.
func (p *Pipeline) enrichOne(ctx context.Context, logger *zerolog.Logger, rep *Report, id, text string) {
	analysis, err := p.enricher.Analyze(ctx, text)
	outcome := metrics.EnrichOK
	if err != nil {
		logger.Warn().Err(fmt.Errorf("%w: %w", ErrEnrichmentFailure, err)).Str("id", id).Msg("Using fallback analysis")
		analysis = enrich.Fallback(text)
		outcome = metrics.EnrichFallback
	}

	if err := p.store.Patch(ctx, id, analysis.Patch()); err != nil {
		logger.Error().Err(err).Str("id", id).Msg("Failed to store analysis")
		rep.PatchFailures++
		p.cfg.Metrics.Enrichment(metrics.EnrichPatchFailed)
		return
	}
	if outcome == metrics.EnrichFallback {
		rep.Fallbacks++
	} else {
		rep.Enriched++
	}
	p.cfg.Metrics.Enrichment(outcome)
}
