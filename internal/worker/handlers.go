package worker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	gormdb "github.com/thebtf/promptvault/internal/db/gorm"
	"github.com/thebtf/promptvault/internal/enrich"
	"github.com/thebtf/promptvault/internal/ingest"
	"github.com/thebtf/promptvault/internal/library"
	"github.com/thebtf/promptvault/internal/search"
	"github.com/thebtf/promptvault/internal/store"
)

// UserHeader carries the acting user's id.
const UserHeader = "X-User-ID"

const readyPingTimeout = 2 * time.Second

type ctxKey int

const userKey ctxKey = iota

func userFrom(ctx context.Context) string {
	u, _ := ctx.Value(userKey).(string)
	return u
}

// requireReady rejects requests until the service is listening.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeError(w, http.StatusServiceUnavailable, "service not ready")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireUser resolves the acting user from the header, falling back to the
// configured default user.
func (s *Service) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.Header.Get(UserHeader))
		if user == "" {
			user = s.config.DefaultUser
		}
		if user == "" {
			writeError(w, http.StatusBadRequest, UserHeader+" header is required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  status,
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readyPingTimeout)
	defer cancel()
	if err := s.library.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("Database ping failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Service) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.sseBroadcaster.Serve(w, r, userFrom(r.Context()))
}

func (s *Service) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.config.MaxUploadMB) << 20
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	if r.ContentLength > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file is too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	if !s.allowed(header.Filename) {
		writeError(w, http.StatusUnsupportedMediaType, ingest.UserMessage(ingest.ErrUnsupportedFormat))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	job := &Job{
		ID:        uuid.NewString(),
		UserID:    userFrom(r.Context()),
		FileName:  header.Filename,
		State:     ingest.StateIdle,
		CreatedAt: time.Now(),
	}
	log.Info().Str("job", job.ID).Str("user", job.UserID).Str("file", job.FileName).Int("bytes", len(data)).Msg("Import accepted")
	s.startImport(context.WithoutCancel(r.Context()), job, data)

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID, "state": string(ingest.StateIdle)})
}

func (s *Service) handleGetImport(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.get(userFrom(r.Context()), chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "import not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Service) handleListImports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"imports": s.jobs.list(userFrom(r.Context()))})
}

func (s *Service) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	res, err := s.library.Search(r.Context(), search.SearchParams{
		UserID:  userFrom(r.Context()),
		Query:   q.Get("q"),
		Tag:     q.Get("tag"),
		OrderBy: q.Get("order"),
		Offset:  offset,
		Limit:   gormdb.ParseLimitParam(r, search.DefaultLimit),
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleAddPrompt(w http.ResponseWriter, r *http.Request) {
	var req library.AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.UserID = userFrom(r.Context())
	p, err := s.library.Add(r.Context(), req)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Service) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	p, err := s.library.Get(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Service) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := s.library.Delete(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDeleteAllPrompts(w http.ResponseWriter, r *http.Request) {
	n, err := s.library.DeleteAll(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *Service) handleVisualize(w http.ResponseWriter, r *http.Request) {
	p, err := s.library.Visualize(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Service) handleEnhance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	text, err := s.library.Enhance(r.Context(), userFrom(r.Context()), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "text": text})
}

func (s *Service) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.library.TopTags(r.Context(), userFrom(r.Context()), gormdb.ParseLimitParam(r, library.DefaultTagSuggestions))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tags": tags})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ingest.ErrDecodeFailure), errors.Is(err, library.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, library.ErrMissingUser):
		return http.StatusBadRequest
	case errors.Is(err, enrich.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) writeErr(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := err.Error()
	switch code {
	case http.StatusInternalServerError:
		log.Error().Err(err).Msg("Request failed")
		msg = "internal error"
	case http.StatusNotFound:
		msg = "prompt not found"
	}
	writeError(w, code, msg)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
