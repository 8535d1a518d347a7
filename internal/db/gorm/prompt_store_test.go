package gorm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/thebtf/promptvault/internal/store"
	"github.com/thebtf/promptvault/pkg/models"
)

// testPromptStore creates a PromptStore with a temporary database for testing.
func testPromptStore(t *testing.T) *PromptStore {
	t.Helper()

	s, err := NewStore(Config{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		MaxConns: 4,
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)

	ps := NewPromptStore(s)
	t.Cleanup(func() { _ = ps.Close() })
	return ps
}

func newPrompt(id, owner, text string, created time.Time) *models.Prompt {
	return models.NewPrompt(id, owner, models.CleanedPrompt{OriginalText: text, SourceFile: "list.txt"}, created)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(Config{Path: filepath.Join(t.TempDir(), "test.db"), LogLevel: logger.Silent})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, DriverSQLite, s.Driver())
	assert.True(t, s.DB.Migrator().HasTable("prompts"))
	assert.True(t, s.DB.Migrator().HasIndex(&Prompt{}, "idx_prompts_user_created"))

	var journalMode string
	require.NoError(t, s.DB.Raw("PRAGMA journal_mode").Scan(&journalMode).Error)
	assert.Equal(t, "wal", journalMode)
}

func TestPromptStore_PingReportsClosedDatabase(t *testing.T) {
	s, err := NewStore(Config{Path: filepath.Join(t.TempDir(), "test.db"), LogLevel: logger.Silent})
	require.NoError(t, err)
	ps := NewPromptStore(s)

	var _ store.Pinger = ps
	require.NoError(t, ps.Ping(context.Background()))

	require.NoError(t, ps.Close())
	assert.Error(t, ps.Ping(context.Background()))
}

func TestNewStore_ConfigErrors(t *testing.T) {
	_, err := NewStore(Config{Driver: "oracle"})
	assert.Error(t, err)

	_, err = NewStore(Config{Driver: DriverSQLite})
	assert.Error(t, err)

	_, err = NewStore(Config{Driver: DriverPostgres})
	assert.Error(t, err)
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := NewStore(Config{Path: path, LogLevel: logger.Silent})
	require.NoError(t, err)
	ps := NewPromptStore(s)
	require.NoError(t, ps.CommitBatch(ctx, []*models.Prompt{newPrompt("u1_a", "u1", "A castle in the clouds", time.Now())}))
	require.NoError(t, ps.Close())

	s, err = NewStore(Config{Path: path, LogLevel: logger.Silent})
	require.NoError(t, err)
	ps = NewPromptStore(s)
	defer ps.Close()

	_, err = ps.Get(ctx, "u1_a")
	assert.NoError(t, err)
}

func TestPromptStore_CommitAndGet(t *testing.T) {
	ps := testPromptStore(t)
	ctx := context.Background()
	created := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, ps.CommitBatch(ctx, []*models.Prompt{newPrompt("u1_a", "u1", "A castle in the clouds", created)}))

	got, err := ps.Get(ctx, "u1_a")
	require.NoError(t, err)
	assert.Equal(t, "A castle in the clouds", got.OriginalText)
	assert.Equal(t, "list.txt", got.SourceFile)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, []string{}, got.Tags)
	assert.Equal(t, map[string]string{}, got.Meta)

	_, err = ps.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPromptStore_UpsertKeepsEnrichment(t *testing.T) {
	ps := testPromptStore(t)
	ctx := context.Background()
	created := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, ps.CommitBatch(ctx, []*models.Prompt{newPrompt("u1_a", "u1", "a castle in the clouds", created)}))

	desc := "turrets above the mist"
	require.NoError(t, ps.Patch(ctx, "u1_a", models.PromptPatch{
		Tags:              []string{"castle", "fantasy"},
		Meta:              map[string]string{models.MetaPlace: "sky"},
		SampleDescription: &desc,
	}))

	again := newPrompt("u1_a", "u1", "A Castle in the Clouds", created.Add(24*time.Hour))
	again.SourceFile = "second.txt"
	require.NoError(t, ps.CommitBatch(ctx, []*models.Prompt{again}))

	got, err := ps.Get(ctx, "u1_a")
	require.NoError(t, err)
	assert.Equal(t, "A Castle in the Clouds", got.OriginalText)
	assert.Equal(t, "second.txt", got.SourceFile)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, []string{"castle", "fantasy"}, got.Tags)
	assert.Equal(t, "sky", got.Meta[models.MetaPlace])
	assert.Equal(t, desc, got.SampleDescription)
}

func TestPromptStore_PatchMergesMeta(t *testing.T) {
	ps := testPromptStore(t)
	ctx := context.Background()
	require.NoError(t, ps.CommitBatch(ctx, []*models.Prompt{newPrompt("u1_a", "u1", "A castle in the clouds", time.Now())}))

	require.NoError(t, ps.Patch(ctx, "u1_a", models.PromptPatch{Meta: map[string]string{models.MetaPlace: "sky"}}))
	require.NoError(t, ps.Patch(ctx, "u1_a", models.PromptPatch{Meta: map[string]string{models.MetaLighting: "golden hour"}}))

	got, err := ps.Get(ctx, "u1_a")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{models.MetaPlace: "sky", models.MetaLighting: "golden hour"}, got.Meta)

	assert.ErrorIs(t, ps.Patch(ctx, "missing", models.PromptPatch{}), store.ErrNotFound)
}

func TestPromptStore_QueryByOwnerNewestFirst(t *testing.T) {
	ps := testPromptStore(t)
	ctx := context.Background()
	base := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, ps.CommitBatch(ctx, []*models.Prompt{
		newPrompt("old", "u1", "old prompt text here", base),
		newPrompt("new", "u1", "new prompt text here", base.Add(2*time.Minute)),
		newPrompt("mid", "u1", "mid prompt text here", base.Add(time.Minute)),
		newPrompt("foreign", "u2", "someone else's prompt", base.Add(time.Hour)),
	}))

	got, err := ps.QueryByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Equal(t, "old", got[2].ID)
}

func TestPromptStore_Delete(t *testing.T) {
	ps := testPromptStore(t)
	ctx := context.Background()
	require.NoError(t, ps.CommitBatch(ctx, []*models.Prompt{newPrompt("u1_a", "u1", "A castle in the clouds", time.Now())}))

	require.NoError(t, ps.Delete(ctx, "u1_a"))
	assert.ErrorIs(t, ps.Delete(ctx, "u1_a"), store.ErrNotFound)
}

func TestPromptStore_DeleteAllByOwnerInChunks(t *testing.T) {
	ps := testPromptStore(t)
	ctx := context.Background()

	prompts := make([]*models.Prompt, 0, 1203)
	for i := 0; i < 1200; i++ {
		prompts = append(prompts, newPrompt(fmt.Sprintf("u1_%d", i), "u1", fmt.Sprintf("prompt number %d", i), time.Now()))
	}
	for i := 0; i < 3; i++ {
		prompts = append(prompts, newPrompt(fmt.Sprintf("u2_%d", i), "u2", fmt.Sprintf("prompt number %d", i), time.Now()))
	}
	_, err := store.BulkWrite(ctx, ps, prompts, store.DefaultChunkSize)
	require.NoError(t, err)

	n, err := ps.DeleteAllByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1200, n)

	left, err := ps.QueryByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, left)

	others, err := ps.QueryByOwner(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, others, 3)
}

func TestPromptStore_Postgres(t *testing.T) {
	dsn := os.Getenv("PROMPTVAULT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PROMPTVAULT_TEST_POSTGRES_DSN not set")
	}
	s, err := NewStore(Config{Driver: DriverPostgres, DSN: dsn, LogLevel: logger.Silent})
	require.NoError(t, err)
	ps := NewPromptStore(s)
	defer ps.Close()

	ctx := context.Background()
	owner := fmt.Sprintf("pgtest_%d", time.Now().UnixNano())
	require.NoError(t, ps.CommitBatch(ctx, []*models.Prompt{newPrompt(owner+"_a", owner, "A castle in the clouds", time.Now())}))
	require.NoError(t, ps.CommitBatch(ctx, []*models.Prompt{newPrompt(owner+"_a", owner, "A Castle in the clouds", time.Now())}))

	n, err := ps.DeleteAllByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestParseLimitParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"limit=10", 10},
		{"limit=0", 50},
		{"limit=-3", 50},
		{"limit=abc", 50},
	}
	for _, tt := range tests {
		r, err := http.NewRequest(http.MethodGet, "/api/prompts?"+tt.query, nil)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ParseLimitParam(r, 50), tt.query)
	}
}
