package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrompt(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	p := NewPrompt("u1_1", "u1", CleanedPrompt{OriginalText: "A castle", SourceFile: "a.txt"}, now)

	assert.Equal(t, "u1_1", p.ID)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "A castle", p.OriginalText)
	assert.Equal(t, "a.txt", p.SourceFile)
	assert.Equal(t, now, p.CreatedAt)
	assert.NotNil(t, p.Tags)
	assert.NotNil(t, p.Meta)
	assert.False(t, p.IsEnriched())
}

func TestPrompt_Clone(t *testing.T) {
	p := &Prompt{ID: "x", Tags: []string{"a"}, Meta: map[string]string{"k": "v"}}
	c := p.Clone()
	c.Tags[0] = "b"
	c.Meta["k"] = "w"

	assert.Equal(t, "a", p.Tags[0])
	assert.Equal(t, "v", p.Meta["k"])

	var nilPrompt *Prompt
	assert.Nil(t, nilPrompt.Clone())
}

func TestPrompt_Matches(t *testing.T) {
	p := &Prompt{
		OriginalText: "A samurai in neon rain",
		Tags:         []string{"Cyberpunk", "night"},
		Meta:         map[string]string{MetaArtStyle: "Ukiyo-e", MetaPlace: "Tokyo"},
	}

	tests := []struct {
		term string
		want bool
	}{
		{"", true},
		{"  ", true},
		{"SAMURAI", true},
		{"cyber", true},
		{"ukiyo", true},
		{"tokyo", false},
		{"dragon", false},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Matches(tt.term))
		})
	}
}

func TestPromptPatch_Apply(t *testing.T) {
	p := &Prompt{Tags: []string{"old"}, Meta: map[string]string{MetaPlace: "forest", MetaPose: "sitting"}, SampleDescription: "before"}

	PromptPatch{Meta: map[string]string{MetaPose: "standing"}}.Apply(p)
	assert.Equal(t, []string{"old"}, p.Tags)
	assert.Equal(t, map[string]string{MetaPlace: "forest", MetaPose: "standing"}, p.Meta)
	assert.Equal(t, "before", p.SampleDescription)

	desc := "after"
	PromptPatch{Tags: []string{"new"}, SampleDescription: &desc}.Apply(p)
	assert.Equal(t, []string{"new"}, p.Tags)
	assert.Equal(t, "after", p.SampleDescription)

	empty := &Prompt{}
	PromptPatch{Meta: map[string]string{MetaAction: "run"}}.Apply(empty)
	assert.Equal(t, "run", empty.Meta[MetaAction])
}

func TestAnalysis_PatchFillsEveryMetaKey(t *testing.T) {
	a := &Analysis{Meta: map[string]string{MetaAction: "flying"}, SampleDescription: "desc"}
	patch := a.Patch()

	require.NotNil(t, patch.Tags)
	assert.Empty(t, patch.Tags)
	require.NotNil(t, patch.SampleDescription)
	assert.Equal(t, "desc", *patch.SampleDescription)
	assert.Len(t, patch.Meta, len(MetaKeys))
	assert.Equal(t, "flying", patch.Meta[MetaAction])
	assert.Equal(t, "", patch.Meta[MetaArtStyle])
}

func TestJSONColumns(t *testing.T) {
	var tags JSONStringArray
	require.NoError(t, tags.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, JSONStringArray{"a", "b"}, tags)
	require.NoError(t, tags.Scan(nil))
	assert.Equal(t, JSONStringArray{}, tags)
	assert.Error(t, tags.Scan(42))

	v, err := JSONStringArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var meta JSONStringMap
	require.NoError(t, meta.Scan(`{"place":"sky"}`))
	assert.Equal(t, "sky", meta["place"])

	v, err = JSONStringMap(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)
}
