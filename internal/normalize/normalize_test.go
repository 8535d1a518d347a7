package normalize

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_StripsMarkers(t *testing.T) {
	n := Default()
	body := "A red fox resting in the snowy forest"

	tests := []struct {
		name  string
		input string
	}{
		{"numbered dot", "12. " + body},
		{"parenthesized number", "(3) " + body},
		{"letter dot", "b. " + body},
		{"prompt label", "Prompt: " + body},
		{"subject label lower case", "subject: " + body},
		{"number paren", "4) " + body},
		{"number dash", "7- " + body},
		{"leading dash", "- " + body},
		{"combined markers", "1. a. " + body},
		{"marker then label", "2. Prompt: " + body},
		{"surrounding whitespace", "   5.   " + body + "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.Normalize(tt.input)
			require.True(t, ok)
			assert.Equal(t, body, got)
		})
	}
}

func TestNormalize_StripsSurroundingQuotes(t *testing.T) {
	got, ok := Default().Normalize(`"Hello world this is long enough"`)
	require.True(t, ok)
	assert.Equal(t, "Hello world this is long enough", got)
}

func TestNormalize_LengthMeasuredBeforeUnquoting(t *testing.T) {
	got, ok := Default().Normalize(`"Hello world!!!"`)
	require.True(t, ok)
	assert.Equal(t, "Hello world!!!", got)
	assert.Less(t, len([]rune(got)), DefaultMinLength)

	_, ok = Default().Normalize(`"Hello world!"`)
	assert.False(t, ok)
}

func TestNormalize_KeepsInnerQuotes(t *testing.T) {
	got, ok := Default().Normalize(`A sign that says "welcome home" at dusk`)
	require.True(t, ok)
	assert.Equal(t, `A sign that says "welcome home" at dusk`, got)
}

func TestNormalize_Rejects(t *testing.T) {
	n := Default()

	tests := []struct {
		name     string
		input    string
		wantRule string
	}{
		{"empty", "", "empty"},
		{"whitespace", " \t\n ", "empty"},
		{"chapter header", "Chapter 2", "too-short"},
		{"introduction", "Introduction", "too-short"},
		{"short after stripping", "12. Short one", "too-short"},
		{"only markers", "1. 2. 3.", "too-short"},
		{"long chapter header", "Chapter 12 The Long Road Home", "section-header"},
		{"part header", "Part 3 of the spring prompt set", "section-header"},
		{"page header", "PAGE 14 of the illustrated booklet", "section-header"},
		{"table of contents", "Table of Contents", "structural-word"},
		{"conclusion", "   CONCLUSION   ", "too-short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := n.Apply(tt.input)
			assert.False(t, res.Accepted)
			assert.Empty(t, res.Text)
			assert.Equal(t, tt.wantRule, res.RuleName)
		})
	}
}

func TestNormalize_ShortInputsAlwaysRejected(t *testing.T) {
	n := Default()
	for i := 0; i < DefaultMinLength; i++ {
		input := "9. " + strings.Repeat("x", i)
		_, ok := n.Normalize(input)
		assert.False(t, ok, "input %q should be rejected", input)
	}
}

func TestNormalize_StructuralWordOnlyWholeString(t *testing.T) {
	got, ok := Default().Normalize("Summary of a dragon flying over mountains")
	require.True(t, ok)
	assert.Equal(t, "Summary of a dragon flying over mountains", got)
}

func TestNormalize_CountsCharactersNotBytes(t *testing.T) {
	// 14 characters, more than 15 bytes.
	_, ok := Default().Normalize("ÅÅÅÅÅÅÅÅÅÅÅÅÅÅ")
	assert.False(t, ok)

	got, ok := Default().Normalize("ÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅ")
	require.True(t, ok)
	assert.Equal(t, "ÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅ", got)
}

func TestDefault_RuleOrder(t *testing.T) {
	assert.Equal(t,
		[]string{"enumeration", "label", "too-short", "section-header", "structural-word", "quotes"},
		Default().Rules())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no rules", "min_length: 10\n", "no rules defined"},
		{"bad pattern", "rules:\n  - name: broken\n    action: strip\n    pattern: '('\n", "compile pattern"},
		{"missing pattern", "rules:\n  - action: reject\n", "requires a pattern"},
		{"unknown action", "rules:\n  - name: odd\n    action: explode\n", "unknown action"},
		{"invalid yaml", "rules: [", "parse rules"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_CustomRules(t *testing.T) {
	n, err := Parse([]byte(`
min_length: 5
rules:
  - name: hashtag
    action: strip
    pattern: '^#+'
  - action: min_length
  - name: draft
    action: reject
    pattern: '(?i)^draft'
`))
	require.NoError(t, err)

	got, ok := n.Normalize("## neon city")
	require.True(t, ok)
	assert.Equal(t, "neon city", got)

	res := n.Apply("Draft of a neon city")
	assert.False(t, res.Accepted)
	assert.Equal(t, "draft", res.RuleName)

	assert.Equal(t, []string{"hashtag", "rule-2", "draft"}, n.Rules())
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses defaults", func(t *testing.T) {
		n, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default().Rules(), n.Rules())
	})

	t.Run("missing file uses defaults", func(t *testing.T) {
		n, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default().Rules(), n.Rules())
	})

	t.Run("file on disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte("rules:\n  - name: only\n    action: unquote\n"), 0600))

		n, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"only"}, n.Rules())
	})

	t.Run("exported defaults round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		require.NoError(t, os.WriteFile(path, DefaultRules(), 0600))

		n, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, Default().Rules(), n.Rules())
	})
}
