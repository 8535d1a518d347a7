package enrich

import (
	"fmt"
	"strings"
)

// Input prompts longer than this are cut before being sent to the model.
const maxPromptChars = 4000

// AnalysisSystemPrompt instructs the model to classify an image prompt.
const AnalysisSystemPrompt = `You are an expert AI Prompt Engineer and Classifier.
Your task is to analyze a raw image generation prompt and extract structured metadata to help organize it in a database.
You must return a strictly valid JSON object and nothing else.

Input: "A futuristic cyborg samurai standing in neon rain, cyberpunk city background, detailed armor, 8k"
Output structure:
{
  "tags": ["cyborg", "samurai", "cyberpunk", "neon", "rain", "sci-fi"],
  "meta": {
    "action": "standing",
    "place": "cyberpunk city, neon streets",
    "clothes": "detailed armor",
    "pose": "standing",
    "lighting": "neon, moody",
    "art_style": "cyberpunk, realistic, 8k"
  },
  "sampleDescription": "A visual description of the scene for preview generation"
}

If a field is not present or applicable, use "Generic" or an empty string. Focus on keywords useful for search.`

// VisualizeSystemPrompt asks for a short painterly description.
const VisualizeSystemPrompt = "You are a visual artist. Describe this image prompt in vivid, flowing detail as if it were a finished painting or photograph. Focus on atmosphere, lighting and texture. Keep it under 50 words."

// BuildAnalysisPrompt builds the user message for Analyze.
func BuildAnalysisPrompt(text string) string {
	return fmt.Sprintf("Analyze this prompt: %q", truncate(text, maxPromptChars))
}

// BuildVisualizePrompt builds the user message for Visualize.
func BuildVisualizePrompt(text string) string {
	return fmt.Sprintf("Prompt: %q", truncate(text, maxPromptChars))
}

// BuildEnhancePrompt builds the single message for Enhance.
func BuildEnhancePrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("Rewrite this prompt to be more artistic, vivid and safe: ")
	sb.WriteString(fmt.Sprintf("%q", truncate(text, maxPromptChars)))
	sb.WriteString("\nReply with the rewritten prompt only.")
	return sb.String()
}

// truncate truncates a string to at most maxLen runes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "... (truncated)"
}
