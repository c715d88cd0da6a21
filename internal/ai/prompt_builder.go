package ai

import (
	"strings"
	"time"
)

// BuildExtractionPrompt formats the user message for an extraction call.
func BuildExtractionPrompt(transcript string, today time.Time) string {
	var b strings.Builder

	b.WriteString("current_date: ")
	b.WriteString(today.Format(time.DateOnly))
	b.WriteString("\n")

	b.WriteString("transcription: \"")
	b.WriteString(strings.TrimSpace(transcript))
	b.WriteString("\"\n")

	return b.String()
}
