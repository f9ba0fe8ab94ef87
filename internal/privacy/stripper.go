// Package privacy provides privacy tag handling for nowadays-coach.
package privacy

import (
	"regexp"
	"strings"
)

var (
	// privateTagRegex matches <private>...</private> tags
	privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

	// coachTagRegex matches <coach-context>...</coach-context> tags
	coachTagRegex = regexp.MustCompile(`(?s)<coach-context>.*?</coach-context>`)
)

// StripPrivateTags removes all <private>...</private> content from text.
// Users can wrap parts of an answer in private tags to keep them out of the
// transcript sent to the inference backend.
func StripPrivateTags(text string) string {
	return privateTagRegex.ReplaceAllString(text, "")
}

// StripCoachTags removes all <coach-context>...</coach-context> content from
// text. These tags carry injected context and must never round-trip back into
// an answer.
func StripCoachTags(text string) string {
	return coachTagRegex.ReplaceAllString(text, "")
}

// StripAllTags removes both private and coach context tags.
func StripAllTags(text string) string {
	text = StripPrivateTags(text)
	text = StripCoachTags(text)
	return text
}

// IsEntirelyPrivate checks if the text is entirely within <private> tags.
func IsEntirelyPrivate(text string) bool {
	stripped := StripPrivateTags(text)
	return strings.TrimSpace(stripped) == ""
}

// Clean performs full privacy cleaning on an answer.
// This is the main function to use before storing or transmitting user
// content.
func Clean(text string) string {
	text = StripAllTags(text)
	return strings.TrimSpace(text)
}
