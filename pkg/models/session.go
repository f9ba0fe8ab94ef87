// Package models contains domain models for nowadays-coach.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Category identifies one coaching interview topic-area. The category fixes
// both the checklist and the turn protocol for the lifetime of a session.
type Category string

const (
	CategoryStory           Category = "story"
	CategoryPersona         Category = "persona"
	CategoryToneStyle       Category = "tone_style"
	CategoryContentStrategy Category = "content_strategy"
	CategoryOffers          Category = "offers"
	CategoryCharter         Category = "charter"
)

// AllCategories lists every known category in display order.
var AllCategories = []Category{
	CategoryStory,
	CategoryPersona,
	CategoryToneStyle,
	CategoryContentStrategy,
	CategoryOffers,
	CategoryCharter,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Phase represents the display/turn state of a coaching session.
type Phase string

const (
	PhaseIntro    Phase = "intro"
	PhaseCoaching Phase = "coaching"
	PhaseComplete Phase = "complete"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TopicID identifies one checklist topic within a category.
type TopicID string

// Message is a single transcript entry. Transcripts are append-only and the
// roles strictly alternate.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a message with a fresh ID.
func NewMessage(role Role, content string) Message {
	return Message{ID: uuid.NewString(), Role: role, Content: content}
}

// Session is the aggregate root for one (user, category) coaching interview.
type Session struct {
	Category             Category  `json:"category"`
	Phase                Phase     `json:"phase"`
	Transcript           []Message `json:"transcript"`
	Covered              []TopicID `json:"covered_topics"`
	CompletionPercentage int       `json:"completion_percentage"`
	FinalSummary         string    `json:"final_summary,omitempty"`
	// Extracted accumulates every insight bundle the backend returned over
	// the session's lifetime, persisted for durability. Routing consumes the
	// per-turn bundles; this copy is what survives a reload.
	Extracted InsightBundle `json:"extracted_data,omitempty"`
	UpdatedAt time.Time     `json:"updated_at,omitempty"`
}

// NewSession creates a fresh session in the intro phase.
func NewSession(category Category) *Session {
	return &Session{
		Category:  category,
		Phase:     PhaseIntro,
		Extracted: InsightBundle{},
	}
}

// StepCounter is the fixed-step protocol's step index: the count of user-role
// messages in the transcript. It is always derived, never stored, so a
// partially applied save can never diverge from the transcript.
func (s *Session) StepCounter() int {
	n := 0
	for _, m := range s.Transcript {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// LastUserMessage returns the content of the most recent user-role message,
// or "" if none exists.
func (s *Session) LastUserMessage() string {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Role == RoleUser {
			return s.Transcript[i].Content
		}
	}
	return ""
}

// HasCovered reports whether the topic is already in the covered set.
func (s *Session) HasCovered(topic TopicID) bool {
	for _, t := range s.Covered {
		if t == topic {
			return true
		}
	}
	return false
}

// Cover appends the topic to the covered set if not already present.
// Coverage is monotonic: topics are never removed outside an explicit reset.
func (s *Session) Cover(topic TopicID) {
	if topic == "" || s.HasCovered(topic) {
		return
	}
	s.Covered = append(s.Covered, topic)
}

// MergeInsights folds a per-turn insight bundle into the accumulated copy.
func (s *Session) MergeInsights(bundle InsightBundle) {
	if len(bundle) == 0 {
		return
	}
	if s.Extracted == nil {
		s.Extracted = InsightBundle{}
	}
	for k, v := range bundle {
		s.Extracted[k] = v
	}
}

// InsightBundle is an opaque key/value mapping extracted by the backend.
// Keys are category-specific; the insight router decides their destination.
type InsightBundle map[string]any
