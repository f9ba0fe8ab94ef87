package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/Lartitiz/nowadays-coach/pkg/models"
)

// ChecklistSource resolves a category's checklist. Needed to synthesize full
// coverage when loading sessions persisted as complete.
type ChecklistSource interface {
	Topics(cat models.Category) []models.TopicID
}

// SessionStore persists coaching sessions keyed by (user, category).
type SessionStore struct {
	store      *Store
	checklists ChecklistSource
}

// NewSessionStore creates a session store.
func NewSessionStore(store *Store, checklists ChecklistSource) *SessionStore {
	return &SessionStore{store: store, checklists: checklists}
}

// Load returns the persisted session for (user, category), or nil when none
// exists. Covered topics prefer the dedicated column and fall back to the
// copy nested inside extracted_data, which is where records written before
// coverage tracking existed keep them.
func (s *SessionStore) Load(ctx context.Context, userID string, cat models.Category) (*models.Session, error) {
	const query = `
		SELECT transcript, covered_topics, completion_percentage, is_complete,
		       final_summary, extracted_data, updated_at_epoch
		FROM coaching_sessions
		WHERE user_id = ? AND category = ?
		LIMIT 1
	`

	var (
		transcriptRaw string
		covered       models.JSONTopicArray
		percentage    int
		isComplete    int
		finalSummary  sql.NullString
		extractedRaw  string
		updatedEpoch  int64
	)
	err := s.store.QueryRowContext(ctx, query, userID, cat).Scan(
		&transcriptRaw, &covered, &percentage, &isComplete,
		&finalSummary, &extractedRaw, &updatedEpoch,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	sess := models.NewSession(cat)
	if err := json.Unmarshal([]byte(transcriptRaw), &sess.Transcript); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if err := json.Unmarshal([]byte(extractedRaw), &sess.Extracted); err != nil {
		return nil, fmt.Errorf("decode extracted data: %w", err)
	}

	sess.Covered = []models.TopicID(covered)
	if len(sess.Covered) == 0 {
		sess.Covered = coveredFromExtracted(sess.Extracted)
	}
	sess.CompletionPercentage = percentage
	sess.FinalSummary = finalSummary.String
	sess.UpdatedAt = time.UnixMilli(updatedEpoch)

	if isComplete != 0 {
		sess.Phase = models.PhaseComplete
		// A completed session is by definition fully covered, whatever
		// partial set a legacy record carries.
		if topics := s.checklists.Topics(cat); len(topics) > 0 {
			sess.Covered = append([]models.TopicID(nil), topics...)
		}
		sess.CompletionPercentage = 100
	}
	return sess, nil
}

// Save upserts the session for (user, category). Covered topics are written
// both to their column and nested inside extracted_data so that readers of
// the older schema keep working.
func (s *SessionStore) Save(ctx context.Context, userID string, sess *models.Session) error {
	transcript, err := json.Marshal(sess.Transcript)
	if err != nil {
		return &PersistenceError{Op: "save", Err: fmt.Errorf("encode transcript: %w", err)}
	}

	extracted := models.InsightBundle{}
	for k, v := range sess.Extracted {
		extracted[k] = v
	}
	extracted["completion_percentage"] = sess.CompletionPercentage
	extracted["final_summary"] = sess.FinalSummary
	extracted["covered_topics"] = sess.Covered
	extractedRaw, err := json.Marshal(extracted)
	if err != nil {
		return &PersistenceError{Op: "save", Err: fmt.Errorf("encode extracted data: %w", err)}
	}

	questionCount := 0
	for _, m := range sess.Transcript {
		if m.Role == models.RoleAssistant {
			questionCount++
		}
	}

	isComplete := 0
	var completedAt sql.NullString
	now := time.Now()
	if sess.Phase == models.PhaseComplete {
		isComplete = 1
		completedAt = sql.NullString{String: now.Format(time.RFC3339), Valid: true}
	}

	const query = `
		INSERT INTO coaching_sessions
		(user_id, category, transcript, covered_topics, question_count,
		 completion_percentage, is_complete, final_summary, extracted_data,
		 completed_at, updated_at, updated_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, category) DO UPDATE SET
			transcript = excluded.transcript,
			covered_topics = excluded.covered_topics,
			question_count = excluded.question_count,
			completion_percentage = excluded.completion_percentage,
			is_complete = excluded.is_complete,
			final_summary = excluded.final_summary,
			extracted_data = excluded.extracted_data,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at,
			updated_at_epoch = excluded.updated_at_epoch
	`

	coveredVal, err := models.JSONTopicArray(sess.Covered).Value()
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	_, err = s.store.ExecContext(ctx, query,
		userID, sess.Category, string(transcript), coveredVal, questionCount,
		sess.CompletionPercentage, isComplete, nullString(sess.FinalSummary), string(extractedRaw),
		completedAt, now.Format(time.RFC3339), now.UnixMilli(),
	)
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// Reset deletes the persisted session entirely; a subsequent Load returns
// nil.
func (s *SessionStore) Reset(ctx context.Context, userID string, cat models.Category) error {
	const query = `DELETE FROM coaching_sessions WHERE user_id = ? AND category = ?`
	if _, err := s.store.ExecContext(ctx, query, userID, cat); err != nil {
		return &PersistenceError{Op: "reset", Err: err}
	}
	return nil
}

// coveredFromExtracted recovers the covered set from the legacy nested copy.
func coveredFromExtracted(extracted models.InsightBundle) []models.TopicID {
	raw, ok := extracted["covered_topics"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	topics := make([]models.TopicID, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			topics = append(topics, models.TopicID(s))
		}
	}
	return topics
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
