// Package protocol implements the per-category turn protocols of the
// coaching interview: the Dynamic Checklist protocol for free-form
// categories and the Fixed-Step protocol for the charter category.
package protocol

import (
	"context"

	json "github.com/goccy/go-json"

	"github.com/Lartitiz/nowadays-coach/internal/inference"
	"github.com/Lartitiz/nowadays-coach/pkg/models"
)

// TurnResult is the normalized outcome of one turn, whichever protocol
// produced it.
type TurnResult struct {
	Question             string
	QuestionType         string
	Options              []string
	Placeholder          string
	CoveredTopic         models.TopicID
	Insights             models.InsightBundle
	IsComplete           bool
	CompletionPercentage int
	FinalSummary         string
}

// ExecInput is a self-contained snapshot of everything one turn needs. The
// controller caches the input of a failed turn and replays it verbatim on
// retry, so nothing here may alias live session state.
type ExecInput struct {
	UserID      string
	Category    models.Category
	Transcript  []models.Message
	Covered     []models.TopicID
	Accumulated models.InsightBundle
	Answer      string
	SideContext json.RawMessage
}

// Strategy executes turns for one category. Selected once per session.
type Strategy interface {
	// Resume returns the question to display when re-entering coaching with
	// an existing transcript, and whether a network turn is needed instead
	// of a locally derived question.
	Resume(sess *models.Session) (question string, needsNetwork bool)

	// Execute runs one turn against the inference service.
	Execute(ctx context.Context, in *ExecInput) (*TurnResult, error)
}

// ForCategory selects the strategy for a category. Adding a category means
// adding one row here, not a branch chain.
func ForCategory(cat models.Category, client inference.Client) Strategy {
	if builder, ok := strategyTable[cat]; ok {
		return builder(client)
	}
	return NewDynamic(client)
}

var strategyTable = map[models.Category]func(inference.Client) Strategy{
	models.CategoryCharter: func(c inference.Client) Strategy { return NewFixedStep(c, CharterQuestions) },
}

// wireMessages converts a transcript to its wire form: role and content
// only, IDs stay local.
func wireMessages(transcript []models.Message) []inference.WireMessage {
	msgs := make([]inference.WireMessage, len(transcript))
	for i, m := range transcript {
		msgs[i] = inference.WireMessage{Role: m.Role, Content: m.Content}
	}
	return msgs
}
