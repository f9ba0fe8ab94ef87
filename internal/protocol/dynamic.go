package protocol

import (
	"context"

	"github.com/Lartitiz/nowadays-coach/internal/inference"
	"github.com/Lartitiz/nowadays-coach/pkg/models"
)

// Dynamic is the free-form chat protocol. The backend decides which topic a
// turn covered and when the interview is complete; the engine only tracks the
// accumulated coverage set.
type Dynamic struct {
	client inference.Client
}

// NewDynamic creates the Dynamic Checklist protocol.
func NewDynamic(client inference.Client) *Dynamic {
	return &Dynamic{client: client}
}

// Resume requires a network replay only when the transcript is empty or ends
// on a user answer. A transcript ending on an assistant question re-enters
// coaching by re-displaying that question; replaying it would stack a second
// consecutive assistant message. No synthetic greeting either way.
func (d *Dynamic) Resume(sess *models.Session) (string, bool) {
	n := len(sess.Transcript)
	if n > 0 && sess.Transcript[n-1].Role == models.RoleAssistant {
		return "", false
	}
	return "", true
}

// Execute sends the full transcript plus coverage and side context, and maps
// the backend's response. Coverage and completion are backend-authoritative.
func (d *Dynamic) Execute(ctx context.Context, in *ExecInput) (*TurnResult, error) {
	covered := in.Covered
	if covered == nil {
		covered = []models.TopicID{}
	}

	resp, err := d.client.NextTurn(ctx, &inference.TurnRequest{
		UserID:        in.UserID,
		Category:      in.Category,
		Messages:      wireMessages(in.Transcript),
		Context:       in.SideContext,
		CoveredTopics: covered,
	})
	if err != nil {
		return nil, err
	}

	return &TurnResult{
		Question:             resp.Question,
		QuestionType:         resp.QuestionType,
		Options:              resp.Options,
		Placeholder:          resp.Placeholder,
		CoveredTopic:         resp.CoveredTopic,
		Insights:             resp.ExtractedInsights,
		IsComplete:           resp.IsComplete,
		CompletionPercentage: resp.CompletionPercentage,
		FinalSummary:         resp.FinalSummary,
	}, nil
}
