package protocol

import (
	"context"
	"strings"

	"github.com/Lartitiz/nowadays-coach/internal/inference"
	"github.com/Lartitiz/nowadays-coach/pkg/models"
)

// StepQuestion is one predetermined question of a fixed-step interview.
type StepQuestion struct {
	Topic  models.TopicID
	Prompt string
}

// CharterQuestions is the predetermined question list for the charter
// category. The protocol itself is parametric over the list length.
var CharterQuestions = []StepQuestion{
	{Topic: "subject", Prompt: "What is this brief about? Describe the subject in one or two sentences."},
	{Topic: "audience", Prompt: "Who is it for? Describe the reader you want to reach."},
	{Topic: "angle", Prompt: "What is your angle? What makes your take different?"},
	{Topic: "key_message", Prompt: "What is the one message the reader should remember?"},
	{Topic: "call_to_action", Prompt: "What should the reader do next?"},
	{Topic: "constraints", Prompt: "Any constraints? Format, length, words to avoid?"},
}

// answerSentinel is sent when a step executes without a preceding user
// answer.
const answerSentinel = "start"

// FixedStep advances a predetermined question list by a step counter derived
// from the transcript. Coverage, completion and percentage are computed
// locally; the backend response contributes only feedback, a suggestion and
// extracted data.
type FixedStep struct {
	client    inference.Client
	questions []StepQuestion
}

// NewFixedStep creates a fixed-step protocol over the given question list.
func NewFixedStep(client inference.Client, questions []StepQuestion) *FixedStep {
	return &FixedStep{client: client, questions: questions}
}

// Resume recomputes the step from the transcript and replays the matching
// predetermined question locally. The stored transcript is authoritative; a
// persisted counter is never trusted.
func (f *FixedStep) Resume(sess *models.Session) (string, bool) {
	step := sess.StepCounter()
	if step >= len(f.questions) {
		return "", false
	}
	return f.questions[step].Prompt, false
}

// Execute sends the answer for the current step and locally composes the
// displayed reply from feedback, suggestion and the next question.
func (f *FixedStep) Execute(ctx context.Context, in *ExecInput) (*TurnResult, error) {
	// Step counter equals the count of user messages, which at execution
	// time already includes the answer being submitted.
	step := 0
	for _, m := range in.Transcript {
		if m.Role == models.RoleUser {
			step++
		}
	}

	answer := in.Answer
	if answer == "" {
		answer = answerSentinel
	}
	accumulated := in.Accumulated
	if accumulated == nil {
		accumulated = models.InsightBundle{}
	}

	resp, err := f.client.CharterStep(ctx, &inference.StepRequest{
		Step:        step,
		Answer:      answer,
		Accumulated: accumulated,
	})
	if err != nil {
		return nil, err
	}

	n := len(f.questions)
	complete := step >= n

	result := &TurnResult{
		QuestionType:         "textarea",
		Insights:             resp.Extracted,
		IsComplete:           complete,
		CompletionPercentage: (step*100 + n/2) / n,
	}
	if step >= 1 && step <= n {
		result.CoveredTopic = f.questions[step-1].Topic
	}
	if resp.GeneratedBrief != "" {
		if result.Insights == nil {
			result.Insights = models.InsightBundle{}
		}
		result.Insights["generated_brief"] = resp.GeneratedBrief
	}

	if complete {
		result.FinalSummary = joinParts(resp.Feedback, resp.Suggestion, resp.GeneratedBrief)
	} else {
		result.Question = joinParts(resp.Feedback, resp.Suggestion, f.questions[step].Prompt)
	}
	return result, nil
}

func joinParts(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, "\n\n")
}
