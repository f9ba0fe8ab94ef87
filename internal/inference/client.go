// Package inference provides the client for the external natural-language
// coaching service. The service is opaque: requests carry the transcript and
// side context, responses carry the next question or the final summary.
package inference

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"

	"github.com/Lartitiz/nowadays-coach/pkg/models"
)

// WireMessage is a transcript entry as sent on the wire: role and content
// only, message IDs stay local.
type WireMessage struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// TurnRequest is the Dynamic Checklist protocol request. The entire
// transcript is sent on every turn, deliberately uncapped: coverage tracking
// is what keeps the backend from looping on a topic, not context truncation.
type TurnRequest struct {
	UserID        string           `json:"user_id"`
	Category      models.Category  `json:"category"`
	Messages      []WireMessage    `json:"messages"`
	Context       json.RawMessage  `json:"context,omitempty"`
	CoveredTopics []models.TopicID `json:"covered_topics"`
}

// TurnResponse is the Dynamic Checklist protocol response.
type TurnResponse struct {
	Question             string               `json:"question,omitempty"`
	QuestionType         string               `json:"question_type,omitempty"`
	Options              []string             `json:"options,omitempty"`
	Placeholder          string               `json:"placeholder,omitempty"`
	CoveredTopic         models.TopicID       `json:"covered_topic,omitempty"`
	ExtractedInsights    models.InsightBundle `json:"extracted_insights,omitempty"`
	IsComplete           bool                 `json:"is_complete"`
	CompletionPercentage int                  `json:"completion_percentage"`
	RemainingTopics      []models.TopicID     `json:"remaining_topics,omitempty"`
	FinalSummary         string               `json:"final_summary,omitempty"`
}

// StepRequest is the Fixed-Step protocol request. Steps are 1-indexed on the
// wire; answer carries the sentinel "start" on the resume-less first step.
type StepRequest struct {
	Step        int                  `json:"step"`
	Answer      string               `json:"answer"`
	Accumulated models.InsightBundle `json:"accumulatedStructuredData"`
}

// StepResponse is the Fixed-Step protocol response. Completion, coverage and
// percentage are derived locally by the protocol, never read from here.
type StepResponse struct {
	Feedback       string               `json:"feedback,omitempty"`
	Suggestion     string               `json:"suggestion,omitempty"`
	Extracted      models.InsightBundle `json:"extracted,omitempty"`
	GeneratedBrief string               `json:"ai_generated_brief,omitempty"`
}

// ComposeRequest asks the service to write the complete version of a
// category's output from the full transcript. Used once, on completion.
type ComposeRequest struct {
	UserID      string          `json:"user_id"`
	Category    models.Category `json:"category"`
	Messages    []WireMessage   `json:"messages"`
	Instruction string          `json:"instruction"`
}

type composeResponse struct {
	Text string `json:"text"`
}

// Client is the inference service boundary the coaching engine depends on.
type Client interface {
	NextTurn(ctx context.Context, req *TurnRequest) (*TurnResponse, error)
	CharterStep(ctx context.Context, req *StepRequest) (*StepResponse, error)
	Compose(ctx context.Context, req *ComposeRequest) (string, error)
}

// HTTPClient calls the coaching inference service over HTTP.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	codec   tokenizer.Codec // nil when the encoding is unavailable
}

// NewHTTPClient creates a client for the given base URL. The API key may be
// empty for unauthenticated deployments.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		log.Warn().Err(err).Msg("Tokenizer unavailable, context size logging disabled")
		codec = nil
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 120 * time.Second},
		codec:   codec,
	}
}

// NextTurn executes one Dynamic Checklist protocol round-trip.
func (c *HTTPClient) NextTurn(ctx context.Context, req *TurnRequest) (*TurnResponse, error) {
	c.logContextSize(req)

	body, err := c.post(ctx, "/v1/coaching/turn", req)
	if err != nil {
		return nil, err
	}
	return decodeTurnPayload(body)
}

// CharterStep executes one Fixed-Step protocol round-trip.
func (c *HTTPClient) CharterStep(ctx context.Context, req *StepRequest) (*StepResponse, error) {
	body, err := c.post(ctx, "/v1/coaching/charter-step", req)
	if err != nil {
		return nil, err
	}
	return decodeStepPayload(body)
}

// Compose runs the secondary completion call and returns the generated text.
func (c *HTTPClient) Compose(ctx context.Context, req *ComposeRequest) (string, error) {
	body, err := c.post(ctx, "/v1/coaching/compose", req)
	if err != nil {
		return "", err
	}

	var resp composeResponse
	if err := json.Unmarshal([]byte(stripFences(string(body))), &resp); err != nil {
		return "", &MalformedResponseError{Reason: "invalid JSON: " + err.Error(), Raw: snippet(string(body))}
	}
	if resp.Text == "" {
		return "", &MalformedResponseError{Reason: "empty compose text", Raw: snippet(string(body))}
	}
	return resp.Text, nil
}

// post sends a JSON request and returns the raw response body. Network and
// HTTP-status failures come back as TransportError.
func (c *HTTPClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Err: fmt.Errorf("status %d: %s", resp.StatusCode, snippet(string(body)))}
	}
	return body, nil
}

// logContextSize estimates the transcript token count of an uncapped request.
// The full-transcript-every-turn design grows without bound; this keeps the
// growth visible in logs.
func (c *HTTPClient) logContextSize(req *TurnRequest) {
	if c.codec == nil {
		return
	}
	total := 0
	for _, m := range req.Messages {
		ids, _, err := c.codec.Encode(m.Content)
		if err != nil {
			return
		}
		total += len(ids)
	}
	log.Debug().
		Str("category", string(req.Category)).
		Int("messages", len(req.Messages)).
		Int("transcriptTokens", total).
		Msg("Dynamic turn request")
}
