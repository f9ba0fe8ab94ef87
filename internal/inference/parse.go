package inference

import (
	"strings"

	json "github.com/goccy/go-json"
)

// stripFences removes markdown code-fence markers around a payload. The
// upstream text-generation service does not guarantee strict machine-readable
// output; this is the single tolerance boundary for that.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// decodeTurnPayload parses a Dynamic-protocol response body and validates its
// shape. A response lacking both a question and is_complete=true is invalid.
func decodeTurnPayload(body []byte) (*TurnResponse, error) {
	raw := stripFences(string(body))

	var resp TurnResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, &MalformedResponseError{Reason: "invalid JSON: " + err.Error(), Raw: snippet(raw)}
	}
	if resp.Question == "" && !resp.IsComplete {
		return nil, &MalformedResponseError{Reason: "missing question and not complete", Raw: snippet(raw)}
	}
	return &resp, nil
}

// decodeStepPayload parses a Fixed-Step response body. Completion metadata is
// derived locally by the protocol, so only JSON validity is checked here.
func decodeStepPayload(body []byte) (*StepResponse, error) {
	raw := stripFences(string(body))

	var resp StepResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, &MalformedResponseError{Reason: "invalid JSON: " + err.Error(), Raw: snippet(raw)}
	}
	return &resp, nil
}

func snippet(s string) string {
	const maxLen = 200
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
