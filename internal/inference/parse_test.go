package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTurnPayload(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErr    bool
		wantReason string
		check      func(*testing.T, *TurnResponse)
	}{
		{
			name: "plain json",
			body: `{"question":"What drives you?","question_type":"textarea","is_complete":false,"completion_percentage":20}`,
			check: func(t *testing.T, r *TurnResponse) {
				assert.Equal(t, "What drives you?", r.Question)
				assert.Equal(t, 20, r.CompletionPercentage)
			},
		},
		{
			name: "fenced json",
			body: "```json\n{\"question\":\"Q\",\"is_complete\":false,\"covered_topic\":\"origin\"}\n```",
			check: func(t *testing.T, r *TurnResponse) {
				assert.Equal(t, "Q", r.Question)
				assert.Equal(t, "origin", string(r.CoveredTopic))
			},
		},
		{
			name: "bare fences",
			body: "```\n{\"question\":\"Q\",\"is_complete\":false}\n```",
			check: func(t *testing.T, r *TurnResponse) {
				assert.Equal(t, "Q", r.Question)
			},
		},
		{
			name: "completion without question",
			body: `{"is_complete":true,"completion_percentage":100,"final_summary":"All done."}`,
			check: func(t *testing.T, r *TurnResponse) {
				assert.True(t, r.IsComplete)
				assert.Equal(t, "All done.", r.FinalSummary)
			},
		},
		{
			name:       "no question and not complete",
			body:       `{"is_complete":false,"completion_percentage":10}`,
			wantErr:    true,
			wantReason: "missing question",
		},
		{
			name:       "not json",
			body:       "Sorry, I could not produce a question this time.",
			wantErr:    true,
			wantReason: "invalid JSON",
		},
		{
			name:       "fences around prose",
			body:       "```json\nnot actually json\n```",
			wantErr:    true,
			wantReason: "invalid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := decodeTurnPayload([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				var malformed *MalformedResponseError
				require.ErrorAs(t, err, &malformed)
				assert.Contains(t, malformed.Reason, tt.wantReason)
				return
			}
			require.NoError(t, err)
			tt.check(t, resp)
		})
	}
}

func TestDecodeStepPayload(t *testing.T) {
	resp, err := decodeStepPayload([]byte("```json\n{\"feedback\":\"Nice.\",\"suggestion\":\"Sharpen it.\",\"extracted\":{\"subject\":\"launch\"}}\n```"))
	require.NoError(t, err)
	assert.Equal(t, "Nice.", resp.Feedback)
	assert.Equal(t, "Sharpen it.", resp.Suggestion)
	assert.Equal(t, "launch", resp.Extracted["subject"])

	_, err = decodeStepPayload([]byte("{{broken"))
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
}

func TestSnippetTruncates(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	s := snippet(string(long))
	assert.Len(t, s, 203)
	assert.Contains(t, s, "...")
}
