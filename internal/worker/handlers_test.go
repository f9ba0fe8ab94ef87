package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lartitiz/nowadays-coach/internal/checklist"
	"github.com/Lartitiz/nowadays-coach/internal/config"
	"github.com/Lartitiz/nowadays-coach/internal/db/sqlite"
	"github.com/Lartitiz/nowadays-coach/internal/inference"
	"github.com/Lartitiz/nowadays-coach/pkg/models"
)

// scriptedClient plays back queued inference responses.
type scriptedClient struct {
	turns   []*inference.TurnResponse
	steps   []*inference.StepResponse
	nextErr error
}

func (f *scriptedClient) NextTurn(context.Context, *inference.TurnRequest) (*inference.TurnResponse, error) {
	if f.nextErr != nil {
		err := f.nextErr
		f.nextErr = nil
		return nil, err
	}
	resp := f.turns[0]
	f.turns = f.turns[1:]
	return resp, nil
}

func (f *scriptedClient) CharterStep(context.Context, *inference.StepRequest) (*inference.StepResponse, error) {
	resp := f.steps[0]
	f.steps = f.steps[1:]
	return resp, nil
}

func (f *scriptedClient) Compose(context.Context, *inference.ComposeRequest) (string, error) {
	return "composed", nil
}

// testService creates a Service backed by a temp SQLite database and a
// scripted inference client.
func testService(t *testing.T) (*Service, *scriptedClient) {
	t.Helper()

	store, err := sqlite.NewStore(sqlite.StoreConfig{Path: filepath.Join(t.TempDir(), "coach.db"), WALMode: true})
	require.NoError(t, err)

	client := &scriptedClient{}
	svc, err := NewService(config.Default(), "test-version", store, checklist.NewRegistry(), client)
	require.NoError(t, err)

	t.Cleanup(func() {
		svc.Shutdown()
		store.Close()
	})
	return svc, client
}

// doRequest runs one request through the service router as user-1.
func doRequest(svc *Service, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) *models.Session {
	t.Helper()
	var sess models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	return &sess
}

func TestHandleHealth(t *testing.T) {
	svc, _ := testService(t)

	rec := doRequest(svc, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test-version", body["version"])
	assert.Equal(t, true, body["ready"])
}

func TestMissingUserHeader(t *testing.T) {
	svc, _ := testService(t)

	req := httptest.NewRequest(http.MethodGet, "/api/coaching/story/", nil)
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "X-User-ID")
}

func TestUnknownCategory(t *testing.T) {
	svc, _ := testService(t)

	rec := doRequest(svc, http.MethodPost, "/api/coaching/astrology/start", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown category")
}

func TestGetSessionFresh(t *testing.T) {
	svc, _ := testService(t)

	rec := doRequest(svc, http.MethodGet, "/api/coaching/story/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	sess := decodeSession(t, rec)
	assert.Equal(t, models.CategoryStory, sess.Category)
	assert.Equal(t, models.PhaseIntro, sess.Phase)
	assert.Empty(t, sess.Transcript)
}

func TestStartAndAnswerFlow(t *testing.T) {
	svc, client := testService(t)
	client.turns = []*inference.TurnResponse{
		{Question: "What drove you to start?", CompletionPercentage: 5},
		{Question: "Who was your first customer?", CoveredTopic: "origin", CompletionPercentage: 20},
	}

	rec := doRequest(svc, http.MethodPost, "/api/coaching/story/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decodeSession(t, rec)
	assert.Equal(t, models.PhaseCoaching, sess.Phase)
	require.Len(t, sess.Transcript, 1)
	assert.Equal(t, "What drove you to start?", sess.Transcript[0].Content)

	rec = doRequest(svc, http.MethodPost, "/api/coaching/story/answer", `{"answer":"I was frustrated with agencies"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	sess = decodeSession(t, rec)
	assert.Len(t, sess.Transcript, 3)
	assert.Equal(t, []models.TopicID{"origin"}, sess.Covered)
}

func TestAnswerRequiresBody(t *testing.T) {
	svc, _ := testService(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "empty answer", body: `{"answer":""}`},
		{name: "invalid JSON", body: `{answer`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(svc, http.MethodPost, "/api/coaching/story/answer", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAnswerBeforeStartConflicts(t *testing.T) {
	svc, _ := testService(t)

	rec := doRequest(svc, http.MethodPost, "/api/coaching/story/answer", `{"answer":"hello"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRetryWithoutPendingConflicts(t *testing.T) {
	svc, _ := testService(t)

	rec := doRequest(svc, http.MethodPost, "/api/coaching/story/retry", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTransportErrorIsRetryable(t *testing.T) {
	svc, client := testService(t)
	client.turns = []*inference.TurnResponse{
		{Question: "Q1"},
		{Question: "Q2"},
	}

	rec := doRequest(svc, http.MethodPost, "/api/coaching/story/start", "")
	require.Equal(t, http.StatusOK, rec.Code)

	client.nextErr = &inference.TransportError{Err: errors.New("connection refused")}
	rec = doRequest(svc, http.MethodPost, "/api/coaching/story/answer", `{"answer":"my answer"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var errBody errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.True(t, errBody.Retryable)

	// Retry replays the failed turn and completes it.
	rec = doRequest(svc, http.MethodPost, "/api/coaching/story/retry", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decodeSession(t, rec)
	assert.Len(t, sess.Transcript, 3)
	assert.Equal(t, "my answer", sess.Transcript[1].Content)
}

func TestResetReturnsToIntro(t *testing.T) {
	svc, client := testService(t)
	client.turns = []*inference.TurnResponse{{Question: "Q1"}}

	rec := doRequest(svc, http.MethodPost, "/api/coaching/story/start", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(svc, http.MethodPost, "/api/coaching/story/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decodeSession(t, rec)
	assert.Equal(t, models.PhaseIntro, sess.Phase)
	assert.Empty(t, sess.Transcript)

	rec = doRequest(svc, http.MethodGet, "/api/coaching/story/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sess = decodeSession(t, rec)
	assert.Empty(t, sess.Transcript)
}

func TestSessionsAreIsolatedByUser(t *testing.T) {
	svc, client := testService(t)
	client.turns = []*inference.TurnResponse{{Question: "Q1"}}

	rec := doRequest(svc, http.MethodPost, "/api/coaching/story/start", "")
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/coaching/story/", nil)
	req.Header.Set("X-User-ID", "user-2")
	rec = httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	sess := decodeSession(t, rec)
	assert.Equal(t, models.PhaseIntro, sess.Phase)
	assert.Empty(t, sess.Transcript)
}
