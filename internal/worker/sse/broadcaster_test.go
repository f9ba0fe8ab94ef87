// Package sse provides Server-Sent Events broadcasting for coaching session
// updates.
package sse

import (
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/Lartitiz/nowadays-coach/pkg/models"
)

// BroadcasterSuite is a test suite for Broadcaster operations.
type BroadcasterSuite struct {
	suite.Suite
	broadcaster *Broadcaster
}

func (s *BroadcasterSuite) SetupTest() {
	s.broadcaster = NewBroadcaster()
}

func TestBroadcasterSuite(t *testing.T) {
	suite.Run(t, new(BroadcasterSuite))
}

// TestNewBroadcaster tests broadcaster creation.
func (s *BroadcasterSuite) TestNewBroadcaster() {
	b := NewBroadcaster()
	s.NotNil(b)
	s.NotNil(b.clients)
	s.Equal(0, b.ClientCount())
}

// mockResponseWriter implements http.ResponseWriter and http.Flusher for testing.
type mockResponseWriter struct {
	header     http.Header
	body       []byte
	statusCode int
	mu         sync.Mutex
}

func newMockResponseWriter() *mockResponseWriter {
	return &mockResponseWriter{
		header:     make(http.Header),
		statusCode: http.StatusOK,
	}
}

func (m *mockResponseWriter) Header() http.Header {
	return m.header
}

func (m *mockResponseWriter) Write(data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = append(m.body, data...)
	return len(data), nil
}

func (m *mockResponseWriter) WriteHeader(statusCode int) {
	m.statusCode = statusCode
}

func (m *mockResponseWriter) Flush() {
	// No-op for testing
}

func (m *mockResponseWriter) GetBody() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.body
}

// TestAddClient tests adding clients.
func (s *BroadcasterSuite) TestAddClient() {
	w := newMockResponseWriter()

	client, err := s.broadcaster.AddClient(w)
	s.NoError(err)
	s.NotNil(client)
	s.NotEmpty(client.ID)
	s.NotNil(client.Done)
	s.Equal(1, s.broadcaster.ClientCount())
}

// TestAddMultipleClients tests adding multiple clients.
func (s *BroadcasterSuite) TestAddMultipleClients() {
	for i := 0; i < 5; i++ {
		w := newMockResponseWriter()
		_, err := s.broadcaster.AddClient(w)
		s.NoError(err)
	}

	s.Equal(5, s.broadcaster.ClientCount())
}

// TestRemoveClient tests removing clients.
func (s *BroadcasterSuite) TestRemoveClient() {
	w := newMockResponseWriter()
	client, err := s.broadcaster.AddClient(w)
	s.NoError(err)

	s.Equal(1, s.broadcaster.ClientCount())

	s.broadcaster.RemoveClient(client)

	s.Equal(0, s.broadcaster.ClientCount())

	// Check that Done channel is closed
	select {
	case <-client.Done:
		// Expected - channel is closed
	default:
		s.Fail("Done channel should be closed")
	}
}

// TestPublish tests event delivery to connected clients.
func (s *BroadcasterSuite) TestPublish() {
	w := newMockResponseWriter()
	_, err := s.broadcaster.AddClient(w)
	s.Require().NoError(err)

	s.broadcaster.Publish(Event{
		Type:       EventTurn,
		UserID:     "user-1",
		Category:   models.CategoryStory,
		Phase:      models.PhaseCoaching,
		Percentage: 40,
	})

	body := string(w.GetBody())
	s.Contains(body, "event: turn\n")
	s.Contains(body, `"user_id":"user-1"`)
	s.Contains(body, `"category":"story"`)
	s.Contains(body, `"completion_percentage":40`)
	s.True(strings.HasSuffix(body, "\n\n"))
}

// TestPublishToMultipleClients tests fan-out.
func (s *BroadcasterSuite) TestPublishToMultipleClients() {
	writers := make([]*mockResponseWriter, 3)
	for i := range writers {
		writers[i] = newMockResponseWriter()
		_, err := s.broadcaster.AddClient(writers[i])
		s.Require().NoError(err)
	}

	s.broadcaster.Publish(Event{Type: EventCompleted, UserID: "user-1", Category: models.CategoryCharter, Phase: models.PhaseComplete, Percentage: 100})

	for _, w := range writers {
		s.Contains(string(w.GetBody()), "event: completed\n")
	}
}

// TestPublishNoClients tests that publishing with no clients is a no-op.
func (s *BroadcasterSuite) TestPublishNoClients() {
	s.NotPanics(func() {
		s.broadcaster.Publish(Event{Type: EventReset, UserID: "user-1", Category: models.CategoryPersona})
	})
}
