// Package coaching implements the session controller: the state machine that
// drives one (user, category) interview through intro, coaching and
// completion.
package coaching

import (
	"context"
	"errors"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/Lartitiz/nowadays-coach/internal/db/sqlite"
	"github.com/Lartitiz/nowadays-coach/internal/insights"
	"github.com/Lartitiz/nowadays-coach/internal/privacy"
	"github.com/Lartitiz/nowadays-coach/internal/profile"
	"github.com/Lartitiz/nowadays-coach/internal/protocol"
	"github.com/Lartitiz/nowadays-coach/pkg/models"
)

var (
	// ErrTurnInFlight is returned when a turn is submitted while another is
	// still outstanding. One turn must fully resolve before the next.
	ErrTurnInFlight = errors.New("a turn is already in flight")

	// ErrNoPendingRetry is returned when retry is invoked without a cached
	// failed request.
	ErrNoPendingRetry = errors.New("no failed turn to retry")

	// ErrSessionComplete is returned when a turn is submitted to a completed
	// session. Only an explicit reset leaves the complete phase.
	ErrSessionComplete = errors.New("session is complete")

	// ErrNotStarted is returned when an answer arrives before the session
	// entered the coaching phase.
	ErrNotStarted = errors.New("session not started")

	// ErrEmptyAnswer is returned when an answer is blank after privacy
	// stripping.
	ErrEmptyAnswer = errors.New("answer is empty")
)

// pendingTurn is the cached request of a failed turn. Retry replays input
// verbatim and appends userMsg exactly once on success, so a retry can never
// double-append the answer.
type pendingTurn struct {
	input   *protocol.ExecInput
	userMsg *models.Message
}

// Controller orchestrates one (user, category) session.
type Controller struct {
	userID   string
	category models.Category

	sessions *sqlite.SessionStore
	registry sqlite.ChecklistSource
	strategy protocol.Strategy
	router   *insights.Router
	profile  profile.Provider

	mu          sync.Mutex
	busy        bool
	initialized bool
	session     *models.Session
	sideCtx     json.RawMessage
	sideLoaded  bool
	flight      singleflight.Group
	pending     *pendingTurn
}

// Config wires a controller's collaborators.
type Config struct {
	UserID   string
	Category models.Category
	Sessions *sqlite.SessionStore
	Registry sqlite.ChecklistSource
	Strategy protocol.Strategy
	Router   *insights.Router
	Profile  profile.Provider
}

// NewController creates a controller. InitializeSession must run before any
// turn.
func NewController(cfg Config) *Controller {
	return &Controller{
		userID:   cfg.UserID,
		category: cfg.Category,
		sessions: cfg.Sessions,
		registry: cfg.Registry,
		strategy: cfg.Strategy,
		router:   cfg.Router,
		profile:  cfg.Profile,
	}
}

// InitializeSession loads the persisted session or creates a fresh one. It
// is the single entry point for session lifetime setup and is idempotent.
func (c *Controller) InitializeSession(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return c.snapshotLocked(), nil
	}

	sess, err := c.sessions.Load(ctx, c.userID, c.category)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = models.NewSession(c.category)
	}
	c.session = sess
	c.initialized = true
	return c.snapshotLocked(), nil
}

// Session returns a copy of the current session state.
func (c *Controller) Session() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Start moves an intro session into coaching. A resumed Dynamic session
// whose transcript awaits an answer re-displays the pending question; one
// ending on a user answer replays the transcript as the first request. A
// resumed Fixed-Step session displays its recomputed predetermined question
// with no network call.
func (c *Controller) Start(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return nil, ErrNotStarted
	}
	switch c.session.Phase {
	case models.PhaseComplete:
		c.mu.Unlock()
		return nil, ErrSessionComplete
	case models.PhaseCoaching:
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil
	}

	question, needsNetwork := c.strategy.Resume(c.session)
	if !needsNetwork {
		c.session.Phase = models.PhaseCoaching
		// A resumed transcript already ends on the pending assistant
		// question; only a fresh fixed-step session needs its first
		// predetermined question appended.
		if len(c.session.Transcript) == 0 && question != "" {
			c.session.Transcript = append(c.session.Transcript, models.NewMessage(models.RoleAssistant, question))
		}
		snap := c.snapshotLocked()
		c.mu.Unlock()

		c.persist(ctx)
		return snap, nil
	}
	c.mu.Unlock()

	// Dynamic: one network turn with no new answer appended.
	if err := c.runTurn(ctx, ""); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.session.Phase == models.PhaseIntro {
		c.session.Phase = models.PhaseCoaching
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(ctx)
	return snap, nil
}

// Answer submits one user answer and advances the interview. Content inside
// private tags is stripped before the answer enters the transcript or the
// wire.
func (c *Controller) Answer(ctx context.Context, text string) (*models.Session, error) {
	text = privacy.Clean(text)
	if text == "" {
		return nil, ErrEmptyAnswer
	}

	c.mu.Lock()
	phase := models.PhaseIntro
	if c.initialized {
		phase = c.session.Phase
	}
	c.mu.Unlock()

	switch phase {
	case models.PhaseComplete:
		return nil, ErrSessionComplete
	case models.PhaseIntro:
		return nil, ErrNotStarted
	}

	if err := c.runTurn(ctx, text); err != nil {
		return nil, err
	}
	return c.Session(), nil
}

// Retry replays the cached request of the last failed turn, verbatim.
func (c *Controller) Retry(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return nil, ErrNoPendingRetry
	}
	if c.busy {
		c.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	c.busy = true
	pending := c.pending
	c.mu.Unlock()

	result, err := c.strategy.Execute(ctx, pending.input)

	c.mu.Lock()
	c.busy = false
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.pending = nil
	c.applyLocked(result, pending.userMsg)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.afterTurn(ctx, result)
	return snap, nil
}

// Reset deletes the persisted session and returns the category to a fresh
// intro state. The only way out of the complete phase.
func (c *Controller) Reset(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	c.session = models.NewSession(c.category)
	c.initialized = true
	c.pending = nil
	c.sideCtx = nil
	c.sideLoaded = false
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if err := c.sessions.Reset(ctx, c.userID, c.category); err != nil {
		log.Error().Err(err).
			Str("userId", c.userID).
			Str("category", string(c.category)).
			Msg("Session reset persistence failed")
	}
	return snap, nil
}

// runTurn executes one protocol turn. answer == "" means no user message is
// appended (the replayed first request of a resumed Dynamic session). On
// failure no state mutates; the request is cached for retry.
func (c *Controller) runTurn(ctx context.Context, answer string) error {
	side := c.sideContext(ctx)

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	c.busy = true

	var userMsg *models.Message
	transcript := append([]models.Message(nil), c.session.Transcript...)
	if answer != "" {
		m := models.NewMessage(models.RoleUser, answer)
		userMsg = &m
		transcript = append(transcript, m)
	}

	accumulated := models.InsightBundle{}
	for k, v := range c.session.Extracted {
		accumulated[k] = v
	}

	input := &protocol.ExecInput{
		UserID:      c.userID,
		Category:    c.category,
		Transcript:  transcript,
		Covered:     append([]models.TopicID(nil), c.session.Covered...),
		Accumulated: accumulated,
		Answer:      answer,
		SideContext: side,
	}
	c.mu.Unlock()

	result, err := c.strategy.Execute(ctx, input)

	c.mu.Lock()
	c.busy = false
	if err != nil {
		c.pending = &pendingTurn{input: input, userMsg: userMsg}
		c.mu.Unlock()
		return err
	}
	c.pending = nil
	c.applyLocked(result, userMsg)
	c.mu.Unlock()

	c.afterTurn(ctx, result)
	return nil
}

// applyLocked commits a successful turn result to the session. Caller holds
// the mutex.
func (c *Controller) applyLocked(result *protocol.TurnResult, userMsg *models.Message) {
	if userMsg != nil {
		c.session.Transcript = append(c.session.Transcript, *userMsg)
	}

	content := result.Question
	if result.IsComplete && result.FinalSummary != "" {
		content = result.FinalSummary
	}
	if content != "" {
		c.session.Transcript = append(c.session.Transcript, models.NewMessage(models.RoleAssistant, content))
	}

	c.session.Cover(result.CoveredTopic)
	c.session.MergeInsights(result.Insights)
	c.session.CompletionPercentage = c.percentageLocked(result.CompletionPercentage)

	if result.IsComplete {
		c.session.Phase = models.PhaseComplete
		c.session.FinalSummary = result.FinalSummary
		// Full credit on completion regardless of exact tracked coverage,
		// mirroring the store's reconciliation rule for legacy records.
		if topics := c.registry.Topics(c.category); len(topics) > 0 {
			c.session.Covered = append([]models.TopicID(nil), topics...)
		}
		c.session.CompletionPercentage = 100
	} else if c.session.Phase == models.PhaseIntro {
		c.session.Phase = models.PhaseCoaching
	}
}

// percentageLocked derives the completion percentage from checklist coverage
// when the category has a checklist and coverage has begun; otherwise the
// protocol's reported value stands. Capped at 99: 100 is reserved for the
// complete phase, which applyLocked sets explicitly.
func (c *Controller) percentageLocked(reported int) int {
	topics := c.registry.Topics(c.category)
	pct := reported
	if len(topics) > 0 {
		covered := 0
		for _, t := range topics {
			if c.session.HasCovered(t) {
				covered++
			}
		}
		if covered > 0 {
			pct = (covered*100 + len(topics)/2) / len(topics)
		}
	}
	if pct > 99 {
		pct = 99
	}
	return pct
}

// afterTurn runs the fire-and-forget tail of a turn: persistence, per-turn
// insight routing and, on completion, the category's side effect. None of
// these block or fail the turn.
func (c *Controller) afterTurn(ctx context.Context, result *protocol.TurnResult) {
	c.persist(ctx)

	if len(result.Insights) > 0 {
		if err := c.router.Route(ctx, c.category, result.Insights, c.userID); err != nil {
			log.Error().Err(err).
				Str("userId", c.userID).
				Str("category", string(c.category)).
				Msg("Insight routing failed")
		}
	}

	if result.IsComplete {
		c.mu.Lock()
		transcript := append([]models.Message(nil), c.session.Transcript...)
		c.mu.Unlock()
		if err := c.router.RunCompletionSideEffect(ctx, c.category, c.userID, transcript); err != nil {
			log.Error().Err(err).
				Str("userId", c.userID).
				Str("category", string(c.category)).
				Msg("Completion side effect failed")
		}
	}
}

// persist saves the session. Save failures are logged, never surfaced: the
// in-memory session stays valid and the next successful save reconciles.
func (c *Controller) persist(ctx context.Context) {
	c.mu.Lock()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if err := c.sessions.Save(ctx, c.userID, snap); err != nil {
		log.Error().Err(err).
			Str("userId", c.userID).
			Str("category", string(c.category)).
			Msg("Session save failed")
	}
}

// sideContext returns the cached profile snapshot, fetching it at most once
// per session lifetime. Snapshot failures degrade to an absent context.
func (c *Controller) sideContext(ctx context.Context) json.RawMessage {
	c.mu.Lock()
	if c.sideLoaded {
		side := c.sideCtx
		c.mu.Unlock()
		return side
	}
	c.mu.Unlock()

	v, err, _ := c.flight.Do("side-context", func() (any, error) {
		return c.profile.Snapshot(ctx, c.userID)
	})
	if err != nil {
		log.Warn().Err(err).Str("userId", c.userID).Msg("Profile snapshot unavailable")
		return nil
	}

	side, _ := v.(json.RawMessage)
	c.mu.Lock()
	c.sideCtx = side
	c.sideLoaded = true
	c.mu.Unlock()
	return side
}

// snapshotLocked deep-copies the session. Caller holds the mutex.
func (c *Controller) snapshotLocked() *models.Session {
	if c.session == nil {
		return nil
	}
	snap := *c.session
	snap.Transcript = append([]models.Message(nil), c.session.Transcript...)
	snap.Covered = append([]models.TopicID(nil), c.session.Covered...)
	snap.Extracted = models.InsightBundle{}
	for k, v := range c.session.Extracted {
		snap.Extracted[k] = v
	}
	return &snap
}
