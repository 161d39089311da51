package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/soonish/internal/models"
	"github.com/benvon/soonish/internal/planner"
)

// prewarmTimeout bounds the speculative prewarm call issued on creation
const prewarmTimeout = 10 * time.Second

// PlanSaver persists confirmed plans
type PlanSaver interface {
	Insert(ctx context.Context, plan *models.Plan) error
}

// TurnObserver records the outcome of extraction turns
type TurnObserver interface {
	ObserveTurn(result string, duration time.Duration)
}

// Conversation drives one dialogue from free text to a confirmed plan. It
// owns an append-only transcript and at most one pending suggestion. Turns
// are serialized: while an extraction or a confirm is unresolved every other
// operation fails with ErrTurnInFlight.
type Conversation struct {
	ID uuid.UUID

	extractor Extractor
	saver     PlanSaver
	observer  TurnObserver
	now       func() time.Time

	mu           sync.Mutex
	messages     []models.ChatMessage
	pending      *models.PlanSuggestion
	inFlight     bool
	createdAt    time.Time
	lastActivity time.Time
}

// ConversationState is a point-in-time snapshot of a conversation
type ConversationState struct {
	ID           uuid.UUID              `json:"id"`
	Messages     []models.ChatMessage   `json:"messages"`
	Pending      *models.PlanSuggestion `json:"pending_suggestion,omitempty"`
	InFlight     bool                   `json:"in_flight"`
	CreatedAt    time.Time              `json:"created_at"`
	LastActivity time.Time              `json:"last_activity"`
}

// NewConversation starts a conversation with the greeting already in the
// transcript
func NewConversation(extractor Extractor, saver PlanSaver, now func() time.Time) *Conversation {
	if now == nil {
		now = time.Now
	}
	ts := now()
	return &Conversation{
		ID:           uuid.New(),
		extractor:    extractor,
		saver:        saver,
		now:          now,
		messages:     []models.ChatMessage{models.NewChatMessage(models.ChatRoleAssistant, Greeting, ts)},
		createdAt:    ts,
		lastActivity: ts,
	}
}

// Send runs one turn: the user text is appended, the extractor is called
// with the whole transcript and its reply is appended as an assistant
// message. A suggestion reply also becomes the pending suggestion. When the
// extractor fails the user message stays in the transcript and an
// ExtractionError is returned.
func (c *Conversation) Send(ctx context.Context, text string) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	c.inFlight = true
	now := c.now()
	c.messages = append(c.messages, models.NewChatMessage(models.ChatRoleUser, text, now))
	c.lastActivity = now
	transcript := c.transcriptLocked()
	c.mu.Unlock()

	ctx = WithConversationID(ctx, c.ID.String())
	start := time.Now()
	reply, err := c.extractor.Extract(ctx, transcript, SystemInstruction(now))
	if err == nil {
		if reply == nil {
			err = ErrMalformedReply
		} else {
			err = reply.Validate()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false

	if err != nil {
		c.observe("error", time.Since(start))
		return nil, &ExtractionError{Err: err}
	}
	c.observe(string(reply.Kind), time.Since(start))

	ts := c.now()
	c.messages = append(c.messages, models.NewChatMessage(models.ChatRoleAssistant, reply.Text, ts))
	c.lastActivity = ts
	if reply.Kind == ReplySuggestion {
		s := *reply.Suggestion
		c.pending = &s
	}
	return reply, nil
}

// Confirm converts the pending suggestion into a plan and persists it. On
// success the pending suggestion is cleared. On a conversion or persistence
// failure the error is returned and the suggestion is kept for a retry.
func (c *Conversation) Confirm(ctx context.Context) (*models.Plan, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	if c.pending == nil {
		c.mu.Unlock()
		return nil, ErrNoPendingSuggestion
	}
	suggestion := *c.pending
	c.inFlight = true
	now := c.now()
	c.mu.Unlock()

	plan, err := planner.ToPlan(suggestion, now)
	if err == nil {
		if saveErr := c.saver.Insert(ctx, plan); saveErr != nil {
			err = fmt.Errorf("failed to save plan: %w", saveErr)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		return nil, err
	}
	c.pending = nil
	c.lastActivity = c.now()
	return plan, nil
}

// Reject discards the pending suggestion and acknowledges it in the
// transcript so the dialogue can continue
func (c *Conversation) Reject() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return ErrTurnInFlight
	}
	if c.pending == nil {
		return ErrNoPendingSuggestion
	}
	c.pending = nil
	ts := c.now()
	c.messages = append(c.messages, models.NewChatMessage(models.ChatRoleAssistant, RejectAcknowledgement, ts))
	c.lastActivity = ts
	return nil
}

// InFlight reports whether a turn is currently unresolved
func (c *Conversation) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Pending returns a copy of the pending suggestion, if any
func (c *Conversation) Pending() *models.PlanSuggestion {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	s := *c.pending
	return &s
}

// Transcript returns a copy of the messages so far
func (c *Conversation) Transcript() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcriptLocked()
}

// State returns a snapshot of the conversation
func (c *Conversation) State() ConversationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := ConversationState{
		ID:           c.ID,
		Messages:     c.transcriptLocked(),
		InFlight:     c.inFlight,
		CreatedAt:    c.createdAt,
		LastActivity: c.lastActivity,
	}
	if c.pending != nil {
		s := *c.pending
		state.Pending = &s
	}
	return state
}

func (c *Conversation) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

func (c *Conversation) transcriptLocked() []models.ChatMessage {
	out := make([]models.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) observe(result string, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveTurn(result, d)
	}
}

// ChatService manages live conversations
type ChatService struct {
	extractor Extractor
	saver     PlanSaver
	observer  TurnObserver
	logger    *zap.Logger
	now       func() time.Time

	sessions map[uuid.UUID]*Conversation
	mu       sync.RWMutex // Protects concurrent access to sessions map
}

// NewChatService creates a new chat service
func NewChatService(extractor Extractor, saver PlanSaver, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		extractor: extractor,
		saver:     saver,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[uuid.UUID]*Conversation),
	}
}

// SetObserver installs a recorder for turn outcomes
func (s *ChatService) SetObserver(observer TurnObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = observer
}

// SetClock replaces the time source used for message timestamps and the
// time context of the system instruction
func (s *ChatService) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Start creates a conversation and prewarms the extractor in the background
func (s *ChatService) Start() *Conversation {
	s.mu.Lock()
	conv := NewConversation(s.extractor, s.saver, s.now)
	conv.observer = s.observer
	s.sessions[conv.ID] = conv
	s.mu.Unlock()

	s.logger.Debug("conversation_started", zap.String("conversation_id", conv.ID.String()))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), prewarmTimeout)
		defer cancel()
		if err := s.extractor.Prewarm(ctx); err != nil {
			s.logger.Debug("extractor_prewarm_failed",
				zap.String("conversation_id", conv.ID.String()),
				zap.Error(err),
			)
		}
	}()

	return conv
}

// Get returns a live conversation by id
func (s *ChatService) Get(id uuid.UUID) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.sessions[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// Close ends a conversation
func (s *ChatService) Close(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrConversationNotFound
	}
	delete(s.sessions, id)
	return nil
}

// PruneIdle closes conversations idle for longer than maxIdle that have no
// turn in flight. Returns the number closed.
func (s *ChatService) PruneIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxIdle)
	pruned := 0
	for id, conv := range s.sessions {
		if conv.idleSince().Before(cutoff) && !conv.InFlight() {
			delete(s.sessions, id)
			pruned++
		}
	}
	return pruned
}

// Count returns the number of live conversations
func (s *ChatService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
