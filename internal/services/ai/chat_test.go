package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benvon/soonish/internal/models"
	"github.com/benvon/soonish/internal/planner"
)

// scriptedExtractor replays canned replies in order. When gate is set each
// call blocks until a value is received from it.
type scriptedExtractor struct {
	mu          sync.Mutex
	replies     []*Reply
	errs        []error
	calls       int
	transcripts [][]models.ChatMessage
	gate        chan struct{}
	started     chan struct{}
	prewarms    atomic.Int32
}

var _ Extractor = (*scriptedExtractor)(nil)

func (s *scriptedExtractor) Extract(ctx context.Context, transcript []models.ChatMessage, instruction string) (*Reply, error) {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.transcripts = append(s.transcripts, transcript)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return &Reply{Kind: ReplyQuestion, Text: "もう少し教えてください"}, nil
}

func (s *scriptedExtractor) Prewarm(ctx context.Context) error {
	s.prewarms.Add(1)
	return nil
}

type memorySaver struct {
	mu    sync.Mutex
	plans []*models.Plan
	err   error
}

func (m *memorySaver) Insert(ctx context.Context, plan *models.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.plans = append(m.plans, plan)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var testNow = time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC)

func springSuggestion() *Reply {
	s := models.PeriodSuggestion("旅行", "spring", nil)
	return &Reply{Kind: ReplySuggestion, Text: "春に旅行ですね。この内容で作成しますか？", Suggestion: &s}
}

func TestConversation_StartsWithGreeting(t *testing.T) {
	t.Parallel()

	conv := NewConversation(&scriptedExtractor{}, &memorySaver{}, fixedClock(testNow))
	transcript := conv.Transcript()
	if len(transcript) != 1 || transcript[0].Role != models.ChatRoleAssistant || transcript[0].Content != Greeting {
		t.Fatalf("Expected greeting as the only message, got %+v", transcript)
	}
}

func TestConversation_EndToEndSpringTrip(t *testing.T) {
	t.Parallel()

	extractor := &scriptedExtractor{replies: []*Reply{springSuggestion()}}
	saver := &memorySaver{}
	conv := NewConversation(extractor, saver, fixedClock(testNow))

	reply, err := conv.Send(context.Background(), "春に旅行したい")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if reply.Kind != ReplySuggestion {
		t.Fatalf("Expected suggestion, got %s", reply.Kind)
	}
	if conv.Pending() == nil {
		t.Fatal("Expected pending suggestion")
	}

	// the extractor saw greeting plus the user message
	if got := len(extractor.transcripts[0]); got != 2 {
		t.Errorf("Expected transcript of 2 messages, got %d", got)
	}

	plan, err := conv.Confirm(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if conv.Pending() != nil {
		t.Error("Expected pending suggestion to be cleared")
	}
	if len(saver.plans) != 1 || saver.plans[0] != plan {
		t.Fatal("Expected the plan to be persisted once")
	}

	if plan.Kind() != models.TimeModePeriod {
		t.Errorf("Expected period mode, got %s", plan.Kind())
	}
	if preset, _ := plan.PeriodPreset(); preset != models.PeriodSpring {
		t.Errorf("Expected spring, got %s", preset)
	}
	if plan.PeriodLabel() == "" {
		t.Error("Expected season label to be set")
	}
	start, end := plan.PeriodStart(), plan.PeriodEnd()
	if start == nil || end == nil {
		t.Fatal("Expected derived interval")
	}
	if start.Month() != time.March || start.Day() != 1 || end.Month() != time.May || end.Day() != 31 {
		t.Errorf("Expected March 1 to May 31, got %v to %v", start, end)
	}
	if start.Year() != 2027 {
		t.Errorf("Expected next spring since this one is over, got %d", start.Year())
	}

	transcript := conv.Transcript()
	if len(transcript) != 3 || transcript[2].Content != reply.Text {
		t.Errorf("Expected suggestion text appended, got %+v", transcript)
	}
}

func TestConversation_QuestionAndConfirmationDoNotSuggest(t *testing.T) {
	t.Parallel()

	extractor := &scriptedExtractor{replies: []*Reply{
		{Kind: ReplyQuestion, Text: "いつ頃がいいですか？"},
		{Kind: ReplyConfirmation, Text: "いいですね！"},
	}}
	conv := NewConversation(extractor, &memorySaver{}, fixedClock(testNow))

	for _, text := range []string{"旅行したい", "温泉がいい"} {
		if _, err := conv.Send(context.Background(), text); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if conv.Pending() != nil {
			t.Fatal("Expected no pending suggestion")
		}
	}
	if got := len(conv.Transcript()); got != 5 {
		t.Errorf("Expected 5 messages, got %d", got)
	}
}

func TestConversation_ExtractionFailureKeepsUserMessage(t *testing.T) {
	t.Parallel()

	boom := errors.New("model unavailable")
	extractor := &scriptedExtractor{errs: []error{boom}, replies: []*Reply{nil, springSuggestion()}}
	conv := NewConversation(extractor, &memorySaver{}, fixedClock(testNow))

	_, err := conv.Send(context.Background(), "春に旅行したい")
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) || !errors.Is(err, boom) {
		t.Fatalf("Expected ExtractionError wrapping cause, got %v", err)
	}

	transcript := conv.Transcript()
	if len(transcript) != 2 || transcript[1].Role != models.ChatRoleUser {
		t.Fatalf("Expected user message kept without reply, got %+v", transcript)
	}
	if conv.InFlight() {
		t.Error("Expected in-flight flag cleared after failure")
	}

	// retry succeeds
	if _, err := conv.Send(context.Background(), "春に旅行したい"); err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if conv.Pending() == nil {
		t.Error("Expected pending suggestion after retry")
	}
}

func TestConversation_MalformedReplyIsExtractionFailure(t *testing.T) {
	t.Parallel()

	extractor := &scriptedExtractor{replies: []*Reply{{Kind: ReplySuggestion, Text: "no plan"}}}
	conv := NewConversation(extractor, &memorySaver{}, fixedClock(testNow))

	_, err := conv.Send(context.Background(), "何か")
	if !errors.Is(err, ErrMalformedReply) {
		t.Fatalf("Expected ErrMalformedReply, got %v", err)
	}
	if conv.Pending() != nil {
		t.Error("Expected no pending suggestion")
	}
}

func TestConversation_EmptyMessage(t *testing.T) {
	t.Parallel()

	conv := NewConversation(&scriptedExtractor{}, &memorySaver{}, fixedClock(testNow))
	if _, err := conv.Send(context.Background(), "  \n"); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("Expected ErrEmptyMessage, got %v", err)
	}
	if got := len(conv.Transcript()); got != 1 {
		t.Errorf("Expected transcript unchanged, got %d messages", got)
	}
}

func TestConversation_ConfirmAndRejectWithoutPending(t *testing.T) {
	t.Parallel()

	conv := NewConversation(&scriptedExtractor{}, &memorySaver{}, fixedClock(testNow))
	if _, err := conv.Confirm(context.Background()); !errors.Is(err, ErrNoPendingSuggestion) {
		t.Errorf("Expected ErrNoPendingSuggestion from confirm, got %v", err)
	}
	if err := conv.Reject(); !errors.Is(err, ErrNoPendingSuggestion) {
		t.Errorf("Expected ErrNoPendingSuggestion from reject, got %v", err)
	}
}

func TestConversation_ConfirmFailureKeepsPending(t *testing.T) {
	t.Parallel()

	t.Run("invalid preset", func(t *testing.T) {
		t.Parallel()

		s := models.DeadlineSuggestion("確定申告", "bogus", nil)
		extractor := &scriptedExtractor{replies: []*Reply{{Kind: ReplySuggestion, Text: "作成しますか？", Suggestion: &s}}}
		saver := &memorySaver{}
		conv := NewConversation(extractor, saver, fixedClock(testNow))

		if _, err := conv.Send(context.Background(), "確定申告しないと"); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		_, err := conv.Confirm(context.Background())
		var presetErr *planner.InvalidDeadlinePresetError
		if !errors.As(err, &presetErr) || presetErr.Name != "bogus" {
			t.Fatalf("Expected InvalidDeadlinePresetError(bogus), got %v", err)
		}
		if conv.Pending() == nil {
			t.Error("Expected pending suggestion retained")
		}
		if len(saver.plans) != 0 {
			t.Error("Expected nothing persisted")
		}
	})

	t.Run("persistence failure", func(t *testing.T) {
		t.Parallel()

		saveErr := errors.New("disk full")
		extractor := &scriptedExtractor{replies: []*Reply{springSuggestion()}}
		saver := &memorySaver{err: saveErr}
		conv := NewConversation(extractor, saver, fixedClock(testNow))

		if _, err := conv.Send(context.Background(), "春に旅行したい"); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if _, err := conv.Confirm(context.Background()); !errors.Is(err, saveErr) {
			t.Fatalf("Expected save error, got %v", err)
		}
		if conv.Pending() == nil {
			t.Error("Expected pending suggestion retained")
		}

		saver.mu.Lock()
		saver.err = nil
		saver.mu.Unlock()
		if _, err := conv.Confirm(context.Background()); err != nil {
			t.Fatalf("Expected retry to succeed, got %v", err)
		}
	})
}

func TestConversation_Reject(t *testing.T) {
	t.Parallel()

	extractor := &scriptedExtractor{replies: []*Reply{springSuggestion()}}
	conv := NewConversation(extractor, &memorySaver{}, fixedClock(testNow))

	if _, err := conv.Send(context.Background(), "春に旅行したい"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := conv.Reject(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if conv.Pending() != nil {
		t.Error("Expected pending suggestion discarded")
	}
	transcript := conv.Transcript()
	last := transcript[len(transcript)-1]
	if last.Role != models.ChatRoleAssistant || last.Content != RejectAcknowledgement {
		t.Errorf("Expected acknowledgement appended, got %+v", last)
	}
}

func TestConversation_SecondTurnWhileInFlightIsRejected(t *testing.T) {
	t.Parallel()

	extractor := &scriptedExtractor{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
		replies: []*Reply{springSuggestion()},
	}
	conv := NewConversation(extractor, &memorySaver{}, fixedClock(testNow))

	done := make(chan error, 1)
	go func() {
		_, err := conv.Send(context.Background(), "春に旅行したい")
		done <- err
	}()
	<-extractor.started

	if !conv.InFlight() {
		t.Error("Expected in-flight flag while extracting")
	}
	if _, err := conv.Send(context.Background(), "やっぱり夏"); !errors.Is(err, ErrTurnInFlight) {
		t.Errorf("Expected ErrTurnInFlight, got %v", err)
	}
	if _, err := conv.Confirm(context.Background()); !errors.Is(err, ErrTurnInFlight) {
		t.Errorf("Expected ErrTurnInFlight from confirm, got %v", err)
	}
	if err := conv.Reject(); !errors.Is(err, ErrTurnInFlight) {
		t.Errorf("Expected ErrTurnInFlight from reject, got %v", err)
	}

	close(extractor.gate)
	if err := <-done; err != nil {
		t.Fatalf("Expected first turn to succeed, got %v", err)
	}

	transcript := conv.Transcript()
	if len(transcript) != 3 {
		t.Fatalf("Expected greeting, user, assistant; got %d messages", len(transcript))
	}
	roles := []models.ChatRole{transcript[0].Role, transcript[1].Role, transcript[2].Role}
	want := []models.ChatRole{models.ChatRoleAssistant, models.ChatRoleUser, models.ChatRoleAssistant}
	for i := range want {
		if roles[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], roles[i])
		}
	}
}

func TestChatService_Lifecycle(t *testing.T) {
	t.Parallel()

	extractor := &scriptedExtractor{}
	svc := NewChatService(extractor, &memorySaver{}, nil)
	current := testNow
	svc.now = func() time.Time { return current }

	conv := svc.Start()
	if got, err := svc.Get(conv.ID); err != nil || got != conv {
		t.Fatalf("Expected to find conversation, got %v", err)
	}
	if svc.Count() != 1 {
		t.Errorf("Expected 1 conversation, got %d", svc.Count())
	}

	current = testNow.Add(2 * time.Hour)
	if pruned := svc.PruneIdle(time.Hour); pruned != 1 {
		t.Errorf("Expected 1 pruned, got %d", pruned)
	}
	if _, err := svc.Get(conv.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Expected ErrConversationNotFound, got %v", err)
	}
	if err := svc.Close(conv.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Expected ErrConversationNotFound on double close, got %v", err)
	}
}
