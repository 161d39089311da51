package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benvon/soonish/internal/database"
	"github.com/benvon/soonish/internal/models"
	"github.com/benvon/soonish/internal/planner"
	"github.com/benvon/soonish/internal/queue"
)

var testNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

// mockJobQueue records enqueued jobs
type mockJobQueue struct {
	mu          sync.Mutex
	jobs        []*queue.Job
	enqueueFunc func(ctx context.Context, job *queue.Job) error
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	if m.enqueueFunc != nil {
		if err := m.enqueueFunc(ctx, job); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockJobQueue) Consume(ctx context.Context, prefetchCount int) (<-chan queue.MessageInterface, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}

func (m *mockJobQueue) Close() error                          { return nil }
func (m *mockJobQueue) HealthCheck(ctx context.Context) error { return nil }

func (m *mockJobQueue) enqueued() []*queue.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*queue.Job(nil), m.jobs...)
}

var _ queue.JobQueue = (*mockJobQueue)(nil)

// mockMessage records how it was settled
type mockMessage struct {
	job     *queue.Job
	acked   bool
	nacked  bool
	requeue bool
}

func (m *mockMessage) Ack() error { m.acked = true; return nil }
func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}
func (m *mockMessage) GetJob() *queue.Job { return m.job }

var _ queue.MessageInterface = (*mockMessage)(nil)

// mockPlanLister returns fixed plans or an error
type mockPlanLister struct {
	plans []*models.Plan
	err   error
}

func (m *mockPlanLister) ListActive(ctx context.Context) ([]*models.Plan, error) {
	return m.plans, m.err
}

var _ ActivePlanLister = (*mockPlanLister)(nil)

// mockBoardWriter keeps the last board
type mockBoardWriter struct {
	mu    sync.Mutex
	board *planner.Board
	sets  int
}

func (m *mockBoardWriter) Set(ctx context.Context, board *planner.Board) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.board = board
	m.sets++
	return nil
}

func (m *mockBoardWriter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

var _ BoardWriter = (*mockBoardWriter)(nil)

type recordingObserver struct {
	reasons []string
	results []string
}

func (o *recordingObserver) ObserveBoardRefresh(reason, result string, d time.Duration) {
	o.reasons = append(o.reasons, reason)
	o.results = append(o.results, result)
}

func newRefresher(t *testing.T, lister *mockPlanLister, writer *mockBoardWriter, q queue.JobQueue) *BoardRefresher {
	t.Helper()
	r := NewBoardRefresher(lister, writer, q, nil)
	r.SetClock(func() time.Time { return testNow })
	return r
}

func TestBoardRefresher_ProcessJob_Success(t *testing.T) {
	t.Parallel()

	trip, err := models.NewPeriodPlan("旅行", models.PeriodNextMonth, nil, testNow)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	writer := &mockBoardWriter{}
	observer := &recordingObserver{}
	r := newRefresher(t, &mockPlanLister{plans: []*models.Plan{trip}}, writer, nil)
	r.SetObserver(observer)

	msg := &mockMessage{job: queue.NewBoardRefreshJob(queue.ReasonPlanChange, &trip.ID, testNow)}
	if err := r.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !msg.acked {
		t.Error("Expected message to be acked")
	}
	if writer.board == nil || !writer.board.GeneratedAt.Equal(testNow) {
		t.Fatal("Expected board built at the refresher clock to be stored")
	}
	section, ok := writer.board.Section(planner.BucketNextMonth)
	if !ok || len(section.Entries) != 1 {
		t.Errorf("Expected the plan in the next month section, got %+v", section)
	}
	if len(observer.results) != 1 || observer.results[0] != "ok" || observer.reasons[0] != string(queue.ReasonPlanChange) {
		t.Errorf("Expected one ok plan_change observation, got %v %v", observer.reasons, observer.results)
	}
}

func TestBoardRefresher_ProcessJob_Failures(t *testing.T) {
	t.Parallel()

	listErr := errors.New("database unavailable")

	tests := []struct {
		name        string
		job         *queue.Job
		queue       *mockJobQueue
		wantErr     bool
		wantAck     bool
		wantNack    bool
		wantRetries int
	}{
		{
			name:        "retry scheduled through queue",
			job:         queue.NewBoardRefreshJob(queue.ReasonManual, nil, testNow),
			queue:       &mockJobQueue{},
			wantAck:     true,
			wantRetries: 1,
		},
		{
			name: "retries exhausted goes to DLQ",
			job: func() *queue.Job {
				j := queue.NewBoardRefreshJob(queue.ReasonManual, nil, testNow)
				j.RetryCount = j.MaxRetries
				return j
			}(),
			queue:    &mockJobQueue{},
			wantErr:  true,
			wantNack: true,
		},
		{
			name: "re-enqueue failure goes to DLQ",
			job:  queue.NewBoardRefreshJob(queue.ReasonManual, nil, testNow),
			queue: &mockJobQueue{enqueueFunc: func(context.Context, *queue.Job) error {
				return errors.New("broker down")
			}},
			wantErr:  true,
			wantNack: true,
		},
		{
			name:     "unknown job type",
			job:      &queue.Job{Type: "reprocess_everything", MaxRetries: 3},
			queue:    &mockJobQueue{},
			wantErr:  true,
			wantNack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newRefresher(t, &mockPlanLister{err: listErr}, &mockBoardWriter{}, tt.queue)
			msg := &mockMessage{job: tt.job}
			err := r.ProcessJob(context.Background(), msg)

			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if msg.acked != tt.wantAck {
				t.Errorf("Expected acked=%v, got %v", tt.wantAck, msg.acked)
			}
			if msg.nacked != tt.wantNack {
				t.Errorf("Expected nacked=%v, got %v", tt.wantNack, msg.nacked)
			}
			if msg.nacked && msg.requeue {
				t.Error("Expected failed jobs not to be requeued in place")
			}

			retries := tt.queue.enqueued()
			if len(retries) != tt.wantRetries {
				t.Fatalf("Expected %d re-enqueued jobs, got %d", tt.wantRetries, len(retries))
			}
			if tt.wantRetries == 1 {
				retry := retries[0]
				if retry.ID != tt.job.ID || retry.RetryCount != tt.job.RetryCount+1 {
					t.Errorf("Expected same job with retry count %d, got %+v", tt.job.RetryCount+1, retry)
				}
				if retry.NotBefore == nil || !retry.NotBefore.Equal(testNow.Add(5*time.Second)) {
					t.Errorf("Expected NotBefore 5s from now, got %v", retry.NotBefore)
				}
			}
		})
	}
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{3, 40 * time.Second},
		{10, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := retryDelay(tt.retry); got != tt.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestBoardRefresher_Run(t *testing.T) {
	t.Parallel()

	writer := &mockBoardWriter{}
	r := newRefresher(t, &mockPlanLister{}, writer, nil)

	msgs := make(chan queue.MessageInterface, 2)
	errs := make(chan error, 1)
	first := &mockMessage{job: queue.NewBoardRefreshJob(queue.ReasonManual, nil, testNow)}
	second := &mockMessage{job: queue.NewBoardRefreshJob(queue.ReasonDayRollover, nil, testNow)}
	msgs <- first
	msgs <- second
	errs <- errors.New("transient")
	close(msgs)

	done := make(chan struct{})
	go func() {
		r.Run(context.Background(), msgs, errs)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Run to return once the message channel closed")
	}
	if !first.acked || !second.acked {
		t.Error("Expected both messages to be acked")
	}
	if writer.count() != 2 {
		t.Errorf("Expected 2 boards stored, got %d", writer.count())
	}
}

func TestNextRollover(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"mid morning", testNow, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)},
		{"exactly midnight", time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)},
		{"year end", time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"local zone", time.Date(2026, 10, 16, 23, 30, 0, 0, tokyo), time.Date(2026, 10, 17, 0, 0, 0, 0, tokyo)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NextRollover(tt.now); !got.Equal(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRolloverScheduler_Start(t *testing.T) {
	t.Parallel()

	q := &mockJobQueue{}
	s := NewRolloverScheduler(q, func() time.Time { return testNow }, nil)

	waits := make(chan time.Duration, 4)
	ticks := make(chan time.Time)
	s.after = func(d time.Duration) <-chan time.Time {
		waits <- d
		return ticks
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	if d := <-waits; d != 14*time.Hour {
		t.Errorf("Expected to wait 14h until midnight, got %v", d)
	}
	ticks <- testNow
	<-waits
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	jobs := q.enqueued()
	if len(jobs) != 1 {
		t.Fatalf("Expected one rollover job, got %d", len(jobs))
	}
	if jobs[0].Reason != queue.ReasonDayRollover {
		t.Errorf("Expected day_rollover reason, got %s", jobs[0].Reason)
	}
	wantNotAfter := time.Date(2026, 10, 17, 1, 0, 0, 0, time.UTC)
	if jobs[0].NotAfter == nil || !jobs[0].NotAfter.Equal(wantNotAfter) {
		t.Errorf("Expected NotAfter %v, got %v", wantNotAfter, jobs[0].NotAfter)
	}
}

func TestChangeFollower_DebouncesBursts(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryPlanStore()
	writer := &mockBoardWriter{}
	refresher := newRefresher(t, &mockPlanLister{}, writer, nil)
	follower := NewChangeFollower(store, refresher, 50*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- follower.Start(ctx) }()

	// Give Start a moment to subscribe
	deadline := time.Now().Add(2 * time.Second)
	for writer.count() == 0 && time.Now().Before(deadline) {
		plan, _ := models.NewAnytimePlan("subscribe probe", nil, testNow)
		_ = store.Insert(ctx, plan)
		time.Sleep(100 * time.Millisecond)
	}
	baseline := writer.count()
	if baseline == 0 {
		t.Fatal("Expected follower to refresh after a change")
	}

	for i := range 5 {
		plan, _ := models.NewAnytimePlan("burst", nil, testNow.Add(time.Duration(i)*time.Second))
		_ = store.Insert(ctx, plan)
	}
	time.Sleep(300 * time.Millisecond)

	if got := writer.count() - baseline; got != 1 {
		t.Errorf("Expected one refresh for a burst of 5 changes, got %d", got)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) && err != nil {
		t.Errorf("Expected clean shutdown, got %v", err)
	}
}
