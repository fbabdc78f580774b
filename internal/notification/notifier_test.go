package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSink struct {
	name   string
	mu     sync.Mutex
	events []InspectionEvent
	err    error
	closed bool
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, event InspectionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) received() []InspectionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]InspectionEvent(nil), s.events...)
}

// blockingSink holds every Send until release is closed or ctx ends.
type blockingSink struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingSink() *blockingSink {
	return &blockingSink{started: make(chan struct{}), release: make(chan struct{})}
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Send(ctx context.Context, _ InspectionEvent) error {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *blockingSink) Close() error { return nil }

func nokEvent(id uint) InspectionEvent {
	return InspectionEvent{
		AnalysisID:   id,
		Status:       entities.StatusNOK,
		ClassID:      1,
		ClassName:    "NOK - Hamer weg",
		Label:        "nok_hamer_weg",
		Confidence:   0.91,
		MissingItems: []string{"hamer"},
	}
}

func okEvent(id uint) InspectionEvent {
	return InspectionEvent{AnalysisID: id, Status: entities.StatusOK, ClassName: "OK - Alles aanwezig", Label: "ok_alles_aanwezig"}
}

func TestNotifierDeliversToAllSinks(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	n := NewNotifier(Options{}, a, b)

	for i := uint(1); i <= 5; i++ {
		require.True(t, n.Notify(nokEvent(i)))
	}
	require.True(t, n.Notify(okEvent(6)))

	require.NoError(t, n.Close(context.Background()))

	for _, s := range []*recordingSink{a, b} {
		got := s.received()
		require.Len(t, got, 6, s.name)
		assert.Equal(t, uint(1), got[0].AnalysisID)
		assert.Equal(t, uint(6), got[5].AnalysisID)
		assert.False(t, got[0].Timestamp.IsZero(), "timestamp is filled in")
		assert.True(t, s.closed)
	}
	assert.Equal(t, []string{"a", "b"}, n.Sinks())
}

func TestNotifierOnlyNOK(t *testing.T) {
	s := &recordingSink{name: "s"}
	n := NewNotifier(Options{OnlyNOK: true}, s)

	assert.False(t, n.Notify(okEvent(1)))
	assert.True(t, n.Notify(nokEvent(2)))
	require.NoError(t, n.Close(context.Background()))

	got := s.received()
	require.Len(t, got, 1)
	assert.Equal(t, uint(2), got[0].AnalysisID)
}

func TestNotifierWithoutSinks(t *testing.T) {
	n := NewNotifier(Options{})
	assert.False(t, n.Notify(nokEvent(1)))
	require.NoError(t, n.Close(context.Background()))

	var nilNotifier *Notifier
	assert.False(t, nilNotifier.Notify(nokEvent(1)))
	assert.NoError(t, nilNotifier.Close(context.Background()))
	assert.Nil(t, nilNotifier.Sinks())
}

func TestNotifierAfterClose(t *testing.T) {
	s := &recordingSink{name: "s"}
	n := NewNotifier(Options{}, s)
	require.NoError(t, n.Close(context.Background()))
	require.NoError(t, n.Close(context.Background()), "close is idempotent")

	assert.False(t, n.Notify(nokEvent(1)))
	assert.Empty(t, s.received())
}

func TestNotifierDropsWhenQueueFull(t *testing.T) {
	s := newBlockingSink()
	n := NewNotifier(Options{QueueSize: 1}, s)

	require.True(t, n.Notify(nokEvent(1)))
	<-s.started // worker holds event 1
	require.True(t, n.Notify(nokEvent(2)))
	assert.False(t, n.Notify(nokEvent(3)), "queue is full")

	close(s.release)
	require.NoError(t, n.Close(context.Background()))
}

func TestNotifierCloseTimeoutCancelsDelivery(t *testing.T) {
	s := newBlockingSink()
	n := NewNotifier(Options{SendTimeout: time.Minute}, s)

	require.True(t, n.Notify(nokEvent(1)))
	<-s.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := n.Close(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotification))
}

func TestNotifierFailingSinkDoesNotBlockOthers(t *testing.T) {
	failing := &recordingSink{name: "failing", err: errors.NewStd("broker down")}
	healthy := &recordingSink{name: "healthy"}
	n := NewNotifier(Options{Breaker: CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Hour}}, failing, healthy)

	for i := uint(1); i <= 4; i++ {
		require.True(t, n.Notify(nokEvent(i)))
	}
	require.NoError(t, n.Close(context.Background()))

	assert.Len(t, healthy.received(), 4)
	// the breaker opens after two failures and skips the rest
	assert.Len(t, failing.received(), 2)
}
