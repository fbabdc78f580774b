package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// the cache janitor only stops when the cache is garbage collected
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

func TestMilestones(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 10, StageReceived.Percent())
	assert.Equal(t, 30, StagePrivacy.Percent())
	assert.Equal(t, 60, StageInference.Percent())
	assert.Equal(t, 90, StageStored.Percent())
	assert.Equal(t, 100, StageDone.Percent())
}

func TestTrackerUpdateAndGet(t *testing.T) {
	t.Parallel()

	tr := NewTracker(time.Minute, time.Second)
	token := NewToken()

	_, ok := tr.Get(token)
	assert.False(t, ok)

	tr.Advance(token, StageReceived)
	tr.Advance(token, StageInference)
	p, ok := tr.Get(token)
	require.True(t, ok)
	assert.Equal(t, 60, p.Percent)
	assert.Equal(t, StageInference, p.Stage)
	assert.False(t, p.Done)

	// percent never goes backwards
	tr.Update(token, 30, StagePrivacy)
	p, _ = tr.Get(token)
	assert.Equal(t, 60, p.Percent)

	tr.Update(token, 250, StageStored)
	p, _ = tr.Get(token)
	assert.Equal(t, 100, p.Percent)
}

func TestTrackerIgnoresEmptyToken(t *testing.T) {
	t.Parallel()

	tr := NewTracker(0, 0)
	tr.Advance("  ", StageReceived)
	tr.Complete("")
	assert.Zero(t, tr.Len())
}

func TestTrackerCompleteKeepsStateForGrace(t *testing.T) {
	t.Parallel()

	tr := NewTracker(time.Minute, 50*time.Millisecond)
	tr.Advance("abc", StageStored)
	tr.Complete("abc")

	p, ok := tr.Get("abc")
	require.True(t, ok)
	assert.True(t, p.Done)
	assert.Equal(t, 100, p.Percent)

	// updates after completion are ignored
	tr.Advance("abc", StageReceived)
	p, _ = tr.Get("abc")
	assert.Equal(t, StageDone, p.Stage)

	require.Eventually(t, func() bool {
		_, ok := tr.Get("abc")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestTrackerFail(t *testing.T) {
	t.Parallel()

	tr := NewTracker(time.Minute, time.Second)
	tr.Fail("tok", "photo rejected")

	p, ok := tr.Get("tok")
	require.True(t, ok)
	assert.Equal(t, StageFailed, p.Stage)
	assert.Equal(t, "photo rejected", p.Message)
	assert.True(t, p.Done)
}

func TestTrackerEntriesExpire(t *testing.T) {
	t.Parallel()

	tr := NewTracker(30*time.Millisecond, time.Second)
	tr.Advance("short", StageReceived)

	require.Eventually(t, func() bool {
		_, ok := tr.Get("short")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestTrackerConcurrentUpdates(t *testing.T) {
	t.Parallel()

	tr := NewTracker(time.Minute, time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.Update("shared", i*5, StageInference)
		}(i)
	}
	wg.Wait()

	p, ok := tr.Get("shared")
	require.True(t, ok)
	assert.GreaterOrEqual(t, p.Percent, 0)
	assert.LessOrEqual(t, p.Percent, 95)
}
