package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerQueueOrdersByDeadline(t *testing.T) {
	q := newTimerQueue()
	base := time.Now()

	var fired []int
	q.Add(base.Add(30*time.Millisecond), func() { fired = append(fired, 3) })
	q.Add(base.Add(10*time.Millisecond), func() { fired = append(fired, 1) })
	q.Add(base.Add(20*time.Millisecond), func() { fired = append(fired, 2) })

	for _, entry := range q.PopExpired(base.Add(time.Hour)) {
		entry.cb()
	}

	require.Equal(t, []int{1, 2, 3}, fired)
}

func TestTimerQueueRemoveSkipsCanceled(t *testing.T) {
	q := newTimerQueue()
	base := time.Now()

	fired := false
	h := q.Add(base.Add(10*time.Millisecond), func() { fired = true })
	q.Remove(h)

	for _, entry := range q.PopExpired(base.Add(time.Hour)) {
		entry.cb()
	}

	require.False(t, fired)
}

func TestTimerQueueNextDeadline(t *testing.T) {
	q := newTimerQueue()

	_, ok := q.NextDeadline()
	require.False(t, ok)

	deadline := time.Now().Add(50 * time.Millisecond)
	q.Add(deadline, func() {})

	got, ok := q.NextDeadline()
	require.True(t, ok)
	require.WithinDuration(t, deadline, got, time.Millisecond)
}

func TestTimerQueuePopExpiredOnlyPastDeadlines(t *testing.T) {
	q := newTimerQueue()
	base := time.Now()

	q.Add(base.Add(time.Hour), func() {})
	q.Add(base.Add(-time.Second), func() {})

	expired := q.PopExpired(base)
	require.Len(t, expired, 1)
}
