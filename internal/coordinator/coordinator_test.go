package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newCoordinator(waitTimeout time.Duration) *Coordinator {
	return New(waitTimeout, zap.NewNop())
}

func TestPauseAndMatchingResume(t *testing.T) {
	c := newCoordinator(time.Second)

	c.PauseAll("mod-1", "user-9", ReasonAuthenticationCheck)
	token := c.PauseToken("mod-1")
	assert.True(t, token.Paused)
	assert.Equal(t, ReasonAuthenticationCheck, token.Reason)
	assert.Equal(t, "user-9", token.PausedBy)

	assert.True(t, c.ResumeIfReason("mod-1", ReasonAuthenticationCheck))
	assert.False(t, c.PauseToken("mod-1").Paused)
}

func TestResumeMismatchedReasonIsNoOp(t *testing.T) {
	c := newCoordinator(time.Second)

	c.PauseAll("mod-1", "system", ReasonPendingQR)
	assert.False(t, c.ResumeIfReason("mod-1", ReasonCheckNumber))

	token := c.PauseToken("mod-1")
	assert.True(t, token.Paused)
	assert.Equal(t, ReasonPendingQR, token.Reason)
}

func TestResumeIsIdempotent(t *testing.T) {
	c := newCoordinator(time.Second)

	c.PauseAll("mod-1", "system", ReasonCheckNumber)
	assert.True(t, c.ResumeIfReason("mod-1", ReasonCheckNumber))
	assert.False(t, c.ResumeIfReason("mod-1", ReasonCheckNumber))
	assert.False(t, c.PauseToken("mod-1").Paused)
}

func TestPauseLastWriterWins(t *testing.T) {
	c := newCoordinator(time.Second)

	c.PauseAll("mod-1", "user-1", ReasonAuthenticationCheck)
	c.PauseAll("mod-1", "user-2", ReasonPendingNet)

	token := c.PauseToken("mod-1")
	assert.Equal(t, ReasonPendingNet, token.Reason)
	assert.Equal(t, "user-2", token.PausedBy)

	// The earlier reason can no longer clear the slot.
	assert.False(t, c.ResumeIfReason("mod-1", ReasonAuthenticationCheck))
	assert.True(t, c.ResumeIfReason("mod-1", ReasonPendingNet))
}

func TestPauseIdempotentSameReason(t *testing.T) {
	c := newCoordinator(time.Second)

	c.PauseAll("mod-1", "user-1", ReasonPendingQR)
	c.PauseAll("mod-1", "user-1", ReasonPendingQR)

	token := c.PauseToken("mod-1")
	assert.True(t, token.Paused)
	assert.Equal(t, ReasonPendingQR, token.Reason)
	assert.True(t, c.ResumeIfReason("mod-1", ReasonPendingQR))
}

func TestModeratorPauseIsolation(t *testing.T) {
	c := newCoordinator(time.Second)

	c.PauseAll("mod-a", "system", ReasonPendingNet)
	assert.False(t, c.PauseToken("mod-b").Paused)

	c.ResumeIfReason("mod-a", ReasonPendingNet)
	assert.False(t, c.PauseToken("mod-a").Paused)
}

func TestWaitIdleReturnsImmediately(t *testing.T) {
	c := newCoordinator(time.Minute)

	start := time.Now()
	assert.True(t, c.WaitForCurrentOperationToFinish(context.Background(), "mod-1"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitReturnsWhenOperationFinishes(t *testing.T) {
	c := newCoordinator(time.Minute)

	done := c.BeginOperation("mod-1")
	go func() {
		time.Sleep(30 * time.Millisecond)
		done()
	}()

	assert.True(t, c.WaitForCurrentOperationToFinish(context.Background(), "mod-1"))
}

func TestWaitTimesOutButDoesNotBlock(t *testing.T) {
	c := newCoordinator(40 * time.Millisecond)

	done := c.BeginOperation("mod-1")
	defer done()

	start := time.Now()
	assert.False(t, c.WaitForCurrentOperationToFinish(context.Background(), "mod-1"))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestWaitObservesCancellation(t *testing.T) {
	c := newCoordinator(time.Minute)

	done := c.BeginOperation("mod-1")
	defer done()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	assert.False(t, c.WaitForCurrentOperationToFinish(ctx, "mod-1"))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitTracksOverlappingOperations(t *testing.T) {
	c := newCoordinator(time.Minute)

	first := c.BeginOperation("mod-1")
	second := c.BeginOperation("mod-1")
	first()

	// One operation still in flight.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.False(t, c.WaitForCurrentOperationToFinish(ctx, "mod-1"))

	second()
	assert.True(t, c.WaitForCurrentOperationToFinish(context.Background(), "mod-1"))
}

func TestDoneCallbackIsIdempotent(t *testing.T) {
	c := newCoordinator(time.Minute)

	done := c.BeginOperation("mod-1")
	done()
	done()

	// A later operation must still be tracked correctly.
	later := c.BeginOperation("mod-1")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.False(t, c.WaitForCurrentOperationToFinish(ctx, "mod-1"))
	later()
	assert.True(t, c.WaitForCurrentOperationToFinish(context.Background(), "mod-1"))
}

func TestMultipleWaitersAllReleased(t *testing.T) {
	c := newCoordinator(time.Minute)

	done := c.BeginOperation("mod-1")
	results := make(chan bool, 3)
	for i := 0; i < 3; i++ {
		go func() {
			results <- c.WaitForCurrentOperationToFinish(context.Background(), "mod-1")
		}()
	}

	time.Sleep(20 * time.Millisecond)
	done()

	for i := 0; i < 3; i++ {
		select {
		case ok := <-results:
			assert.True(t, ok)
		case <-time.After(time.Second):
			t.Fatal("waiter was not released")
		}
	}
}
