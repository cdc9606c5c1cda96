// Package coordinator enforces safe interleaving of concurrent
// operations on a moderator's browser through a cooperative
// pause/resume protocol. It hints rather than locks: a stuck operation
// must never permanently wedge a moderator's automation.
package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/pkg/models"
)

// Pause reasons used by known callers. The Pending* reasons are
// long-lived: only a later successful authentication clears them, never
// the operation that raised them.
const (
	ReasonAuthenticationCheck = "authentication check"
	ReasonCheckNumber         = "check WhatsApp number"
	ReasonPendingQR           = "PendingQR - authentication required"
	ReasonPendingNet          = "PendingNET - network failure"
	ReasonBrowserClosed       = "browser closed intentionally"
)

type flight struct {
	active int
	idle   chan struct{}
}

// Coordinator tracks one pause token and one in-flight marker per
// moderator. Different moderators are fully independent.
type Coordinator struct {
	mu       sync.Mutex
	tokens   map[string]models.PauseToken
	inflight map[string]*flight

	waitTimeout time.Duration
	logger      *zap.Logger
}

// New creates a coordinator. waitTimeout bounds
// WaitForCurrentOperationToFinish.
func New(waitTimeout time.Duration, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		tokens:      make(map[string]models.PauseToken),
		inflight:    make(map[string]*flight),
		waitTimeout: waitTimeout,
		logger:      logger,
	}
}

// PauseAll suspends the moderator's tasks under the given reason.
// Idempotent; calling while already paused overwrites the slot (last
// writer wins) rather than stacking.
func (c *Coordinator) PauseAll(moderatorID, actingUserID, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tokens[moderatorID] = models.PauseToken{
		Paused:   true,
		Reason:   reason,
		PausedBy: actingUserID,
		PausedAt: time.Now(),
	}
	c.logger.Info("tasks paused",
		zap.String("moderator", moderatorID),
		zap.String("reason", reason),
		zap.String("by", actingUserID))
}

// ResumeIfReason clears the pause slot only when the stored reason
// matches. A mismatch is a no-op, so a transient check cannot lift a
// pause raised for a persistent cause. Returns whether the slot was
// cleared.
func (c *Coordinator) ResumeIfReason(moderatorID, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	token, ok := c.tokens[moderatorID]
	if !ok || !token.Paused {
		return false
	}
	if token.Reason != reason {
		c.logger.Debug("resume skipped, reason mismatch",
			zap.String("moderator", moderatorID),
			zap.String("held", token.Reason),
			zap.String("requested", reason))
		return false
	}

	delete(c.tokens, moderatorID)
	c.logger.Info("tasks resumed",
		zap.String("moderator", moderatorID),
		zap.String("reason", reason))
	return true
}

// PauseToken returns the moderator's current pause slot.
func (c *Coordinator) PauseToken(moderatorID string) models.PauseToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens[moderatorID]
}

// BeginOperation marks an operation in flight for the moderator and
// returns the completion callback. The callback is idempotent.
func (c *Coordinator) BeginOperation(moderatorID string) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.inflight[moderatorID]
	if !ok {
		f = &flight{}
		c.inflight[moderatorID] = f
	}
	f.active++

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			f.active--
			if f.active <= 0 {
				if f.idle != nil {
					close(f.idle)
					f.idle = nil
				}
				delete(c.inflight, moderatorID)
			}
		})
	}
}

// WaitForCurrentOperationToFinish waits up to the configured timeout
// for any in-flight operation on the moderator to clear. Returns true
// immediately when idle. On timeout it returns false but the caller is
// expected to log and proceed anyway; this is a deliberate
// availability-over-safety tradeoff, and the residual interleaving
// window is accepted rather than locked away.
func (c *Coordinator) WaitForCurrentOperationToFinish(ctx context.Context, moderatorID string) bool {
	c.mu.Lock()
	f, ok := c.inflight[moderatorID]
	if !ok || f.active <= 0 {
		c.mu.Unlock()
		return true
	}
	if f.idle == nil {
		f.idle = make(chan struct{})
	}
	idle := f.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return true
	case <-time.After(c.waitTimeout):
		c.logger.Warn("gave up waiting for in-flight operation, proceeding anyway",
			zap.String("moderator", moderatorID),
			zap.Duration("waited", c.waitTimeout))
		return false
	case <-ctx.Done():
		return false
	}
}
