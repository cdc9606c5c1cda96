// Package session owns the one live browser session per moderator.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/driver"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/launcher"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/pkg/models"
)

// ErrNoSession is returned by lookups when a moderator has no live
// session.
var ErrNoSession = errors.New("no live session for moderator")

// Session pairs a moderator's public metadata with the live browser it
// exclusively owns.
type Session struct {
	Meta    models.BrowserSession
	browser *launcher.Browser
}

// Page returns the live page handle.
func (s *Session) Page() driver.Page {
	return s.browser.Page
}

// UserDataDir returns the on-disk profile directory the session writes.
func (s *Session) UserDataDir() string {
	return s.browser.UserDataDir
}

// Registry creates sessions lazily and tears them down on fatal
// conditions. At most one live session exists per moderator; creating a
// new one disposes any prior one.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	launcher launcher.Launcher
	slots    *semaphore.Weighted
	logger   *zap.Logger
}

// NewRegistry creates a registry. maxBrowsers caps how many live
// browsers the host runs at once, across all moderators.
func NewRegistry(l launcher.Launcher, maxBrowsers int64, logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		launcher: l,
		slots:    semaphore.NewWeighted(maxBrowsers),
		logger:   logger,
	}
}

// GetOrCreate returns the moderator's live session, constructing one if
// none exists or the existing one is no longer healthy. Idempotent.
func (r *Registry) GetOrCreate(ctx context.Context, moderatorID string) (*Session, error) {
	r.mu.RLock()
	existing, ok := r.sessions[moderatorID]
	r.mu.RUnlock()
	if ok && !existing.Page().IsClosed() {
		return existing, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock; another caller may have raced us.
	if existing, ok := r.sessions[moderatorID]; ok {
		if !existing.Page().IsClosed() {
			return existing, nil
		}
		r.disposeLocked(moderatorID, existing)
	}

	if !r.slots.TryAcquire(1) {
		return nil, fmt.Errorf("browser capacity reached, cannot start session for moderator %s", moderatorID)
	}

	browser, err := r.launcher.Launch(ctx, moderatorID)
	if err != nil {
		r.slots.Release(1)
		return nil, fmt.Errorf("launch browser for moderator %s: %w", moderatorID, err)
	}

	sess := &Session{
		Meta: models.BrowserSession{
			ID:          uuid.NewString(),
			ModeratorID: moderatorID,
			CreatedAt:   time.Now(),
		},
		browser: browser,
	}
	r.sessions[moderatorID] = sess
	r.logger.Info("browser session created",
		zap.String("moderator", moderatorID),
		zap.String("session", sess.Meta.ID))
	return sess, nil
}

// GetCurrent returns the moderator's live session without creating one.
// Returns nil when no session exists.
func (r *Registry) GetCurrent(moderatorID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[moderatorID]
}

// TouchURL records the session's last known URL in its metadata.
func (r *Registry) TouchURL(moderatorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[moderatorID]
	if !ok || sess.Page().IsClosed() {
		return
	}
	sess.Meta.LastKnownURL = sess.Page().URL()
}

// Dispose releases the moderator's browser and clears the slot. Safe to
// call when no session exists; release errors are logged and swallowed.
func (r *Registry) Dispose(moderatorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[moderatorID]
	if !ok {
		return
	}
	r.disposeLocked(moderatorID, sess)
}

func (r *Registry) disposeLocked(moderatorID string, sess *Session) {
	if err := sess.browser.Close(); err != nil {
		r.logger.Warn("browser dispose failed",
			zap.String("moderator", moderatorID),
			zap.Error(err))
	}
	delete(r.sessions, moderatorID)
	r.slots.Release(1)
	r.logger.Info("browser session disposed",
		zap.String("moderator", moderatorID),
		zap.String("session", sess.Meta.ID))
}

// DisposeAll tears down every live session, used at shutdown.
func (r *Registry) DisposeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sess := range r.sessions {
		r.disposeLocked(id, sess)
	}
}
