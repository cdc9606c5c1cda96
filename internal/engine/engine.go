// Package engine composes the session registry, state detector,
// operation coordinator, session optimizer, and failure classifier into
// the operations the HTTP layer exposes. Every public call resolves to
// an Outcome; raw driver errors never leave this package.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/config"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/coordinator"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/driver"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/optimizer"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/session"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/state"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/status"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/pkg/models"
)

// Probes for the recipient check, outside the state machine proper: the
// target application shows a dialog for unknown numbers and the compose
// box for known ones.
var (
	invalidRecipientProbes = []state.Probe{
		{Selector: `div[role="dialog"]`, Text: "Phone number shared via url is invalid"},
		{Selector: `[data-testid="popup-contents"]`, Text: "invalid"},
	}
	composerProbes = []state.Probe{
		{Selector: `[data-testid="conversation-compose-box-input"]`},
		{Selector: `#main footer div[contenteditable="true"]`},
	}
)

// Engine is the session and operation coordination engine.
type Engine struct {
	cfg      config.Config
	registry *session.Registry
	detector *state.Detector
	coord    *coordinator.Coordinator
	opt      *optimizer.Optimizer
	status   status.Store
	logger   *zap.Logger
}

// New wires an engine together.
func New(cfg config.Config, registry *session.Registry, detector *state.Detector,
	coord *coordinator.Coordinator, opt *optimizer.Optimizer, st status.Store, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		registry: registry,
		detector: detector,
		coord:    coord,
		opt:      opt,
		status:   st,
		logger:   logger,
	}
}

// GetOrCreateSession returns the moderator's session metadata, creating
// the session when none exists.
func (e *Engine) GetOrCreateSession(ctx context.Context, moderatorID string) models.Outcome[models.BrowserSession] {
	sess, err := e.registry.GetOrCreate(ctx, moderatorID)
	if err != nil {
		return models.Failure[models.BrowserSession]("create session: %v", err)
	}
	return models.Success(sess.Meta)
}

// GetCurrentSession is the non-creating lookup used by status checks.
func (e *Engine) GetCurrentSession(moderatorID string) models.Outcome[models.BrowserSession] {
	sess := e.registry.GetCurrent(moderatorID)
	if sess == nil {
		return models.Failure[models.BrowserSession]("no live session for moderator %s", moderatorID)
	}
	return models.Success(sess.Meta)
}

// DisposeSession tears the moderator's session down.
func (e *Engine) DisposeSession(moderatorID string) models.Outcome[bool] {
	e.registry.Dispose(moderatorID)
	return models.Success(true)
}

// ProbeState classifies the moderator's live session without creating
// one.
func (e *Engine) ProbeState(moderatorID string) models.Outcome[models.SessionState] {
	sess := e.registry.GetCurrent(moderatorID)
	if sess == nil {
		return models.Failure[models.SessionState]("no live session for moderator %s", moderatorID)
	}
	return models.Success(e.detector.Probe(sess))
}

// MonitorUntil polls the moderator's session until it reaches the
// target state or the configured budget runs out.
func (e *Engine) MonitorUntil(ctx context.Context, moderatorID string, target models.SessionState) models.Outcome[bool] {
	sess, err := e.registry.GetOrCreate(ctx, moderatorID)
	if err != nil {
		return models.Failure[bool]("create session: %v", err)
	}
	return e.detector.Monitor(ctx, sess, e.cfg.MonitorInterval, e.cfg.MonitorTimeout,
		func(s models.SessionState) bool { return s == target })
}

// PauseAll suspends the moderator's tasks under a reason.
func (e *Engine) PauseAll(moderatorID, actingUserID, reason string) models.Outcome[bool] {
	e.coord.PauseAll(moderatorID, actingUserID, reason)
	return models.Success(true)
}

// ResumeIfReason lifts the pause when the reason matches; the value
// reports whether the slot was actually cleared.
func (e *Engine) ResumeIfReason(moderatorID, reason string) models.Outcome[bool] {
	return models.Success(e.coord.ResumeIfReason(moderatorID, reason))
}

// WaitForCurrentOperationToFinish is the best-effort gate. A timeout is
// reported as still-waiting; the caller may proceed anyway.
func (e *Engine) WaitForCurrentOperationToFinish(ctx context.Context, moderatorID string) models.Outcome[bool] {
	if e.coord.WaitForCurrentOperationToFinish(ctx, moderatorID) {
		return models.Success(true)
	}
	return models.StillWaiting[bool]("an operation is still in flight for moderator %s", moderatorID)
}

// RestoreFromBackup replaces the live session state with the last
// backup.
func (e *Engine) RestoreFromBackup(moderatorID string) models.Outcome[bool] {
	if err := e.opt.RestoreFromBackup(moderatorID); err != nil {
		if errors.Is(err, optimizer.ErrNoBackup) {
			return models.Failure[bool]("no backup found for moderator %s; authenticate from scratch", moderatorID)
		}
		return models.Failure[bool]("restore from backup: %v", err)
	}
	return models.Success(true)
}

// CheckAndAutoRestoreIfNeeded evicts an oversized session back to its
// backup; the value reports whether a restore happened.
func (e *Engine) CheckAndAutoRestoreIfNeeded(moderatorID string) models.Outcome[bool] {
	restored, err := e.opt.CheckAndAutoRestoreIfNeeded(moderatorID)
	if err != nil {
		return models.Failure[bool]("auto-restore check: %v", err)
	}
	return models.Success(restored)
}

// OptimizeCurrentSessionOnly trims the live session without touching
// the backup.
func (e *Engine) OptimizeCurrentSessionOnly(moderatorID string) models.Outcome[bool] {
	if err := e.opt.OptimizeCurrentSessionOnly(moderatorID); err != nil {
		return models.Failure[bool]("optimize session: %v", err)
	}
	return models.Success(true)
}

// OptimizeAuthenticatedSession establishes a fresh known-good baseline.
func (e *Engine) OptimizeAuthenticatedSession(moderatorID string) models.Outcome[bool] {
	if err := e.opt.OptimizeAuthenticatedSession(moderatorID); err != nil {
		return models.Failure[bool]("optimize authenticated session: %v", err)
	}
	return models.Success(true)
}

// Status reports the stored connection record plus a live probe.
func (e *Engine) Status(ctx context.Context, moderatorID string) models.Outcome[models.StatusReport] {
	conn, err := e.status.Get(ctx, moderatorID)
	if err != nil {
		e.logger.Warn("status read failed", zap.String("moderator", moderatorID), zap.Error(err))
		conn = models.ConnectionDisconnected
	}

	report := models.StatusReport{
		ModeratorID: moderatorID,
		Connection:  conn,
	}
	token := e.coord.PauseToken(moderatorID)
	report.Paused = token.Paused
	report.PauseReason = token.Reason

	if sess := e.registry.GetCurrent(moderatorID); sess != nil {
		report.HasSession = true
		report.State = e.detector.Probe(sess)
	}
	return models.Success(report)
}

// Authenticate drives the moderator's session to the connected state,
// waiting for the operator to scan the login code when one is shown.
// On success it snapshots the authenticated session as the new baseline
// and clears any persistent pauses.
func (e *Engine) Authenticate(ctx context.Context, moderatorID, actingUserID string) models.Outcome[models.SessionState] {
	if !e.coord.WaitForCurrentOperationToFinish(ctx, moderatorID) {
		e.logger.Warn("starting authentication with an operation possibly in flight",
			zap.String("moderator", moderatorID))
	}
	done := e.coord.BeginOperation(moderatorID)
	defer done()

	e.coord.PauseAll(moderatorID, actingUserID, coordinator.ReasonAuthenticationCheck)

	if _, err := e.opt.CheckAndAutoRestoreIfNeeded(moderatorID); err != nil {
		e.logger.Warn("auto-restore check failed", zap.String("moderator", moderatorID), zap.Error(err))
	}

	sess, err := e.registry.GetOrCreate(ctx, moderatorID)
	if err != nil {
		e.coord.ResumeIfReason(moderatorID, coordinator.ReasonAuthenticationCheck)
		return models.Failure[models.SessionState]("create session: %v", err)
	}

	if err := e.ensureOnChat(ctx, sess); err != nil {
		out := driverFailure[models.SessionState](ctx, e, moderatorID, actingUserID, err)
		e.coord.ResumeIfReason(moderatorID, coordinator.ReasonAuthenticationCheck)
		return out
	}
	e.registry.TouchURL(moderatorID)

	outcome := e.detector.Monitor(ctx, sess, e.cfg.MonitorInterval, e.cfg.MonitorTimeout,
		func(s models.SessionState) bool { return s == models.StateConnected })

	switch outcome.Status {
	case models.OutcomeSuccess:
		// Exactly one snapshot per successful authentication. The live
		// session is disposed by the optimizer and recreated lazily.
		if err := e.opt.OptimizeAuthenticatedSession(moderatorID); err != nil {
			e.logger.Warn("post-authentication optimize failed",
				zap.String("moderator", moderatorID), zap.Error(err))
		}
		e.coord.ResumeIfReason(moderatorID, coordinator.ReasonAuthenticationCheck)
		e.coord.ResumeIfReason(moderatorID, coordinator.ReasonPendingQR)
		e.coord.ResumeIfReason(moderatorID, coordinator.ReasonPendingNet)
		e.coord.ResumeIfReason(moderatorID, coordinator.ReasonBrowserClosed)
		e.setStatus(ctx, moderatorID, models.ConnectionConnected)
		return models.Success(models.StateConnected)

	case models.OutcomeAwaitingAuthentication:
		// Long-lived pause: only a later successful authentication
		// clears it.
		e.coord.PauseAll(moderatorID, actingUserID, coordinator.ReasonPendingQR)
		e.setStatus(ctx, moderatorID, models.ConnectionPending)
		return models.AwaitingAuthentication[models.SessionState]("%s", outcome.Message)

	case models.OutcomeNetworkUnavailable:
		e.coord.PauseAll(moderatorID, actingUserID, coordinator.ReasonPendingNet)
		e.registry.Dispose(moderatorID)
		e.setStatus(ctx, moderatorID, models.ConnectionDisconnected)
		return models.NetworkUnavailable[models.SessionState]("%s", outcome.Message)

	case models.OutcomeStillWaiting:
		e.coord.ResumeIfReason(moderatorID, coordinator.ReasonAuthenticationCheck)
		e.setStatus(ctx, moderatorID, models.ConnectionPending)
		return models.StillWaiting[models.SessionState]("%s", outcome.Message)

	default:
		e.coord.ResumeIfReason(moderatorID, coordinator.ReasonAuthenticationCheck)
		e.registry.Dispose(moderatorID)
		e.setStatus(ctx, moderatorID, models.ConnectionDisconnected)
		return models.Failure[models.SessionState]("%s", outcome.Message)
	}
}

// CheckRecipient verifies that a phone number is registered on the chat
// application. The value reports whether the number can receive
// messages.
func (e *Engine) CheckRecipient(ctx context.Context, moderatorID, actingUserID, phone string) models.Outcome[bool] {
	if !e.coord.WaitForCurrentOperationToFinish(ctx, moderatorID) {
		e.logger.Warn("starting recipient check with an operation possibly in flight",
			zap.String("moderator", moderatorID))
	}
	done := e.coord.BeginOperation(moderatorID)
	defer done()

	e.coord.PauseAll(moderatorID, actingUserID, coordinator.ReasonCheckNumber)
	defer e.coord.ResumeIfReason(moderatorID, coordinator.ReasonCheckNumber)

	if _, err := e.opt.CheckAndAutoRestoreIfNeeded(moderatorID); err != nil {
		e.logger.Warn("auto-restore check failed", zap.String("moderator", moderatorID), zap.Error(err))
	}

	sess, err := e.registry.GetOrCreate(ctx, moderatorID)
	if err != nil {
		return models.Failure[bool]("create session: %v", err)
	}

	if st := e.detector.Probe(sess); st == models.StateAwaitingAuthentication {
		e.coord.PauseAll(moderatorID, actingUserID, coordinator.ReasonPendingQR)
		e.setStatus(ctx, moderatorID, models.ConnectionPending)
		return models.AwaitingAuthentication[bool]("moderator must authenticate before checking numbers")
	}

	checkURL := fmt.Sprintf("%s/send?phone=%s", strings.TrimRight(e.cfg.ChatURL, "/"), phone)
	if err := sess.Page().Navigate(ctx, checkURL); err != nil {
		return driverFailure[bool](ctx, e, moderatorID, actingUserID, err)
	}
	e.registry.TouchURL(moderatorID)

	deadlineCtx, cancel := context.WithTimeout(ctx, e.cfg.MonitorTimeout)
	defer cancel()

	for {
		if e.detector.AnyVisible(sess.Page(), invalidRecipientProbes) {
			return models.Success(false)
		}
		if e.detector.AnyVisible(sess.Page(), composerProbes) {
			return models.Success(true)
		}
		if st := e.detector.Probe(sess); st == models.StateNetworkUnavailable {
			e.coord.PauseAll(moderatorID, actingUserID, coordinator.ReasonPendingNet)
			e.registry.Dispose(moderatorID)
			e.setStatus(ctx, moderatorID, models.ConnectionDisconnected)
			return models.NetworkUnavailable[bool]("network unavailable during recipient check")
		}

		select {
		case <-deadlineCtx.Done():
			if ctx.Err() != nil {
				return models.Failure[bool]("recipient check cancelled: %v", ctx.Err())
			}
			return models.StillWaiting[bool]("recipient check did not resolve for %s", phone)
		case <-time.After(e.cfg.MonitorInterval):
		}
	}
}

// LoginCodeScreenshot captures a PNG of the login code element for the
// dashboard.
func (e *Engine) LoginCodeScreenshot(ctx context.Context, moderatorID string) models.Outcome[[]byte] {
	sess, err := e.registry.GetOrCreate(ctx, moderatorID)
	if err != nil {
		return models.Failure[[]byte]("create session: %v", err)
	}
	if err := e.ensureOnChat(ctx, sess); err != nil {
		return driverFailure[[]byte](ctx, e, moderatorID, "system", err)
	}

	st := e.detector.Probe(sess)
	if st == models.StateConnected {
		return models.Failure[[]byte]("moderator is already authenticated, no login code shown")
	}
	if st != models.StateAwaitingAuthentication {
		return models.Failure[[]byte]("no login code visible, session state is %s", st)
	}

	el, ok := e.detector.FirstVisible(sess.Page(), e.detector.AuthenticationProbes())
	if !ok {
		return models.Failure[[]byte]("login code element disappeared between probes")
	}
	png, err := el.Screenshot()
	if err != nil {
		return driverFailure[[]byte](ctx, e, moderatorID, "system", err)
	}
	return models.Success(png)
}

// HandleDriverError classifies a driver error and applies the engine's
// standard reaction. Exported for collaborators that drive the browser
// directly (message senders and similar).
func (e *Engine) HandleDriverError(ctx context.Context, moderatorID, actingUserID string, err error) models.Outcome[bool] {
	return driverFailure[bool](ctx, e, moderatorID, actingUserID, err)
}

// ensureOnChat navigates the session to the chat application when it is
// parked anywhere else.
func (e *Engine) ensureOnChat(ctx context.Context, sess *session.Session) error {
	current := sess.Page().URL()
	if current != "" && strings.HasPrefix(current, e.cfg.ChatURL) {
		return nil
	}
	return sess.Page().Navigate(ctx, e.cfg.ChatURL)
}

func (e *Engine) setStatus(ctx context.Context, moderatorID string, s models.ConnectionStatus) {
	if err := e.status.Set(ctx, moderatorID, s); err != nil {
		e.logger.Warn("status write failed",
			zap.String("moderator", moderatorID),
			zap.String("status", string(s)),
			zap.Error(err))
	}
}

// driverFailure translates a classified driver error into an outcome
// and applies the side effects each failure kind calls for. A deliberate
// closure is not an error: tasks pause and the caller sees a warning.
func driverFailure[T any](ctx context.Context, e *Engine, moderatorID, actingUserID string, err error) models.Outcome[T] {
	switch driver.Classify(err) {
	case driver.FailureDeliberateClosure:
		e.logger.Info("browser closed by operator",
			zap.String("moderator", moderatorID), zap.Error(err))
		e.coord.PauseAll(moderatorID, actingUserID, coordinator.ReasonBrowserClosed)
		e.registry.Dispose(moderatorID)
		e.setStatus(ctx, moderatorID, models.ConnectionPending)
		return models.Warning[T]("browser closed intentionally")

	case driver.FailureNetwork:
		e.coord.PauseAll(moderatorID, actingUserID, coordinator.ReasonPendingNet)
		e.registry.Dispose(moderatorID)
		e.setStatus(ctx, moderatorID, models.ConnectionDisconnected)
		return models.NetworkUnavailable[T]("network unavailable: %v", err)

	case driver.FailureTimeout:
		e.registry.Dispose(moderatorID)
		return models.Failure[T]("operation timed out: %v", err)

	default:
		return models.Failure[T]("%v", err)
	}
}
