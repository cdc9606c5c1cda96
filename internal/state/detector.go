// Package state classifies live browser sessions by polling DOM probes.
package state

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/driver"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/pkg/models"
)

// Probe is a single DOM check. The selector must match a visible
// element; when Text is set, the element's text must also contain it.
type Probe struct {
	Selector string
	Text     string
}

// SelectorSet holds the ordered probe lists per state. Within a list,
// any matching probe counts as the signal.
type SelectorSet struct {
	Network        []Probe
	Authentication []Probe
	Connected      []Probe
	Loading        []Probe
}

// DefaultSelectorSet returns the probes for the WhatsApp Web DOM.
// Several alternatives per signal, since the target application rotates
// attribute names between releases.
func DefaultSelectorSet() SelectorSet {
	return SelectorSet{
		Network: []Probe{
			{Selector: `[data-testid="alert-computer"]`},
			{Selector: `[data-testid="alert-phone"]`},
			{Selector: `div[role="alert"]`, Text: "Computer not connected"},
			{Selector: `div[role="alert"]`, Text: "Phone not connected"},
			{Selector: `div[role="alert"]`, Text: "Trying to reach phone"},
		},
		Authentication: []Probe{
			{Selector: `canvas[aria-label="Scan me!"]`},
			{Selector: `[data-testid="qrcode"]`},
			{Selector: `div[data-ref] canvas`},
			{Selector: `.landing-wrapper`},
		},
		Connected: []Probe{
			{Selector: `#side`},
			{Selector: `[data-testid="chatlist-header"]`},
			{Selector: `[aria-label="Chat list"]`},
			{Selector: `#pane-side`},
		},
		Loading: []Probe{
			{Selector: `progress`},
			{Selector: `[data-testid="startup"]`},
			{Selector: `#initial_startup`},
		},
	}
}

// Detector classifies sessions against a selector set.
type Detector struct {
	set    SelectorSet
	logger *zap.Logger
}

// NewDetector creates a detector.
func NewDetector(set SelectorSet, logger *zap.Logger) *Detector {
	return &Detector{set: set, logger: logger}
}

// pageProber is the slice of the session the detector needs.
type pageProber interface {
	Page() driver.Page
}

// Probe classifies the session with a fixed precedence: network failure
// first, then authentication-required, then connected, then loading,
// else generic failure. The ordering resolves real ambiguity: a page can
// transiently show a stale QR fragment under a network banner.
func (d *Detector) Probe(sess pageProber) models.SessionState {
	page := sess.Page()
	if page == nil || page.IsClosed() {
		return models.StateGenericFailure
	}

	switch {
	case d.AnyVisible(page, d.set.Network):
		return models.StateNetworkUnavailable
	case d.AnyVisible(page, d.set.Authentication):
		return models.StateAwaitingAuthentication
	case d.AnyVisible(page, d.set.Connected):
		return models.StateConnected
	case d.AnyVisible(page, d.set.Loading):
		return models.StateLoading
	default:
		return models.StateGenericFailure
	}
}

// AnyVisible reports whether any probe in the list matches. Individual
// probe errors are logged and skipped; a flaky selector must never mask
// the rest of the list.
func (d *Detector) AnyVisible(page driver.Page, probes []Probe) bool {
	for _, probe := range probes {
		el, err := page.QuerySelector(probe.Selector)
		if err != nil {
			d.logger.Debug("probe failed",
				zap.String("selector", probe.Selector),
				zap.Error(err))
			continue
		}
		if el == nil {
			continue
		}
		if probe.Text != "" {
			text, err := el.TextContent()
			if err != nil {
				d.logger.Debug("probe text read failed",
					zap.String("selector", probe.Selector),
					zap.Error(err))
				continue
			}
			if !strings.Contains(text, probe.Text) {
				continue
			}
		} else {
			visible, err := el.IsVisible()
			if err != nil || !visible {
				continue
			}
		}
		return true
	}
	return false
}

// FirstVisible returns the first probe element that matches, for
// callers that need the element itself (screenshots).
func (d *Detector) FirstVisible(page driver.Page, probes []Probe) (driver.Element, bool) {
	for _, probe := range probes {
		el, err := page.QuerySelector(probe.Selector)
		if err != nil || el == nil {
			continue
		}
		visible, err := el.IsVisible()
		if err != nil || !visible {
			continue
		}
		if probe.Text != "" {
			text, err := el.TextContent()
			if err != nil || !strings.Contains(text, probe.Text) {
				continue
			}
		}
		return el, true
	}
	return nil, false
}

// AuthenticationProbes exposes the login-code probe list.
func (d *Detector) AuthenticationProbes() []Probe {
	return d.set.Authentication
}

// Monitor polls the session every interval until the success predicate
// holds, a network failure is observed, the total budget elapses, or
// ctx is cancelled. The first probe happens immediately, so a zero
// budget still performs exactly one poll.
func (d *Detector) Monitor(ctx context.Context, sess pageProber, interval, maxTotal time.Duration, success func(models.SessionState) bool) models.Outcome[bool] {
	deadline := time.Now().Add(maxTotal)

	first := d.Probe(sess)
	startedOnAuth := first == models.StateAwaitingAuthentication
	current := first

	for {
		if success(current) {
			return models.Success(true)
		}
		if current == models.StateNetworkUnavailable {
			return models.NetworkUnavailable[bool]("network unavailable while monitoring session")
		}
		if !time.Now().Before(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			return models.Failure[bool]("monitoring cancelled: %v", ctx.Err())
		case <-time.After(interval):
		}

		current = d.Probe(sess)
	}

	if current == models.StateAwaitingAuthentication {
		if startedOnAuth {
			return models.AwaitingAuthentication[bool]("authentication code was not scanned in time")
		}
		return models.Failure[bool]("session fell back to the authentication screen")
	}
	return models.StillWaiting[bool]("no resolution after %s, last state %s", maxTotal, current)
}
