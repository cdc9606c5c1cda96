// Package launcher owns how the underlying browser for a moderator is
// brought up: either a local persistent Chromium profile, or one
// browserless/chrome container per moderator attached over CDP. The
// session registry only sees the Browser handle.
package launcher

import (
	"context"

	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/driver"
)

// Browser is a launched browser bound to one moderator.
type Browser struct {
	Page driver.Page
	// UserDataDir is the on-disk profile the browser reads and writes.
	// The optimizer measures, trims, and restores this directory.
	UserDataDir string

	closers []func() error
}

// NewBrowser builds a Browser from a page and the closers that release
// it, outermost resource last.
func NewBrowser(page driver.Page, userDataDir string, closers ...func() error) *Browser {
	return &Browser{Page: page, UserDataDir: userDataDir, closers: closers}
}

// Close releases every resource behind the browser, page first.
// Best-effort: the first error is returned, later closers still run.
func (b *Browser) Close() error {
	var firstErr error
	if b.Page != nil {
		if err := b.Page.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Launcher starts a browser for a moderator.
type Launcher interface {
	Launch(ctx context.Context, moderatorID string) (*Browser, error)
}
