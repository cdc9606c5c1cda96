// Package driver is the single seam between the engine and the browser
// automation library. The rest of the codebase talks to Page/Element
// only; raw playwright errors never cross this package un-classified.
package driver

import "context"

// Element is a handle to a DOM node on a live page.
type Element interface {
	// TextContent returns the node's text content.
	TextContent() (string, error)
	// IsVisible reports whether the node is rendered and visible.
	IsVisible() (bool, error)
	// Screenshot captures a PNG of the node.
	Screenshot() ([]byte, error)
}

// Page is a handle to a moderator's automated browser page.
type Page interface {
	// Navigate loads the given URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// QuerySelector returns the first matching element, or nil when the
	// selector matches nothing.
	QuerySelector(selector string) (Element, error)
	// URL returns the page's current URL.
	URL() string
	// IsClosed reports whether the underlying page has been closed.
	IsClosed() bool
	// Close releases the page. Safe to call more than once.
	Close() error
}
