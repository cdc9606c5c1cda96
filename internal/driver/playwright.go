package driver

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Playwright wraps the shared playwright runtime. One instance serves
// every moderator; individual pages are created through the launch
// helpers below.
type Playwright struct {
	pw         *playwright.Playwright
	navTimeout time.Duration
}

// NewPlaywright installs (if needed) and starts the playwright runtime.
func NewPlaywright(navTimeout time.Duration) (*Playwright, error) {
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("install playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	return &Playwright{pw: pw, navTimeout: navTimeout}, nil
}

// Stop shuts the playwright runtime down.
func (d *Playwright) Stop() error {
	return d.pw.Stop()
}

// LaunchPersistentPage starts a Chromium instance bound to the given
// profile directory and returns its page. The returned closer releases
// the whole browser context.
func (d *Playwright) LaunchPersistentPage(userDataDir string, headless bool) (Page, func() error, error) {
	bctx, err := d.pw.Chromium.LaunchPersistentContext(userDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(headless),
		Viewport: &playwright.Size{Width: 1280, Height: 800},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("launch persistent context: %w", err)
	}

	var pg playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		pg = pages[0]
	} else {
		pg, err = bctx.NewPage()
		if err != nil {
			_ = bctx.Close()
			return nil, nil, fmt.Errorf("create page: %w", err)
		}
	}
	closer := func() error { return bctx.Close() }
	return &page{p: pg, navTimeout: d.navTimeout}, closer, nil
}

// ConnectPage attaches to a remote browser over CDP and returns a page
// in its default context. Used for container-launched browsers.
func (d *Playwright) ConnectPage(wsURL string) (Page, func() error, error) {
	browser, err := d.pw.Chromium.ConnectOverCDP(wsURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect over CDP: %w", err)
	}

	var bctx playwright.BrowserContext
	if contexts := browser.Contexts(); len(contexts) > 0 {
		bctx = contexts[0]
	} else {
		bctx, err = browser.NewContext()
		if err != nil {
			_ = browser.Close()
			return nil, nil, fmt.Errorf("create context: %w", err)
		}
	}

	var pg playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		pg = pages[0]
	} else {
		pg, err = bctx.NewPage()
		if err != nil {
			_ = browser.Close()
			return nil, nil, fmt.Errorf("create page: %w", err)
		}
	}
	closer := func() error { return browser.Close() }
	return &page{p: pg, navTimeout: d.navTimeout}, closer, nil
}

type page struct {
	p          playwright.Page
	navTimeout time.Duration
}

func (pg *page) Navigate(ctx context.Context, url string) error {
	timeout := pg.navTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}
	_, err := pg.p.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (pg *page) QuerySelector(selector string) (Element, error) {
	handle, err := pg.p.QuerySelector(selector)
	if err != nil {
		return nil, err
	}
	if handle == nil {
		return nil, nil
	}
	return &element{h: handle}, nil
}

func (pg *page) URL() string {
	return pg.p.URL()
}

func (pg *page) IsClosed() bool {
	return pg.p.IsClosed()
}

func (pg *page) Close() error {
	if pg.p.IsClosed() {
		return nil
	}
	return pg.p.Close()
}

type element struct {
	h playwright.ElementHandle
}

func (e *element) TextContent() (string, error) {
	return e.h.TextContent()
}

func (e *element) IsVisible() (bool, error) {
	return e.h.IsVisible()
}

func (e *element) Screenshot() ([]byte, error) {
	return e.h.Screenshot(playwright.ElementHandleScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
}
