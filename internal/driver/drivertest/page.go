// Package drivertest provides an in-memory driver.Page for tests.
package drivertest

import (
	"context"
	"sync"

	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/driver"
)

// Element is a scripted DOM node.
type Element struct {
	Text    string
	Hidden  bool
	PNG     []byte
	TextErr error
}

func (e *Element) TextContent() (string, error) {
	return e.Text, e.TextErr
}

func (e *Element) IsVisible() (bool, error) {
	return !e.Hidden, nil
}

func (e *Element) Screenshot() ([]byte, error) {
	return e.PNG, nil
}

// Page is a scripted driver.Page. Fixtures can be swapped mid-test with
// SetElement/RemoveElement; all methods are safe for concurrent use.
type Page struct {
	mu          sync.Mutex
	elements    map[string]*Element
	selectorErr map[string]error
	url         string
	closed      bool

	NavigateErr error
	Navigations []string
}

// NewPage creates an empty page.
func NewPage() *Page {
	return &Page{
		elements:    make(map[string]*Element),
		selectorErr: make(map[string]error),
	}
}

// SetElement installs an element behind a selector.
func (p *Page) SetElement(selector string, el *Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = el
}

// RemoveElement removes an element fixture.
func (p *Page) RemoveElement(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

// FailSelector makes querying the selector return err.
func (p *Page) FailSelector(selector string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selectorErr[selector] = err
}

// SetURL sets the current URL.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigations = append(p.Navigations, url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.url = url
	return nil
}

func (p *Page) QuerySelector(selector string) (driver.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.selectorErr[selector]; ok {
		return nil, err
	}
	el, ok := p.elements[selector]
	if !ok {
		return nil, nil
	}
	return el, nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
