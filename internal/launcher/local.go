package launcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/driver"
)

// Local launches persistent Chromium profiles on this host, one profile
// directory per moderator under the data root.
type Local struct {
	pw       *driver.Playwright
	dataRoot string
	headless bool
}

// NewLocal creates a local launcher.
func NewLocal(pw *driver.Playwright, dataRoot string, headless bool) *Local {
	return &Local{pw: pw, dataRoot: dataRoot, headless: headless}
}

// Launch starts a Chromium bound to the moderator's profile directory.
func (l *Local) Launch(ctx context.Context, moderatorID string) (*Browser, error) {
	userDataDir := filepath.Join(l.dataRoot, moderatorID)
	if err := os.MkdirAll(userDataDir, 0755); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}

	page, closeFn, err := l.pw.LaunchPersistentPage(userDataDir, l.headless)
	if err != nil {
		return nil, err
	}

	return NewBrowser(page, userDataDir, closeFn), nil
}
