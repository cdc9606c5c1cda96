package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/driver"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/driver/drivertest"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/pkg/models"
)

const (
	selNetwork   = `[data-testid="alert-computer"]`
	selQR        = `[data-testid="qrcode"]`
	selChatReady = `#side`
	selLoading   = `progress`
)

type fakeSession struct {
	page driver.Page
}

func (f *fakeSession) Page() driver.Page { return f.page }

func newDetector() *Detector {
	return NewDetector(DefaultSelectorSet(), zap.NewNop())
}

func TestProbePrecedence(t *testing.T) {
	tests := []struct {
		name      string
		selectors []string
		want      models.SessionState
	}{
		{"network alone", []string{selNetwork}, models.StateNetworkUnavailable},
		{"network beats qr", []string{selNetwork, selQR}, models.StateNetworkUnavailable},
		{"network beats everything", []string{selNetwork, selQR, selChatReady, selLoading}, models.StateNetworkUnavailable},
		{"qr beats chat ready", []string{selQR, selChatReady}, models.StateAwaitingAuthentication},
		{"chat ready beats loading", []string{selChatReady, selLoading}, models.StateConnected},
		{"loading alone", []string{selLoading}, models.StateLoading},
		{"empty page", nil, models.StateGenericFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := drivertest.NewPage()
			for _, sel := range tt.selectors {
				page.SetElement(sel, &drivertest.Element{})
			}
			d := newDetector()
			assert.Equal(t, tt.want, d.Probe(&fakeSession{page: page}))
		})
	}
}

func TestProbeIgnoresHiddenElements(t *testing.T) {
	page := drivertest.NewPage()
	page.SetElement(selQR, &drivertest.Element{Hidden: true})
	page.SetElement(selChatReady, &drivertest.Element{})

	d := newDetector()
	assert.Equal(t, models.StateConnected, d.Probe(&fakeSession{page: page}))
}

func TestProbeTextMatching(t *testing.T) {
	page := drivertest.NewPage()
	page.SetElement(`div[role="alert"]`, &drivertest.Element{Text: "Computer not connected"})

	d := newDetector()
	assert.Equal(t, models.StateNetworkUnavailable, d.Probe(&fakeSession{page: page}))

	page.SetElement(`div[role="alert"]`, &drivertest.Element{Text: "Some unrelated notice"})
	assert.Equal(t, models.StateGenericFailure, d.Probe(&fakeSession{page: page}))
}

func TestProbeSurvivesFlakySelector(t *testing.T) {
	page := drivertest.NewPage()
	page.FailSelector(`[data-testid="alert-computer"]`, errors.New("evaluation failed"))
	page.FailSelector(`canvas[aria-label="Scan me!"]`, errors.New("evaluation failed"))
	page.SetElement(selQR, &drivertest.Element{})

	d := newDetector()
	assert.Equal(t, models.StateAwaitingAuthentication, d.Probe(&fakeSession{page: page}))
}

func TestProbeClosedPage(t *testing.T) {
	page := drivertest.NewPage()
	page.SetElement(selChatReady, &drivertest.Element{})
	_ = page.Close()

	d := newDetector()
	assert.Equal(t, models.StateGenericFailure, d.Probe(&fakeSession{page: page}))
}

func TestMonitorZeroBudgetStillWaiting(t *testing.T) {
	page := drivertest.NewPage()
	page.SetElement(selLoading, &drivertest.Element{})
	d := newDetector()

	outcome := d.Monitor(context.Background(), &fakeSession{page: page}, 10*time.Millisecond, 0,
		func(s models.SessionState) bool { return s == models.StateConnected })
	assert.Equal(t, models.OutcomeStillWaiting, outcome.Status)
}

func TestMonitorResolvesAfterFixtureSwap(t *testing.T) {
	page := drivertest.NewPage()
	page.SetElement(selQR, &drivertest.Element{})
	d := newDetector()
	sess := &fakeSession{page: page}

	go func() {
		time.Sleep(30 * time.Millisecond)
		page.RemoveElement(selQR)
		page.SetElement(selChatReady, &drivertest.Element{})
	}()

	outcome := d.Monitor(context.Background(), sess, 10*time.Millisecond, 2*time.Second,
		func(s models.SessionState) bool { return s == models.StateConnected })
	assert.Equal(t, models.OutcomeSuccess, outcome.Status)
	assert.True(t, outcome.Value)
}

func TestMonitorNetworkFailureShortCircuits(t *testing.T) {
	page := drivertest.NewPage()
	page.SetElement(selNetwork, &drivertest.Element{})
	d := newDetector()

	start := time.Now()
	outcome := d.Monitor(context.Background(), &fakeSession{page: page}, 10*time.Millisecond, 5*time.Second,
		func(s models.SessionState) bool { return s == models.StateConnected })
	assert.Equal(t, models.OutcomeNetworkUnavailable, outcome.Status)
	assert.Less(t, time.Since(start), time.Second)
}

func TestMonitorTimeoutOnAuthScreen(t *testing.T) {
	page := drivertest.NewPage()
	page.SetElement(selQR, &drivertest.Element{})
	d := newDetector()

	outcome := d.Monitor(context.Background(), &fakeSession{page: page}, 5*time.Millisecond, 25*time.Millisecond,
		func(s models.SessionState) bool { return s == models.StateConnected })
	assert.Equal(t, models.OutcomeAwaitingAuthentication, outcome.Status)
}

func TestMonitorFallbackToAuthIsFailure(t *testing.T) {
	page := drivertest.NewPage()
	page.SetElement(selLoading, &drivertest.Element{})
	d := newDetector()

	go func() {
		time.Sleep(20 * time.Millisecond)
		page.RemoveElement(selLoading)
		page.SetElement(selQR, &drivertest.Element{})
	}()

	outcome := d.Monitor(context.Background(), &fakeSession{page: page}, 5*time.Millisecond, 60*time.Millisecond,
		func(s models.SessionState) bool { return s == models.StateConnected })
	assert.Equal(t, models.OutcomeFailure, outcome.Status)
}

func TestMonitorObservesCancellation(t *testing.T) {
	page := drivertest.NewPage()
	page.SetElement(selLoading, &drivertest.Element{})
	d := newDetector()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	outcome := d.Monitor(ctx, &fakeSession{page: page}, 10*time.Millisecond, time.Minute,
		func(s models.SessionState) bool { return s == models.StateConnected })
	assert.Equal(t, models.OutcomeFailure, outcome.Status)
	assert.Contains(t, outcome.Message, "cancelled")
	assert.Less(t, time.Since(start), time.Second)
}
