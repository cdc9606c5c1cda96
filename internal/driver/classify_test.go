package driver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{
			name: "playwright target closed",
			err:  errors.New("Target page, context or browser has been closed"),
			want: FailureDeliberateClosure,
		},
		{
			name: "browser closed mid-wait",
			err:  errors.New("browser has been closed"),
			want: FailureDeliberateClosure,
		},
		{
			name: "websocket dropped",
			err:  errors.New("websocket: close 1006 (abnormal closure)"),
			want: FailureDeliberateClosure,
		},
		{
			name: "wrapped closure",
			err:  fmt.Errorf("navigate to https://web.whatsapp.com: %w", errors.New("Target closed")),
			want: FailureDeliberateClosure,
		},
		{
			name: "selector wait timeout",
			err:  errors.New("Timeout 30000ms exceeded"),
			want: FailureTimeout,
		},
		{
			name: "context deadline",
			err:  fmt.Errorf("probe: %w", context.DeadlineExceeded),
			want: FailureTimeout,
		},
		{
			name: "dns failure",
			err:  errors.New("net::ERR_NAME_NOT_RESOLVED at https://web.whatsapp.com"),
			want: FailureNetwork,
		},
		{
			name: "offline",
			err:  errors.New("net::ERR_INTERNET_DISCONNECTED"),
			want: FailureNetwork,
		},
		{
			name: "anything else",
			err:  errors.New("protocol error: unexpected frame"),
			want: FailureUnknown,
		},
		{
			name: "nil",
			err:  nil,
			want: FailureUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

// A closed browser often surfaces as a navigation timeout wrapping the
// closure message; closure classification must win.
func TestClassifyClosureBeatsTimeout(t *testing.T) {
	err := errors.New("Timeout 30000ms exceeded: target page, context or browser has been closed")
	assert.Equal(t, FailureDeliberateClosure, Classify(err))
}
