// Package stream pushes moderator status over WebSocket so dashboards
// do not have to poll the REST endpoint.
package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/engine"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server streams status reports for one moderator per connection.
type Server struct {
	engine   *engine.Engine
	interval time.Duration
	logger   *zap.Logger
}

// NewServer creates a stream server emitting a report every interval.
func NewServer(eng *engine.Engine, interval time.Duration, logger *zap.Logger) *Server {
	return &Server{engine: eng, interval: interval, logger: logger}
}

// HandleStatusStream upgrades the connection and pushes a status report
// immediately, then on every tick, until the client hangs up.
func (s *Server) HandleStatusStream(w http.ResponseWriter, r *http.Request, moderatorID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("status stream upgrade failed",
			zap.String("moderator", moderatorID), zap.Error(err))
		return
	}
	defer conn.Close()

	s.logger.Info("status stream opened", zap.String("moderator", moderatorID))
	defer s.logger.Info("status stream closed", zap.String("moderator", moderatorID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader goroutine: we never expect client messages, but reading is
	// how gorilla surfaces the close frame.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		out := s.engine.Status(ctx, moderatorID)
		if err := conn.WriteJSON(out); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("status stream write failed",
					zap.String("moderator", moderatorID), zap.Error(err))
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
