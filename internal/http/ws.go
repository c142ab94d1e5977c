package http

import (
	"context"
	"net/http"

	"github.com/olahol/melody"

	"fincontrol/internal/auth"
	"fincontrol/internal/log"
)

const (
	sessionOwnerKey = "owner"
	sessionKey      = "session"
)

// setupHub ties each websocket connection to an auth.Session: connect
// initializes the subscription and starts the pump, disconnect disposes
// it. Clients treat every received event as a hint to re-fetch, never as
// data.
func (s *Server) setupHub() {
	s.hub.HandleConnect(func(ms *melody.Session) {
		s.metrics.wsConnections.Add(1)

		ownerVal, ok := ms.Get(sessionOwnerKey)
		if !ok {
			_ = ms.Close()
			return
		}
		owner := ownerVal.(string)

		session := auth.NewSession(owner, s.notifier)
		if err := session.Init(context.Background()); err != nil {
			s.logger.Error("session init failed", log.FieldError, err, log.FieldOwner, owner)
			_ = ms.Close()
			return
		}
		ms.Set(sessionKey, session)
		s.logger.Debug("websocket connected", log.FieldOwner, owner)

		go func() {
			for ev := range session.Changes() {
				payload, err := ev.Marshal()
				if err != nil {
					s.logger.Error("marshal change event", log.FieldError, err)
					continue
				}
				if ms.Write(payload) != nil {
					return
				}
				s.metrics.eventsOut.Add(1)
			}
		}()
	})

	s.hub.HandleDisconnect(func(ms *melody.Session) {
		s.metrics.wsConnections.Add(-1)
		if v, ok := ms.Get(sessionKey); ok {
			_ = v.(*auth.Session).Dispose()
		}
	})
}

// handleWS upgrades the connection after resolving the owner. The token
// rides the query string because browsers cannot set websocket headers.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	owner := localOwner
	if s.tokens != nil {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = bearerToken(r)
		}
		resolved, err := s.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		owner = resolved
	}

	if err := s.hub.HandleRequestWithKeys(w, r, map[string]any{sessionOwnerKey: owner}); err != nil {
		s.logger.Error("websocket upgrade failed", log.FieldError, err)
	}
}
