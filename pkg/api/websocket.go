package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rubiojr/jobsearch/pkg/jobs"
	"github.com/rubiojr/jobsearch/pkg/realtime"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsMaxMessage   = 4096
)

// HandleSearchWS runs a live search session. The client sends a search
// message on every input change; the server debounces the query and pushes
// each new result. Query parameters on the upgrade request seed the first
// evaluation.
func (s *Server) HandleSearchWS(w http.ResponseWriter, r *http.Request) {
	initial, err := parseSearchMessage(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid parameter", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session := uuid.NewString()
	s.metrics.sessions.Add(1)
	defer s.metrics.sessions.Add(-1)
	s.logger.Debugf("session %s opened from %s", session, r.RemoteAddr)
	defer s.logger.Debugf("session %s closed", session)

	settings := s.Settings()
	profile := s.readProfile(r)
	coord := jobs.New(s.exec, s.source,
		jobs.WithDebounce(settings.Debounce),
		jobs.WithFallback(settings.Fallback),
	)
	defer coord.Close()

	write := func(msg realtime.Message) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(msg)
	}
	if err := write(realtime.InitMessage(session)); err != nil {
		return
	}

	id, results := coord.Subscribe()
	defer coord.Unsubscribe(id)

	params, err := buildParams(initial, settings, profile)
	if err != nil {
		_ = write(realtime.ErrorMessage(err.Error()))
		return
	}
	coord.Update(params)

	inputs := make(chan searchMessage)
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(wsMaxMessage)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		})
		for {
			var msg searchMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debugf("session %s read: %v", session, err)
				}
				return
			}
			select {
			case inputs <- msg:
			case <-r.Context().Done():
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case msg := <-inputs:
			p, err := buildParams(msg, settings, profile)
			if err != nil {
				if write(realtime.ErrorMessage(err.Error())) != nil {
					return
				}
				continue
			}
			coord.Update(p)
		case res, ok := <-results:
			if !ok {
				return
			}
			if write(realtime.ResultMessage(res)) != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
