package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Server owns the websocket endpoint and wires each accepted connection into
// the presence directory and the relay.
type Server struct {
	auth  *Auth
	dir   *Directory
	relay *Relay

	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New builds a relay server listening on addr once Run is called.
func New(addr string, auth *Auth) *Server {
	dir := NewDirectory()
	s := &Server{
		auth:  auth,
		dir:   dir,
		relay: NewRelay(dir),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// clients connect from app webviews and native shells
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler exposes the route table, mainly for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Directory exposes the presence directory. Test hook.
func (s *Server) Directory() *Directory {
	return s.dir
}

// Relay exposes the relay. Test hook.
func (s *Server) Relay() *Relay {
	return s.relay
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("relay listening on %s", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		err := s.httpSrv.Shutdown(shutdownCtx)
		// Shutdown does not touch hijacked connections; drop them explicitly
		s.dir.CloseAll()
		return err
	}
}

// handleWS authenticates the token, upgrades, registers presence and runs
// the pumps. The connection's whole life happens inside this handler.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID, err := s.auth.Verify(r.URL.Query().Get("token"))
	if err != nil {
		log.Warnf("ws: rejected connection: %v", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("ws: upgrade failed for %s: %v", userID, err)
		return
	}

	c := newWSConn(userID, ws)
	s.dir.Register(userID, c)
	log.Infof("ws: user %s connected", userID)

	go c.writePump()
	c.readPump(s.relay, s.dir)

	// a disconnect clears presence even without an explicit logout, and
	// mid-call counterparts are told the peer is gone.
	if uid, ok := s.dir.Unregister(c); ok {
		s.relay.PeerGone(uid)
	}
	c.Close()
	log.Infof("ws: user %s disconnected", userID)
}
