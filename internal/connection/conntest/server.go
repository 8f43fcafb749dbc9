package conntest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is a real WebSocket endpoint standing in for the companion server.
// Each accepted socket is handed out through Accept.
type Server struct {
	srv    *httptest.Server
	connCh chan *websocket.Conn
}

// NewServer starts listening on a random local port.
func NewServer() *Server {
	s := &Server{connCh: make(chan *websocket.Conn, 4)}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.srv = httptest.NewServer(mux)
	return s
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	select {
	case s.connCh <- conn:
	default:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many clients"))
		conn.Close()
	}
}

// URL returns the ws:// address of the endpoint.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
}

// Accept blocks until a client connects or ctx is cancelled.
func (s *Server) Accept(ctx context.Context) (*websocket.Conn, error) {
	select {
	case conn := <-s.connCh:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the listener down and drops open sockets.
func (s *Server) Close() {
	s.srv.CloseClientConnections()
	s.srv.Close()
}
