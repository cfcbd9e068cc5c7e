package hub

import (
	"context"
	"net/http"

	"github.com/chuanjin/BaahBridge/internal/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // game clients run on the local network
	},
}

// Server exposes the hub over HTTP.
type Server struct {
	hub        *Hub
	factors    FactorSetter
	addr       string
	httpServer *http.Server
}

func NewServer(h *Hub, factors FactorSetter, addr string) *Server {
	s := &Server{
		hub:     h,
		factors: factors,
		addr:    addr,
	}
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the routes: /ws for readings, /healthz for health checks.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(s.hub, conn)
	s.hub.Register(client)
	client.Queue(NewStateMessage(s.factors.Factor()))

	go client.WritePump()
	go client.ReadPump(s.factors)
}

// ListenAndServe returns http.ErrServerClosed once Shutdown has been called,
// even if Shutdown ran first.
func (s *Server) ListenAndServe() error {
	logger.Info("WebSocket hub listening", zap.String("address", s.addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down WebSocket hub")
	err := s.httpServer.Shutdown(ctx)
	s.hub.CloseAll()
	return err
}
