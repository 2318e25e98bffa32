package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/optical_tachometer/internal/command"
	"github.com/relabs-tech/optical_tachometer/internal/config"
	"github.com/relabs-tech/optical_tachometer/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// webState keeps the latest message of each kind.
type webState struct {
	mu            sync.RWMutex
	reading       telemetry.Reading
	haveReading   bool
	alignment     telemetry.Alignment
	haveAlignment bool
}

func (s *webState) setReading(r telemetry.Reading) {
	s.mu.Lock()
	s.reading, s.haveReading = r, true
	s.mu.Unlock()
}

func (s *webState) setAlignment(a telemetry.Alignment) {
	s.mu.Lock()
	s.alignment, s.haveAlignment = a, true
	s.mu.Unlock()
}

// webServer serves the dashboard API and the live websocket.
type webServer struct {
	state *webState
	hub   *hub
	// send forwards an operator command line to the tachometer.
	send func(line string) error
	log  *slog.Logger
}

func (s *webServer) routes(staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/reading", func(w http.ResponseWriter, r *http.Request) {
		s.state.mu.RLock()
		v, ok := s.state.reading, s.state.haveReading
		s.state.mu.RUnlock()
		s.writeJSON(w, v, ok)
	})
	mux.HandleFunc("/api/alignment", func(w http.ResponseWriter, r *http.Request) {
		s.state.mu.RLock()
		v, ok := s.state.alignment, s.state.haveAlignment
		s.state.mu.RUnlock()
		s.writeJSON(w, v, ok)
	})
	mux.HandleFunc("/api/command", s.handleCommand)
	mux.HandleFunc("/ws", s.handleWS)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

func (s *webServer) writeJSON(w http.ResponseWriter, v any, ok bool) {
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("json encode error", "err", err)
	}
}

type commandRequest struct {
	Line string `json:"line"`
}

// handleCommand accepts POST {"line": "..."}.
func (s *webServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if _, err := command.Parse(req.Line); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.send(strings.TrimSpace(req.Line)); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleWS streams every message and forwards text frames as commands.
func (s *webServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "err", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, 32), remoteAddr: r.RemoteAddr}

	s.state.mu.RLock()
	if s.state.haveReading {
		if msg, err := marshalEnvelope("reading", s.state.reading); err == nil {
			c.send <- msg
		}
	}
	s.state.mu.RUnlock()

	if !s.hub.add(c) {
		_ = conn.Close()
		return
	}
	go c.writePump(s.log)
	go c.readPump(s.hub, func(line string) {
		if _, err := command.Parse(line); err != nil {
			return
		}
		if err := s.send(strings.TrimSpace(line)); err != nil {
			s.log.Warn("ws command not forwarded", "err", err)
		}
	})
}

// RunWeb subscribes to tachometer telemetry and serves it over HTTP and a
// websocket. Commands posted by the dashboard go to the command topic.
func RunWeb(ctx context.Context) error {
	cfg := config.Get()
	log := slog.Default().With("component", "web")

	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDWeb, log)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	h := newHub(log)
	go h.run(ctx)

	srv := &webServer{
		state: &webState{},
		hub:   h,
		log:   log,
		send: func(line string) error {
			token := client.Publish(cfg.MQTT.TopicCommand, 0, false, line)
			if !token.WaitTimeout(publishTimeout) {
				return errors.New("command publish timed out")
			}
			return token.Error()
		},
	}

	if err := subscribeJSON(client, cfg.MQTT.TopicReading, log, func(r telemetry.Reading) {
		srv.state.setReading(r)
		h.publish("reading", r)
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, cfg.MQTT.TopicAlignment, log, func(a telemetry.Alignment) {
		srv.state.setAlignment(a)
		h.publish("alignment", a)
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, cfg.MQTT.TopicReply, log, func(r telemetry.Reply) {
		h.publish("reply", r)
	}); err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:           srv.routes(cfg.Web.StaticDir),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info("web server listening", "addr", httpSrv.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
