package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/optical_tachometer/internal/telemetry"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentLines struct {
	ch  chan string
	err error
}

func newTestWebServer(t *testing.T) (*webServer, *sentLines) {
	t.Helper()
	sent := &sentLines{ch: make(chan string, 8)}
	log := quietLogger()
	return &webServer{
		state: &webState{},
		hub:   newHub(log),
		log:   log,
		send: func(line string) error {
			if sent.err != nil {
				return sent.err
			}
			sent.ch <- line
			return nil
		},
	}, sent
}

func TestWeb_ReadingEndpoint(t *testing.T) {
	srv, _ := newTestWebServer(t)
	h := srv.routes("")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reading", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	want := telemetry.Reading{Session: "s", RPM: 123.5, Angle: 42, TargetRPM: 500, Stripes: 36}
	srv.state.setReading(want)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reading", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got telemetry.Reading
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, want, got)
}

func TestWeb_AlignmentEndpoint(t *testing.T) {
	srv, _ := newTestWebServer(t)
	srv.state.setAlignment(telemetry.Alignment{Advice: "move_away", Severity: "strong"})

	rec := httptest.NewRecorder()
	srv.routes("").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/alignment", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"advice":"move_away"`)
}

func TestWeb_CommandEndpoint(t *testing.T) {
	srv, sent := newTestWebServer(t)
	h := srv.routes("")

	post := func(body string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(body)))
		return rec.Code
	}

	assert.Equal(t, http.StatusAccepted, post(`{"line":"  target_rpm 600 "}`))
	assert.Equal(t, "target_rpm 600", <-sent.ch)

	assert.Equal(t, http.StatusBadRequest, post(`{"line":"   "}`))
	assert.Equal(t, http.StatusBadRequest, post(`not json`))

	sent.err = errors.New("broker down")
	assert.Equal(t, http.StatusBadGateway, post(`{"line":"status"}`))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/command", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWeb_WebsocketStreamsAndForwardsCommands(t *testing.T) {
	srv, sent := newTestWebServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.run(ctx)

	srv.state.setReading(telemetry.Reading{RPM: 7})

	ts := httptest.NewServer(srv.routes(""))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	// The latest reading is sent on connect.
	var env struct {
		Type string            `json:"type"`
		Data telemetry.Reading `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "reading", env.Type)
	assert.Equal(t, 7.0, env.Data.RPM)

	require.Eventually(t, func() bool { return srv.hub.clientCount() == 1 }, time.Second, 5*time.Millisecond)
	srv.hub.publish("reading", telemetry.Reading{RPM: 8})
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, 8.0, env.Data.RPM)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("read_rpm")))
	select {
	case line := <-sent.ch:
		assert.Equal(t, "read_rpm", line)
	case <-time.After(2 * time.Second):
		t.Fatal("command not forwarded")
	}
}
