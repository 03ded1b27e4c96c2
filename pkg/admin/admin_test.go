package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eslym/troupe/pkg/config"
	"github.com/eslym/troupe/pkg/console"
	"github.com/eslym/troupe/pkg/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

type mockSupervisor struct {
	processes []*supervisor.RunningProcess
	shutdowns atomic.Int32
}

func (m *mockSupervisor) State() supervisor.State { return supervisor.StateRunning }

func (m *mockSupervisor) Processes() []*supervisor.RunningProcess { return m.processes }

func (m *mockSupervisor) GetProcess(name string) (*supervisor.RunningProcess, bool) {
	for _, p := range m.processes {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

func (m *mockSupervisor) Shutdown() { m.shutdowns.Add(1) }

func newMockSupervisor(names ...string) *mockSupervisor {
	ms := &mockSupervisor{}
	for i, name := range names {
		ms.processes = append(ms.processes, &supervisor.RunningProcess{
			ID:      name + "-id",
			Name:    name,
			Command: "run " + name,
			Index:   i,
		})
	}
	return ms
}

func newTestServer(t *testing.T, ms Supervisor, logs LogSource) (*adminServer, *httptest.Server) {
	t.Helper()
	adminCfg := &config.AdminEntry{Host: "127.0.0.1", Port: 0}
	server := NewAdminServer(context.Background(), ms, logs, adminCfg, false).(*adminServer)

	mux := http.NewServeMux()
	server.registerHandlers(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		_ = server.Stop()
		ts.Close()
	})
	return server, ts
}

func TestAdminServer_Healthz(t *testing.T) {
	_, ts := newTestServer(t, newMockSupervisor(), console.NewConsole(io.Discard))

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
}

func TestAdminServer_ProcessesEndpoint(t *testing.T) {
	_, ts := newTestServer(t, newMockSupervisor("web", "worker"), console.NewConsole(io.Discard))

	resp, err := http.Get(ts.URL + "/processes")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var data struct {
		State     string                    `json:"state"`
		Processes map[string]map[string]any `json:"processes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	assert.Equal(t, "running", data.State)
	assert.Len(t, data.Processes, 2)
	assert.Equal(t, "web-id", data.Processes["web"]["id"])
	assert.Equal(t, "run worker", data.Processes["worker"]["command"])
}

func TestAdminServer_ProcessStats(t *testing.T) {
	_, ts := newTestServer(t, newMockSupervisor("web"), console.NewConsole(io.Discard))

	resp, err := http.Get(ts.URL + "/process/web")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var data map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	assert.Equal(t, "web", data["name"])
	assert.NotContains(t, data, "resource")
}

func TestAdminServer_ProcessNotFound(t *testing.T) {
	_, ts := newTestServer(t, newMockSupervisor("web"), console.NewConsole(io.Discard))

	resp, err := http.Get(ts.URL + "/process/unknown")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminServer_ProcessMissingName(t *testing.T) {
	_, ts := newTestServer(t, newMockSupervisor(), console.NewConsole(io.Discard))

	resp, err := http.Get(ts.URL + "/process/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminServer_Shutdown(t *testing.T) {
	ms := newMockSupervisor("web")
	_, ts := newTestServer(t, ms, console.NewConsole(io.Discard))

	resp, err := http.Get(ts.URL + "/shutdown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, int32(0), ms.shutdowns.Load())

	resp, err = http.Post(ts.URL+"/shutdown", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var data map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, int32(1), ms.shutdowns.Load())
}

// receiveLine keeps writing until the subscriber registered by the handler
// picks a line up.
func receiveLine(t *testing.T, ws *websocket.Conn, write func()) console.Line {
	t.Helper()
	got := make(chan console.Line, 1)
	go func() {
		var line console.Line
		if err := websocket.JSON.Receive(ws, &line); err == nil {
			got <- line
		}
		close(got)
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case line, ok := <-got:
			require.True(t, ok, "websocket closed before a line arrived")
			return line
		case <-tick.C:
			write()
		case <-deadline:
			t.Fatal("no line received over websocket")
		}
	}
}

func TestAdminServer_WebSocketLogs(t *testing.T) {
	cons := console.NewConsole(io.Discard)
	_, ts := newTestServer(t, newMockSupervisor("web"), cons)

	ws, err := websocket.Dial("ws"+ts.URL[len("http"):]+"/ws/logs", "", "http://localhost/")
	require.NoError(t, err)
	defer ws.Close()

	label := console.NewLabel("web", 4, nil)
	line := receiveLine(t, ws, func() { cons.WriteLine(label, "hello") })
	assert.Equal(t, "web", line.Process)
	assert.Equal(t, "hello", line.Text)
}

func TestAdminServer_WebSocketProcessLogs(t *testing.T) {
	cons := console.NewConsole(io.Discard)
	_, ts := newTestServer(t, newMockSupervisor("web", "db"), cons)

	ws, err := websocket.Dial("ws"+ts.URL[len("http"):]+"/ws/process/web/logs", "", "http://localhost/")
	require.NoError(t, err)
	defer ws.Close()

	web := console.NewLabel("web", 4, nil)
	db := console.NewLabel("db", 4, nil)
	line := receiveLine(t, ws, func() {
		cons.WriteLine(db, "from db")
		cons.WriteLine(web, "from web")
	})
	assert.Equal(t, "web", line.Process)
	assert.Equal(t, "from web", line.Text)
}

func TestAdminServer_WebSocketUnknownProcess(t *testing.T) {
	_, ts := newTestServer(t, newMockSupervisor("web"), console.NewConsole(io.Discard))

	ws, err := websocket.Dial("ws"+ts.URL[len("http"):]+"/ws/process/nope/logs", "", "http://localhost/")
	require.NoError(t, err)
	defer ws.Close()

	var msg string
	require.NoError(t, websocket.Message.Receive(ws, &msg))
	assert.Equal(t, "process not found", msg)
}

func TestAdminServer_StartAndStop(t *testing.T) {
	adminCfg := &config.AdminEntry{Host: "127.0.0.1", Port: 0}
	server := NewAdminServer(context.Background(), newMockSupervisor(), console.NewConsole(io.Discard), adminCfg, false)
	require.NoError(t, server.Start())

	resp, err := http.Get("http://" + server.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, server.Stop())
	_, err = http.Get("http://" + server.Addr() + "/healthz")
	assert.Error(t, err)
}
