package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/eslym/troupe/pkg/config"
	"github.com/eslym/troupe/pkg/console"
	"github.com/eslym/troupe/pkg/log"
	"github.com/eslym/troupe/pkg/supervisor"
	"golang.org/x/net/websocket"
)

// Supervisor is the part of *supervisor.Supervisor the admin API needs
type Supervisor interface {
	State() supervisor.State
	Processes() []*supervisor.RunningProcess
	GetProcess(name string) (*supervisor.RunningProcess, bool)
	Shutdown()
}

// LogSource streams annotated lines, *console.Console implements it
type LogSource interface {
	Subscribe(buffer int) (<-chan console.Line, func())
}

type Server interface {
	Start() error
	Stop() error
	Addr() string
}

// adminServer holds the HTTP server and supervisor reference
type adminServer struct {
	sup     Supervisor
	logs    LogSource
	config  *config.AdminEntry
	server  *http.Server
	ctx     context.Context
	cancel  context.CancelFunc
	verbose bool

	mu   sync.Mutex
	addr string
}

// NewAdminServer creates a new admin HTTP server
func NewAdminServer(ctx context.Context, sup Supervisor, logs LogSource, adminCfg *config.AdminEntry, verbose bool) Server {
	ctx, cancel := context.WithCancel(ctx)
	return &adminServer{
		sup:     sup,
		logs:    logs,
		config:  adminCfg,
		ctx:     ctx,
		cancel:  cancel,
		verbose: verbose,
	}
}

// registerHandlers registers all HTTP handlers for the admin server
func (a *adminServer) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/processes", a.handleProcesses)
	mux.HandleFunc("/process/", a.handleProcess)
	mux.HandleFunc("/shutdown", a.handleShutdown)
	mux.Handle("/ws/logs", websocket.Handler(a.handleLogsWS))
	mux.Handle("/ws/process/", websocket.Handler(a.handleProcessLogsWS))
}

// Start binds the listener and serves in the background
func (a *adminServer) Start() error {
	mux := http.NewServeMux()
	a.registerHandlers(mux)
	a.server = &http.Server{Handler: mux}

	var (
		ln  net.Listener
		err error
	)
	if a.config.Unix != "" {
		ln, err = net.Listen("unix", a.config.Unix)
	} else {
		ln, err = net.Listen("tcp", a.config.Address())
	}
	if err != nil {
		return err
	}

	addr := ln.Addr().String()
	if a.config.Unix != "" {
		addr = "unix:" + a.config.Unix
	}
	a.mu.Lock()
	a.addr = addr
	a.mu.Unlock()

	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("admin", "admin server stopped: %v", err)
		}
	}()
	if a.verbose {
		log.Printf("admin", "Admin HTTP server started at %s", addr)
	}

	go func() {
		<-a.ctx.Done()
		_ = a.server.Close()
	}()

	return nil
}

// Addr is the bound address, valid after Start
func (a *adminServer) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Stop closes the listener and every open connection
func (a *adminServer) Stop() error {
	if a.verbose {
		log.Printf("admin", "Stopping admin HTTP server")
	}
	a.cancel()
	if a.server != nil {
		return a.server.Close()
	}
	return nil
}

// handleProcesses returns all launched processes and their stats
func (a *adminServer) handleProcesses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats := make(map[string]any)
	for _, p := range a.sup.Processes() {
		stats[p.Name] = p.GetSerializedStats()
	}
	writeJSON(w, map[string]any{
		"state":     a.sup.State().String(),
		"processes": stats,
	})
}

// handleProcess returns one process with its resource usage
func (a *adminServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/process/"), "/")
	if name == "" {
		http.Error(w, "missing process name", http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	proc, ok := a.sup.GetProcess(name)
	if !ok {
		http.Error(w, "process not found", http.StatusNotFound)
		if a.verbose {
			log.Printf("admin", "Process %s not found for %s", name, r.RemoteAddr)
		}
		return
	}
	stats := proc.GetSerializedStats()
	if res, err := proc.GetResourceStats(); err == nil {
		stats["resource"] = res
	}
	writeJSON(w, stats)
}

// handleShutdown takes every process down; there is no partial shutdown
func (a *adminServer) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.verbose {
		log.Printf("admin", "POST /shutdown from %s", r.RemoteAddr)
	}
	a.sup.Shutdown()
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleLogsWS streams every annotated line over WebSocket
func (a *adminServer) handleLogsWS(ws *websocket.Conn) {
	defer ws.Close()
	a.streamLogs(ws, "")
}

// handleProcessLogsWS streams the lines of one process, /ws/process/{name}/logs
func (a *adminServer) handleProcessLogsWS(ws *websocket.Conn) {
	defer ws.Close()
	parts := strings.Split(strings.TrimPrefix(ws.Request().URL.Path, "/ws/process/"), "/")
	if len(parts) != 2 || parts[1] != "logs" {
		_ = websocket.Message.Send(ws, "invalid path")
		return
	}
	name := parts[0]
	if _, ok := a.sup.GetProcess(name); !ok {
		_ = websocket.Message.Send(ws, "process not found")
		return
	}
	a.streamLogs(ws, name)
}

func (a *adminServer) streamLogs(ws *websocket.Conn, name string) {
	if a.verbose {
		log.Printf("admin", "WebSocket logs connection from %s to %s", ws.Request().RemoteAddr, ws.Request().URL.Path)
	}
	lines, cancel := a.logs.Subscribe(100)
	defer cancel()

	// a client read returning means the peer went away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		var discard string
		for websocket.Message.Receive(ws, &discard) == nil {
		}
	}()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-closed:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if name != "" && line.Process != name {
				continue
			}
			if err := websocket.JSON.Send(ws, line); err != nil {
				if a.verbose {
					log.Printf("admin", "WebSocket send error: %v", err)
				}
				return
			}
		}
	}
}

// writeJSON writes JSON response
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
