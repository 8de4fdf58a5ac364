package comfy_test

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/krelinga/video-generator/internal/comfy"
	"github.com/rs/zerolog"
)

// fakeEngine is an in-process stand-in for the ComfyUI HTTP and WebSocket
// API.
type fakeEngine struct {
	t        *testing.T
	upgrader websocket.Upgrader

	// rootFailures is the number of readiness requests answered with 503.
	// Negative fails every readiness request.
	rootFailures int
	// rejectSocket answers every socket request without upgrading.
	rejectSocket bool
	// submitStatus and submitBody override the /prompt response.
	submitStatus int
	submitBody   string
	promptID     string
	// script writes events once a prompt has been submitted.
	script  func(conn *websocket.Conn, promptID string)
	history map[string]any
	views   map[string][]byte

	mu          sync.Mutex
	rootHits    int
	socketHits  int
	submits     []map[string]any
	clientIDs   []string
	viewQueries []url.Values
	submitted   chan string
}

func newFakeEngine(t *testing.T) *fakeEngine {
	return &fakeEngine{
		t:         t,
		promptID:  "prompt-1",
		submitted: make(chan string, 1),
		views:     map[string][]byte{},
	}
}

func (f *fakeEngine) start() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", f.handleRoot)
	mux.HandleFunc("/ws", f.handleSocket)
	mux.HandleFunc("/prompt", f.handlePrompt)
	mux.HandleFunc("/history/", f.handleHistory)
	mux.HandleFunc("/view", f.handleView)
	srv := httptest.NewServer(mux)
	f.t.Cleanup(srv.Close)
	return srv
}

func (f *fakeEngine) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	f.mu.Lock()
	f.rootHits++
	fail := f.rootFailures < 0 || f.rootHits <= f.rootFailures
	f.mu.Unlock()
	if fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}

func (f *fakeEngine) handleSocket(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.socketHits++
	f.clientIDs = append(f.clientIDs, r.URL.Query().Get("clientId"))
	reject := f.rejectSocket
	f.mu.Unlock()
	if reject {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.t.Errorf("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	select {
	case id := <-f.submitted:
		if f.script != nil {
			f.script(conn, id)
		}
	case <-time.After(5 * time.Second):
		return
	}
	// Hold the socket open until the client hangs up.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *fakeEngine) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.submits = append(f.submits, body)
	f.mu.Unlock()

	if f.submitStatus != 0 {
		w.WriteHeader(f.submitStatus)
		w.Write([]byte(f.submitBody))
		return
	}
	if f.submitBody != "" {
		w.Write([]byte(f.submitBody))
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"prompt_id":   f.promptID,
		"number":      1,
		"node_errors": map[string]any{},
	})
	f.submitted <- f.promptID
}

func (f *fakeEngine) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/history/")
	if f.history == nil {
		json.NewEncoder(w).Encode(map[string]any{})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{id: f.history})
}

func (f *fakeEngine) handleView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f.mu.Lock()
	f.viewQueries = append(f.viewQueries, q)
	f.mu.Unlock()
	data, ok := f.views[q.Get("filename")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Write(data)
}

func (f *fakeEngine) counts() (root, socket, submits int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rootHits, f.socketHits, len(f.submits)
}

func sendJSON(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": msgType, "data": data}); err != nil {
		t.Errorf("write %s: %v", msgType, err)
	}
}

var fastPolicy = comfy.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}

func newTestClient(t *testing.T, srv *httptest.Server, mutate func(*comfy.Config)) *comfy.Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	cfg := comfy.Config{
		Host:         host,
		Port:         port,
		ClientID:     "client-under-test",
		ReadyPolicy:  fastPolicy,
		ReadyTimeout: time.Second,
		SocketPolicy: fastPolicy,
		Logger:       zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return comfy.NewClient(cfg)
}
