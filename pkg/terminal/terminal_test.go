package terminal

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/antibyte/chayakada/pkg/configuration"
	"github.com/antibyte/chayakada/pkg/interpreter"
	"github.com/antibyte/chayakada/pkg/shared"

	"github.com/gorilla/websocket"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "terminal-test")
	if err != nil {
		panic(err)
	}
	if err := configuration.Initialize(filepath.Join(dir, "settings.cfg")); err != nil {
		panic(err)
	}
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func newTestServer(t *testing.T) (*RunHandler, string) {
	t.Helper()
	interp := interpreter.New(interpreter.WithSleeper(interpreter.SleeperFunc(func(time.Duration) {})))
	h := NewRunHandler(interp)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(func() {
		h.Shutdown()
		srv.Close()
	})
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readResponse(t *testing.T, conn *websocket.Conn) shared.Response {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp shared.Response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return resp
}

func TestRunOverWebSocket(t *testing.T) {
	_, url := newTestServer(t)
	conn := dial(t, url, nil)

	program := "പേര് = \"ലോകം\"\nപറയു \"ഹലോ\"\nപറയു {പേര്}"
	if err := conn.WriteJSON(shared.Request{Type: shared.MessageTypeRun, Code: program, ID: "1"}); err != nil {
		t.Fatal(err)
	}

	resp := readResponse(t, conn)
	if resp.Type != shared.MessageTypeOutput {
		t.Fatalf("Expected output response, got %+v", resp)
	}
	if resp.ID != "1" || resp.Output != "ഹലോ\nലോകം" {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestEachRunStartsFresh(t *testing.T) {
	_, url := newTestServer(t)
	conn := dial(t, url, nil)

	conn.WriteJSON(shared.Request{Type: shared.MessageTypeRun, Code: "x = \"1\""})
	readResponse(t, conn)

	conn.WriteJSON(shared.Request{Type: shared.MessageTypeRun, Code: "പറയു x"})
	if resp := readResponse(t, conn); resp.Output != "x" {
		t.Errorf("Variables leaked between runs, got %q", resp.Output)
	}
}

func TestKeepaliveHasNoReply(t *testing.T) {
	_, url := newTestServer(t)
	conn := dial(t, url, nil)

	conn.WriteJSON(shared.Request{Type: shared.MessageTypeKeepalive})
	conn.WriteJSON(shared.Request{Type: shared.MessageTypeRun, Code: "പറയു \"ok\"", ID: "after"})

	if resp := readResponse(t, conn); resp.ID != "after" || resp.Output != "ok" {
		t.Errorf("Expected only the run output, got %+v", resp)
	}
}

func TestEmptyProgramKeepsOutputField(t *testing.T) {
	_, url := newTestServer(t)
	conn := dial(t, url, nil)

	if err := conn.WriteJSON(shared.Request{Type: shared.MessageTypeRun, Code: "", ID: "empty"}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if !strings.Contains(string(data), `"output":""`) {
		t.Errorf("Expected an empty output field, got %s", data)
	}
}

func TestBadMessages(t *testing.T) {
	_, url := newTestServer(t)
	conn := dial(t, url, nil)

	conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	if resp := readResponse(t, conn); resp.Type != shared.MessageTypeError {
		t.Errorf("Expected error for invalid JSON, got %+v", resp)
	}

	conn.WriteJSON(map[string]string{"type": "compile"})
	resp := readResponse(t, conn)
	if resp.Type != shared.MessageTypeError || !strings.Contains(resp.Error, "compile") {
		t.Errorf("Expected unknown type error, got %+v", resp)
	}

	conn.WriteJSON(shared.Request{Type: shared.MessageTypeRun, Code: strings.Repeat("x", 64*1024+1)})
	resp = readResponse(t, conn)
	if resp.Type != shared.MessageTypeError || !strings.Contains(resp.Error, "too large") {
		t.Errorf("Expected size error, got %+v", resp)
	}
}

func TestCheckOrigin(t *testing.T) {
	previous := configuration.GetString("Server", "allowed_origins", "*")
	t.Cleanup(func() { configuration.SetString("Server", "allowed_origins", previous) })
	configuration.SetString("Server", "allowed_origins", "http://ok.example, http://also.example")

	tests := map[string]bool{
		"":                    true,
		"http://ok.example":   true,
		"http://also.example": true,
		"http://evil.example": false,
	}
	for origin, want := range tests {
		r := httptest.NewRequest("GET", "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		if got := checkOrigin(r); got != want {
			t.Errorf("checkOrigin(%q) = %v, want %v", origin, got, want)
		}
	}

	configuration.SetString("Server", "allowed_origins", "*")
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://anything.example")
	if !checkOrigin(r) {
		t.Error("* should allow every origin")
	}
}

func TestClientCountAndShutdown(t *testing.T) {
	h, url := newTestServer(t)
	conn := dial(t, url, nil)

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.ClientCount() != 1 {
		t.Fatalf("Expected 1 client, got %d", h.ClientCount())
	}

	h.Shutdown()
	if h.ClientCount() != 0 {
		t.Errorf("Expected 0 clients after shutdown, got %d", h.ClientCount())
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected the connection to be closed")
	}
}

func TestRateLimit(t *testing.T) {
	cm := NewClientManager(2)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cm.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if err := cm.CheckRateLimit("1.2.3.4"); err != nil {
			t.Fatalf("Run %d should be allowed: %v", i, err)
		}
	}
	if err := cm.CheckRateLimit("1.2.3.4"); err == nil {
		t.Error("Third run within a minute should be rejected")
	}
	if err := cm.CheckRateLimit("5.6.7.8"); err != nil {
		t.Errorf("Other IPs are counted separately: %v", err)
	}

	now = now.Add(61 * time.Second)
	if err := cm.CheckRateLimit("1.2.3.4"); err != nil {
		t.Errorf("Counter should reset after a minute: %v", err)
	}

	now = now.Add(2 * time.Minute)
	cm.Prune()
	if len(cm.rateLimits) != 0 {
		t.Errorf("Prune should drop stale counters, %d left", len(cm.rateLimits))
	}

	if err := NewClientManager(0).CheckRateLimit("x"); err != nil {
		t.Errorf("Zero limit disables rate limiting: %v", err)
	}
}

func TestMaxClients(t *testing.T) {
	previous := configuration.GetString("Network", "max_clients", "100")
	configuration.SetString("Network", "max_clients", "1")
	defer configuration.SetString("Network", "max_clients", previous)

	h, url := newTestServer(t)

	if !h.reserveSlot() {
		t.Fatal("First slot should be free")
	}
	if h.reserveSlot() {
		t.Error("A pending upgrade must count against the limit")
	}
	h.releaseSlot()

	dial(t, url, nil)
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Second client should be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %+v", resp)
	}
}
