package dev

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/islands"
	"github.com/vango-dev/islands/internal/config"
	"github.com/vango-dev/islands/pkg/store"
)

const greetingPage = `<!DOCTYPE html><html><head><title>Hi</title></head><body>` +
	`<div data-wp-interactive="app"><p id="msg" data-wp-text="state.msg">server</p></div>` +
	`<script type="application/json" data-wp-interactive-state="app">{"msg":"from state"}</script>` +
	`</body></html>`

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(dir string, serverDirectives, watch bool) *config.Config {
	cfg := config.New()
	cfg.Dev.Pages = dir
	cfg.Dev.ServerDirectives = &serverDirectives
	cfg.Dev.Watch = &watch
	return cfg
}

func get(t *testing.T, h http.Handler, target string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec.Code, rec.Body.String()
}

func TestFindPage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.html"), "root")
	writeFile(t, filepath.Join(dir, "about.html"), "about")
	writeFile(t, filepath.Join(dir, "blog", "index.html"), "blog")
	writeFile(t, filepath.Join(dir, "style.css"), "css")

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/", "index.html", true},
		{"/about", "about.html", true},
		{"/about.html", "about.html", true},
		{"/blog", filepath.Join("blog", "index.html"), true},
		{"/blog/", filepath.Join("blog", "index.html"), true},
		{"/style.css", "", false},
		{"/missing", "", false},
		{"/../../etc/passwd", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := findPage(dir, tt.path)
			if ok != tt.ok {
				t.Fatalf("findPage(%q) ok = %v, want %v", tt.path, ok, tt.ok)
			}
			if ok && got != filepath.Join(dir, tt.want) {
				t.Errorf("findPage(%q) = %q", tt.path, got)
			}
		})
	}
}

func TestServerRendersDirectives(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.html"), greetingPage)

	srv := NewServer(ServerOptions{Config: testConfig(dir, true, false)})
	code, body := get(t, srv.Handler(), "/")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !strings.Contains(body, `<p id="msg" data-wp-text="state.msg">from state</p>`) {
		t.Errorf("directives were not applied:\n%s", body)
	}
	if strings.Contains(body, ReloadPath) {
		t.Error("reload script injected with watching disabled")
	}
}

func TestServerRawPages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.html"), greetingPage)

	srv := NewServer(ServerOptions{Config: testConfig(dir, false, true)})
	_, body := get(t, srv.Handler(), "/")
	if !strings.Contains(body, ">server</p>") {
		t.Errorf("page was pre-processed:\n%s", body)
	}
	if !strings.Contains(body, ReloadPath) {
		t.Error("reload script missing")
	}
}

func TestServerSetupDefinesStores(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "greet.html"),
		`<div data-wp-interactive="app"><p data-wp-text="state.msg">server</p></div>`)

	srv := NewServer(ServerOptions{
		Config: testConfig(dir, true, false),
		Setup: func(rt *islands.Runtime) {
			rt.Store("app", store.Definition{State: map[string]any{"msg": "from setup"}})
		},
	})
	_, body := get(t, srv.Handler(), "/greet")
	if !strings.Contains(body, ">from setup</p>") {
		t.Errorf("Setup was not applied:\n%s", body)
	}
}

func TestServerStaticFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "style.css"), "p{color:red}")

	srv := NewServer(ServerOptions{Config: testConfig(dir, true, false)})
	code, body := get(t, srv.Handler(), "/style.css")
	if code != http.StatusOK || body != "p{color:red}" {
		t.Errorf("GET /style.css = %d %q", code, body)
	}
	if code, _ := get(t, srv.Handler(), "/nope.png"); code != http.StatusNotFound {
		t.Errorf("missing file status = %d, want 404", code)
	}
}

func TestReloadServerBroadcasts(t *testing.T) {
	srv := NewServer(ServerOptions{Config: testConfig(t.TempDir(), true, true)})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+ReloadPath, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.reload.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.handleChanges([]Change{{Path: "pages/app.css", Type: ChangeCSS}})
	srv.handleChanges([]Change{{Path: "pages/app.css", Type: ChangeCSS}, {Path: "pages/index.html", Type: ChangePage}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []ReloadMessageType{ReloadTypeCSS, ReloadTypeFull} {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error: %v", err)
		}
		var msg ReloadMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Type != want {
			t.Errorf("message type = %q, want %q", msg.Type, want)
		}
	}
}

func TestWatcherReportsBatch(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "index.html")
	writeFile(t, page, "one")

	watcher := NewWatcher(WatcherConfig{
		Paths:    []string{dir},
		Debounce: 50 * time.Millisecond,
	})
	batches := make(chan []Change, 10)
	watcher.OnChange(func(c []Change) { batches <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for !watcher.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("watcher did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	writeFile(t, page, "two")
	writeFile(t, page, "three")

	select {
	case batch := <-batches:
		if len(batch) != 1 {
			t.Fatalf("batch = %v, want one change", batch)
		}
		if batch[0].Path != page || batch[0].Type != ChangePage {
			t.Errorf("change = %+v", batch[0])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change")
	}
	watcher.Stop()
}

func TestWatcherIgnore(t *testing.T) {
	watcher := NewWatcher(WatcherConfig{
		Paths:  []string{"."},
		Ignore: []string{"*.swp", "node_modules", "drafts/old"},
	})
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join("pages", "index.html.swp"), true},
		{filepath.Join("pages", "node_modules", "x.css"), true},
		{filepath.Join("pages", "drafts", "old", "a.html"), true},
		{filepath.Join("pages", "drafts", "new.html"), false},
		{filepath.Join("pages", "modules.html"), false},
	}
	for _, tt := range tests {
		if got := watcher.shouldIgnore(tt.path); got != tt.want {
			t.Errorf("shouldIgnore(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestClassifyChange(t *testing.T) {
	tests := []struct {
		path string
		want ChangeType
	}{
		{"index.html", ChangePage},
		{"about.HTM", ChangePage},
		{"style.css", ChangeCSS},
		{"image.png", ChangeAsset},
		{"data.json", ChangeAsset},
	}
	for _, tt := range tests {
		if got := classifyChange(tt.path); got != tt.want {
			t.Errorf("classifyChange(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestInjectScript(t *testing.T) {
	got := string(injectScript([]byte("<html><body><p>x</p></body></html>"), "<script></script>"))
	if got != "<html><body><p>x</p><script></script></body></html>" {
		t.Errorf("injectScript() = %q", got)
	}
	if got := string(injectScript([]byte("<p>x</p>"), "<s>")); got != "<p>x</p><s>" {
		t.Errorf("injectScript() without body = %q", got)
	}
}

func TestDevClientScript(t *testing.T) {
	for _, want := range []string{"WebSocket", ReloadPath, "location.reload"} {
		if !strings.Contains(DevClientScript, want) {
			t.Errorf("DevClientScript does not contain %q", want)
		}
	}
}
