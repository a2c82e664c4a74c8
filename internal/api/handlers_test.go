package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/gpiogw/internal/action"
	"github.com/mattjoyce/gpiogw/internal/actionconfig"
	"github.com/mattjoyce/gpiogw/internal/auth"
	"github.com/mattjoyce/gpiogw/internal/events"
	"github.com/mattjoyce/gpiogw/internal/plugin"
	"github.com/mattjoyce/gpiogw/internal/storage"
	"github.com/mattjoyce/gpiogw/internal/task"
)

// mockQueue implements ActionQueue for testing
type mockQueue struct {
	mu        sync.Mutex
	items     []action.QueueItem
	enqueueFn func(item action.QueueItem) error
	tasks     map[string]task.Info
	cancelled []string
}

func (m *mockQueue) Enqueue(item action.QueueItem) error {
	if m.enqueueFn != nil {
		if err := m.enqueueFn(item); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return nil
}

func (m *mockQueue) Tasks() []task.Info {
	out := make([]task.Info, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	return out
}

func (m *mockQueue) GetTask(id string) (task.Info, bool) {
	t, ok := m.tasks[id]
	return t, ok
}

func (m *mockQueue) CancelTask(id string) bool {
	if _, ok := m.tasks[id]; !ok {
		return false
	}
	m.cancelled = append(m.cancelled, id)
	return true
}

func (m *mockQueue) QueueDepth() int  { return len(m.items) }
func (m *mockQueue) ActiveTasks() int { return len(m.tasks) }

type stubHandler struct {
	kinds []string
}

func (h stubHandler) Execute(context.Context, action.Action, actionconfig.Document) error { return nil }
func (h stubHandler) SupportedActions() []string                                          { return h.kinds }
func (h stubHandler) CurrentState() any                                                   { return map[string]any{"state": "init"} }

// mockRegistry implements HandlerRegistry for testing
type mockRegistry struct {
	entries []*plugin.Entry
}

func (m *mockRegistry) Handlers() []*plugin.Entry { return m.entries }

func (m *mockRegistry) Kinds() []string {
	var kinds []string
	for _, e := range m.entries {
		kinds = append(kinds, e.Kinds...)
	}
	return kinds
}

type mockConfigs map[string]string

func (m mockConfigs) Names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	return names
}

func (m mockConfigs) Digest(name string) (string, bool) {
	d, ok := m[name]
	return d, ok
}

type mockHistory struct {
	entries []storage.Entry
	err     error
	limit   int
}

func (m *mockHistory) Recent(_ context.Context, limit int) ([]storage.Entry, error) {
	m.limit = limit
	return m.entries, m.err
}

type fixture struct {
	queue   *mockQueue
	history *mockHistory
	hub     *events.Hub
	server  *Server
}

func newFixture(config Config) *fixture {
	f := &fixture{
		queue: &mockQueue{tasks: map[string]task.Info{
			"blink": {ID: "blink", Kind: "LedSimple", Config: "LedSimpleAction", Origin: "10.0.0.9", Status: task.StatusRunning},
		}},
		history: &mockHistory{},
		hub:     events.NewHub(10),
	}
	reg := &mockRegistry{entries: []*plugin.Entry{{
		Implementation: "HandlerLedSimpleAction",
		Description:    "LED on a single pin",
		Kinds:          []string{"LedSimple"},
		Handler:        stubHandler{kinds: []string{"LedSimple"}},
	}}}
	configs := mockConfigs{"LedSimpleAction": "abc123"}
	f.server = New(config, f.queue, reg, configs, f.history, f.hub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rr, req)
	return rr
}

func TestPing(t *testing.T) {
	f := newFixture(Config{APIKey: "secret"})
	rr := f.do(t, http.MethodGet, "/gpio/ping", "", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ping", rr.Body.String())
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain"))
}

func TestHealthzNoAuth(t *testing.T) {
	f := newFixture(Config{APIKey: "secret"})
	rr := f.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthzResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.ActiveTasks)
	assert.Equal(t, 1, resp.HandlersLoaded)
}

func TestPostActions(t *testing.T) {
	led := `{"kind":"LedSimple","config":"LedSimpleAction","enabled":true,"loops":1}`
	off := `{"kind":"LedSimple","config":"LedSimpleAction","enabled":false}`
	missing := `{"kind":"LedSimple","config":"Nope","enabled":true}`

	tests := []struct {
		name         string
		body         string
		wantStatus   int
		wantQueued   int
		wantRejected int
	}{
		{name: "invalid json", body: `[{`, wantStatus: http.StatusBadRequest},
		{name: "not an array", body: led, wantStatus: http.StatusBadRequest},
		{name: "null", body: `null`, wantStatus: http.StatusBadRequest},
		{name: "empty array", body: `[]`, wantStatus: http.StatusBadRequest},
		{name: "missing enabled", body: `[{"kind":"LedSimple","config":"x"}]`, wantStatus: http.StatusBadRequest},
		{name: "no enabled entries", body: "[" + off + "]", wantStatus: http.StatusBadRequest},
		{name: "enabled only", body: "[" + led + "," + off + "," + led + "]", wantStatus: http.StatusAccepted, wantQueued: 2},
		{name: "partial rejection", body: "[" + led + "," + missing + "]", wantStatus: http.StatusAccepted, wantQueued: 1, wantRejected: 1},
		{name: "all rejected", body: "[" + missing + "]", wantStatus: http.StatusBadRequest, wantRejected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(Config{})
			f.queue.enqueueFn = func(item action.QueueItem) error {
				if item.ConfigName == "Nope" {
					return errors.New("config not found: Nope")
				}
				return nil
			}

			rr := f.do(t, http.MethodPost, "/gpio/action", "", tt.body)
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			assert.Len(t, f.queue.items, tt.wantQueued)

			if tt.wantQueued == 0 && tt.wantRejected == 0 {
				return
			}
			var resp ActionResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Len(t, resp.Queued, tt.wantQueued)
			assert.Len(t, resp.Rejected, tt.wantRejected)
		})
	}
}

func TestPostActionsRecordsOrigin(t *testing.T) {
	f := newFixture(Config{})
	req := httptest.NewRequest(http.MethodPost, "/gpio/action",
		strings.NewReader(`[{"kind":"LedSimple","config":"LedSimpleAction","enabled":true,"taskId":"blink-2"}]`))
	req.RemoteAddr = "192.168.1.40:51234"
	rr := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	require.Len(t, f.queue.items, 1)
	item := f.queue.items[0]
	assert.Equal(t, "192.168.1.40", item.Origin)
	assert.Equal(t, "blink-2", item.Action.TaskID)

	var resp ActionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, item.ID, resp.Queued[0].ID)
	assert.Equal(t, "blink-2", resp.Queued[0].TaskID)
}

func TestPostActionsHonoursForwardedFor(t *testing.T) {
	f := newFixture(Config{})
	req := httptest.NewRequest(http.MethodPost, "/gpio/action",
		strings.NewReader(`[{"kind":"LedSimple","config":"LedSimpleAction","enabled":true}]`))
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	rr := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "203.0.113.7", f.queue.items[0].Origin)
}

func TestTaskEndpoints(t *testing.T) {
	f := newFixture(Config{})

	rr := f.do(t, http.MethodGet, "/gpio/task", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list TaskListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, "10.0.0.9", list.Tasks[0].Origin)

	rr = f.do(t, http.MethodGet, "/gpio/task/blink", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var info task.Info
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	assert.Equal(t, "LedSimple", info.Kind)

	rr = f.do(t, http.MethodGet, "/gpio/task/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodDelete, "/gpio/task/blink", "", "")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, []string{"blink"}, f.queue.cancelled)

	rr = f.do(t, http.MethodDelete, "/gpio/task/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPluginsAndConfigs(t *testing.T) {
	f := newFixture(Config{})

	rr := f.do(t, http.MethodGet, "/gpio/plugins", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var plugins PluginListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &plugins))
	require.Len(t, plugins.Plugins, 1)
	assert.Equal(t, "HandlerLedSimpleAction", plugins.Plugins[0].Implementation)
	assert.Equal(t, map[string]any{"state": "init"}, plugins.Plugins[0].State)

	rr = f.do(t, http.MethodGet, "/gpio/config", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var configs ConfigListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &configs))
	assert.Equal(t, []ConfigSummary{{Name: "LedSimpleAction", Digest: "abc123"}}, configs.Configs)
}

func TestHistory(t *testing.T) {
	f := newFixture(Config{})
	f.history.entries = []storage.Entry{{ID: "q1", Kind: "LedSimple", Status: storage.OutcomeSucceeded}}

	rr := f.do(t, http.MethodGet, "/gpio/history", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, defaultHistoryLimit, f.history.limit)

	rr = f.do(t, http.MethodGet, "/gpio/history?limit=5", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, f.history.limit)
	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, storage.OutcomeSucceeded, resp.Entries[0].Status)

	for _, bad := range []string{"0", "-1", "abc", "100000"} {
		rr = f.do(t, http.MethodGet, "/gpio/history?limit="+bad, "", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, bad)
	}

	f.history.err = errors.New("disk gone")
	rr = f.do(t, http.MethodGet, "/gpio/history", "", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHistoryDisabled(t *testing.T) {
	f := newFixture(Config{})
	f.server.history = nil
	rr := f.do(t, http.MethodGet, "/gpio/history", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAuthScopes(t *testing.T) {
	f := newFixture(Config{
		APIKey: "admin-key",
		Tokens: []auth.TokenConfig{
			{Token: "viewer", Scopes: []string{auth.ScopeTasksRO}},
			{Token: "operator", Scopes: []string{auth.ScopeTasksRW, auth.ScopeActionsRW}},
		},
	})
	body := `[{"kind":"LedSimple","config":"LedSimpleAction","enabled":true}]`

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		want   int
	}{
		{name: "no token", method: http.MethodGet, path: "/gpio/task", want: http.StatusUnauthorized},
		{name: "bad token", method: http.MethodGet, path: "/gpio/task", token: "wrong", want: http.StatusUnauthorized},
		{name: "viewer reads tasks", method: http.MethodGet, path: "/gpio/task", token: "viewer", want: http.StatusOK},
		{name: "viewer cannot cancel", method: http.MethodDelete, path: "/gpio/task/blink", token: "viewer", want: http.StatusForbidden},
		{name: "viewer cannot post", method: http.MethodPost, path: "/gpio/action", token: "viewer", body: body, want: http.StatusForbidden},
		{name: "viewer cannot stream", method: http.MethodGet, path: "/gpio/events", token: "viewer", want: http.StatusForbidden},
		{name: "operator cancels", method: http.MethodDelete, path: "/gpio/task/blink", token: "operator", want: http.StatusAccepted},
		{name: "operator posts", method: http.MethodPost, path: "/gpio/action", token: "operator", body: body, want: http.StatusAccepted},
		{name: "admin reads config", method: http.MethodGet, path: "/gpio/config", token: "admin-key", want: http.StatusOK},
		{name: "ping stays open", method: http.MethodGet, path: "/gpio/ping", want: http.StatusOK},
		{name: "openapi stays open", method: http.MethodGet, path: "/openapi.json", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestOpenAPIListsKinds(t *testing.T) {
	f := newFixture(Config{})
	rr := f.do(t, http.MethodGet, "/openapi.json", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var doc struct {
		OpenAPI    string         `json:"openapi"`
		Paths      map[string]any `json:"paths"`
		Components struct {
			Schemas struct {
				Action struct {
					Properties struct {
						Kind struct {
							Enum []string `json:"enum"`
						} `json:"kind"`
					} `json:"properties"`
				} `json:"Action"`
			} `json:"schemas"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, "3.1.0", doc.OpenAPI)
	assert.Contains(t, doc.Paths, "/gpio/action")
	assert.Contains(t, doc.Paths, "/gpio/task/{id}")
	assert.Equal(t, []string{"LedSimple"}, doc.Components.Schemas.Action.Properties.Kind.Enum)
}

func TestEventsStream(t *testing.T) {
	f := newFixture(Config{})
	f.hub.Publish(events.ActionEnqueued, map[string]any{"kind": "LedSimple"})

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/gpio/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var typ, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				typ = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && typ != "":
				return typ, data
			}
		}
	}

	typ, data := readEvent()
	assert.Equal(t, events.ActionEnqueued, typ)
	assert.JSONEq(t, `{"kind":"LedSimple"}`, data)

	require.Eventually(t, func() bool { return f.hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	f.hub.Publish(events.TaskRemoved, map[string]any{"task_id": "blink"})
	typ, _ = readEvent()
	assert.Equal(t, events.TaskRemoved, typ)
}

func TestWriteSSE(t *testing.T) {
	rr := httptest.NewRecorder()
	require.NoError(t, writeSSE(rr, events.Event{ID: 7, Type: "task.removed", Data: json.RawMessage(`{"a":1}`)}))
	assert.Equal(t, "id: 7\nevent: task.removed\ndata: {\"a\":1}\n\n", rr.Body.String())

	assert.Equal(t, int64(0), parseLastEventID(""))
	assert.Equal(t, int64(0), parseLastEventID("-3"))
	assert.Equal(t, int64(42), parseLastEventID("42"))
}
