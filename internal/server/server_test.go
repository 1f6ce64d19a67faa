package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/dataexplorer/internal/auth"
	"github.com/leapstack-labs/dataexplorer/internal/stream"
	"github.com/leapstack-labs/dataexplorer/internal/testutil"
	"github.com/leapstack-labs/dataexplorer/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-32-bytes-long!!"

// scriptedRunner emits a fixed event list and records what it was asked.
type scriptedRunner struct {
	events    []core.Event
	err       error
	questions []string
	requestID string
	principal auth.Principal
}

func (r *scriptedRunner) Run(ctx context.Context, question string, sink stream.Sink) error {
	r.questions = append(r.questions, question)
	r.requestID = middleware.GetReqID(ctx)
	r.principal, _ = PrincipalFrom(ctx)
	for _, ev := range r.events {
		if err := sink.Emit(ctx, ev); err != nil {
			return err
		}
	}
	return r.err
}

func newTestServer(t *testing.T, runner Runner, mutate ...func(*Config)) http.Handler {
	t.Helper()
	cfg := Config{
		Runner:        runner,
		Datasets:      []string{"local:main"},
		SessionSecret: testSecret,
		Logger:        testutil.NewTestLogger(t),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return New(cfg).Handler()
}

func post(h http.Handler, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChat_StreamsFrames(t *testing.T) {
	runner := &scriptedRunner{events: []core.Event{
		core.MessageEvent("Checking for visualization options..."),
		core.ChartEvent(core.GraphArtifact("plotly", "Bar Chart chart generated using plotly", map[string]any{"data": []any{}})),
		core.MessageEvent("Processing complete!"),
	}}
	h := newTestServer(t, runner)

	rec := post(h, "/api/chat", `{"message":"  heart rate by day  "}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.Equal(t, []string{"heart rate by day"}, runner.questions)
	assert.NotEmpty(t, runner.requestID)

	body := rec.Body.String()
	require.True(t, strings.HasSuffix(body, "\n\n"))
	frames := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	require.Len(t, frames, 3)

	var decoded []map[string]any
	for _, f := range frames {
		payload, ok := strings.CutPrefix(f, "data: ")
		require.True(t, ok, "frame %q", f)
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(payload), &m))
		decoded = append(decoded, m)
	}
	assert.Equal(t, "message", decoded[0]["type"])
	assert.Equal(t, "Checking for visualization options...", decoded[0]["content"])
	assert.Equal(t, "graph", decoded[1]["type"])
	assert.Equal(t, "plotly", decoded[1]["graphType"])
	assert.Equal(t, "Processing complete!", decoded[2]["content"])
}

func TestChat_RunnerErrorKeepsStream(t *testing.T) {
	runner := &scriptedRunner{
		events: []core.Event{core.ErrorEvent("Error: planner down")},
		err:    errors.New("planner down"),
	}
	rec := post(newTestServer(t, runner), "/api/chat", `{"message":"q"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "data: {\"type\":\"error\",\"message\":\"Error: planner down\"}\n\n", rec.Body.String())
}

func TestChat_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty message", body: `{"message":""}`},
		{name: "blank message", body: `{"message":"   "}`},
		{name: "missing message", body: `{}`},
		{name: "invalid json", body: `{"message":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &scriptedRunner{}
			rec := post(newTestServer(t, runner), "/api/chat", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Empty(t, runner.questions)
		})
	}
}

func TestChat_UsesClientRequestID(t *testing.T) {
	runner := &scriptedRunner{}
	post(newTestServer(t, runner), "/api/chat", `{"message":"q"}`, "X-Request-Id", "abc-123")
	assert.Equal(t, "abc-123", runner.requestID)
}

func TestLogin(t *testing.T) {
	h := newTestServer(t, &scriptedRunner{})

	t.Run("valid credentials", func(t *testing.T) {
		rec := post(h, "/api/login", `{"username":"admin","password":"password"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp loginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, auth.Principal{ID: 1, Username: "admin", Email: "admin@example.com"}, resp.User)
		assert.Contains(t, rec.Header().Get("Set-Cookie"), sessionName+"=")
	})

	t.Run("invalid credentials", func(t *testing.T) {
		rec := post(h, "/api/login", `{"username":"admin","password":"nope"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"message":"Invalid credentials"}`, rec.Body.String())
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := post(h, "/api/login", `not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChat_AuthRequired(t *testing.T) {
	runner := &scriptedRunner{events: []core.Event{core.MessageEvent("ok")}}
	h := newTestServer(t, runner, func(c *Config) { c.AuthRequired = true })

	t.Run("anonymous", func(t *testing.T) {
		rec := post(h, "/api/chat", `{"message":"q"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	login := post(h, "/api/login", `{"username":"demo","password":"demo"}`)
	require.Equal(t, http.StatusOK, login.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &resp))

	t.Run("bearer token", func(t *testing.T) {
		rec := post(h, "/api/chat", `{"message":"q"}`, "Authorization", "Bearer "+resp.Token)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "demo", runner.principal.Username)
	})

	t.Run("unknown token", func(t *testing.T) {
		rec := post(h, "/api/chat", `{"message":"q"}`, "Authorization", "Bearer token_bogus")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("session cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"q"}`))
		for _, c := range login.Result().Cookies() {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3, runner.principal.ID)
	})
}

func TestLogout_RevokesToken(t *testing.T) {
	tokens := auth.NewTokens(0, 0)
	h := newTestServer(t, &scriptedRunner{}, func(c *Config) {
		c.AuthRequired = true
		c.Tokens = tokens
	})
	token := tokens.Issue(auth.Principal{ID: 1, Username: "admin"})

	rec := post(h, "/api/logout", ``, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = post(h, "/api/chat", `{"message":"q"}`, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthAndDatasets(t *testing.T) {
	h := newTestServer(t, nil)

	tests := []struct {
		path string
		want string
	}{
		{path: "/api/health", want: `{"status":"ok"}`},
		{path: "/api/datasets", want: `{"datasets":["local:main"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, &scriptedRunner{})

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard", func(t *testing.T) {
		h := newTestServer(t, nil, func(c *Config) { c.AllowedOrigins = []string{"*"} })
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "http://anywhere.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "http://anywhere.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestChat_NoRunner(t *testing.T) {
	rec := post(newTestServer(t, nil), "/api/chat", `{"message":"q"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServe_StopsOnCancel(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", SessionSecret: testSecret})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Serve(ctx))
}
