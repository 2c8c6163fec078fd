package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/cache"
	"github.com/SAP-F-2025/assessment-runner/internal/client"
	"github.com/SAP-F-2025/assessment-runner/internal/events"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/render"
	"github.com/SAP-F-2025/assessment-runner/internal/sessionctx"
	"github.com/stretchr/testify/require"
)

// fakeBackend serves the backend REST API from memory.
type fakeBackend struct {
	srv *httptest.Server

	mu        sync.Mutex
	tests     []models.Test
	sections  map[models.ID][]models.Section
	questions map[models.ID][]models.Question
	attempts  []models.Attempt
	responses []models.Response
	users     map[models.ID]models.User
	uploads   map[models.ID][]byte
	calls     []string
	nextID    int

	// status overrides keyed by "METHOD /pattern"
	fail map[string]int

	// created attempts come back without an id
	dropAttemptID bool
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		sections:  make(map[models.ID][]models.Section),
		questions: make(map[models.ID][]models.Question),
		users:     make(map[models.ID]models.User),
		uploads:   make(map[models.ID][]byte),
		fail:      make(map[string]int),
	}

	mux := http.NewServeMux()
	fb.route(mux, "GET /v1/tests", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, fb.tests)
	})
	fb.route(mux, "GET /v1/tests/{id}", func(w http.ResponseWriter, r *http.Request) {
		for _, t := range fb.tests {
			if t.ID.String() == r.PathValue("id") {
				writeJSON(w, t)
				return
			}
		}
		http.NotFound(w, r)
	})
	fb.route(mux, "GET /v1/tests/{id}/sections", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, fb.sections[models.ID(r.PathValue("id"))])
	})
	fb.route(mux, "GET /v1/sections/{id}/questions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, fb.questions[models.ID(r.PathValue("id"))])
	})
	fb.route(mux, "GET /v1/questions/{id}", func(w http.ResponseWriter, r *http.Request) {
		for _, qs := range fb.questions {
			for _, q := range qs {
				if q.ID.String() == r.PathValue("id") {
					writeJSON(w, q)
					return
				}
			}
		}
		http.NotFound(w, r)
	})
	fb.route(mux, "GET /v1/attempts", func(w http.ResponseWriter, r *http.Request) {
		var out []models.Attempt
		for _, a := range fb.attempts {
			if a.TestID.String() == r.URL.Query().Get("test_id") && a.UserID.String() == r.URL.Query().Get("user_id") {
				out = append(out, a)
			}
		}
		writeJSON(w, out)
	})
	fb.route(mux, "POST /v1/attempts", func(w http.ResponseWriter, r *http.Request) {
		var req client.CreateAttemptRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		now := time.Now()
		a := models.Attempt{ID: fb.newID("a"), TestID: req.TestID, UserID: req.UserID, StartTime: &now}
		fb.attempts = append(fb.attempts, a)
		if fb.dropAttemptID {
			a.ID = ""
		}
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, a)
	})
	fb.route(mux, "POST /v1/attempts/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SubmitTime time.Time `json:"submit_time"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for i := range fb.attempts {
			if fb.attempts[i].ID.String() == r.PathValue("id") {
				fb.attempts[i].SubmitTime = &body.SubmitTime
				writeJSON(w, fb.attempts[i])
				return
			}
		}
		http.NotFound(w, r)
	})
	fb.route(mux, "GET /v1/responses", func(w http.ResponseWriter, r *http.Request) {
		var out []models.Response
		for _, resp := range fb.responses {
			if resp.AttemptID.String() == r.URL.Query().Get("attempt_id") {
				out = append(out, resp)
			}
		}
		writeJSON(w, out)
	})
	fb.route(mux, "POST /v1/responses", func(w http.ResponseWriter, r *http.Request) {
		var resp models.Response
		_ = json.NewDecoder(r.Body).Decode(&resp)
		for i := range fb.responses {
			if fb.responses[i].AttemptID == resp.AttemptID && fb.responses[i].QuestionID == resp.QuestionID {
				resp.ID = fb.responses[i].ID
				fb.responses[i] = resp
				writeJSON(w, resp)
				return
			}
		}
		resp.ID = fb.newID("r")
		fb.responses = append(fb.responses, resp)
		writeJSON(w, resp)
	})
	fb.route(mux, "POST /v1/media", func(w http.ResponseWriter, r *http.Request) {
		id := fb.newID("m")
		writeJSON(w, client.MediaSlot{ID: id, PresignedURL: fb.srv.URL + "/upload/" + id.String()})
	})
	fb.route(mux, "PUT /upload/{id}", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		fb.uploads[models.ID(r.PathValue("id"))] = data
		w.WriteHeader(http.StatusOK)
	})
	fb.route(mux, "GET /v1/media/{id}/download", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"presignedUrl": "https://cdn.test/" + r.PathValue("id")})
	})
	fb.route(mux, "POST /v1/questions/{qid}/media/{mid}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	fb.route(mux, "GET /v1/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		u, ok := fb.users[models.ID(r.PathValue("id"))]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, u)
	})
	fb.route(mux, "PATCH /v1/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		var patch map[string]any
		_ = json.NewDecoder(r.Body).Decode(&patch)
		u := fb.users[models.ID(r.PathValue("id"))]
		if lang, ok := patch["language"].(string); ok {
			u.Language = lang
		}
		fb.users[u.ID] = u
		writeJSON(w, u)
	})

	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		fb.calls = append(fb.calls, pattern)
		if status, ok := fb.fail[pattern]; ok {
			w.WriteHeader(status)
			return
		}
		h(w, r)
	})
}

func (fb *fakeBackend) newID(prefix string) models.ID {
	fb.nextID++
	return models.ID(fmt.Sprintf("%s%d", prefix, fb.nextID))
}

func (fb *fakeBackend) failWith(pattern string, status int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.fail[pattern] = status
}

func (fb *fakeBackend) callCount(pattern string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	n := 0
	for _, c := range fb.calls {
		if c == pattern {
			n++
		}
	}
	return n
}

// callIndex is the position of the last call to pattern, or -1.
func (fb *fakeBackend) callIndex(pattern string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i := len(fb.calls) - 1; i >= 0; i-- {
		if fb.calls[i] == pattern {
			return i
		}
	}
	return -1
}

func (fb *fakeBackend) storedResponses() map[models.ID]string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make(map[models.ID]string)
	for _, r := range fb.responses {
		out[r.QuestionID] = r.AnswerText
	}
	return out
}

func (fb *fakeBackend) upload(id models.ID) []byte {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.uploads[id]
}

func (fb *fakeBackend) openAttempts() []models.Attempt {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	var out []models.Attempt
	for _, a := range fb.attempts {
		if a.IsOpen() {
			out = append(out, a)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// seedMoCA installs a two section test: a text question, then a memory
// registration and an audio question.
func (fb *fakeBackend) seedMoCA() {
	fb.tests = []models.Test{
		{ID: "t1", Title: "MoCA - Montreal Cognitive Assessment", IsActive: true},
		{ID: "t2", Title: "Mini-Mental State Examination", IsActive: true},
	}
	fb.sections["t1"] = []models.Section{
		{ID: "s2", TestID: "t1", Title: "Memory", OrderIndex: 1},
		{ID: "s1", TestID: "t1", Title: "Orientation", OrderIndex: 0},
	}
	fb.questions["s1"] = []models.Question{
		{ID: "q1", SectionID: "s1", Type: models.TypeText, Title: "What is the capital of France?"},
	}
	fb.questions["s2"] = []models.Question{
		{ID: "q2", SectionID: "s2", Type: models.TypeText, Title: "Learn these words", OrderIndex: 0,
			Config: models.Config{"frontend_type": "memory_registration", "words": []any{"face", "velvet", "church", "daisy", "red"}}},
		{ID: "q3", SectionID: "s2", Type: models.TypeAudio, Title: "Describe the picture", OrderIndex: 1},
	}
	fb.users["u1"] = models.User{ID: "u1", Email: "ana@example.com", FeedbackGiven: false}
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) render.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type harness struct {
	backend   *fakeBackend
	client    *client.Client
	cache     cache.CacheService
	manager   *SessionManager
	publisher *events.MockEventPublisher
	clock     *fakeClock
	service   SessionService
	gate      FeedbackGate
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend:   newFakeBackend(t),
		cache:     cache.NewMemoryCache(),
		publisher: events.NewMockEventPublisher(discardLogger()),
		clock:     newFakeClock(),
	}
	h.backend.seedMoCA()

	cl, err := client.New(client.Config{BaseURL: h.backend.srv.URL + "/v1", Logger: discardLogger()})
	require.NoError(t, err)
	h.client = cl
	h.manager = NewSessionManager(time.Hour, discardLogger())
	h.rebuild()
	return h
}

func (h *harness) rebuild() {
	h.service = NewSessionService(SessionServiceDeps{
		Backends: ClientBackend(h.client),
		Manager:  h.manager,
		Recorder: NewSessionRecorder(h.publisher, nil, discardLogger()),
		Gate:     h.gate,
		Clock:    h.clock,
		Logger:   discardLogger(),
	}, SessionServiceConfig{})
}

// context returns the session context of a client, logged in when token
// is not empty.
func (h *harness) context(t *testing.T, token string) *sessionctx.Context {
	t.Helper()
	sc := sessionctx.New(h.cache, "client-a1b2c3d4", time.Hour)
	if token != "" {
		require.NoError(t, sc.Store(context.Background(), models.AuthSession{
			Token: token,
			User:  models.User{ID: "u1", Email: "ana@example.com"},
		}))
	}
	return sc
}
